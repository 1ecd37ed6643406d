package rss

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/news-crawler/internal/config"
	"github.com/news-crawler/internal/models"
	"github.com/news-crawler/internal/source"
	"github.com/news-crawler/pkg/logger"
)

// Source implements source.Crawler for a single RSS/Atom feed
type Source struct {
	name   string
	url    string
	parser *gofeed.Parser
	log    *logger.Logger
}

// New creates a new RSS source for a single feed
func New(feed config.RSSFeed, log *logger.Logger) *Source {
	return &Source{
		name:   feed.Name,
		url:    feed.URL,
		parser: gofeed.NewParser(),
		log:    log.WithSource(feed.Name),
	}
}

// NewMultiple creates RSS sources for every configured feed
func NewMultiple(cfg config.RSSConfig, log *logger.Logger) []*Source {
	sources := make([]*Source, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		sources = append(sources, New(feed, log))
	}
	return sources
}

// Name returns the source name
func (s *Source) Name() string {
	return s.name
}

// Fetch retrieves up to limit articles from the feed
func (s *Source) Fetch(ctx context.Context, limit int) ([]*models.Article, error) {
	s.log.Debug().Str("url", s.url).Msg("Fetching RSS feed")

	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, &source.FetchError{Source: s.name, Err: err}
	}

	articles := make([]*models.Article, 0, len(feed.Items))

	for _, item := range feed.Items {
		if limit > 0 && len(articles) >= limit {
			break
		}

		// Skip items older than 7 days
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
			if time.Since(published) > 7*24*time.Hour {
				continue
			}
		}

		article := &models.Article{
			Title:    cleanText(item.Title),
			Content:  cleanText(item.Description),
			Source:   s.name,
			Extra:    models.JSON{"guid": item.GUID, "categories": item.Categories},
			URL:      item.Link,
			ImageURL: itemImage(item),
		}
		if !published.IsZero() {
			article.CreatedAt = published.Unix()
		}
		if item.UpdatedParsed != nil {
			article.UpdatedAt = item.UpdatedParsed.Unix()
		}

		articles = append(articles, article)
	}

	s.log.Info().
		Int("count", len(articles)).
		Str("feed", s.name).
		Msg("Fetched RSS articles")

	return articles, nil
}

// HealthCheck verifies the RSS feed is accessible
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.parser.ParseURLWithContext(s.url, ctx)
	return err
}

// itemImage picks the item image from the feed metadata or enclosures
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

// cleanText removes HTML tags and extra whitespace
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "<br>", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ReplaceAll(text, "</p>", " ")
	text = strings.ReplaceAll(text, "<p>", "")

	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(strings.Join(strings.Fields(result.String()), " "))
}

var _ source.Crawler = (*Source)(nil)
