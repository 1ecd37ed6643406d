package coin98

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/news-crawler/internal/config"
	"github.com/news-crawler/internal/models"
	"github.com/news-crawler/internal/source"
	"github.com/news-crawler/internal/source/scrape"
	"github.com/news-crawler/pkg/logger"
	"github.com/news-crawler/pkg/ratelimit"
)

const sourceDomain = "coin98.net"

// section and utility pages that must never be treated as articles
var excludePaths = []string{
	"/learn", "/series", "/report", "/courses", "/signin",
	"/home", "/#", "/about", "/contact", "/privacy",
	"/terms", "/categories", "/tags", "/inside-coin98",
}

// noise markers for body lines that belong to site chrome, not the article
var skipLineMarkers = []string{
	"Language edition", "AVAILABLE EDITIONS", "Coin98 Insights",
	"min read", "Copy link", "RELEVANT SERIES", "All Rights Reserved",
	"Powered by", "Follow us", "Subscribe",
}

// Source implements source.Crawler for the Coin98 news site
type Source struct {
	homeURL string
	client  *http.Client
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger
}

// New creates a new Coin98 source crawler
func New(cfg config.SiteConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Source {
	return &Source{
		homeURL: cfg.HomeURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		log:     log.WithSource("coin98"),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "coin98"
}

// Fetch crawls the home page for fresh article links and extracts up to
// limit articles from them.
func (s *Source) Fetch(ctx context.Context, limit int) ([]*models.Article, error) {
	links, err := s.articleLinks(ctx)
	if err != nil {
		return nil, &source.FetchError{Source: s.Name(), Err: err}
	}
	if len(links) == 0 {
		s.log.Warn().Msg("No article links found on home page")
		return nil, nil
	}
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}

	s.log.Info().Int("count", len(links)).Msg("Crawling articles")

	articles := make([]*models.Article, 0, len(links))
	for _, link := range links {
		if err := s.limiter.Wait(ctx, ratelimit.LimiterCrawl); err != nil {
			return articles, &source.FetchError{Source: s.Name(), Err: err}
		}

		article, err := s.crawlArticle(ctx, link)
		if err != nil {
			s.log.Warn().Err(err).Str("url", link).Msg("Skipping article")
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}

// HealthCheck verifies the home page is reachable
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := scrape.FetchDocument(ctx, s.client, s.homeURL)
	return err
}

// articleLinks collects candidate article URLs from the home page
func (s *Source) articleLinks(ctx context.Context) ([]string, error) {
	doc, err := scrape.FetchDocument(ctx, s.client, s.homeURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(s.homeURL)
	if err != nil {
		return nil, fmt.Errorf("bad home URL: %w", err)
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs := scrape.AbsoluteURL(base, href)
		if abs == "" || seen[abs] {
			return
		}
		if s.isArticleLink(abs, base.Hostname()) {
			seen[abs] = true
			links = append(links, abs)
		}
	})

	return links, nil
}

// isArticleLink rejects navigation, section and utility pages
func (s *Source) isArticleLink(rawURL, homeHost string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Hostname() != homeHost {
		return false
	}

	path := strings.ToLower(u.Path)
	if len(path) <= 3 || path == "/" {
		return false
	}
	for _, exclude := range excludePaths {
		if strings.Contains(path, exclude) {
			return false
		}
	}
	return true
}

// crawlArticle fetches one article page and normalizes it
func (s *Source) crawlArticle(ctx context.Context, articleURL string) (*models.Article, error) {
	doc, err := scrape.FetchDocument(ctx, s.client, articleURL)
	if err != nil {
		return nil, err
	}

	dates := scrape.ExtractDates(doc)

	return &models.Article{
		Title:     scrape.Title(doc, "Coin98"),
		Content:   s.extractContent(doc),
		Source:    sourceDomain,
		Extra:     models.JSON{},
		URL:       articleURL,
		ImageURL:  scrape.MainImage(doc, "files.amberblocks.com", []string{"logo", "icon", "avatar", "flag"}),
		CreatedAt: scrape.UnixTimestamp(dates.Published),
		UpdatedAt: scrape.UnixTimestamp(dates.Modified),
	}, nil
}

// extractContent renders the article body, dropping chrome lines that leak
// into the main container.
func (s *Source) extractContent(doc *goquery.Document) string {
	container := doc.Find("article").First()
	if container.Length() == 0 {
		container = doc.Find("main").First()
	}
	if container.Length() == 0 {
		container = doc.Find("body")
	}

	var kept []string
	for _, line := range strings.Split(scrape.BlockText(container), "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 5 || s.isNoiseLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return scrape.CollapseBlank(strings.Join(kept, "\n"))
}

func (s *Source) isNoiseLine(line string) bool {
	for _, marker := range skipLineMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

var _ source.Crawler = (*Source)(nil)
