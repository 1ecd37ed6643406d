package tapchibitcoin

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
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

const sourceDomain = "tapchibitcoin.io"

var excludePaths = []string{
	"/category", "/tag", "/author", "/page", "/search",
	"/contact", "/about", "/privacy", "/terms", "/sitemap",
	"/wp-admin", "/wp-content", "/wp-includes", "/feed",
	"/comments", "/trackback", "/#", "/login", "/register",
	"/wp-json", "/xmlrpc", ".xml", ".rss",
}

var (
	slugPath = regexp.MustCompile(`^/[a-zA-Z0-9-]+/?$`)
	dayMonth = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}`)
	clockRe  = regexp.MustCompile(`^\d{1,2}:\d{2}`)
)

// Source implements source.Crawler for tapchibitcoin.io. Article links live
// in the "lasted_post" section of the home page and end in .html.
type Source struct {
	homeURL string
	client  *http.Client
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger
}

// New creates a new TapchiBitcoin source crawler
func New(cfg config.SiteConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Source {
	return &Source{
		homeURL: cfg.HomeURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		log:     log.WithSource("tapchibitcoin"),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "tapchibitcoin"
}

// Fetch crawls the latest-posts section and extracts up to limit articles
func (s *Source) Fetch(ctx context.Context, limit int) ([]*models.Article, error) {
	links, err := s.articleLinks(ctx)
	if err != nil {
		return nil, &source.FetchError{Source: s.Name(), Err: err}
	}
	if len(links) == 0 {
		s.log.Warn().Msg("No article links found in lasted_post section")
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

// articleLinks collects article URLs from the lasted_post/list_post items
func (s *Source) articleLinks(ctx context.Context) ([]string, error) {
	doc, err := scrape.FetchDocument(ctx, s.client, s.homeURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(s.homeURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("div.lasted_post div.list_post div.item a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs := scrape.AbsoluteURL(base, href)
		if abs == "" || seen[abs] {
			return
		}
		if isArticleLink(abs) {
			seen[abs] = true
			links = append(links, abs)
		}
	})

	return links, nil
}

// isArticleLink accepts tapchibitcoin.io article URLs: .html pages or long
// slug paths outside the WordPress utility space.
func isArticleLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !strings.HasSuffix(u.Hostname(), sourceDomain) {
		return false
	}

	path := strings.ToLower(u.Path)
	if len(path) <= 1 {
		return false
	}
	for _, exclude := range excludePaths {
		if strings.Contains(path, exclude) {
			return false
		}
	}

	if strings.HasSuffix(path, ".html") {
		return true
	}
	return slugPath.MatchString(path) && len(path) > 10
}

// crawlArticle fetches one article page and normalizes it
func (s *Source) crawlArticle(ctx context.Context, articleURL string) (*models.Article, error) {
	doc, err := scrape.FetchDocument(ctx, s.client, articleURL)
	if err != nil {
		return nil, err
	}

	created, updated := extractDates(doc)

	return &models.Article{
		Title:     scrape.Title(doc, "TapchiBitcoin"),
		Content:   extractContent(doc),
		Source:    sourceDomain,
		Extra:     models.JSON{"crawled_at": time.Now().Format(time.RFC3339)},
		URL:       articleURL,
		ImageURL:  scrape.MainImage(doc, "", nil),
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// extractContent takes the body exclusively from the the_content div
func extractContent(doc *goquery.Document) string {
	content := doc.Find("div.the_content").First()
	if content.Length() == 0 {
		return ""
	}
	return scrape.CollapseBlank(scrape.BlockText(content))
}

// extractDates reads the post_meta list (dd/mm/yyyy plus an optional HH:MM
// entry), falling back to JSON-LD metadata.
func extractDates(doc *goquery.Document) (created, updated int64) {
	var dateStr, timeStr string
	doc.Find("ul.post_meta li").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		switch {
		case dayMonth.MatchString(text):
			dateStr = text
		case clockRe.MatchString(text):
			timeStr = text
		}
	})

	if dateStr != "" {
		combined := dateStr
		if timeStr != "" {
			combined = dateStr + " " + timeStr
		}
		if ts := scrape.UnixTimestamp(combined); ts != 0 {
			return ts, 0
		}
		if ts := scrape.UnixTimestamp(dateStr); ts != 0 {
			return ts, 0
		}
	}

	dates := scrape.ExtractDates(doc)
	return scrape.UnixTimestamp(dates.Published), scrape.UnixTimestamp(dates.Modified)
}

var _ source.Crawler = (*Source)(nil)
