// Package scrape holds the extraction helpers shared by the HTML source
// crawlers: document fetching, title/date/image extraction and timestamp
// normalization.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxBodySize = 10 * 1024 * 1024 // 10MB
	userAgent   = "news-crawler/1.0 (+https://github.com/news-crawler)"
)

// FetchDocument retrieves a page and parses it into a goquery document
func FetchDocument(ctx context.Context, client *http.Client, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// Dates holds raw published/modified date strings as found in the page
type Dates struct {
	Published string
	Modified  string
}

// ExtractDates pulls article dates out of JSON-LD metadata, falling back to
// <time datetime> tags when no structured data is present.
func ExtractDates(doc *goquery.Document) Dates {
	var dates Dates

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw interface{}
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}

		var objects []map[string]interface{}
		switch v := raw.(type) {
		case map[string]interface{}:
			objects = append(objects, v)
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					objects = append(objects, m)
				}
			}
		}

		for _, obj := range objects {
			if s, ok := obj["datePublished"].(string); ok && dates.Published == "" {
				dates.Published = s
			}
			if s, ok := obj["dateModified"].(string); ok && dates.Modified == "" {
				dates.Modified = s
			}
			if dates.Published != "" && dates.Modified != "" {
				return false
			}
		}
		return true
	})

	if dates.Published == "" {
		if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			dates.Published = dt
		}
	}

	return dates
}

// fallback layouts for sites that expose dates as loose text instead of
// RFC3339, in the order the original sites were observed to use them
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02",
	"Jan 2, 2006",
	"02/01/2006 15:04",
	"02/01/2006",
	"2 January 2006",
	"January 2, 2006",
}

// UnixTimestamp converts a date string to unix seconds, returning 0 when the
// string is empty or matches no known layout.
func UnixTimestamp(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if t, err := time.Parse(time.RFC3339, strings.Replace(s, "Z", "+00:00", 1)); err == nil {
		return t.Unix()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Unix()
		}
	}
	return 0
}

// Title extracts the page title, stripping a trailing "- Brand" or "| Brand"
// suffix, falling back to the first h1 and then to "Untitled".
func Title(doc *goquery.Document, brand string) string {
	if raw := strings.TrimSpace(doc.Find("title").First().Text()); raw != "" {
		title := raw
		if brand != "" {
			re := regexp.MustCompile(`(?i)\s*[-|]\s*` + regexp.QuoteMeta(brand) + `.*$`)
			title = re.ReplaceAllString(title, "")
		}
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}

	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return "Untitled"
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// MainImage picks the first plausible article image. Images whose URL
// contains a preferred substring win; anything matching a skip word (logos,
// icons, flags) is rejected.
func MainImage(doc *goquery.Document, prefer string, skip []string) string {
	var fallback string

	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if !hasImageExtension(src) || matchesAny(src, skip) {
			return true
		}
		if prefer != "" && strings.Contains(src, prefer) {
			fallback = src
			return false
		}
		if fallback == "" {
			fallback = src
		}
		return true
	})

	return fallback
}

func hasImageExtension(src string) bool {
	lower := strings.ToLower(src)
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

func matchesAny(s string, words []string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// AbsoluteURL resolves href against base, returning "" for unusable links
func AbsoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

var blankLines = regexp.MustCompile(`\n\s*\n\s*\n+`)

// CollapseBlank squeezes runs of blank lines down to a single separator
func CollapseBlank(text string) string {
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

// BlockText renders the text of a selection with one line per block element,
// approximating the reading order of the page.
func BlockText(sel *goquery.Selection) string {
	var lines []string
	sel.Find("h1, h2, h3, h4, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		if text := strings.Join(strings.Fields(sel.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n\n")
}
