package source

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/news-crawler/internal/models"
)

// Crawler is the capability one crawled site presents to the scheduler:
// fetch up to limit normalized articles. Implementations must never return
// more than limit records.
type Crawler interface {
	// Name returns the unique name of this source
	Name() string

	// Fetch retrieves up to limit normalized articles from the source
	Fetch(ctx context.Context, limit int) ([]*models.Article, error)

	// HealthCheck verifies the source is accessible
	HealthCheck(ctx context.Context) error
}

// FetchError wraps a failure to retrieve or parse content from one source.
// It is recoverable: the scheduler logs it and moves on.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// GenerateExternalID creates a stable ID for an article based on source and URL
func GenerateExternalID(sourceName, url string) string {
	data := fmt.Sprintf("%s:%s", sourceName, url)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:16])
}

// Registry holds the registered source crawlers in registration order. It is
// built once at startup and passed to whoever needs the sources; there is no
// ambient global table.
type Registry struct {
	crawlers []Crawler
}

// NewRegistry creates an empty source registry
func NewRegistry() *Registry {
	return &Registry{
		crawlers: make([]Crawler, 0),
	}
}

// Register adds a crawler to the registry
func (r *Registry) Register(c Crawler) {
	r.crawlers = append(r.crawlers, c)
}

// All returns the registered crawlers in registration order
func (r *Registry) All() []Crawler {
	return r.crawlers
}

// Get returns a crawler by name, or nil if not registered
func (r *Registry) Get(name string) Crawler {
	for _, c := range r.crawlers {
		if c.Name() == name {
			return c
		}
	}
	return nil
}
