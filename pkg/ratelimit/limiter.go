package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter manages named rate limiters for the services the crawler
// talks to: the article API sink and the crawled sites themselves.
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for a service
// requestsPerSecond: the rate limit (e.g., 10 means 10 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (m *MultiLimiter) Allow(name string) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	return limiter.Allow()
}

// Limiter names
const (
	// LimiterCrawl gates page fetches against the crawled sites
	LimiterCrawl = "crawl"
	// LimiterSink gates submissions to the article API
	LimiterSink = "sink"
)

// NewDefaultLimiter creates a limiter with default rate limits
func NewDefaultLimiter() *MultiLimiter {
	return NewLimiter(1, 2)
}

// NewLimiter creates a limiter with the given per-second rates for crawling
// and sink submission. Zero or negative rates fall back to the defaults.
func NewLimiter(crawlPerSecond, sinkPerSecond float64) *MultiLimiter {
	if crawlPerSecond <= 0 {
		crawlPerSecond = 1 // one page fetch per second, polite to origin sites
	}
	if sinkPerSecond <= 0 {
		sinkPerSecond = 2
	}

	m := NewMultiLimiter()
	m.AddLimiter(LimiterCrawl, crawlPerSecond, 1)
	m.AddLimiter(LimiterSink, sinkPerSecond, 5)
	return m
}
