// Package sink delivers normalized article records to the downstream news
// API. The wire format is one JSON article per POST, matching what the admin
// endpoint accepts.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/news-crawler/internal/models"
	"github.com/news-crawler/pkg/logger"
	"github.com/news-crawler/pkg/ratelimit"
)

// SubmitError wraps a failure to deliver a batch to the sink endpoint.
// It is recoverable: the scheduler logs it and the next round retries.
type SubmitError struct {
	Endpoint string
	Err      error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit to %s failed: %v", e.Endpoint, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Outcome reports the result of one batch submission
type Outcome struct {
	Submitted int
	Failed    int
	// Accepted holds the articles the endpoint took, for the dedup store
	Accepted []*models.Article
}

// Client submits article batches to the configured HTTP API
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
}

// NewClient creates a new sink client with a bounded per-request timeout
func NewClient(timeout time.Duration, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		log:        log.WithComponent("sink"),
	}
}

// Submit posts each article to the endpoint. Individual rejections are
// counted and logged; only a batch with zero accepted articles returns a
// *SubmitError.
func (c *Client) Submit(ctx context.Context, endpoint string, articles []*models.Article) (*Outcome, error) {
	outcome := &Outcome{}
	if len(articles) == 0 {
		return outcome, nil
	}

	for _, article := range articles {
		if err := c.limiter.Wait(ctx, ratelimit.LimiterSink); err != nil {
			return outcome, &SubmitError{Endpoint: endpoint, Err: err}
		}

		if err := c.submitOne(ctx, endpoint, article); err != nil {
			outcome.Failed++
			c.log.Warn().
				Err(err).
				Str("title", truncate(article.Title, 50)).
				Msg("Article rejected by sink")
			continue
		}

		outcome.Submitted++
		outcome.Accepted = append(outcome.Accepted, article)
		c.log.Info().
			Str("title", truncate(article.Title, 50)).
			Msg("Article submitted")
	}

	if outcome.Submitted == 0 {
		return outcome, &SubmitError{Endpoint: endpoint, Err: errors.New("all submissions failed")}
	}
	return outcome, nil
}

// submitOne performs a single article POST
func (c *Client) submitOne(ctx context.Context, endpoint string, article *models.Article) error {
	data, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, string(body))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
