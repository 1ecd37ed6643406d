package scheduler

import (
	"context"
	"time"

	"github.com/news-crawler/internal/models"
	"github.com/news-crawler/internal/sink"
	"github.com/news-crawler/internal/source"
	"github.com/news-crawler/internal/storage"
	"github.com/news-crawler/pkg/logger"
)

// JobConfig binds one source to its enablement flag, article cap and sink
// endpoint. Built once at startup, immutable afterwards.
type JobConfig struct {
	Name        string
	Enabled     bool
	MaxArticles int
	Endpoint    string
}

// Submitter is the sink capability a job needs
type Submitter interface {
	Submit(ctx context.Context, endpoint string, articles []*models.Article) (*sink.Outcome, error)
}

// Job is the runnable binding of a source crawler to its config and sink.
// Each invocation is stateless; nothing carries over between rounds except
// the optional dedup store.
type Job struct {
	cfg     JobConfig
	crawler source.Crawler
	sink    Submitter
	store   storage.Repository // nil when dedup is disabled
	log     *logger.Logger
}

// NewJob creates a job. store may be nil.
func NewJob(cfg JobConfig, crawler source.Crawler, submitter Submitter, store storage.Repository, log *logger.Logger) *Job {
	return &Job{
		cfg:     cfg,
		crawler: crawler,
		sink:    submitter,
		store:   store,
		log:     log.WithJob(cfg.Name),
	}
}

// Name returns the job name
func (j *Job) Name() string {
	return j.cfg.Name
}

// Enabled reports whether the scheduler should run this job
func (j *Job) Enabled() bool {
	return j.cfg.Enabled
}

// RunResult is the transient record of one job execution, consumed only for
// logging.
type RunResult struct {
	Job       string
	Fetched   int
	Submitted int
	Err       error
	Duration  time.Duration
}

// Run executes one fetch-and-submit cycle. Every failure is captured in the
// result; nothing panics or escapes to the caller.
func (j *Job) Run(ctx context.Context) RunResult {
	start := time.Now()
	result := RunResult{Job: j.cfg.Name}

	articles, err := j.crawler.Fetch(ctx, j.cfg.MaxArticles)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}
	result.Fetched = len(articles)

	if j.store != nil {
		articles = j.filterSeen(ctx, articles)
	}
	if len(articles) == 0 {
		result.Duration = time.Since(start)
		return result
	}

	outcome, err := j.sink.Submit(ctx, j.cfg.Endpoint, articles)
	if outcome != nil {
		result.Submitted = outcome.Submitted
		if j.store != nil {
			j.markSubmitted(ctx, outcome.Accepted)
		}
	}
	if err != nil {
		result.Err = err
	}

	result.Duration = time.Since(start)
	return result
}

// filterSeen drops articles already recorded in the submission log. Store
// errors degrade to submitting everything rather than losing articles.
func (j *Job) filterSeen(ctx context.Context, articles []*models.Article) []*models.Article {
	fresh := make([]*models.Article, 0, len(articles))
	for _, a := range articles {
		seen, err := j.store.Seen(ctx, source.GenerateExternalID(a.Source, a.URL))
		if err != nil {
			j.log.Warn().Err(err).Str("url", a.URL).Msg("Dedup lookup failed, submitting anyway")
			fresh = append(fresh, a)
			continue
		}
		if !seen {
			fresh = append(fresh, a)
		}
	}
	if dropped := len(articles) - len(fresh); dropped > 0 {
		j.log.Debug().Int("dropped", dropped).Msg("Skipped already-submitted articles")
	}
	return fresh
}

func (j *Job) markSubmitted(ctx context.Context, accepted []*models.Article) {
	for _, a := range accepted {
		record := &models.SubmittedArticle{
			ExternalID: source.GenerateExternalID(a.Source, a.URL),
			Source:     a.Source,
			Title:      a.Title,
			URL:        a.URL,
		}
		if err := j.store.MarkSubmitted(ctx, record); err != nil {
			j.log.Warn().Err(err).Str("url", a.URL).Msg("Failed to record submission")
		}
	}
}
