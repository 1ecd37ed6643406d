package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/news-crawler/internal/config"
	"github.com/news-crawler/internal/models"
	"github.com/news-crawler/internal/schedule"
	"github.com/news-crawler/internal/scheduler"
	"github.com/news-crawler/internal/sink"
	"github.com/news-crawler/internal/source"
	"github.com/news-crawler/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

// fakeCrawler implements source.Crawler
type fakeCrawler struct {
	name     string
	articles []*models.Article
	err      error

	calls     int32
	lastLimit int32
}

func (f *fakeCrawler) Name() string { return f.name }

func (f *fakeCrawler) Fetch(ctx context.Context, limit int) ([]*models.Article, error) {
	atomic.AddInt32(&f.calls, 1)
	atomic.StoreInt32(&f.lastLimit, int32(limit))
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.articles) > limit {
		return f.articles[:limit], nil
	}
	return f.articles, nil
}

func (f *fakeCrawler) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeCrawler) fetchCalls() int { return int(atomic.LoadInt32(&f.calls)) }

// fakeSubmitter implements scheduler.Submitter
type fakeSubmitter struct {
	err error

	mu      sync.Mutex
	batches [][]*models.Article
}

func (f *fakeSubmitter) Submit(ctx context.Context, endpoint string, articles []*models.Article) (*sink.Outcome, error) {
	f.mu.Lock()
	f.batches = append(f.batches, articles)
	f.mu.Unlock()

	if f.err != nil {
		return &sink.Outcome{Failed: len(articles)}, f.err
	}
	return &sink.Outcome{Submitted: len(articles), Accepted: articles}, nil
}

func (f *fakeSubmitter) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// fakeStore implements storage.Repository
type fakeStore struct {
	mu     sync.Mutex
	seen   map[string]bool
	marked []string
}

func newFakeStore(seen ...string) *fakeStore {
	s := &fakeStore{seen: make(map[string]bool)}
	for _, id := range seen {
		s.seen[id] = true
	}
	return s
}

func (s *fakeStore) Seen(ctx context.Context, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[externalID], nil
}

func (s *fakeStore) MarkSubmitted(ctx context.Context, a *models.SubmittedArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[a.ExternalID] = true
	s.marked = append(s.marked, a.ExternalID)
	return nil
}

func (s *fakeStore) Prune(ctx context.Context, before time.Time) (int64, error) { return 0, nil }
func (s *fakeStore) Migrate() error                                             { return nil }
func (s *fakeStore) Close() error                                               { return nil }

func articles(urls ...string) []*models.Article {
	out := make([]*models.Article, 0, len(urls))
	for _, u := range urls {
		out = append(out, &models.Article{Title: u, Source: "test.example", URL: u})
	}
	return out
}

func TestJob_Run_Success(t *testing.T) {
	crawler := &fakeCrawler{name: "a", articles: articles("u1", "u2", "u3")}
	submitter := &fakeSubmitter{}
	job := scheduler.NewJob(
		scheduler.JobConfig{Name: "a", Enabled: true, MaxArticles: 5, Endpoint: "http://api/articles"},
		crawler, submitter, nil, testLogger(),
	)

	result := job.Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, "a", result.Job)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 3, result.Submitted)
}

func TestJob_Run_RespectsMaxArticles(t *testing.T) {
	crawler := &fakeCrawler{name: "a", articles: articles("u1", "u2", "u3", "u4", "u5", "u6", "u7")}
	submitter := &fakeSubmitter{}
	job := scheduler.NewJob(
		scheduler.JobConfig{Name: "a", Enabled: true, MaxArticles: 5, Endpoint: "http://api/articles"},
		crawler, submitter, nil, testLogger(),
	)

	result := job.Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, 5, int(crawler.lastLimit), "job must never ask for more than MaxArticles")
	assert.Equal(t, 5, result.Fetched)
	assert.LessOrEqual(t, result.Submitted, 5)
}

func TestJob_Run_FetchError(t *testing.T) {
	fetchErr := &source.FetchError{Source: "a", Err: errors.New("boom")}
	crawler := &fakeCrawler{name: "a", err: fetchErr}
	submitter := &fakeSubmitter{}
	job := scheduler.NewJob(
		scheduler.JobConfig{Name: "a", Enabled: true, MaxArticles: 5, Endpoint: "http://api/articles"},
		crawler, submitter, nil, testLogger(),
	)

	result := job.Run(context.Background())

	require.Error(t, result.Err)
	var fe *source.FetchError
	assert.ErrorAs(t, result.Err, &fe)
	assert.Zero(t, result.Fetched)
	assert.Zero(t, result.Submitted)
	assert.Zero(t, submitter.submitted(), "sink must not be called after a fetch failure")
}

func TestJob_Run_SubmitError(t *testing.T) {
	crawler := &fakeCrawler{name: "a", articles: articles("u1")}
	submitter := &fakeSubmitter{err: &sink.SubmitError{Endpoint: "http://api", Err: errors.New("down")}}
	job := scheduler.NewJob(
		scheduler.JobConfig{Name: "a", Enabled: true, MaxArticles: 5, Endpoint: "http://api/articles"},
		crawler, submitter, nil, testLogger(),
	)

	result := job.Run(context.Background())

	require.Error(t, result.Err)
	var se *sink.SubmitError
	assert.ErrorAs(t, result.Err, &se)
	assert.Equal(t, 1, result.Fetched)
	assert.Zero(t, result.Submitted)
}

func TestJob_Run_DedupStore(t *testing.T) {
	arts := articles("u1", "u2", "u3")
	store := newFakeStore(source.GenerateExternalID("test.example", "u2"))
	crawler := &fakeCrawler{name: "a", articles: arts}
	submitter := &fakeSubmitter{}
	job := scheduler.NewJob(
		scheduler.JobConfig{Name: "a", Enabled: true, MaxArticles: 5, Endpoint: "http://api/articles"},
		crawler, submitter, store, testLogger(),
	)

	result := job.Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Submitted, "already-submitted article must be skipped")
	assert.Len(t, store.marked, 2, "accepted articles must be recorded")
}

func mustPolicy(t *testing.T, cfg config.ScheduleConfig) *schedule.Policy {
	t.Helper()
	p, err := schedule.NewPolicy(cfg)
	require.NoError(t, err)
	return p
}

func newJob(name string, enabled bool, crawler source.Crawler, submitter scheduler.Submitter) *scheduler.Job {
	return scheduler.NewJob(
		scheduler.JobConfig{Name: name, Enabled: enabled, MaxArticles: 5, Endpoint: "http://api/articles"},
		crawler, submitter, nil, testLogger(),
	)
}

func TestScheduler_New_NoEnabledJobs(t *testing.T) {
	policy := mustPolicy(t, config.ScheduleConfig{Type: config.ScheduleHourly})
	jobs := []*scheduler.Job{
		newJob("a", false, &fakeCrawler{name: "a"}, &fakeSubmitter{}),
	}

	_, err := scheduler.New(policy, jobs, testLogger())
	require.Error(t, err)

	var fatal *scheduler.FatalError
	assert.ErrorAs(t, err, &fatal)
}

func TestScheduler_RunRound_SkipsDisabledJobs(t *testing.T) {
	policy := mustPolicy(t, config.ScheduleConfig{Type: config.ScheduleHourly})
	enabled := &fakeCrawler{name: "on", articles: articles("u1")}
	disabled := &fakeCrawler{name: "off", articles: articles("u2")}

	sched, err := scheduler.New(policy, []*scheduler.Job{
		newJob("on", true, enabled, &fakeSubmitter{}),
		newJob("off", false, disabled, &fakeSubmitter{}),
	}, testLogger())
	require.NoError(t, err)

	sched.RunRound(context.Background())

	assert.Equal(t, 1, enabled.fetchCalls())
	assert.Zero(t, disabled.fetchCalls(), "disabled job must never reach its crawler")
}

func TestScheduler_RunRound_FailureIsolation(t *testing.T) {
	policy := mustPolicy(t, config.ScheduleConfig{Type: config.ScheduleHourly})
	broken := &fakeCrawler{name: "broken", err: &source.FetchError{Source: "broken", Err: errors.New("site down")}}
	healthy := &fakeCrawler{name: "healthy", articles: articles("u1", "u2")}

	sched, err := scheduler.New(policy, []*scheduler.Job{
		newJob("broken", true, broken, &fakeSubmitter{}),
		newJob("healthy", true, healthy, &fakeSubmitter{}),
	}, testLogger())
	require.NoError(t, err)

	results := sched.RunRound(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, "broken", results[0].Job)
	assert.Error(t, results[0].Err)
	assert.Equal(t, "healthy", results[1].Job)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, 2, results[1].Submitted)
	assert.Equal(t, 1, healthy.fetchCalls(), "one job's failure must not stop the others")
}

func TestScheduler_Start_RunImmediately(t *testing.T) {
	crawler := &fakeCrawler{name: "a", articles: articles("u1")}
	jobs := []*scheduler.Job{newJob("a", true, crawler, &fakeSubmitter{})}

	t.Run("enabled", func(t *testing.T) {
		policy := mustPolicy(t, config.ScheduleConfig{
			Type: config.ScheduleInterval, IntervalMinutes: 60, RunImmediately: true,
		})
		sched, err := scheduler.New(policy, jobs, testLogger())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		require.NoError(t, sched.Start(ctx))

		assert.Equal(t, 1, crawler.fetchCalls(), "one round must run before the first wait")
	})

	t.Run("disabled", func(t *testing.T) {
		before := crawler.fetchCalls()
		policy := mustPolicy(t, config.ScheduleConfig{
			Type: config.ScheduleInterval, IntervalMinutes: 60,
		})
		sched, err := scheduler.New(policy, jobs, testLogger())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		require.NoError(t, sched.Start(ctx))

		assert.Equal(t, before, crawler.fetchCalls(), "no round before the first trigger")
	})
}
