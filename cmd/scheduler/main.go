package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/news-crawler/internal/config"
	"github.com/news-crawler/internal/schedule"
	"github.com/news-crawler/internal/scheduler"
	"github.com/news-crawler/internal/sink"
	"github.com/news-crawler/internal/source"
	"github.com/news-crawler/internal/source/coin98"
	"github.com/news-crawler/internal/source/rss"
	"github.com/news-crawler/internal/source/tapchibitcoin"
	"github.com/news-crawler/internal/storage"
	"github.com/news-crawler/internal/storage/sqlite"
	"github.com/news-crawler/pkg/logger"
	"github.com/news-crawler/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "news-scheduler",
		Short: "Background scheduler for the news crawler",
		Long: `Runs the configured source crawlers on a schedule and forwards
fetched articles to the news API. This daemon should be run as a service
for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting news crawler scheduler")

	// Schedule policy; every parse failure surfaces here, before the loop
	policy, err := schedule.NewPolicy(cfg.Schedule)
	if err != nil {
		return err
	}

	// Optional submission log for cross-round dedup
	var repo storage.Repository
	if cfg.Database.Enabled {
		repo, err = sqlite.New(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer repo.Close()

		if err := repo.Migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Str("dsn", cfg.Database.DSN).Msg("Submission log enabled")
	}

	// Start health check server for the hosting platform
	go startHealthServer()

	limiter := ratelimit.NewLimiter(cfg.RateLimit.CrawlPerSecond, cfg.RateLimit.SinkPerSecond)
	sinkClient := sink.NewClient(time.Duration(cfg.Sink.TimeoutSeconds)*time.Second, limiter, log)

	jobs := buildJobs(cfg, limiter, sinkClient, repo, log)

	sched, err := scheduler.New(policy, jobs, log)
	if err != nil {
		return err
	}

	// Cancel on shutdown signal; the scheduler finishes its round first
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return sched.Start(ctx)
}

// buildJobs constructs the source registry and one job per registered,
// enabled source. Endpoint and article cap resolve through the per-source
// then global fallback chain.
func buildJobs(cfg *config.Config, limiter *ratelimit.MultiLimiter, sinkClient *sink.Client, repo storage.Repository, log *logger.Logger) []*scheduler.Job {
	registry := source.NewRegistry()
	var configs []scheduler.JobConfig

	if cfg.Sources.Coin98.Enabled {
		registry.Register(coin98.New(cfg.Sources.Coin98, limiter, log))
		configs = append(configs, scheduler.JobConfig{
			Name:        "coin98",
			Enabled:     true,
			MaxArticles: cfg.Sources.Coin98.Limit(cfg.Sink),
			Endpoint:    cfg.Sources.Coin98.Endpoint(cfg.Sink),
		})
		log.Info().Msg("Coin98 crawler registered")
	}
	if cfg.Sources.TapchiBitcoin.Enabled {
		registry.Register(tapchibitcoin.New(cfg.Sources.TapchiBitcoin, limiter, log))
		configs = append(configs, scheduler.JobConfig{
			Name:        "tapchibitcoin",
			Enabled:     true,
			MaxArticles: cfg.Sources.TapchiBitcoin.Limit(cfg.Sink),
			Endpoint:    cfg.Sources.TapchiBitcoin.Endpoint(cfg.Sink),
		})
		log.Info().Msg("TapchiBitcoin crawler registered")
	}
	if cfg.Sources.RSS.Enabled {
		for _, src := range rss.NewMultiple(cfg.Sources.RSS, log) {
			registry.Register(src)
			configs = append(configs, scheduler.JobConfig{
				Name:        src.Name(),
				Enabled:     true,
				MaxArticles: cfg.Sources.RSS.Limit(cfg.Sink),
				Endpoint:    cfg.Sources.RSS.Endpoint(cfg.Sink),
			})
			log.Info().Str("feed", src.Name()).Msg("RSS feed registered")
		}
	}

	jobs := make([]*scheduler.Job, 0, len(configs))
	for _, jc := range configs {
		jobs = append(jobs, scheduler.NewJob(jc, registry.Get(jc.Name), sinkClient, repo, log))
	}
	return jobs
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "10000"
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("News Crawler Scheduler"))
	})

	log.Info().Str("port", port).Msg("Health check server starting")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
