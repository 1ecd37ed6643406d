package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/news-crawler/internal/config"
	"github.com/news-crawler/internal/models"
	"github.com/news-crawler/internal/schedule"
	"github.com/news-crawler/internal/scheduler"
	"github.com/news-crawler/internal/sink"
	"github.com/news-crawler/internal/source"
	"github.com/news-crawler/internal/source/coin98"
	"github.com/news-crawler/internal/source/rss"
	"github.com/news-crawler/internal/source/tapchibitcoin"
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
		Use:   "news-crawler",
		Short: "News crawler operations CLI",
		Long: `One-shot operations for the news crawler: run a crawl round,
inspect registered sources, check source health and preview the schedule.`,
		PersistentPreRunE: initializeApp,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	return nil
}

// ============ CRAWL ============

func crawlCmd() *cobra.Command {
	var (
		sourceName string
		limit      int
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl round now",
		Long:  `Fetches articles from every enabled source (or one source with --source) and submits them to the configured API. With --dry-run, articles are printed instead of submitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			limiter := ratelimit.NewLimiter(cfg.RateLimit.CrawlPerSecond, cfg.RateLimit.SinkPerSecond)

			var submitter scheduler.Submitter
			if dryRun {
				submitter = &printSubmitter{}
			} else {
				submitter = sink.NewClient(time.Duration(cfg.Sink.TimeoutSeconds)*time.Second, limiter, log)
			}

			registry, configs := buildRegistry(cfg, limiter, log)
			if sourceName != "" {
				if registry.Get(sourceName) == nil {
					return fmt.Errorf("source not found or not enabled: %s", sourceName)
				}
			}

			for _, jc := range configs {
				if sourceName != "" && jc.Name != sourceName {
					continue
				}
				if limit > 0 {
					jc.MaxArticles = limit
				}

				job := scheduler.NewJob(jc, registry.Get(jc.Name), submitter, nil, log)
				result := job.Run(ctx)

				if result.Err != nil {
					fmt.Printf("✗ %s: %v\n", result.Job, result.Err)
					continue
				}
				fmt.Printf("✓ %s: fetched %d, submitted %d (%s)\n",
					result.Job, result.Fetched, result.Submitted, result.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceName, "source", "", "crawl only this source")
	cmd.Flags().IntVar(&limit, "limit", 0, "override the per-source article cap")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print articles instead of submitting")
	return cmd
}

// printSubmitter implements scheduler.Submitter by writing article JSON to
// stdout, for --dry-run.
type printSubmitter struct{}

func (p *printSubmitter) Submit(ctx context.Context, endpoint string, articles []*models.Article) (*sink.Outcome, error) {
	for _, a := range articles {
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return nil, err
		}
		fmt.Println(string(data))
	}
	return &sink.Outcome{Submitted: len(articles), Accepted: articles}, nil
}

// ============ SOURCES ============

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			limiter := ratelimit.NewDefaultLimiter()
			_, configs := buildRegistry(cfg, limiter, log)

			if len(configs) == 0 {
				fmt.Println("No sources enabled")
				return nil
			}

			fmt.Printf("%-16s %-8s %-12s %s\n", "NAME", "ENABLED", "MAX ARTICLES", "ENDPOINT")
			for _, jc := range configs {
				fmt.Printf("%-16s %-8t %-12d %s\n", jc.Name, jc.Enabled, jc.MaxArticles, jc.Endpoint)
			}
			return nil
		},
	}
}

// ============ HEALTH ============

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that every enabled source is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			limiter := ratelimit.NewDefaultLimiter()
			registry, _ := buildRegistry(cfg, limiter, log)

			failed := 0
			for _, c := range registry.All() {
				if err := c.HealthCheck(ctx); err != nil {
					failed++
					fmt.Printf("✗ %s: %v\n", c.Name(), err)
					continue
				}
				fmt.Printf("✓ %s\n", c.Name())
			}
			if failed > 0 {
				return fmt.Errorf("%d source(s) unhealthy", failed)
			}
			return nil
		},
	}
}

// ============ SCHEDULE ============

func scheduleCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Preview the next scheduled trigger times",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := schedule.NewPolicy(cfg.Schedule)
			if err != nil {
				return err
			}

			fmt.Printf("Schedule: %s\n", policy.Describe())
			if policy.RunImmediately() {
				fmt.Println("Runs immediately on startup")
			}

			next := time.Now()
			for i := 0; i < count; i++ {
				next = policy.Next(next)
				fmt.Printf("%2d. %s\n", i+1, next.Format(time.RFC1123))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "number of trigger times to show")
	return cmd
}

// buildRegistry constructs the source registry and job configs for every
// enabled source, mirroring the daemon's startup wiring.
func buildRegistry(cfg *config.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) (*source.Registry, []scheduler.JobConfig) {
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
	}
	if cfg.Sources.TapchiBitcoin.Enabled {
		registry.Register(tapchibitcoin.New(cfg.Sources.TapchiBitcoin, limiter, log))
		configs = append(configs, scheduler.JobConfig{
			Name:        "tapchibitcoin",
			Enabled:     true,
			MaxArticles: cfg.Sources.TapchiBitcoin.Limit(cfg.Sink),
			Endpoint:    cfg.Sources.TapchiBitcoin.Endpoint(cfg.Sink),
		})
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
		}
	}

	return registry, configs
}
