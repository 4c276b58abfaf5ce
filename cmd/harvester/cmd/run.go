package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/discovr-events/harvester/internal/config"
	"github.com/discovr-events/harvester/internal/scraper"
	"github.com/discovr-events/harvester/internal/storage/postgres"
)

var (
	runAll    bool
	runCity   string
	runDryRun bool
	runLimit  int
)

var runCmd = &cobra.Command{
	Use:   "run [source] [city]",
	Short: "Scrape one source (or all sources for a city) and persist events",
	Long: `Run the harvest pipeline: fetch, extract, normalize, dedupe, upsert.

Without DATABASE_URL the run is extract-only, equivalent to --dry-run.

Examples:
  harvester run reyrey-cafe toronto
  harvester run --all --city toronto
  harvester run velvet-underground toronto --dry-run --limit 5`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !runAll && len(args) < 2 {
			return fmt.Errorf("need <source> <city> arguments, or --all --city <city>")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		applyFlagOverrides(&cfg)
		logger := config.NewLogger(cfg.Logging)

		configs, err := scraper.LoadSourceConfigs(cfg.SourcesDir)
		if err != nil {
			return fmt.Errorf("loading source profiles: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, cleanup, err := newScraper(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		opts := scraper.RunOptions{DryRun: runDryRun, Limit: runLimit}

		if runAll {
			if runCity == "" {
				return fmt.Errorf("--all requires --city")
			}
			results := s.RunAll(ctx, configs, runCity, opts)
			printResults(results)
			return nil
		}

		sourceName, city := args[0], args[1]
		source, ok := scraper.FindSource(configs, sourceName)
		if !ok {
			return fmt.Errorf("source not found: %s", sourceName)
		}
		if !source.Enabled {
			return fmt.Errorf("source is disabled: %s", sourceName)
		}

		result, err := s.Run(ctx, source, city, opts)
		if err != nil {
			return fmt.Errorf("run %s: %w", sourceName, err)
		}
		printResults([]scraper.RunResult{result})
		if result.Err != nil {
			return result.Err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every enabled source for --city")
	runCmd.Flags().StringVar(&runCity, "city", "", "city filter for --all")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "extract and normalize without persisting")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max candidates to process per source (0 = unlimited)")
}

// applyFlagOverrides lets CLI flags win over environment config.
func applyFlagOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if sourcesDir != "" {
		cfg.SourcesDir = sourcesDir
	}
}

// newScraper wires fetchers and, when DATABASE_URL is set, the Postgres
// store and run tracker.
func newScraper(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*scraper.Scraper, func(), error) {
	static := scraper.NewHTTPFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, cfg.Fetch.CourtesyDelay, logger)
	rendered := scraper.NewBrowserFetcher(cfg.Fetch.Timeout, logger)
	fetcher := scraper.NewSiteFetcher(static, rendered)
	crawler := scraper.NewCrawler(cfg.Fetch.UserAgent, cfg.Fetch.CourtesyDelay, logger)

	cleanup := func() { rendered.Close() }

	if cfg.Database.URL == "" {
		logger.Warn().Msg("DATABASE_URL not set, events will not be persisted")
		return scraper.NewScraper(fetcher, crawler, nil, nil, logger), cleanup, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	repo, err := postgres.NewEventRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanupWithPool := func() {
		rendered.Close()
		pool.Close()
	}
	return scraper.NewScraper(fetcher, crawler, repo, repo, logger), cleanupWithPool, nil
}

// printResults writes the per-source counter table.
func printResults(results []scraper.RunResult) {
	fmt.Printf("%-28s %-12s %6s %6s %6s %6s %6s  %s\n",
		"SOURCE", "CITY", "FOUND", "NORM", "DUP", "NEW", "UPD", "REJECTED")
	for _, r := range results {
		rejected := formatRejections(r)
		status := ""
		if r.Err != nil {
			status = " ERROR: " + r.Err.Error()
		} else if r.DryRun {
			status = " (dry-run)"
		}
		fmt.Printf("%-28s %-12s %6d %6d %6d %6d %6d  %s%s\n",
			r.SourceName, r.City, r.Found, r.Normalized, r.Deduped,
			r.Persisted, r.Updated, rejected, status)
	}
}

func formatRejections(r scraper.RunResult) string {
	if len(r.Rejected) == 0 {
		return "-"
	}
	reasons := make([]string, 0, len(r.Rejected))
	for reason := range r.Rejected {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	out := ""
	for i, reason := range reasons {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", reason, r.Rejected[scraper.RejectReason(reason)])
	}
	return out
}
