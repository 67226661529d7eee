package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/use-agent/postpulse/api"
	"github.com/use-agent/postpulse/batch"
	"github.com/use-agent/postpulse/cache"
	"github.com/use-agent/postpulse/config"
	"github.com/use-agent/postpulse/extract"
	"github.com/use-agent/postpulse/governor"
	"github.com/use-agent/postpulse/ingest"
	"github.com/use-agent/postpulse/metrics"
	"github.com/use-agent/postpulse/scraper"
	"github.com/use-agent/postpulse/webhook"
)

func main() {
	// A missing .env is normal; the environment and flags still apply.
	_ = godotenv.Load()

	if err := newRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "postpulse",
		Short:        "Collect engagement metrics for social posts with a real browser",
		SilenceUsage: true,
	}
	root.AddCommand(newScrapeCmd(cfg))
	return root
}

func newScrapeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <input.csv>",
		Short: "Scrape every post URL in a CSV file into an engagement CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Batch.InputFile = args[0]
			return runScrape(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Batch.OutputFile, "output", "o", cfg.Batch.OutputFile, "output CSV path")
	f.IntVar(&cfg.Batch.StartIndex, "start-index", cfg.Batch.StartIndex, "first input row to process (0-based)")
	f.IntVar(&cfg.Batch.BatchSize, "batch-size", cfg.Batch.BatchSize, "number of rows to process; 0 runs to the end")
	f.DurationVar(&cfg.Scraper.WaitBudget, "wait-time", cfg.Scraper.WaitBudget, "how long to wait for post content per navigation")
	f.BoolVar(&cfg.Browser.Headless, "headless", cfg.Browser.Headless, "run the browser headless")
	f.BoolVar(&cfg.Batch.Resume, "resume", cfg.Batch.Resume, "continue after the last row recorded in the output checkpoint")
	f.StringVar(&cfg.Server.Addr, "status-addr", cfg.Server.Addr, "serve /health, /progress and /metrics on this address")
	f.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	return cmd
}

func runScrape(parent context.Context, cfg *config.Config) error {
	// ── 1. Validate configuration ───────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	// ── 3. Load targets and resolve the window ──────────────────────
	targets, err := ingest.LoadTargets(cfg.Batch.InputFile)
	if err != nil {
		return err
	}
	if cfg.Batch.Resume {
		cp, err := batch.ReadCheckpoint(cfg.Batch.OutputFile)
		switch {
		case err == nil:
			cfg.Batch.StartIndex = cp.LastCompletedIndex + 1
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("no checkpoint to resume from, using start index", "start", cfg.Batch.StartIndex)
		default:
			return err
		}
	}
	slog.Info("postpulse starting",
		"input", cfg.Batch.InputFile,
		"output", cfg.Batch.OutputFile,
		"targets", len(targets),
		"start", cfg.Batch.StartIndex,
		"batchSize", cfg.Batch.BatchSize,
		"headless", cfg.Browser.Headless,
	)

	// ── 4. Wire the pipeline ────────────────────────────────────────
	m := metrics.New()
	records, err := cache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxAge)
	if err != nil {
		return fmt.Errorf("create record cache: %w", err)
	}
	gov := governor.New(cfg.Governor, governor.WithRetryHook(func(int, error, time.Duration) {
		m.IncRetries()
	}))
	runner := batch.NewRunner(batch.Config{
		WaitBudget:            cfg.Scraper.WaitBudget,
		AutoSaveEvery:         cfg.Batch.AutoSaveEvery,
		SessionCreateAttempts: cfg.Batch.SessionCreateAttempts,
	}, batch.Deps{
		Sessions: func(context.Context) (batch.Session, error) {
			s, err := scraper.NewSession(cfg.Browser, cfg.Scraper)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Extractor: extract.New(extract.Options{
			MaxPlausibleCount: cfg.Extract.MaxPlausibleCount,
			ViewsFloor:        cfg.Extract.ViewsFloor,
		}),
		Store:    batch.NewCSVStore(cfg.Batch.OutputFile),
		Governor: gov,
		Metrics:  m,
		Cache:    records,
	})

	// ── 5. Optional status server ───────────────────────────────────
	if cfg.Server.Addr != "" {
		srv := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: api.NewRouter(cfg.Server, status{runner, gov}, m.Registry, time.Now()),
		}
		go func() {
			slog.Info("status server listening", "addr", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("status server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("status server forced shutdown", "error", err)
			}
		}()
	}

	// ── 6. Run until done or signalled ──────────────────────────────
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, runErr := runner.Run(ctx, targets, batch.Window{
		Start: cfg.Batch.StartIndex,
		Size:  cfg.Batch.BatchSize,
	})
	if summary == nil {
		return runErr
	}

	// ── 7. Completion webhook ───────────────────────────────────────
	notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	event := &webhook.Event{
		Type:      webhook.EventType(string(summary.State)),
		Output:    cfg.Batch.OutputFile,
		Timestamp: time.Now().Unix(),
		Data:      summary,
	}
	if err := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret).Notify(notifyCtx, event); err != nil {
		slog.Error("completion webhook failed", "error", err)
	}

	if summary.State == batch.StateInterrupted {
		slog.Info("run interrupted, resume with --resume", "lastCompletedIndex", summary.LastCompletedIndex)
	}
	fmt.Printf("%s: %d processed (%d success, %d partial, %d failed), %d rows in %s\n",
		summary.State, summary.Processed, summary.Succeeded, summary.Partial, summary.Failed,
		summary.Rows, cfg.Batch.OutputFile)
	return runErr
}

// status feeds the status server from the runner and the governor.
type status struct {
	*batch.Runner
	*governor.Governor
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
