package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagecrawl/internal/clock/system"
	"github.com/JakeFAU/pagecrawl/internal/config"
	"github.com/JakeFAU/pagecrawl/internal/crawler"
	collyfetcher "github.com/JakeFAU/pagecrawl/internal/fetcher/colly"
	"github.com/JakeFAU/pagecrawl/internal/id/uuid"
	"github.com/JakeFAU/pagecrawl/internal/progress"
	"github.com/JakeFAU/pagecrawl/internal/progress/sinks"
)

const hubCloseTimeout = 5 * time.Second

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [OUTPUT]",
		Short: "Run one crawl task",
		Long: `Runs the crawl described by the config file and appends every extracted
record to OUTPUT, or to the configured output path when OUTPUT is omitted.
The first interrupt stops after the page in flight; a second one aborts it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush
			if len(args) == 1 {
				cfg.Output = args[0]
			}
			return runCrawl(cmd.Context(), cmd, cfg, logger)
		},
	}
}

func runCrawl(parent context.Context, cmd *cobra.Command, cfg config.Config, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	if cfg.Output == "" {
		return errors.New("no output path: pass OUTPUT or set output in the config")
	}

	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Agent,
		Proxy:        cfg.Proxy,
		Timeout:      cfg.HTTP.Timeout,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	registry := prometheus.NewRegistry()
	hub, err := buildHub(cmd, cfg, registry, logger)
	if err != nil {
		return err
	}

	task, err := crawler.NewTask(cfg.Crawler(), cfg.Output, fetcher,
		crawler.WithLogger(logger),
		crawler.WithEmitter(hub),
		crawler.WithClock(system.New()),
		crawler.WithIDGenerator(uuid.New()),
	)
	if err != nil {
		closeHub(hub, logger)
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go watchSignals(ctx, signals, task, cancel, logger)

	runErr := task.Process(ctx)
	closeHub(hub, logger)

	if cfg.Metrics.Textfile != "" {
		if err := sinks.WriteTextfile(cfg.Metrics.Textfile, registry); err != nil {
			logger.Warn("metrics textfile not written", zap.Error(err))
		}
	}

	logger.Info("crawl finished",
		zap.String("state", string(task.State())),
		zap.Int("fetched", task.Fetched()),
		zap.Int("resume_index", task.Cursor()),
	)
	if runErr != nil {
		logFailure(logger, runErr)
		return runErr
	}
	return nil
}

func buildHub(cmd *cobra.Command, cfg config.Config, reg prometheus.Registerer, logger *zap.Logger) (*progress.Hub, error) {
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	hubSinks := []progress.Sink{
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	}
	if cfg.Progress.Bar {
		hubSinks = append(hubSinks, sinks.NewBarSink(cmd.ErrOrStderr()))
	}
	return progress.NewHub(progress.Config{Logger: logger}, hubSinks...), nil
}

func closeHub(hub *progress.Hub, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), hubCloseTimeout)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
}

// watchSignals stops the task on the first signal and cancels ctx on the second.
func watchSignals(ctx context.Context, signals <-chan os.Signal, task *crawler.Task, cancel context.CancelFunc, logger *zap.Logger) {
	received := 0
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			received++
			if received == 1 {
				logger.Warn("stopping after the current page; interrupt again to abort", zap.String("signal", sig.String()))
				task.Stop()
				continue
			}
			logger.Warn("aborting in-flight page", zap.String("signal", sig.String()))
			cancel()
			return
		}
	}
}

// maxLoggedMarkup bounds the page markup attached to an extraction failure.
const maxLoggedMarkup = 2048

func logFailure(logger *zap.Logger, err error) {
	var (
		fetchErr   *crawler.FetchError
		extractErr *crawler.ExtractionError
		writeErr   *crawler.WriteError
	)
	switch {
	case errors.As(err, &fetchErr):
		logger.Error("fetch failed",
			zap.String("url", fetchErr.URL),
			zap.Int("item", fetchErr.Item),
			zap.Int("status", fetchErr.StatusCode),
			zap.Error(fetchErr.Err),
		)
	case errors.As(err, &extractErr):
		markup, truncated := extractErr.Markup, false
		if len(markup) > maxLoggedMarkup {
			markup, truncated = markup[:maxLoggedMarkup], true
		}
		logger.Error("extraction failed",
			zap.String("url", extractErr.URL),
			zap.Error(extractErr.Reason),
			zap.String("markup", markup),
			zap.Bool("markup_truncated", truncated),
		)
	case errors.As(err, &writeErr):
		logger.Error("output write failed", zap.String("path", writeErr.Path), zap.Error(writeErr.Err))
	default:
		logger.Error("crawl failed", zap.Error(err))
	}
}
