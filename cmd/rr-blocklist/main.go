package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/haukened/rr-blocklist/internal/dns/common/clock"
	"github.com/haukened/rr-blocklist/internal/dns/common/log"
	"github.com/haukened/rr-blocklist/internal/dns/config"
	"github.com/haukened/rr-blocklist/internal/dns/gateways/feeds"
	"github.com/haukened/rr-blocklist/internal/dns/gateways/upstream"
	"github.com/haukened/rr-blocklist/internal/dns/infra/metrics"
	"github.com/haukened/rr-blocklist/internal/dns/repos/rulefile"
	"github.com/haukened/rr-blocklist/internal/dns/services/collector"
	"github.com/haukened/rr-blocklist/internal/dns/services/validator"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-blocklist"
)

var errInterrupted = errors.New("run interrupted")

// Application holds all the components of one blocklist build
type Application struct {
	config    *config.AppConfig
	collector *collector.Collector
	scheduler *validator.Scheduler
	metrics   *metrics.Recorder
	clock     clock.Clock
	logger    log.Logger
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info(map[string]any{
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.LogLevel,
		"feeds":         cfg.Feeds,
		"primary":       cfg.Primary,
		"secondary":     cfg.Secondary,
		"probe_net":     cfg.ProbeNet,
		"probe_timeout": cfg.ProbeTimeout,
		"probe_strict":  cfg.ProbeStrict,
		"workers":       cfg.Workers,
		"qps":           cfg.QPS,
		"output":        cfg.Output,
	}, "Starting RR-Blocklist build")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn(map[string]any{"signal": sig.String()}, "Shutdown signal received, aborting in-flight queries")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Error(map[string]any{"error": err.Error()}, "Build failed")
		log.Sync()
		os.Exit(1)
	}

	log.Info(nil, "RR-Blocklist build completed")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()
	recorder := metrics.NewRecorder()

	fetcher := feeds.NewFetcher(feeds.Options{
		Timeout:   cfg.FeedTimeout,
		UserAgent: appName + "/" + version,
		Logger:    logger,
	})
	coll, err := collector.NewCollector(collector.CollectorOptions{
		Fetcher:  fetcher,
		Logger:   logger,
		Clock:    clk,
		Observer: recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collector: %w", err)
	}

	primary, secondary, err := cfg.Pools()
	if err != nil {
		return nil, fmt.Errorf("failed to build resolver pools: %w", err)
	}

	exchanger, err := upstream.NewExchanger(upstream.ExchangerOptions{
		Net:     cfg.ProbeNet,
		Timeout: cfg.ProbeTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exchanger: %w", err)
	}

	prober, err := upstream.NewProber(upstream.ProberOptions{
		Exchanger: exchanger,
		Timeout:   cfg.ProbeTimeout,
		Strict:    cfg.ProbeStrict,
		Limiter:   newLimiter(cfg.QPS),
		Observer:  recorder,
		Logger:    logger,
		Clock:     clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prober: %w", err)
	}

	scheduler, err := validator.NewScheduler(validator.SchedulerOptions{
		Prober:        prober,
		Primary:       primary,
		Secondary:     secondary,
		Workers:       cfg.Workers,
		ProgressEvery: int64(cfg.ProgressEvery),
		Observer:      recorder,
		Logger:        logger,
		Clock:         clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Application{
		config:    cfg,
		collector: coll,
		scheduler: scheduler,
		metrics:   recorder,
		clock:     clk,
		logger:    logger,
	}, nil
}

// newLimiter shares qps across all workers, with a burst of a tenth of it.
func newLimiter(qps float64) *rate.Limiter {
	burst := int(qps / 10)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(qps), burst)
}

// Run gathers the feeds, validates every domain and writes the rule file.
// An interrupted run never replaces the previous rule file.
func (app *Application) Run(ctx context.Context) error {
	domains, _ := app.collector.Collect(ctx, app.config.Feeds)
	if ctx.Err() != nil {
		return errInterrupted
	}
	if domains.Len() == 0 {
		app.logger.Warn(map[string]any{"feeds": len(app.config.Feeds)}, "No domains gathered from any feed")
	}

	res := app.scheduler.Validate(ctx, domains)

	app.metrics.ObserveRun(res.Counters, res.Elapsed, res.Interrupted, app.clock.Now())
	if app.config.MetricsFile != "" {
		if err := app.metrics.WriteTextfile(app.config.MetricsFile); err != nil {
			app.logger.Warn(map[string]any{"path": app.config.MetricsFile, "error": err.Error()}, "Metrics export failed")
		}
	}

	if res.Interrupted {
		return errInterrupted
	}

	if err := rulefile.Write(app.config.Output, res.Valid); err != nil {
		return fmt.Errorf("failed to write rule file: %w", err)
	}
	app.logger.Info(map[string]any{
		"path":  app.config.Output,
		"rules": len(res.Valid),
	}, "Rule file written")
	return nil
}
