package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"impactcal/internal/config"
	"impactcal/internal/feed"
	appLog "impactcal/internal/log"
	"impactcal/internal/metrics"
	"impactcal/internal/publish"
	"impactcal/internal/web"
)

const version = "1.0.0"

func main() {
	// A .env file in the working directory may hold IMPACTCAL_*
	// overrides; absence is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "impactcal",
		Usage:   "publish a high-impact-only economic calendar feed",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to config file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		// The default action runs one fetch+filter+publish cycle and
		// exits; schedulers (cron, CI) invoke it with no arguments.
		Action: runOnce,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the scheduler and serve the published feed over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "HTTP listen address (overrides config if set)",
					},
				},
				Action: runServe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("run failed", err)
		os.Exit(1)
	}
}

// setup loads configuration, applies IMPACTCAL_* overrides and sets the
// log level. --debug wins over the configured level.
func setup(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	config.ApplyEnv(cfg)

	if c.Bool("debug") {
		appLog.SetLevel(appLog.LevelDebug)
	} else {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}
	return cfg, nil
}

func runOnce(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	if _, err := cycle(context.Background(), cfg); err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	return nil
}

func runServe(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	if v := c.String("listen"); v != "" {
		cfg.Listen = v
	}

	appLog.Info("impactcal starting", "version", version, "listen", cfg.Listen, "refresh", cfg.Refresh)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Config changes on disk take effect on the next scheduled run.
	watcher := config.NewWatcher(c.String("config"), cfg)
	if err := watcher.Watch(ctx); err != nil {
		appLog.Warn("config watch unavailable, file changes need a restart", "err", err)
	}

	srv := web.NewServer(watcher.Current)

	job := func() {
		runCfg := watcher.Current()
		res, err := cycle(ctx, runCfg)
		if err != nil {
			metrics.RunsTotal.WithLabelValues("error").Inc()
			appLog.Error("scheduled run failed", err)
			srv.SetStatus(web.RunStatus{Time: time.Now(), Err: err.Error()})
			return
		}
		metrics.RunsTotal.WithLabelValues("ok").Inc()
		srv.SetStatus(web.RunStatus{
			Time:   time.Now(),
			Seen:   res.Seen,
			Events: res.Document.Events,
		})
	}

	// Overlapping runs are skipped rather than queued: each run
	// replaces the whole output file, so a second concurrent run buys
	// nothing.
	cr := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	if _, err := cr.AddFunc(cfg.Refresh, job); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", cfg.Refresh, err)
	}

	// Publish immediately on startup, then on schedule.
	job()
	cr.Start()

	httpSrv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			serveErr = err
		}
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = httpSrv.Shutdown(shutCtx)

	// Wait for any in-flight run to finish before exiting.
	<-cr.Stop().Done()

	appLog.Info("impactcal exiting")
	return serveErr
}

// cycle runs one fetch, filter, publish pass and reports what it
// published.
func cycle(ctx context.Context, cfg *config.Config) (*feed.Result, error) {
	fetcher := feed.NewFetcher()
	results, err := fetcher.FetchAll(ctx, toSources(cfg.Sources))
	if err != nil {
		return nil, err
	}

	payloads := make([][]byte, 0, len(results))
	for _, r := range results {
		payloads = append(payloads, r.Body)
	}

	res, err := feed.Process(payloads, feed.FilterOptions{IncludeVIP: cfg.IncludeVIP})
	if err != nil {
		return nil, err
	}

	if err := publish.Write(cfg.Output, res.Output); err != nil {
		return nil, err
	}

	metrics.LastSuccess.SetToCurrentTime()
	appLog.Info("feed published", "path", cfg.Output, "events", len(res.Document.Events))
	return res, nil
}

func toSources(scs []config.SourceConfig) []feed.Source {
	out := make([]feed.Source, 0, len(scs))
	for _, sc := range scs {
		if sc.URL == "" {
			continue
		}
		out = append(out, feed.Source{ID: sc.ID, URL: sc.URL, Required: sc.Required})
	}
	return out
}

// cronLogger adapts the application logger to the cron.Logger
// interface so skipped-run notices land in the normal log stream.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
