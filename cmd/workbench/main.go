package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lh-manager/workbench/observability"
	"github.com/lh-manager/workbench/workspace"
)

func main() {
	os.Exit(execute())
}

// execute runs one action and returns the process exit code. Deferred
// cleanup, including the workspace drain and the log file close, always
// runs before the process exits.
func execute() int {
	var (
		configFile  = flag.String("config", "", "Path to workbench config JSON file")
		baseURL     = flag.String("base-url", "", "Backend base URL (overrides config)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		logFile     = flag.String("log-file", "", "Write logs to a rotating file instead of stderr")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
		action      = flag.String("action", "status", "One of: "+actionNames())
		sampleID    = flag.String("sample", "", "Sample id")
		stage       = flag.String("stage", "", "Stage name: prep or inject")
		method      = flag.String("method", "", "Method name for add-method")
		index       = flag.Int("index", 0, "Method index (active index for reuse-method)")
		to          = flag.Int("to", 0, "Destination index for move-method")
	)
	flag.Parse()

	run, ok := actions[*action]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown action %q\n", *action)
		fmt.Fprintln(os.Stderr, "Usage: workbench [-config <file>] -action <action> [-sample <id>] [-stage <stage>]")
		flag.PrintDefaults()
		return 1
	}

	cfg := workspace.DefaultConfig()
	if *configFile != "" {
		loaded, err := workspace.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if *baseURL != "" {
		cfg.Backend.BaseURL = *baseURL
	}

	var out io.Writer = os.Stderr
	if *logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		defer rotating.Close()
		out = rotating
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	observability.UseLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *metricsAddr != "" {
		cfg.Observer = observability.ObserverMetrics
	}
	if cfg.Observer == observability.ObserverMetrics {
		if _, err := observability.RegisterMetrics(prometheus.DefaultRegisterer, logger); err != nil {
			logger.Error("failed to register metrics", "error", err)
			return 1
		}
	}
	if *metricsAddr != "" {
		go serveMetrics(ctx, *metricsAddr, logger)
	}

	ws, err := workspace.New(&cfg, workspace.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create workspace", "error", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Editor.SubmitTimeout.Std())
		defer cancel()
		if err := ws.Close(closeCtx); err != nil {
			logger.Warn("close workspace", "error", err)
		}
	}()

	req := request{
		sampleID: *sampleID,
		stage:    *stage,
		method:   *method,
		index:    *index,
		to:       *to,
	}
	if err := run(ctx, ws, req); err != nil {
		logger.Error("action failed", "action", *action, "error", err)
		fmt.Fprintf(os.Stderr, "Action %s failed: %v\n", *action, err)
		return 1
	}
	return 0
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
