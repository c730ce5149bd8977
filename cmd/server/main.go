package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/rdf2rest"
	"github.com/brunobiangulo/rdf2rest/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	dataset := flag.String("dataset", "", "Dataset file to load at startup")
	force := flag.Bool("force", false, "Reload the dataset even if it is unchanged")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := rdf2rest.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = rdf2rest.LoadConfigFile(*configPath)
		if err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		slog.Error("reading environment", "error", err)
		os.Exit(1)
	}
	if v := os.Getenv("DATASET"); v != "" && *dataset == "" {
		*dataset = v
	}

	apiKey := os.Getenv("R2R_API_KEY")
	corsOrigins := os.Getenv("R2R_CORS_ORIGINS")

	m := metrics.New()
	engine, err := rdf2rest.New(cfg, m)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Background load, cancelled on shutdown.
	loadCtx, stopLoad := context.WithCancel(context.Background())
	defer stopLoad()
	if *dataset != "" {
		opts := []rdf2rest.LoadOption{}
		if *force {
			opts = append(opts, rdf2rest.WithForce())
		}
		if _, err := engine.Load(loadCtx, *dataset, opts...); err != nil {
			slog.Error("starting dataset load", "dataset", *dataset, "error", err)
			os.Exit(1)
		}
	}

	h := newHandler(engine, cfg.PublicURL)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /{$}", h.handleService)
	mux.HandleFunc("GET /{id...}", h.handleResource)

	// Middleware chain: recovery -> cors -> auth -> logging -> metrics -> mux
	var handler http.Handler = mux
	handler = metricsMiddleware(m, handler)
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")
	stopLoad()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
