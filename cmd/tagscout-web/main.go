package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tagscout/internal/cache"
	"tagscout/internal/config"
	"tagscout/internal/library"
	"tagscout/internal/logger"
	"tagscout/internal/provider/musicbrainz"
	"tagscout/internal/ratelimit"
	"tagscout/internal/suggest"
	"tagscout/internal/web"
)

func main() {
	var (
		addr       string
		configPath string
	)

	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.StringVar(&configPath, "config", "", "Config file path")
	flag.Parse()

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if addr == "" {
		addr = cfg.ListenAddr
	}

	// Setup logger with file logging
	l := logger.New(cfg.Verbose)
	logDir := config.GetDefaultLogPath()
	if err := os.MkdirAll(logDir, 0755); err == nil {
		logPath := filepath.Join(logDir, fmt.Sprintf("tagscout-web-%d.log", time.Now().Unix()))
		if err := l.SetFileLog(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to setup file logging: %v\n", err)
		}
	}
	defer l.Close()

	// Suggestion engine wiring: one limiter, one cache, one client for the
	// whole process, shared by every request.
	var lookup suggest.Lookup
	if cfg.LookupEnabled {
		limiter := ratelimit.New(cfg.MinInterval())
		lookup = musicbrainz.New(limiter, musicbrainz.Options{
			UserAgent:   cfg.UserAgent,
			BackoffBase: cfg.BackoffBase(),
			BackoffMax:  cfg.BackoffMax(),
			Attempts:    cfg.LookupAttempts,
			Timeout:     cfg.LookupTimeout(),
		})
	}
	resultCache := cache.New(cfg.CacheTTL(), cfg.CachePath, l)
	engine := suggest.NewEngine(lookup, resultCache, cfg.SuggestThresholds(), cfg.LookupTimeout(), l)
	store := library.NewStore(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobMgr := web.NewJobManager()
	jobMgr.StartCleanup(ctx)
	server := web.NewServer(jobMgr, engine, store, cfg, l)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info("Starting web server on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Server error: %v", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	l.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("Server shutdown error: %v", err)
	}

	l.Info("Server stopped")
}
