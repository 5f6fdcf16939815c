package main

import (
	"context"
	"fmt"
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
	"tagscout/pkg/utils"
)

func main() {
	opts, configPath, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
	if opts.target == "" {
		return // --init-config path
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(opts.cfg.Verbose)
	defer log.Close()

	if !opts.cfg.Verbose {
		logDir := config.GetDefaultLogPath()
		if err := os.MkdirAll(logDir, 0755); err == nil {
			logFile := filepath.Join(logDir, fmt.Sprintf("tagscout_%s.log", time.Now().Format("2006-01-02_15-04-05")))
			if err := log.SetFileLog(logFile); err == nil {
				log.Debug("Logging to file: %s", logFile)
			}
		}
	}

	if opts.cfg.Verbose && configPath != "" {
		log.Debug("Loaded configuration from: %s", configPath)
	}

	if err := opts.cfg.Validate(); err != nil {
		log.Error("Configuration error: %v", err)
		os.Exit(1)
	}

	if err := run(ctx, opts, log); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *logger.Logger) error {
	cfg := opts.cfg

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

	resultCache := cache.New(cfg.CacheTTL(), cfg.CachePath, log)
	engine := suggest.NewEngine(lookup, resultCache, cfg.SuggestThresholds(), cfg.LookupTimeout(), log)
	store := library.NewStore(log)

	fields, err := resolveFields(opts)
	if err != nil {
		return err
	}

	files, err := targetFiles(config.ExpandHome(opts.target))
	if err != nil {
		return err
	}

	for i, file := range files {
		select {
		case <-ctx.Done():
			return fmt.Errorf("interrupted")
		default:
		}

		req, err := store.BuildRequest(file, fields)
		if err != nil {
			return err
		}

		suggestions, err := engine.Infer(ctx, req)
		if err != nil {
			return err
		}

		if opts.jsonOutput {
			if err := renderJSON(file, fields, suggestions); err != nil {
				return err
			}
		} else {
			if i > 0 {
				fmt.Println()
			}
			renderTable(file, fields, suggestions)
		}
	}

	return nil
}

func resolveFields(opts options) ([]suggest.Field, error) {
	names := opts.fields
	if len(names) == 0 {
		return opts.cfg.SuggestFields(), nil
	}
	var fields []suggest.Field
	for _, name := range names {
		f, ok := suggest.ParseField(name)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// targetFiles resolves the positional argument to a list of audio files:
// either the single file given, or every audio file directly inside a folder.
func targetFiles(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", target, err)
	}

	if info.IsDir() {
		files, err := utils.ListAudioFiles(target)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no audio files in %s", target)
		}
		return files, nil
	}

	if !utils.IsAudioFile(target) {
		return nil, fmt.Errorf("%s is not a supported audio file", target)
	}
	return []string{target}, nil
}
