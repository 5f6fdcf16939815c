package main

import (
	"fmt"
	"os"
	"strings"

	"tagscout/internal/config"
)

// options bundles the loaded configuration with CLI-only settings.
type options struct {
	cfg        config.Config
	target     string   // file or folder to suggest for
	fields     []string // overrides cfg.Fields when non-empty
	jsonOutput bool
}

// parseArgs parses command-line arguments and loads configuration.
// Priority: CLI flags > config file > defaults
func parseArgs() (options, string, error) {
	args := os.Args[1:]

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			printUsage()
			os.Exit(0)
		}
		if arg == "--init-config" {
			return options{}, "", initConfigFile()
		}
	}

	var configPath string
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" || args[i] == "-c" {
			if i+1 >= len(args) {
				return options{}, "", fmt.Errorf("--config requires a path argument")
			}
			configPath = args[i+1]
			break
		}
	}

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return options{}, "", fmt.Errorf("failed to load config: %w", err)
	}
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	opts := options{cfg: cfg}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--verbose", "-v":
			opts.cfg.Verbose = true

		case "--json", "-j":
			opts.jsonOutput = true

		case "--no-lookup", "-n":
			opts.cfg.LookupEnabled = false

		case "--fields", "-f":
			if i+1 >= len(args) {
				return options{}, "", fmt.Errorf("--fields requires a comma-separated list")
			}
			i++
			for _, name := range strings.Split(args[i], ",") {
				if name = strings.TrimSpace(name); name != "" {
					opts.fields = append(opts.fields, name)
				}
			}

		case "--config", "-c":
			i++

		default:
			if len(arg) > 0 && arg[0] == '-' {
				return options{}, "", fmt.Errorf("unknown flag: %s", arg)
			}
			opts.target = arg
		}
	}

	if opts.target == "" {
		return options{}, "", fmt.Errorf("a file or folder path is required")
	}

	return opts, configPath, nil
}

func initConfigFile() error {
	path := config.GetDefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.SaveConfigFile(config.DefaultConfig(), path); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", path)
	return nil
}

func printUsage() {
	fmt.Print(`tagscout - metadata suggestions for audio files

Usage:
  tagscout [flags] <file-or-folder>

Flags:
  -c, --config <path>    Config file path
  -f, --fields <list>    Comma-separated fields (title,artist,album,albumartist,track,year,genre)
  -j, --json             Print suggestions as JSON
  -n, --no-lookup        Skip the external lookup service
  -v, --verbose          Verbose logging
      --init-config      Write a default config file and exit
  -h, --help             Show this help

Examples:
  tagscout "~/Music/05 - Artist - Title.mp3"
  tagscout --fields title,artist --json ~/Music/Album
`)
}
