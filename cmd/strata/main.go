package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/config"
)

const usage = `strata - one filesystem API over many storage backends

Usage:
  strata [flags] <command> [arguments]

Paths are addressed as "mount://path"; mounts are defined in the
configuration file (see "strata init").

Commands:
%s
Flags:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("strata", flag.ContinueOnError)
	configPath := flags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/strata/config.yaml)")
	logLevel := flags.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	metricsFile := flags.String("metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), usage, commandHelp())
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	name, cmdArgs := flags.Arg(0), flags.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "strata: unknown command %q\n\n", name)
		flags.Usage()
		return 2
	}

	// init runs before any configuration exists
	if name == "init" {
		if err := runInit(cmdArgs, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "strata: %v\n", err)
			return 1
		}
		return 0
	}

	// ========================================================================
	// Step 1: Load configuration and configure logging
	// ========================================================================

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "strata: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *metricsFile != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = *metricsFile
	}
	if err := config.ConfigureLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "strata: configure logging: %v\n", err)
		return 1
	}

	// ========================================================================
	// Step 2: Build the mounts
	// ========================================================================

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mm, err := config.InitializeMounts(ctx, cfg, config.InitializeMetrics(cfg))
	if err != nil {
		logger.Error("Failed to initialize mounts: %v", err)
		return 1
	}
	defer func() {
		if err := mm.Close(); err != nil {
			logger.Warn("Failed to close mounts: %v", err)
		}
	}()

	// ========================================================================
	// Step 3: Run the command
	// ========================================================================

	env := &environment{fs: mm, mounts: mm, out: os.Stdout, in: os.Stdin}
	status := 0
	if err := cmd.run(ctx, env, cmdArgs); err != nil {
		fmt.Fprintf(os.Stderr, "strata %s: %v\n", name, err)
		status = 1
	}

	if err := config.ExportMetrics(cfg); err != nil {
		logger.Warn("Failed to export metrics: %v", err)
	}
	return status
}

// runInit writes a default configuration file.
func runInit(args []string, configPath string) error {
	flags := flag.NewFlagSet("init", flag.ContinueOnError)
	force := flags.Bool("force", false, "Overwrite an existing config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}
