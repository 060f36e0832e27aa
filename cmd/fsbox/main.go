package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"fsbox/internal/config"
)

var (
	configPath = flag.String("config", "", "Path to config.json (optional)")
	debugMode  = flag.Bool("d", false, "Enable debug mode")
	logFile    = flag.String("log-file", "", "Log file path (logs disabled by default)")
	readOnly   = flag.Bool("read-only", false, "Expose only read-only tools")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(configFilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fsbox: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *debugMode {
		cfg.Log.Debug = true
	}

	logger := initLogger(cfg.Log)
	logger.Info().Msg("fsbox starting")

	// Allowed roots come from positional arguments, falling back to the
	// config file or FSBOX_ALLOWED_ROOTS.
	roots := flag.Args()
	if len(roots) == 0 {
		roots = cfg.AllowedRoots
	}
	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: fsbox [flags] <allowed-directory> [additional-directories...]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runServer(ctx, logger, cfg, roots, *readOnly); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		fmt.Fprintf(os.Stderr, "fsbox: %v\n", err)
		os.Exit(1)
	}
}

func configFilePath() string {
	if *configPath != "" {
		return *configPath
	}
	return "config.json"
}

func initLogger(settings config.LogSettings) zerolog.Logger {
	// Stdout carries the MCP session, so logs go to a rotated file or
	// nowhere at all.
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if settings.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var output io.Writer = io.Discard
	if settings.File != "" {
		output = &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    settings.MaxSizeMB,
			MaxBackups: settings.MaxBackups,
			MaxAge:     settings.MaxAgeDays,
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
