package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/pattern-tools-mcp/internal/config"
	"github.com/ironsheep/pattern-tools-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version information")
	configPath := flag.String("config", "", "Path to JSON config file (default "+config.GetConfigPath()+")")
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("pattern-tools-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pattern-tools-mcp: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log.Level, *debugMode)
	logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"commit":     GitCommit,
		"debug_mode": *debugMode,
	}).Debug("starting pattern MCP server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reads from stdin block, so a signal is handled here rather than
	// waiting for the next request line.
	srv := server.New(cfg, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.WithError(err).Fatal("server error")
		}
	case <-ctx.Done():
		logger.Info("signal received")
	}
	logger.Debug("server shutting down")
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "pattern-tools-mcp - MCP server that turns pattern photos into 1:1 vector sheets")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: pattern-mcp [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Environment variables:")
	fmt.Fprintln(out, "  "+config.EnvLogLevel+"=debug       Log level (trace, debug, info, warn, error)")
	fmt.Fprintln(out, "  "+config.EnvEpsilon+"=3              Simplification tolerance in pixels")
	fmt.Fprintln(out, "  "+config.EnvLowThreshold+"=50       Canny low threshold")
	fmt.Fprintln(out, "  "+config.EnvHighThreshold+"=150     Canny high threshold")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "This server communicates via MCP protocol over stdin/stdout.")
	fmt.Fprintln(out, "Configure it in your MCP client (e.g., Claude Desktop).")
}

// initLogger initializes the logger with appropriate level. Output goes to
// stderr because stdout carries the MCP protocol.
func initLogger(level string, debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.Debug("Debug logging enabled")
		return logger
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}
