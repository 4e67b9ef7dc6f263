// Package main is the entry point for the caseworks cabinet designer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/caseworks/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	// Create application
	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer application.Shutdown()

	// Handle signals for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		cancel()
	}()

	// Run the application
	if err := application.Run(ctx); err != nil {
		// A user quit or signal is a normal exit
		if errors.Is(err, app.ErrQuit) || errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

func parseFlags() app.Options {
	var opts app.Options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.CatalogPath, "catalog", "", "Path to cabinet template catalog")
	flag.StringVar(&opts.DesignPath, "design", "", "Design archive to open or create")
	flag.StringVar(&opts.DesignPath, "d", "", "Design archive to open or create (shorthand)")
	flag.StringVar(&opts.RulesDir, "rules", "", "Directory of shop rule scripts")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.Headless, "headless", false, "Wire components and exit without a terminal UI")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Caseworks - parametric cabinet designer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: caseworks [options] [design.cwx]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  caseworks                      Start with an untitled design\n")
		fmt.Fprintf(os.Stderr, "  caseworks kitchen.cwx          Open a design archive\n")
		fmt.Fprintf(os.Stderr, "  caseworks -rules ./shop-rules  Load shop rule scripts\n")
		fmt.Fprintf(os.Stderr, "  caseworks -catalog shop.yaml   Use a custom template catalog\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Caseworks %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log level
	switch opts.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	// A positional argument is the design archive to open
	if args := flag.Args(); len(args) > 0 && opts.DesignPath == "" {
		opts.DesignPath = args[0]
	}

	return opts
}
