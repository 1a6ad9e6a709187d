// classgen reads IR unit documents and generates prototype-based JavaScript
// classes with provide/require prologues.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"classgen/internal/config"
	"classgen/internal/observability"
	"classgen/internal/parser"
	"classgen/internal/registry"
	"classgen/internal/watch"
)

var (
	inputs      string
	configFile  string
	outputFile  string
	types       string
	exclude     string
	dbFile      string
	otlpAddr    string
	metricsAddr string
	watchMode   bool
	verbose     bool
	showHelp    bool
)

func init() {
	flag.StringVar(&inputs, "input", "", "IR documents or directories, comma-separated (required)")
	flag.StringVar(&inputs, "i", "", "IR documents or directories (shorthand)")

	flag.StringVar(&configFile, "config", "", "Config file (YAML/JSON/TOML)")
	flag.StringVar(&configFile, "c", "", "Config file (shorthand)")

	flag.StringVar(&outputFile, "output", "", "Output file (default: stdout)")
	flag.StringVar(&outputFile, "o", "", "Output file (shorthand)")

	flag.StringVar(&types, "types", "", "Only generate these classes (comma-separated globs)")
	flag.StringVar(&types, "T", "", "Only generate these classes (shorthand)")
	flag.StringVar(&exclude, "exclude", "", "Exclude these classes (comma-separated globs)")
	flag.StringVar(&exclude, "X", "", "Exclude these classes (shorthand)")

	flag.StringVar(&dbFile, "db", "", "Store a registry snapshot of every session in this SQLite file")
	flag.StringVar(&otlpAddr, "otlp", "", "Export traces to this OTLP/gRPC endpoint")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	flag.BoolVar(&watchMode, "watch", false, "Regenerate when inputs change")
	flag.BoolVar(&verbose, "v", false, "Verbose output")
	flag.BoolVar(&showHelp, "h", false, "Show help")
	flag.BoolVar(&showHelp, "help", false, "Show help")

	flag.Usage = usage
}

func usage() {
	fmt.Fprintf(os.Stderr, `classgen - class emitter for IR units

Usage:
    classgen -i <units.yaml|dir> [options]

Options:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
    # Generate all units of a directory
    classgen -i build/ir -o out/app.js

    # Generate selected classes with a custom config
    classgen -i build/ir -c classgen.yaml -T "ui.*" -X "ui.internal.*"

    # Keep regenerating while the front-end rewrites the IR
    classgen -i build/ir -o out/app.js --watch

    # Record what each session declared
    classgen -i build/ir -o out/app.js --db .classgen/meta.db

    # Export traces and metrics
    classgen -i build/ir --otlp localhost:4317 --metrics-addr :9090

`)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if showHelp {
		flag.Usage()
		return nil
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	paths := parseCommaSeparated(inputs)
	if len(paths) == 0 {
		return fmt.Errorf("input is required (-i or --input)")
	}

	cfg := config.New()
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	if types != "" {
		cfg.Options.IncludeClasses = parseCommaSeparated(types)
	}
	if exclude != "" {
		cfg.Options.ExcludeClasses = parseCommaSeparated(exclude)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if otlpAddr != "" {
		shutdown, err := observability.SetupTracing(ctx, otlpAddr)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("trace flush failed", "error", err)
			}
		}()
	}
	if metricsAddr != "" {
		server := observability.NewMetricsServer(metricsAddr)
		server.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	s, err := newSession(cfg, registry.New(
		registry.WithIgnoredPrefixes(cfg.Options.IgnoredPrefixes...),
		registry.WithRootClass(cfg.Options.RootClass),
	), paths)
	if err != nil {
		return err
	}
	defer s.Close()

	if !watchMode {
		return s.Run(ctx)
	}

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial session failed", "error", err)
	}
	w, err := watch.New(250*time.Millisecond, []string{".#*", "*~", "*.swp", "*.tmp"},
		func(ctx context.Context, changed []string) error {
			slog.Debug("changed inputs", "paths", changed)
			return s.Run(ctx)
		},
		watch.WithInclude(parser.IsUnitFile),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	slog.Info("watching inputs", "paths", paths)
	if err := w.Watch(ctx, paths); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// parseCommaSeparated splits a comma-separated string into a slice of trimmed strings.
func parseCommaSeparated(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
