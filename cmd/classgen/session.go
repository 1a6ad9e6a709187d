package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"classgen/internal/config"
	"classgen/internal/diag"
	"classgen/internal/driver"
	"classgen/internal/metastore"
	"classgen/internal/model"
	"classgen/internal/parser"
	"classgen/internal/registry"

	"github.com/google/uuid"
)

// session owns everything one generation run needs. Runs never overlap: the
// registry is reset at the start of each.
type session struct {
	mu       sync.Mutex
	registry *registry.Registry
	parser   *parser.Parser
	driver   *driver.Driver
	store    *metastore.Store
	paths    []string
	output   string
	stderr   io.Writer
}

func newSession(cfg *config.Config, reg *registry.Registry, paths []string) (*session, error) {
	s := &session{
		registry: reg,
		parser:   parser.New(),
		driver:   driver.New(cfg, reg),
		paths:    paths,
		output:   outputFile,
		stderr:   os.Stderr,
	}
	if dbFile != "" {
		store, err := metastore.Open(dbFile)
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	return s, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// Run parses the inputs and generates them as one session.
func (s *session) Run(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	log := slog.With("session", id)

	units, err := s.parser.ParsePaths(s.paths)
	if err != nil {
		return err
	}
	if problems := check(units); len(problems) > 0 {
		fmt.Fprintln(s.stderr, diag.Render(problems))
		return fmt.Errorf("invalid input: %d problem(s)", len(problems))
	}
	log.Info("session started", "units", len(units))

	s.registry.Reset()
	res, runErr := s.driver.Run(ctx, units)
	if res == nil {
		return runErr
	}

	if err := s.write(res.Text()); err != nil {
		return errors.Join(runErr, err)
	}
	fmt.Fprintln(s.stderr, diag.Render(res.Problems))

	if s.store != nil {
		if err := s.store.Save(ctx, id, s.registry.Snapshot()); err != nil {
			log.Warn("saving registry snapshot failed", "error", err)
		}
	}

	log.Info("session finished", "passes", res.Passes, "converged", res.Converged, "problems", len(res.Problems))
	if runErr != nil {
		return runErr
	}
	if n := countErrors(res.Problems); n > 0 {
		return fmt.Errorf("generation reported %d error(s)", n)
	}
	return nil
}

func (s *session) write(text string) error {
	if s.output == "" {
		_, err := io.WriteString(os.Stdout, text)
		return err
	}
	if err := os.WriteFile(s.output, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	slog.Debug("wrote output", "path", s.output, "bytes", len(text))
	return nil
}

func check(units []*model.Unit) []diag.Problem {
	var problems []diag.Problem
	for _, u := range units {
		problems = append(problems, parser.Check(u)...)
	}
	return problems
}

func countErrors(problems []diag.Problem) int {
	n := 0
	for _, p := range problems {
		if p.Severity == diag.SeverityError {
			n++
		}
	}
	return n
}
