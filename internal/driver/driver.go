// Package driver runs the generator over the units of a session. Units are
// generated on a bounded worker pool; units generated against outdated class-init
// facts are regenerated until the facts settle or the pass bound is reached.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"classgen/internal/config"
	"classgen/internal/diag"
	"classgen/internal/generator"
	"classgen/internal/model"
	"classgen/internal/observability"
	"classgen/internal/registry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Result is the outcome of one session.
type Result struct {
	Units     []generator.UnitResult // In input order
	Passes    int
	Converged bool
	Problems  []diag.Problem // Every unit's problems plus session problems, sorted
}

// Text concatenates the unit texts in input order.
func (r *Result) Text() string {
	var b strings.Builder
	for _, u := range r.Units {
		b.WriteString(u.Text)
	}
	return b.String()
}

// Driver coordinates the passes of a session.
type Driver struct {
	config    *config.Config
	registry  *registry.Registry
	generator *generator.Generator
}

// New creates a Driver sharing reg with the generator it builds.
func New(cfg *config.Config, reg *registry.Registry, opts ...generator.Option) *Driver {
	return &Driver{
		config:    cfg,
		registry:  reg,
		generator: generator.New(cfg, reg, opts...),
	}
}

// Run generates units. A unit interrupted by its reducer reports nothing; a
// cancelled ctx aborts the session. Internal errors of individual units are
// returned joined alongside the result.
func (d *Driver) Run(ctx context.Context, units []*model.Unit) (*Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "driver.Run",
		trace.WithAttributes(attribute.Int("session.units", len(units))))
	defer span.End()

	// Facts of every unit are visible before the first class is emitted.
	for _, u := range units {
		d.generator.Declare(u)
	}

	results := make([]generator.UnitResult, len(units))
	errs := make([]error, len(units))
	pending := make([]int, len(units))
	for i := range units {
		pending[i] = i
	}

	res := &Result{}
	for {
		res.Passes++
		observability.PassesTotal.Inc()
		slog.Info("generation pass", "pass", res.Passes, "units", len(pending))

		d.pass(ctx, units, pending, results, errs)
		if err := ctx.Err(); err != nil {
			return nil, diag.Wrap(err, diag.CodeCancelled, "session cancelled")
		}
		observability.ClassInits.Set(float64(len(d.registry.ClassInits())))

		pending = d.stale(results)
		if len(pending) == 0 || !needsSecondPass(results) {
			res.Converged = true
			break
		}
		if res.Passes >= d.config.Options.MaxPasses {
			break
		}
	}
	span.SetAttributes(
		attribute.Int("session.passes", res.Passes),
		attribute.Bool("session.converged", res.Converged),
	)

	session := diag.NewCollector()
	for _, r := range results {
		session.Report(r.Path, r.Problems)
	}
	if !res.Converged {
		paths := make([]string, 0, len(pending))
		for _, i := range pending {
			paths = append(paths, units[i].Path)
		}
		slog.Warn("class-init facts did not settle", "passes", res.Passes, "stale", len(paths))
		session.Report("", []diag.Problem{{
			Severity: diag.SeverityWarning,
			Kind:     diag.KindNonConvergence,
			Message: fmt.Sprintf("class-init facts still changing after %d passes; generated against stale facts: %s",
				res.Passes, strings.Join(paths, ", ")),
		}})
	}
	res.Units = results
	res.Problems = diag.Sorted(session.Problems())

	var unitErrs []error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if diag.IsCancelled(err) {
			slog.Debug("unit interrupted", "unit", units[i].Path)
			continue
		}
		unitErrs = append(unitErrs, fmt.Errorf("%s: %w", units[i].Path, err))
	}
	return res, errors.Join(unitErrs...)
}

// pass generates the pending units on at most Options.Workers goroutines. Each
// worker writes only the slots of the units it took.
func (d *Driver) pass(ctx context.Context, units []*model.Unit, pending []int, results []generator.UnitResult, errs []error) {
	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(d.config.Options.Workers, len(pending)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results[i], errs[i] = d.generator.Generate(ctx, units[i])
			}
		}()
	}

feed:
	for _, i := range pending {
		select {
		case work <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()
}

// stale returns the units generated against an older class-init version than the
// registry's current one.
func (d *Driver) stale(results []generator.UnitResult) []int {
	current := d.registry.ClassInitVersion()
	var out []int
	for i, r := range results {
		if r.ObservedInitVersion < current {
			out = append(out, i)
		}
	}
	return out
}

func needsSecondPass(results []generator.UnitResult) bool {
	for _, r := range results {
		if r.NeedsSecondPass {
			return true
		}
	}
	return false
}
