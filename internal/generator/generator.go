// Package generator lowers the directives of one compilation unit into class,
// package and script models, drives the emitter over them and reports whether the
// unit has to be generated again once class-init facts settle.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"classgen/internal/config"
	"classgen/internal/diag"
	"classgen/internal/emitter"
	"classgen/internal/model"
	"classgen/internal/observability"
	"classgen/internal/reducer"
	"classgen/internal/registry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// UnitResult is the outcome of generating one unit.
type UnitResult struct {
	Path   string // Unit path as given in the IR
	UnitID string // Stable session id of the unit
	Text   string // Emitted text: classes, then package members, then script code

	Classes []string // Classes emitted by this unit, in declaration order

	// NeedsSecondPass is set when the unit registered a class-init requirement.
	NeedsSecondPass bool

	// ObservedInitVersion is the registry class-init version the unit was
	// generated against.
	ObservedInitVersion uint64

	Problems []diag.Problem
}

// Generator turns units into target text. A Generator is safe for concurrent use;
// all per-unit state lives in the unitState of one Generate call.
type Generator struct {
	config   *config.Config
	registry *registry.Registry
	reducer  reducer.Reducer
	backend  Backend
}

// Option configures a Generator.
type Option func(*Generator)

// WithBackend replaces the default backend hooks.
func WithBackend(b Backend) Option {
	return func(g *Generator) { g.backend = b }
}

// WithReducer replaces the pass-through reducer.
func WithReducer(r reducer.Reducer) Option {
	return func(g *Generator) { g.reducer = r }
}

// New creates a new Generator.
func New(cfg *config.Config, reg *registry.Registry, opts ...Option) *Generator {
	g := &Generator{
		config:   cfg,
		registry: reg,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.reducer == nil {
		g.reducer = reducer.NewPassthrough(reg, cfg.Options.Runtime.StaticInit)
	}
	g.backend = g.backend.withDefaults()
	return g
}

// unitState is the mutable state of one Generate call.
type unitState struct {
	unit     *model.Unit
	id       string
	imports  []string
	problems *diag.Collector
	emitter  *emitter.Emitter
	result   *UnitResult

	packages map[string]*model.PackageModel
	pkgOrder []string
	script   []string
}

// Generate lowers and emits unit. Internal errors abort only the class they occur
// in and are returned joined after the rest of the unit is emitted. When ctx is
// cancelled or the reducer reports an interruption, the unit's problems are
// discarded and the cancellation error is returned.
func (g *Generator) Generate(ctx context.Context, unit *model.Unit) (UnitResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "generator.Generate",
		trace.WithAttributes(attribute.String("unit.path", unit.Path)))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.GenerationDuration.Observe(time.Since(start).Seconds())
	}()

	res := UnitResult{
		Path:                unit.Path,
		UnitID:              g.registry.UnitID(unit.Path),
		ObservedInitVersion: g.registry.ClassInitVersion(),
	}
	problems := diag.NewCollector()
	st := &unitState{
		unit:     unit,
		id:       res.UnitID,
		imports:  append([]string(nil), unit.Imports...),
		problems: problems,
		emitter:  emitter.New(g.config, g.registry, problems),
		result:   &res,
		packages: make(map[string]*model.PackageModel),
	}

	g.Declare(unit)

	var out bytes.Buffer
	err := g.directives(ctx, st, unit.Package, unit.Directives, &out)
	if err == nil {
		err = g.finishUnit(st, &out)
	}

	if diag.IsCancelled(err) {
		problems.Clear()
		span.SetStatus(codes.Error, "cancelled")
		observability.UnitsGenerated.WithLabelValues("cancelled").Inc()
		slog.Debug("unit generation cancelled", "unit", unit.Path)
		return UnitResult{Path: unit.Path, UnitID: res.UnitID}, err
	}

	res.Text = out.String()
	res.Problems = problems.Problems()
	g.registry.RegisterFragment(res.UnitID, res.Text)

	span.SetAttributes(
		attribute.Int("unit.classes", len(res.Classes)),
		attribute.Bool("unit.second_pass", res.NeedsSecondPass),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.UnitsGenerated.WithLabelValues("error").Inc()
		return res, err
	}
	observability.UnitsGenerated.WithLabelValues("ok").Inc()
	return res, nil
}

// directives processes a directive list of pkg. Class failures are recorded and
// collected; only cancellation stops the walk.
func (g *Generator) directives(ctx context.Context, st *unitState, pkg string, nodes []*model.Node, out *bytes.Buffer) error {
	var errs []error
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("generate %s: %w", st.unit.Path, diag.ErrInterrupted)
		}

		var err error
		switch n.Kind {
		case model.NodePackage:
			err = g.directives(ctx, st, n.Name, n.Body, out)
		case model.NodeImport:
			st.imports = append(st.imports, n.Name)
		case model.NodeClass, model.NodeInterface:
			err = g.class(ctx, st, pkg, n, out)
		case model.NodeFunction:
			err = g.packageFunction(ctx, st, pkg, n)
		case model.NodeVariable, model.NodeNamespace:
			err = g.packageVariable(ctx, st, pkg, n)
		case model.NodeStatement:
			err = g.scriptStatement(ctx, st, pkg, n)
		default:
			st.problems.Error(diag.KindInvalidInput, "", n.Name, "unexpected %q directive at package level", n.Kind)
		}

		if err == nil {
			continue
		}
		if diag.IsCancelled(err) {
			return err
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// finishUnit writes package members and script code after the classes.
func (g *Generator) finishUnit(st *unitState, out *bytes.Buffer) error {
	for _, name := range st.pkgOrder {
		p := st.packages[name]
		if err := st.emitter.EmitPackage(out, p); err != nil {
			st.problems.Error(diag.KindInternal, "", "", "package %s: %v", name, err)
			return err
		}
	}
	g.registry.RegisterScriptInit(st.id, st.script)
	return st.emitter.EmitScript(out, st.script)
}

// Declare records the cross-unit facts of unit (classes, interfaces, packages,
// externs and member definitions) without lowering anything. Running it for every
// unit before generation lets shadow checks see classes of other units.
func (g *Generator) Declare(unit *model.Unit) {
	g.declare(unit.Package, unit.Directives)
}

func (g *Generator) declare(pkg string, nodes []*model.Node) {
	for _, n := range nodes {
		switch n.Kind {
		case model.NodePackage:
			g.declare(n.Name, n.Body)
			continue
		case model.NodeClass, model.NodeInterface:
		default:
			continue
		}

		g.registry.RegisterPackage(pkg)
		full := model.ClassName(pkg, n.Name).FullName()
		g.registry.RegisterClass(full, n.Super)
		for _, iface := range n.Interfaces {
			g.registry.RegisterInterface(full, iface)
		}
		if target, ok := externTarget(n); ok {
			g.registry.RegisterExtern(full, target)
		}

		for _, m := range n.Body {
			kind, ok := memberKind(m)
			if !ok {
				continue
			}
			g.registry.RegisterDefinition(registry.Definition{
				Class:  full,
				Name:   m.Name,
				Kind:   kind,
				NsKind: m.QualifiedName(pkg).Single().Kind,
				Static: m.Has(model.ModStatic),
			})
		}
	}
}

// reduce lowers n through the reducer. Recoverable failures are recorded and
// reported as ok == false so the caller substitutes a placeholder; internal errors
// and cancellation are returned.
func (g *Generator) reduce(ctx context.Context, st *unitState, n *model.Node, goal reducer.Goal, scope reducer.Scope, member string) (reducer.Result, bool, error) {
	scope.Unit = st.unit.Path
	res, err := g.reducer.Reduce(ctx, n, goal, scope)
	switch {
	case err == nil:
		return res, true, nil
	case diag.IsCancelled(err):
		return reducer.Result{}, false, err
	case diag.IsCode(err, diag.CodeMissingBuiltin):
		st.problems.Error(diag.KindMissingBuiltin, scope.Class, member, "%v", err)
		return reducer.Result{}, false, nil
	case diag.IsCode(err, diag.CodeInternal):
		return reducer.Result{}, false, err
	}
	st.problems.Error(diag.KindReduceFailure, scope.Class, member, "%v", err)
	return reducer.Result{}, false, nil
}

// reduceBody lowers a statement list, dropping the statements that fail.
func (g *Generator) reduceBody(ctx context.Context, st *unitState, nodes []*model.Node, scope reducer.Scope, member string) ([]string, error) {
	var body []string
	for _, n := range nodes {
		res, ok, err := g.reduce(ctx, st, n, reducer.GoalStatement, scope, member)
		if err != nil {
			return nil, err
		}
		if ok && res.Text != "" {
			body = append(body, res.Text)
		}
	}
	return body, nil
}

// requireClassInit records that c needs its static initializer called before use
// and flags the unit for another pass.
func (g *Generator) requireClassInit(st *unitState, c *model.ClassModel, reason string) {
	full := c.FullName()
	if full == g.config.Options.RootClass {
		return
	}
	g.registry.RegisterClassInit(full)
	st.result.NeedsSecondPass = true
	if g.config.WarnClassInit() {
		st.problems.Warn(diag.KindClassInit, full, "",
			"%s requires a static initializer call before first use (%s)", full, reason)
	}
}

func (g *Generator) packageModel(st *unitState, pkg string) *model.PackageModel {
	if p, ok := st.packages[pkg]; ok {
		return p
	}
	p := model.NewPackageModel(pkg)
	st.packages[pkg] = p
	st.pkgOrder = append(st.pkgOrder, pkg)
	return p
}
