package driver

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"classgen/internal/config"
	"classgen/internal/diag"
	"classgen/internal/model"
	"classgen/internal/observability"
	"classgen/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestDriver(t *testing.T, mutate func(*config.Config)) (*Driver, *registry.Registry) {
	t.Helper()
	cfg := config.New()
	cfg.Options.Workers = 1
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	reg := registry.New(
		registry.WithIgnoredPrefixes(cfg.Options.IgnoredPrefixes...),
		registry.WithRootClass(cfg.Options.RootClass),
	)
	return New(cfg, reg), reg
}

// forwardReference returns two units: the first uses pkg.A before the second
// reveals that pkg.A needs a static initializer.
func forwardReference() []*model.Unit {
	user := &model.Unit{Path: "B.as", Package: "pkg", Directives: []*model.Node{{
		Kind: model.NodeClass, Name: "B",
		Body: []*model.Node{{
			Kind: model.NodeFunction, Name: "make",
			Body: []*model.Node{{Kind: model.NodeStatement, Code: "return pkg.A.create();", References: []string{"pkg.A"}}},
		}},
	}}}
	owner := &model.Unit{Path: "A.as", Package: "pkg", Directives: []*model.Node{{
		Kind: model.NodeClass, Name: "A",
		Body: []*model.Node{
			{Kind: model.NodeStatement, Code: "pkg.A.registerDefaults();"},
			{Kind: model.NodeFunction, Name: "create", Modifiers: []model.Modifier{model.ModStatic},
				Body: []*model.Node{{Kind: model.NodeStatement, Code: "return new pkg.A();"}}},
		},
	}}}
	return []*model.Unit{user, owner}
}

func TestRun_SecondPassInsertsStaticInitCalls(t *testing.T) {
	d, reg := newTestDriver(t, nil)

	res, err := d.Run(context.Background(), forwardReference())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Passes)
	assert.True(t, res.Converged)
	assert.Empty(t, res.Problems)
	assert.Equal(t, []string{"pkg.A"}, reg.ClassInits())

	user := res.Units[0]
	assert.Equal(t, "B.as", user.Path)
	assert.Contains(t, user.Text, "  pkg.A.__static_init();\n  return pkg.A.create();\n")
	assert.Equal(t, reg.ClassInitVersion(), user.ObservedInitVersion)

	owner := res.Units[1]
	assert.True(t, owner.NeedsSecondPass)
	assert.Equal(t, 1, strings.Count(owner.Text, "pkg.A.registerDefaults();"))
	assert.Contains(t, res.Text(), user.Text+owner.Text)
}

func TestRun_SinglePassWithoutClassInits(t *testing.T) {
	d, _ := newTestDriver(t, nil)
	units := []*model.Unit{{Path: "A.as", Package: "pkg", Directives: []*model.Node{{Kind: model.NodeClass, Name: "A"}}}}

	res, err := d.Run(context.Background(), units)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Passes)
	assert.True(t, res.Converged)
}

func TestRun_NonConvergenceWarning(t *testing.T) {
	d, _ := newTestDriver(t, func(cfg *config.Config) { cfg.Options.MaxPasses = 1 })

	res, err := d.Run(context.Background(), forwardReference())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Passes)
	assert.False(t, res.Converged)

	require.Len(t, res.Problems, 1)
	p := res.Problems[0]
	assert.Equal(t, diag.KindNonConvergence, p.Kind)
	assert.Equal(t, diag.SeverityWarning, p.Severity)
	assert.Contains(t, p.Message, "B.as")
	assert.NotContains(t, res.Units[0].Text, "__static_init")
}

func TestRun_InterruptedUnitReportsNothing(t *testing.T) {
	d, _ := newTestDriver(t, nil)
	units := []*model.Unit{
		{Path: "bad.as", Package: "pkg", Directives: []*model.Node{{
			Kind: model.NodeClass, Name: "Bad",
			Body: []*model.Node{
				{Kind: model.NodeVariable, Name: "x", Init: &model.Node{Fail: "unresolved"}},
				{Kind: model.NodeStatement, Fail: "interrupt"},
			},
		}}},
		{Path: "good.as", Package: "pkg", Directives: []*model.Node{{Kind: model.NodeClass, Name: "Good"}}},
	}

	res, err := d.Run(context.Background(), units)
	require.NoError(t, err)
	assert.Empty(t, res.Problems)
	assert.Empty(t, res.Units[0].Text)
	assert.Contains(t, res.Units[1].Text, "pkg.Good = function() {};")
}

func TestRun_InternalErrorsAreReturned(t *testing.T) {
	d, _ := newTestDriver(t, nil)
	bad := model.Namespace{Kind: model.NamespaceKind(99)}
	units := []*model.Unit{{Path: "A.as", Package: "pkg", Directives: []*model.Node{{
		Kind: model.NodeClass, Name: "A",
		Body: []*model.Node{{Kind: model.NodeFunction, Name: "f", Namespace: &bad}},
	}}}}

	res, err := d.Run(context.Background(), units)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A.as")
	assert.True(t, diag.IsCode(err, diag.CodeInternal))
	require.NotNil(t, res)
	require.Len(t, res.Problems, 1)
	assert.Equal(t, "A.as", res.Problems[0].Unit)
}

func TestRun_Cancelled(t *testing.T) {
	d, _ := newTestDriver(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := d.Run(ctx, forwardReference())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, diag.IsCancelled(err))
}

func TestRun_ConcurrentUnits(t *testing.T) {
	d, reg := newTestDriver(t, func(cfg *config.Config) { cfg.Options.Workers = 4 })

	var units []*model.Unit
	for i := 0; i < 32; i++ {
		name := fmt.Sprintf("C%d", i)
		body := []*model.Node{{Kind: model.NodeVariable, Name: "n", Type: &model.TypeRef{Name: "int"}}}
		if i%4 == 0 {
			body = append(body, &model.Node{Kind: model.NodeStatement, Code: "init();"})
		}
		units = append(units, &model.Unit{
			Path:       name + ".as",
			Package:    "pkg",
			Directives: []*model.Node{{Kind: model.NodeClass, Name: name, Body: body}},
		})
	}

	res, err := d.Run(context.Background(), units)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Len(t, reg.ClassInits(), 8)
	for i, u := range res.Units {
		assert.Equal(t, units[i].Path, u.Path)
		assert.Contains(t, u.Text, fmt.Sprintf("pkg.C%d.prototype.n = 0;", i))
	}
}

func TestRun_Spans(t *testing.T) {
	previous := otel.GetTracerProvider()
	recorder := tracetest.NewSpanRecorder()
	observability.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { observability.SetTracerProvider(previous) })

	d, _ := newTestDriver(t, nil)
	_, err := d.Run(context.Background(), forwardReference())
	require.NoError(t, err)

	counts := make(map[string]int)
	var root sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		counts[s.Name()]++
		if s.Name() == "driver.Run" {
			root = s
		}
	}
	assert.Equal(t, 1, counts["driver.Run"])
	assert.Equal(t, 4, counts["generator.Generate"])

	require.NotNil(t, root)
	for _, s := range recorder.Ended() {
		if s.Name() == "generator.Generate" {
			assert.Equal(t, root.SpanContext().TraceID(), s.SpanContext().TraceID())
		}
	}
}
