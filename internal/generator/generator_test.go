package generator

import (
	"context"
	"strings"
	"testing"

	"classgen/internal/config"
	"classgen/internal/diag"
	"classgen/internal/model"
	"classgen/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, opts ...Option) (*Generator, *registry.Registry) {
	t.Helper()
	cfg := config.New()
	require.NoError(t, cfg.Validate())
	reg := registry.New(
		registry.WithIgnoredPrefixes(cfg.Options.IgnoredPrefixes...),
		registry.WithRootClass(cfg.Options.RootClass),
	)
	return New(cfg, reg, opts...), reg
}

func privateNs(owner string) *model.Namespace {
	ns := model.Private(owner)
	return &ns
}

func stmt(code string, refs ...string) *model.Node {
	return &model.Node{Kind: model.NodeStatement, Code: code, References: refs}
}

func kinds(problems []diag.Problem) []diag.Kind {
	var out []diag.Kind
	for _, p := range problems {
		out = append(out, p.Kind)
	}
	return out
}

func TestGenerate_Fields(t *testing.T) {
	g, _ := newTestGenerator(t)
	unit := &model.Unit{
		Path:    "pkg/A.as",
		Package: "pkg",
		Directives: []*model.Node{{
			Kind: model.NodeClass,
			Name: "A",
			Body: []*model.Node{
				{Kind: model.NodeVariable, Name: "count", Namespace: privateNs("pkg.A"), Type: &model.TypeRef{Name: "int"}},
				{Kind: model.NodeVariable, Name: "label", Type: &model.TypeRef{Name: "String"},
					Init: &model.Node{Kind: model.NodeStatement, Value: model.StringConst("hi")}},
			},
		}},
	}

	res, err := g.Generate(context.Background(), unit)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "  this.count = 0;\n")
	assert.Contains(t, res.Text, "pkg.A.prototype.label = 'hi';")
	assert.False(t, res.NeedsSecondPass)
	assert.Equal(t, []string{"pkg.A"}, res.Classes)
	assert.Empty(t, res.Problems)
	assert.NotEmpty(t, res.UnitID)
}

func TestGenerate_LooseClassStatement(t *testing.T) {
	g, reg := newTestGenerator(t)
	unit := &model.Unit{
		Path:    "pkg/A.as",
		Package: "pkg",
		Directives: []*model.Node{{
			Kind: model.NodeClass,
			Name: "A",
			Body: []*model.Node{
				stmt("trace('loaded');"),
				{Kind: model.NodeFunction, Name: "run", Body: []*model.Node{stmt("return 1;")}},
			},
		}},
	}

	before := reg.ClassInitVersion()
	res, err := g.Generate(context.Background(), unit)
	require.NoError(t, err)

	assert.True(t, res.NeedsSecondPass)
	assert.True(t, reg.HasClassInit("pkg.A"))
	assert.Equal(t, before, res.ObservedInitVersion)
	assert.Greater(t, reg.ClassInitVersion(), before)

	assert.Equal(t, 1, strings.Count(res.Text, "trace('loaded');"))
	initStart := strings.Index(res.Text, "pkg.A.__static_init = function() {")
	require.GreaterOrEqual(t, initStart, 0)
	assert.Greater(t, strings.Index(res.Text, "trace('loaded');"), initStart)
	assert.Contains(t, res.Text, "pkg.A = function() {\n  pkg.A.__static_init();\n};")
}

func TestGenerate_Initializers(t *testing.T) {
	g, reg := newTestGenerator(t)
	unit := &model.Unit{
		Path:    "pkg/A.as",
		Package: "pkg",
		Directives: []*model.Node{{
			Kind:  model.NodeClass,
			Name:  "A",
			Super: "pkg.Base",
			Body: []*model.Node{
				{Kind: model.NodeVariable, Name: "items", Type: &model.TypeRef{Name: "Array"},
					Init: stmt("[]")},
				{Kind: model.NodeVariable, Name: "cache", Namespace: privateNs("pkg.A"),
					Init: stmt("{}")},
				{Kind: model.NodeVariable, Name: "registry", Modifiers: []model.Modifier{model.ModStatic},
					Init: stmt("new pkg.Registry()")},
				{Kind: model.NodeFunction, Name: "A", Modifiers: []model.Modifier{model.ModConstructor},
					Params: []model.Param{{Name: "n", Type: &model.TypeRef{Name: "int"}}},
					Body: []*model.Node{
						{Kind: model.NodeStatement, Name: "super", Code: "pkg.Base.call(this, n);"},
						stmt("this.start();"),
					}},
				{Kind: model.NodeFunction, Name: "A", Modifiers: []model.Modifier{model.ModConstructor}},
			},
		}},
	}

	res, err := g.Generate(context.Background(), unit)
	require.NoError(t, err)

	want := strings.Join([]string{
		"pkg.A = function(n) {",
		"  pkg.A.__static_init();",
		"  pkg.Base.call(this, n);",
		"  this.cache = {};",
		"  this.items = [];",
		"  this.start();",
		"};",
		"goog.inherits(pkg.A, pkg.Base);",
	}, "\n")
	assert.Contains(t, res.Text, want)
	assert.Contains(t, res.Text, "pkg.A.prototype.items = undefined;")
	assert.Contains(t, res.Text, "  pkg.A.registry = new pkg.Registry();\n")
	assert.True(t, res.NeedsSecondPass)
	assert.True(t, reg.HasClassInit("pkg.A"))

	assert.Equal(t, []diag.Kind{diag.KindDuplicateMember}, kinds(res.Problems))
}

func TestGenerate_DuplicateMembersDropped(t *testing.T) {
	g, _ := newTestGenerator(t)
	unit := &model.Unit{
		Path:    "pkg/A.as",
		Package: "pkg",
		Directives: []*model.Node{{
			Kind: model.NodeClass,
			Name: "A",
			Body: []*model.Node{
				{Kind: model.NodeVariable, Name: "x", Init: &model.Node{Value: model.IntConst(1)}},
				{Kind: model.NodeVariable, Name: "x", Init: &model.Node{Value: model.IntConst(2)}},
			},
		}},
	}

	res, err := g.Generate(context.Background(), unit)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "pkg.A.prototype.x = 1;")
	assert.NotContains(t, res.Text, "= 2;")
	assert.Empty(t, res.Problems)
}

func TestGenerate_ReduceFailures(t *testing.T) {
	g, _ := newTestGenerator(t)
	unit := &model.Unit{
		Path:    "pkg/A.as",
		Package: "pkg",
		Directives: []*model.Node{{
			Kind: model.NodeClass,
			Name: "A",
			Body: []*model.Node{
				{Kind: model.NodeFunction, Name: "draw", Body: []*model.Node{
					{Kind: model.NodeStatement, Name: "Vector", Fail: "missing-builtin"},
					stmt("return 1;"),
				}},
				{Kind: model.NodeVariable, Name: "size", Type: &model.TypeRef{Name: "int"},
					Init: &model.Node{Kind: model.NodeStatement, Fail: "unresolved"}},
			},
		}},
	}

	res, err := g.Generate(context.Background(), unit)
	require.NoError(t, err)
	assert.Equal(t, []diag.Kind{diag.KindMissingBuiltin, diag.KindReduceFailure}, kinds(res.Problems))
	assert.Contains(t, res.Text, "pkg.A.prototype.draw = function() {\n  return 1;\n};")
	assert.Contains(t, res.Text, "pkg.A.prototype.size = 0;")
}

func TestGenerate_Cancellation(t *testing.T) {
	t.Run("reducer interruption", func(t *testing.T) {
		g, _ := newTestGenerator(t)
		unit := &model.Unit{
			Path:    "pkg/A.as",
			Package: "pkg",
			Directives: []*model.Node{{
				Kind: model.NodeClass,
				Name: "A",
				Body: []*model.Node{
					{Kind: model.NodeVariable, Name: "x", Init: &model.Node{Fail: "missing-builtin"}},
					{Kind: model.NodeFunction, Name: "f", Body: []*model.Node{{Fail: "interrupt"}}},
				},
			}},
		}

		res, err := g.Generate(context.Background(), unit)
		require.Error(t, err)
		assert.True(t, diag.IsCancelled(err))
		assert.Empty(t, res.Problems)
		assert.Empty(t, res.Text)
	})

	t.Run("cancelled context", func(t *testing.T) {
		g, _ := newTestGenerator(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := g.Generate(ctx, &model.Unit{
			Path:       "pkg/A.as",
			Package:    "pkg",
			Directives: []*model.Node{{Kind: model.NodeClass, Name: "A"}},
		})
		require.Error(t, err)
		assert.True(t, diag.IsCancelled(err))
		assert.Empty(t, res.Problems)
	})
}

func TestGenerate_InternalErrorAbortsClassOnly(t *testing.T) {
	g, _ := newTestGenerator(t)
	bad := model.Namespace{Kind: model.NamespaceKind(42), URI: "x"}
	unit := &model.Unit{
		Path:    "pkg/AB.as",
		Package: "pkg",
		Directives: []*model.Node{
			{Kind: model.NodeClass, Name: "A", Body: []*model.Node{
				{Kind: model.NodeVariable, Name: "broken", Namespace: &bad},
			}},
			{Kind: model.NodeClass, Name: "B", Body: []*model.Node{
				{Kind: model.NodeVariable, Name: "ok", Type: &model.TypeRef{Name: "Boolean"}},
			}},
		},
	}

	res, err := g.Generate(context.Background(), unit)
	require.Error(t, err)
	assert.True(t, diag.IsCode(err, diag.CodeInternal))
	assert.Equal(t, []string{"pkg.B"}, res.Classes)
	assert.NotContains(t, res.Text, "pkg.A")
	assert.Contains(t, res.Text, "pkg.B.prototype.ok = false;")

	require.Len(t, res.Problems, 1)
	assert.Equal(t, diag.KindInternal, res.Problems[0].Kind)
	assert.Equal(t, diag.SeverityError, res.Problems[0].Severity)
	assert.Equal(t, "pkg.A", res.Problems[0].Class)
}

func TestGenerate_ExternAndFilteredClasses(t *testing.T) {
	g, reg := newTestGenerator(t)
	g.config.Options.ExcludeClasses = []string{"pkg.internal.*"}
	require.NoError(t, g.config.Validate())

	unit := &model.Unit{
		Path:    "pkg/All.as",
		Package: "pkg",
		Directives: []*model.Node{
			{Kind: model.NodeClass, Name: "Canvas", Metadata: []model.Metadata{{
				Name: "Extern", Args: []model.MetadataArg{{Key: "name", Value: "HTMLCanvasElement"}},
			}}},
			{Kind: model.NodePackage, Name: "pkg.internal", Body: []*model.Node{
				{Kind: model.NodeClass, Name: "Hidden"},
			}},
			{Kind: model.NodeClass, Name: "View", Super: "pkg.Canvas"},
		},
	}

	res, err := g.Generate(context.Background(), unit)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg.View"}, res.Classes)

	target, ok := reg.ExternName("pkg.Canvas")
	require.True(t, ok)
	assert.Equal(t, "HTMLCanvasElement", target)
	assert.True(t, reg.HasClass("pkg.internal.Hidden"))
	assert.False(t, reg.HasClassBeenEmitted("pkg.internal.Hidden"))

	assert.Contains(t, res.Text, "goog.inherits(pkg.View, HTMLCanvasElement);")
	assert.NotContains(t, res.Text, "goog.require('pkg.Canvas');")
}

func TestGenerate_DuplicateClassAcrossUnits(t *testing.T) {
	g, reg := newTestGenerator(t)
	class := func() []*model.Node {
		return []*model.Node{{Kind: model.NodeClass, Name: "A"}}
	}

	first, err := g.Generate(context.Background(), &model.Unit{Path: "one.as", Package: "pkg", Directives: class()})
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), &model.Unit{Path: "two.as", Package: "pkg", Directives: class()})
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg.A"}, first.Classes)
	assert.Empty(t, second.Classes)
	assert.Equal(t, []diag.Kind{diag.KindDuplicateClass}, kinds(second.Problems))

	owner, ok := reg.EmittedBy("pkg.A")
	require.True(t, ok)
	assert.Equal(t, first.UnitID, owner)

	again, err := g.Generate(context.Background(), &model.Unit{Path: "one.as", Package: "pkg", Directives: class()})
	require.NoError(t, err)
	assert.Equal(t, first.Text, again.Text)
	assert.Empty(t, again.Problems)
}

func TestGenerate_ShadowAcrossUnits(t *testing.T) {
	g, _ := newTestGenerator(t)
	base := &model.Unit{Path: "A.as", Package: "pkg", Directives: []*model.Node{{
		Kind: model.NodeClass, Name: "A",
		Body: []*model.Node{{Kind: model.NodeVariable, Name: "x", Namespace: privateNs("pkg.A")}},
	}}}
	derived := &model.Unit{Path: "B.as", Package: "pkg", Directives: []*model.Node{{
		Kind: model.NodeClass, Name: "B", Super: "pkg.A",
		Body: []*model.Node{{Kind: model.NodeFunction, Name: "x", Body: []*model.Node{stmt("return 1;")}}},
	}}}

	g.Declare(base)
	res, err := g.Generate(context.Background(), derived)
	require.NoError(t, err)
	assert.Equal(t, []diag.Kind{diag.KindShadowedPrivate}, kinds(res.Problems))
	assert.Contains(t, res.Text, "pkg.B.prototype.x = function() {")

	resA, err := g.Generate(context.Background(), base)
	require.NoError(t, err)
	assert.Contains(t, resA.Text, "this.x = undefined;")
}

func TestGenerate_PackageMembersAndScript(t *testing.T) {
	g, reg := newTestGenerator(t)
	require.True(t, reg.RegisterClassInit("pkg.Config"))

	unit := &model.Unit{
		Path:    "pkg/util.as",
		Package: "pkg.util",
		Directives: []*model.Node{
			{Kind: model.NodeVariable, Name: "LIMIT", Modifiers: []model.Modifier{model.ModConst},
				Type: &model.TypeRef{Name: "int"}, Init: &model.Node{Value: model.IntConst(10)}},
			{Kind: model.NodeVariable, Name: "started", Type: &model.TypeRef{Name: "Number"},
				Init: stmt("Date.now()")},
			{Kind: model.NodeNamespace, Name: "mx_internal",
				Value: &model.Constant{Kind: model.ConstNamespace, Value: "http://www.adobe.com/2006/flex/mx/internal"}},
			{Kind: model.NodeFunction, Name: "clamp",
				Params:     []model.Param{{Name: "v", Type: &model.TypeRef{Name: "Number"}}},
				ReturnType: &model.TypeRef{Name: "Number"},
				Body:       []*model.Node{stmt("return Math.max(0, v);")}},
			stmt("pkg.Config.load();", "pkg.Config"),
		},
	}

	res, err := g.Generate(context.Background(), unit)
	require.NoError(t, err)
	assert.False(t, res.NeedsSecondPass)

	assert.Contains(t, res.Text, "/** @const {number} */\npkg.util.LIMIT = 10;")
	assert.Contains(t, res.Text, "pkg.util.started = NaN;")
	assert.Contains(t, res.Text, "pkg.util.mx_internal = 'http://www.adobe.com/2006/flex/mx/internal';")
	assert.Contains(t, res.Text, "pkg.util.clamp = function(v) {\n  return Math.max(0, v);\n};")

	initIdx := strings.Index(res.Text, "pkg.util.started = Date.now();")
	scriptIdx := strings.Index(res.Text, "pkg.Config.__static_init();\npkg.Config.load();")
	require.GreaterOrEqual(t, initIdx, 0)
	require.GreaterOrEqual(t, scriptIdx, 0)
	assert.Less(t, initIdx, scriptIdx)

	assert.Equal(t, []string{"pkg.Config.__static_init();\npkg.Config.load();"}, reg.ScriptInits(res.UnitID))
	assert.True(t, reg.HasPackage("pkg.util"))

	fragment, ok := reg.Fragment(res.UnitID)
	require.True(t, ok)
	assert.Equal(t, res.Text, fragment)
}

func TestGenerate_CustomBackend(t *testing.T) {
	var loose []string
	finished := 0
	g, reg := newTestGenerator(t, WithBackend(Backend{
		LooseStatement: func(c *model.ClassModel, s string) bool {
			loose = append(loose, c.FullName()+": "+s)
			return false
		},
		FinishConstructor: func(c *model.ClassModel) error {
			finished++
			return nil
		},
	}))

	res, err := g.Generate(context.Background(), &model.Unit{
		Path:    "pkg/A.as",
		Package: "pkg",
		Directives: []*model.Node{{
			Kind: model.NodeClass, Name: "A",
			Body: []*model.Node{stmt("setup();")},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg.A: setup();"}, loose)
	assert.Equal(t, 1, finished)
	assert.False(t, res.NeedsSecondPass)
	assert.False(t, reg.HasClassInit("pkg.A"))
	assert.NotContains(t, res.Text, "setup();")
}

func TestGenerate_WarnClassInit(t *testing.T) {
	g, _ := newTestGenerator(t)
	warn := true
	g.config.Options.WarnClassInit = &warn

	res, err := g.Generate(context.Background(), &model.Unit{
		Path:    "pkg/A.as",
		Package: "pkg",
		Directives: []*model.Node{{
			Kind: model.NodeClass, Name: "A",
			Body: []*model.Node{stmt("setup();")},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []diag.Kind{diag.KindClassInit}, kinds(res.Problems))
}

func TestGenerate_Interface(t *testing.T) {
	g, reg := newTestGenerator(t)
	res, err := g.Generate(context.Background(), &model.Unit{
		Path:    "pkg/IShape.as",
		Package: "pkg",
		Directives: []*model.Node{{
			Kind: model.NodeInterface, Name: "IShape", Interfaces: []string{"pkg.IBase"},
			Body: []*model.Node{{Kind: model.NodeFunction, Name: "area", ReturnType: &model.TypeRef{Name: "Number"}}},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "@interface")
	assert.Contains(t, res.Text, "pkg.IShape.prototype.area = function() {};")
	assert.Equal(t, []string{"pkg.IBase"}, reg.Interfaces("pkg.IShape"))
}
