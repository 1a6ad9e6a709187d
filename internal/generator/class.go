package generator

import (
	"bytes"
	"context"
	"log/slog"

	"classgen/internal/diag"
	"classgen/internal/model"
	"classgen/internal/reducer"
)

const (
	externTag = "Extern"

	// superStatement names the constructor body statement that carries the lowered
	// super constructor call.
	superStatement = "super"
)

// classScope is the declaration target of a class member: the class and the side
// (instance or static) it lands on.
type classScope struct {
	class  *model.ClassModel
	static bool
}

func (s classScope) store() *model.TraitStore {
	return s.class.Store(s.static)
}

func (s classScope) reducerScope() reducer.Scope {
	return reducer.Scope{Class: s.class.FullName(), Static: s.static}
}

// memberKind maps a class-body node to the trait kind it declares.
func memberKind(n *model.Node) (model.TraitKind, bool) {
	switch n.Kind {
	case model.NodeVariable:
		if n.Has(model.ModConst) {
			return model.TraitConst, true
		}
		return model.TraitVar, true
	case model.NodeNamespace:
		return model.TraitConst, true
	case model.NodeFunction:
		switch {
		case n.Has(model.ModConstructor):
			return 0, false
		case n.Has(model.ModGetter):
			return model.TraitGetter, true
		case n.Has(model.ModSetter):
			return model.TraitSetter, true
		}
		return model.TraitMethod, true
	}
	return 0, false
}

// externTarget returns the binding of an [Extern] class: the name argument, or the
// class name itself.
func externTarget(n *model.Node) (string, bool) {
	m, ok := model.FindMetadata(n.Metadata, externTag)
	if !ok {
		return "", false
	}
	if name, ok := m.Arg("name"); ok && name != "" {
		return name, true
	}
	return "", true
}

// class lowers and emits one class or interface definition.
func (g *Generator) class(ctx context.Context, st *unitState, pkg string, n *model.Node, out *bytes.Buffer) error {
	c := model.NewClassModel(model.ClassName(pkg, n.Name))
	full := c.FullName()

	if _, ok := externTarget(n); ok {
		slog.Debug("skipping extern class", "class", full)
		return nil
	}
	if !g.config.ShouldIncludeClass(full) {
		slog.Debug("skipping filtered class", "class", full)
		return nil
	}
	if owner, ok := g.registry.RegisterEmittedClass(full, st.id); !ok {
		st.problems.Warn(diag.KindDuplicateClass, full, "",
			"%s was already emitted by unit %s", full, owner)
		return nil
	}

	if n.Super != "" {
		super := model.ParseClassName(n.Super)
		c.Super = &super
	}
	for _, iface := range n.Interfaces {
		c.Interfaces = append(c.Interfaces, model.ParseClassName(iface))
	}
	c.Metadata = n.Metadata
	c.IsInterface = n.Kind == model.NodeInterface
	c.IsFinal = n.Has(model.ModFinal)
	c.IsDynamic = n.Has(model.ModDynamic)
	c.IsProtected = n.Namespace != nil && n.Namespace.IsProtected()
	c.Imports = st.imports

	if err := g.classBody(ctx, st, c, n.Body); err != nil {
		if !diag.IsCancelled(err) {
			st.problems.Error(diag.KindInternal, full, "", "%v", err)
		}
		return err
	}

	var buf bytes.Buffer
	var err error
	if c.IsInterface {
		err = st.emitter.EmitInterface(&buf, c)
	} else {
		err = st.emitter.EmitClass(&buf, c)
	}
	if err != nil {
		st.problems.Error(diag.KindInternal, full, "", "%v", err)
		return err
	}

	out.Write(buf.Bytes())
	st.result.Classes = append(st.result.Classes, full)
	return nil
}

// classBody declares every member of c and finishes the constructor.
func (g *Generator) classBody(ctx context.Context, st *unitState, c *model.ClassModel, body []*model.Node) error {
	for _, m := range body {
		scope := classScope{class: c, static: m.Has(model.ModStatic)}

		var err error
		switch m.Kind {
		case model.NodeVariable, model.NodeNamespace:
			_, err = g.declareVariable(ctx, st, scope, m)
		case model.NodeFunction:
			_, err = g.declareFunction(ctx, st, scope, m)
		case model.NodeStatement:
			err = g.looseStatement(ctx, st, c, m)
		default:
			st.problems.Error(diag.KindInvalidInput, c.FullName(), m.Name,
				"unexpected %q directive in class body", m.Kind)
		}
		if err != nil {
			return err
		}
	}
	return g.backend.FinishConstructor(c)
}

// declareVariable adds a field trait to the scope's store and places its
// initializer. A constant initializer becomes the slot value; any other
// initializer is handed to the backend. It returns the trait handle, which is the
// earlier trait when the name was already declared in the bucket.
func (g *Generator) declareVariable(ctx context.Context, st *unitState, scope classScope, n *model.Node) (*model.Trait, error) {
	kind, _ := memberKind(n)
	t, err := model.NewTrait(kind, n.QualifiedName(scope.class.Name.Package()))
	if err != nil {
		return nil, err
	}
	t.Type = n.Type
	for _, m := range n.Metadata {
		t.AddMetadata(m)
	}

	handle, added := scope.store().Add(t)
	if !added {
		return handle, nil
	}

	init := n.Init
	if n.Kind == model.NodeNamespace && init == nil && n.Value != nil {
		init = &model.Node{Kind: model.NodeStatement, Value: n.Value}
	}
	if init == nil {
		return handle, nil
	}

	if init.IsConstant() && init.Code == "" {
		res, ok, err := g.reduce(ctx, st, init, reducer.GoalConstant, scope.reducerScope(), n.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := handle.SetSlotValue(res.Constant); err != nil {
				return nil, err
			}
		}
		return handle, nil
	}

	res, ok, err := g.reduce(ctx, st, init, reducer.GoalExpression, scope.reducerScope(), n.Name)
	if err != nil || !ok {
		return handle, err
	}
	if g.backend.DeclareVariable(scope.class, handle, scope.static, res.Text) {
		g.requireClassInit(st, scope.class, "static initializer of "+n.Name)
	}
	return handle, nil
}

// declareFunction adds a method, getter or setter trait. A constructor is
// deferred to the class model; only the first one is kept.
func (g *Generator) declareFunction(ctx context.Context, st *unitState, scope classScope, n *model.Node) (*model.Trait, error) {
	c := scope.class
	if n.Has(model.ModConstructor) {
		return nil, g.declareConstructor(ctx, st, c, n)
	}

	kind, _ := memberKind(n)
	t, err := model.NewTrait(kind, n.QualifiedName(c.Name.Package()))
	if err != nil {
		return nil, err
	}
	t.Override = n.Has(model.ModOverride)
	t.Final = n.Has(model.ModFinal)
	t.Type = n.Type
	if t.Type == nil && kind == model.TraitGetter {
		t.Type = n.ReturnType
	}
	for _, m := range n.Metadata {
		t.AddMetadata(m)
	}

	handle, added := scope.store().Add(t)
	if !added {
		return handle, nil
	}

	mi, err := g.method(ctx, st, n, scope.reducerScope())
	if err != nil {
		return nil, err
	}
	mi.Seal()
	handle.Method = mi
	return handle, nil
}

func (g *Generator) declareConstructor(ctx context.Context, st *unitState, c *model.ClassModel, n *model.Node) error {
	if c.Constructor != nil {
		st.problems.Warn(diag.KindDuplicateMember, c.FullName(), n.Name,
			"duplicate constructor is dropped")
		return nil
	}

	scope := reducer.Scope{Class: c.FullName()}
	var body []*model.Node
	for _, s := range n.Body {
		if s.Name != superStatement {
			body = append(body, s)
			continue
		}
		res, ok, err := g.reduce(ctx, st, s, reducer.GoalStatement, scope, n.Name)
		if err != nil {
			return err
		}
		if ok {
			c.SuperCall = res.Text
		}
	}

	ctor := *n
	ctor.Body = body
	mi, err := g.method(ctx, st, &ctor, scope)
	if err != nil {
		return err
	}
	// Left open: FinishConstructor merges instance initializers, then seals.
	c.Constructor = mi
	return nil
}

// method builds the MethodInfo of a function node. The return type is assigned
// after the body is reduced. The caller seals the result.
func (g *Generator) method(ctx context.Context, st *unitState, n *model.Node, scope reducer.Scope) (*model.MethodInfo, error) {
	mi := &model.MethodInfo{Name: n.Name, HasRest: n.Rest}
	for _, p := range n.Params {
		if err := mi.AddParam(p); err != nil {
			return nil, err
		}
	}
	if err := mi.SetDefaults(n.Defaults); err != nil {
		return nil, err
	}

	body, err := g.reduceBody(ctx, st, n.Body, scope, n.Name)
	if err != nil {
		return nil, err
	}
	if err := mi.SetBody(body); err != nil {
		return nil, err
	}
	if err := mi.SetReturnType(n.ReturnType); err != nil {
		return nil, err
	}
	return mi, nil
}

// looseStatement lowers a statement written directly in a class body. It runs in
// static scope, so the class gains a static initializer.
func (g *Generator) looseStatement(ctx context.Context, st *unitState, c *model.ClassModel, n *model.Node) error {
	scope := classScope{class: c, static: true}
	res, ok, err := g.reduce(ctx, st, n, reducer.GoalStatement, scope.reducerScope(), "")
	if err != nil || !ok || res.Text == "" {
		return err
	}
	if g.backend.LooseStatement(c, res.Text) {
		g.requireClassInit(st, c, "loose statement")
	}
	return nil
}
