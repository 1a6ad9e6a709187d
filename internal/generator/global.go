package generator

import (
	"context"

	"classgen/internal/emitter"
	"classgen/internal/model"
	"classgen/internal/reducer"
)

// packageFunction declares a package-level function.
func (g *Generator) packageFunction(ctx context.Context, st *unitState, pkg string, n *model.Node) error {
	g.registry.RegisterPackage(pkg)
	p := g.packageModel(st, pkg)

	t, err := model.NewTrait(model.TraitFunction, n.QualifiedName(pkg))
	if err != nil {
		return err
	}
	handle, added := p.Store.Add(t)
	if !added {
		return nil
	}

	mi, err := g.method(ctx, st, n, reducer.Scope{Static: true})
	if err != nil {
		return err
	}
	mi.Seal()
	handle.Method = mi
	return nil
}

// packageVariable declares a package-level variable, constant or namespace. A
// non-constant initializer runs after all package members are defined.
func (g *Generator) packageVariable(ctx context.Context, st *unitState, pkg string, n *model.Node) error {
	g.registry.RegisterPackage(pkg)
	p := g.packageModel(st, pkg)

	kind, _ := memberKind(n)
	t, err := model.NewTrait(kind, n.QualifiedName(pkg))
	if err != nil {
		return err
	}
	t.Type = n.Type
	handle, added := p.Store.Add(t)
	if !added {
		return nil
	}

	init := n.Init
	if n.Kind == model.NodeNamespace && init == nil && n.Value != nil {
		init = &model.Node{Kind: model.NodeStatement, Value: n.Value}
	}
	if init == nil {
		return nil
	}

	scope := reducer.Scope{Static: true}
	if init.IsConstant() && init.Code == "" {
		res, ok, err := g.reduce(ctx, st, init, reducer.GoalConstant, scope, n.Name)
		if err != nil || !ok {
			return err
		}
		return handle.SetSlotValue(res.Constant)
	}

	res, ok, err := g.reduce(ctx, st, init, reducer.GoalExpression, scope, n.Name)
	if err != nil || !ok {
		return err
	}
	target := handle.FlatName()
	if pkg != "" {
		target = emitter.Member(pkg, target)
	}
	p.Inits = append(p.Inits, target+" = "+res.Text+";")
	return nil
}

// scriptStatement lowers a loose top-level statement into the unit's script code.
func (g *Generator) scriptStatement(ctx context.Context, st *unitState, pkg string, n *model.Node) error {
	res, ok, err := g.reduce(ctx, st, n, reducer.GoalStatement, reducer.Scope{Static: true}, "")
	if err != nil || !ok || res.Text == "" {
		return err
	}
	st.script = append(st.script, res.Text)
	return nil
}
