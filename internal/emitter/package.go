package emitter

import (
	"io"
	"strings"

	"classgen/internal/diag"
	"classgen/internal/model"
)

// EmitInterface writes an interface as a constructor stub with empty prototype methods.
func (e *Emitter) EmitInterface(w io.Writer, c *model.ClassModel) error {
	ce := &classEmitter{
		Emitter: e,
		class:   c,
		name:    c.FullName(),
		visited: make(map[string]struct{}),
	}
	if err := ce.interfaceBody(); err != nil {
		return diag.AddContext(err, diag.CtxClass, ce.name)
	}
	_, err := io.WriteString(w, ce.out.String())
	return err
}

func (ce *classEmitter) interfaceBody() error {
	if err := ce.prologue(); err != nil {
		return err
	}

	doc := &docBlock{}
	doc.add("@interface")
	for _, iface := range ce.class.Interfaces {
		doc.add("@extends {" + ce.qualify(iface.FullName()) + "}")
	}
	ce.out.doc(doc)
	ce.out.function(ce.name, "", nil)
	ce.out.line("")

	rt := ce.cfg.Options.Runtime
	for _, t := range ce.class.Instance.Traits() {
		if !t.Kind.IsFunction() || t.Method == nil {
			continue
		}
		prop := t.FlatName()
		switch t.Kind {
		case model.TraitGetter:
			prop = rt.GetterPrefix + prop
		case model.TraitSetter:
			prop = rt.SetterPrefix + prop
		}
		if !ce.visit(false, prop, t) {
			continue
		}

		doc := &docBlock{}
		if err := paramTags(ce.cfg, doc, t.Method); err != nil {
			return diag.AddContext(err, diag.CtxMember, t.Name.BaseName)
		}
		ret := t.Method.ReturnType
		if t.Kind == model.TraitGetter && ret == nil {
			ret = t.Type
		}
		returnTag(ce.cfg, doc, ret)

		names := make([]string, 0, len(t.Method.Params))
		for _, p := range t.Method.FixedParams() {
			names = append(names, p.Name)
		}
		ce.out.doc(doc)
		ce.out.function(Member(ce.receiver(false), prop), strings.Join(names, ", "), nil)
		ce.out.line("")
	}
	return nil
}

// EmitPackage writes package-level functions and variables as members of the
// package object, followed by the package's deferred initializers.
func (e *Emitter) EmitPackage(w io.Writer, p *model.PackageModel) error {
	var out codeWriter
	rt := e.cfg.Options.Runtime

	qualify := func(name string) string {
		switch {
		case p.Name != "":
			return Member(p.Name, name)
		case model.IsIdentifier(name):
			return "var " + name
		}
		return Member("this", name)
	}

	for _, t := range p.Store.Traits() {
		if rt.Provide != "" && p.Name != "" && model.IsIdentifier(t.FlatName()) {
			out.line("%s(%s);", rt.Provide, model.QuoteString(p.Name+"."+t.FlatName()))
		}

		doc := &docBlock{}
		switch {
		case t.Kind.IsField():
			value, err := (&classEmitter{Emitter: e}).fieldValue(t)
			if err != nil {
				return diag.AddContext(err, diag.CtxUnit, p.Name)
			}
			if t.Kind == model.TraitConst {
				doc.add("@const {" + mapType(e.cfg, t.Type) + "}")
			} else {
				doc.add("@type {" + mapType(e.cfg, t.Type) + "}")
			}
			out.doc(doc)
			out.line("%s = %s;", qualify(t.FlatName()), value)
			if p.Name != "" && !t.Type.IsAny() {
				e.reg.RegisterTypeHint(p.Name+"."+t.Name.BaseName, t.Type.FullName())
			}

		case t.Kind.IsFunction() && t.Method != nil:
			if err := paramTags(e.cfg, doc, t.Method); err != nil {
				return diag.AddContext(err, diag.CtxMember, t.Name.BaseName)
			}
			returnTag(e.cfg, doc, t.Method.ReturnType)
			params, prologue, err := signature(t.Method)
			if err != nil {
				return diag.AddContext(err, diag.CtxMember, t.Name.BaseName)
			}
			out.doc(doc)
			out.function(qualify(t.FlatName()), params, append(prologue, t.Method.Body...))

		default:
			return diag.Internalf("", t.Name.BaseName, "unexpected package-level %s", t.Kind)
		}
		out.line("")
	}

	if len(p.Inits) > 0 {
		out.stmts(p.Inits)
		out.line("")
	}

	_, err := io.WriteString(w, out.String())
	return err
}

// EmitScript writes loose top-level statements of a unit.
func (e *Emitter) EmitScript(w io.Writer, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	var out codeWriter
	out.stmts(stmts)
	_, err := io.WriteString(w, out.String())
	return err
}
