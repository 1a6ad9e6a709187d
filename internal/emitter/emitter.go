// Package emitter writes class models as prototype-based target text in a fixed
// bucket order: constructor, private fields, public fields, methods and accessors,
// synthesized accessors, static members and the static initializer.
package emitter

import (
	"io"
	"sort"
	"strings"

	"classgen/internal/config"
	"classgen/internal/diag"
	"classgen/internal/model"
	"classgen/internal/observability"
	"classgen/internal/registry"
)

// Emitter turns class, package and script models into target text.
type Emitter struct {
	cfg      *config.Config
	reg      *registry.Registry
	problems *diag.Collector
}

// New creates a new Emitter. Diagnostics go to problems.
func New(cfg *config.Config, reg *registry.Registry, problems *diag.Collector) *Emitter {
	return &Emitter{
		cfg:      cfg,
		reg:      reg,
		problems: problems,
	}
}

// classEmitter holds the state of one EmitClass call.
type classEmitter struct {
	*Emitter
	class   *model.ClassModel
	name    string
	out     codeWriter
	visited map[string]struct{}
}

// EmitClass writes c to w. Nothing is written when an internal error aborts the class.
func (e *Emitter) EmitClass(w io.Writer, c *model.ClassModel) error {
	ce := &classEmitter{
		Emitter: e,
		class:   c,
		name:    c.FullName(),
		visited: make(map[string]struct{}),
	}

	steps := []func() error{
		ce.prologue,
		ce.constructor,
		ce.publicFields,
		func() error { return ce.methods(false) },
		ce.synthesizedAccessors,
		ce.staticFields,
		func() error { return ce.methods(true) },
		ce.staticInit,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return diag.AddContext(err, diag.CtxClass, ce.name)
		}
	}

	if _, err := io.WriteString(w, ce.out.String()); err != nil {
		return err
	}
	observability.ClassesEmitted.Inc()
	return nil
}

// visit claims the target property for a member; a second claim is a duplicate.
func (ce *classEmitter) visit(static bool, prop string, t *model.Trait) bool {
	key := "i:" + prop
	if static {
		key = "s:" + prop
	}
	if _, dup := ce.visited[key]; dup {
		if t != nil {
			ce.problems.Warn(diag.KindDuplicateMember, ce.name, t.Name.BaseName,
				"%s %s collides with an earlier member and is dropped", t.Kind, prop)
		}
		return false
	}
	ce.visited[key] = struct{}{}
	ce.reg.RegisterPropertyName(ce.name, prop)
	return true
}

// receiver returns the object instance or static members are assigned on.
func (ce *classEmitter) receiver(static bool) string {
	if static {
		return ce.name
	}
	return ce.name + ".prototype"
}

// qualify resolves a class name to its target name, following extern bindings.
func (ce *classEmitter) qualify(class string) string {
	if target, ok := ce.reg.ExternName(class); ok {
		return target
	}
	return class
}

func (ce *classEmitter) prologue() error {
	rt := ce.cfg.Options.Runtime
	wrote := false

	if rt.Provide != "" {
		ce.out.line("%s(%s);", rt.Provide, model.QuoteString(ce.name))
		wrote = true
	}

	if rt.Require != "" {
		requires := append([]string(nil), ce.class.Imports...)
		if ce.class.Super != nil {
			requires = append(requires, ce.class.Super.FullName())
		}
		seen := map[string]struct{}{ce.name: {}}
		for _, imp := range requires {
			if _, dup := seen[imp]; dup {
				continue
			}
			seen[imp] = struct{}{}
			if ce.cfg.IsIgnored(imp) || ce.reg.IsExtern(imp) {
				continue
			}
			ce.out.line("%s(%s);", rt.Require, model.QuoteString(imp))
			wrote = true
		}
	}

	if wrote {
		ce.out.line("")
	}
	return nil
}

// constructor writes the constructor function, which always exists so prototype
// assignments have a receiver, followed by the inherits call.
func (ce *classEmitter) constructor() error {
	c := ce.class
	rt := ce.cfg.Options.Runtime
	ctor := c.Constructor
	if ctor == nil {
		ctor = &model.MethodInfo{Name: c.Name.BaseName}
	}

	doc := &docBlock{}
	doc.add("@constructor")
	if c.Super != nil {
		doc.add("@extends {" + ce.qualify(c.Super.FullName()) + "}")
	}
	for _, iface := range c.Interfaces {
		doc.add("@implements {" + ce.qualify(iface.FullName()) + "}")
	}
	if c.IsFinal {
		doc.add("@final")
	}
	if err := paramTags(ce.cfg, doc, ctor); err != nil {
		return err
	}

	params, prologue, err := signature(ctor)
	if err != nil {
		return err
	}

	body := prologue
	if ce.reg.HasClassInit(ce.name) {
		body = append(body, ce.name+"."+rt.StaticInit+"();")
	}
	if c.Super != nil {
		if c.SuperCall != "" {
			body = append(body, c.SuperCall)
		} else {
			body = append(body, ce.qualify(c.Super.FullName())+".call(this);")
		}
	}
	fields, err := ce.privateFields()
	if err != nil {
		return err
	}
	body = append(body, fields...)
	body = append(body, c.InstanceInits...)
	body = append(body, ctor.Body...)

	ce.out.doc(doc)
	ce.out.function(ce.name, params, body)
	if c.Super != nil {
		ce.out.line("%s(%s, %s);", rt.Inherits, ce.name, ce.qualify(c.Super.FullName()))
	}
	ce.out.line("")
	return nil
}

// privateFields returns the in-constructor assignments of private instance fields.
func (ce *classEmitter) privateFields() ([]string, error) {
	var lines []string
	for _, t := range ce.class.Instance.Traits() {
		if !t.Kind.IsField() || !t.Namespace().IsPrivate() {
			continue
		}
		if !ce.visit(false, t.FlatName(), t) {
			continue
		}
		ce.checkShadow(t)
		value, err := ce.fieldValue(t)
		if err != nil {
			return nil, err
		}
		ce.recordTypeHint(t)
		lines = append(lines, Member("this", t.FlatName())+" = "+value+";")
	}
	return lines, nil
}

// fieldValue picks the initial value of a field: a lowered initializer, the folded
// slot value, or the default of its type.
func (ce *classEmitter) fieldValue(t *model.Trait) (string, error) {
	if t.Initializer != "" {
		return t.Initializer, nil
	}
	if c, ok := t.SlotValue(); ok && c != nil {
		lit, err := c.Literal()
		if err != nil {
			return "", diag.AddContext(err, diag.CtxMember, t.Name.BaseName)
		}
		return lit, nil
	}
	return ce.cfg.DefaultValue(typeKey(t.Type)), nil
}

func (ce *classEmitter) recordTypeHint(t *model.Trait) {
	if !t.Type.IsAny() {
		ce.reg.RegisterTypeHint(ce.name+"."+t.Name.BaseName, t.Type.FullName())
	}
}

func (ce *classEmitter) publicFields() error {
	for _, t := range ce.class.Instance.Traits() {
		if !t.Kind.IsField() || t.Namespace().IsPrivate() {
			continue
		}
		if err := ce.field(t, false); err != nil {
			return err
		}
	}
	return nil
}

func (ce *classEmitter) staticFields() error {
	for _, t := range ce.class.Static.Traits() {
		if !t.Kind.IsField() {
			continue
		}
		if err := ce.field(t, true); err != nil {
			return err
		}
	}
	return nil
}

// field writes a field assignment outside the constructor.
func (ce *classEmitter) field(t *model.Trait, static bool) error {
	if !ce.visit(static, t.FlatName(), t) {
		return nil
	}
	if !static {
		ce.checkShadow(t)
	}

	value, err := ce.fieldValue(t)
	if err != nil {
		return err
	}
	ce.recordTypeHint(t)

	doc := &docBlock{}
	doc.visibility(t.Namespace())
	if t.Kind == model.TraitConst {
		doc.add("@const {" + mapType(ce.cfg, t.Type) + "}")
	} else {
		doc.add("@type {" + mapType(ce.cfg, t.Type) + "}")
	}
	ce.out.doc(doc)
	ce.out.line("%s = %s;", Member(ce.receiver(static), t.FlatName()), value)
	ce.out.line("")
	return nil
}

// methods writes plain methods, then getters, then setters of one side, each group
// in declaration order.
func (ce *classEmitter) methods(static bool) error {
	store := ce.class.Store(static)
	for _, kinds := range [][]model.TraitKind{
		{model.TraitMethod, model.TraitFunction},
		{model.TraitGetter},
		{model.TraitSetter},
	} {
		for _, t := range store.Traits() {
			if !hasKind(kinds, t.Kind) {
				continue
			}
			if err := ce.method(t, static); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasKind(kinds []model.TraitKind, k model.TraitKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func (ce *classEmitter) method(t *model.Trait, static bool) error {
	if t.Method == nil {
		return diag.Internalf(ce.name, t.Name.BaseName, "%s without method info", t.Kind)
	}
	rt := ce.cfg.Options.Runtime

	prop := t.FlatName()
	switch t.Kind {
	case model.TraitGetter:
		prop = rt.GetterPrefix + prop
	case model.TraitSetter:
		prop = rt.SetterPrefix + prop
	}
	if !ce.visit(static, prop, t) {
		return nil
	}
	if !static {
		ce.checkShadow(t)
	}

	doc := &docBlock{}
	doc.visibility(t.Namespace())
	if t.Override {
		doc.add("@override")
	}
	if t.Final {
		doc.add("@final")
	}
	if err := paramTags(ce.cfg, doc, t.Method); err != nil {
		return diag.AddContext(err, diag.CtxMember, t.Name.BaseName)
	}
	ret := t.Method.ReturnType
	if t.Kind == model.TraitGetter && ret == nil {
		ret = t.Type
	}
	returnTag(ce.cfg, doc, ret)

	params, prologue, err := signature(t.Method)
	if err != nil {
		return diag.AddContext(err, diag.CtxMember, t.Name.BaseName)
	}

	ce.out.doc(doc)
	ce.out.function(Member(ce.receiver(static), prop), params, append(prologue, t.Method.Body...))
	ce.out.line("")
	return nil
}

// synthesizedAccessors writes the getters requested by field metadata, such as
// get_skinParts for [SkinPart] fields. A declared member of the same name wins.
func (ce *classEmitter) synthesizedAccessors() error {
	tags := make([]string, 0, len(ce.cfg.Options.AccessorTags))
	for tag := range ce.cfg.Options.AccessorTags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		var entries []string
		for _, t := range ce.class.Instance.Traits() {
			m, ok := model.FindMetadata(t.Metadata, tag)
			if !ok {
				continue
			}
			required := "false"
			if v, ok := m.Arg("required"); ok && v == "true" {
				required = "true"
			}
			entries = append(entries, model.QuoteString(t.Name.BaseName)+": "+required)
		}
		if len(entries) == 0 {
			continue
		}

		prop := ce.cfg.Options.Runtime.GetterPrefix + ce.cfg.Options.AccessorTags[tag]
		if !ce.visit(false, prop, nil) {
			continue
		}

		doc := &docBlock{}
		doc.add("@return {Object}")
		ce.out.doc(doc)
		ce.out.function(Member(ce.receiver(false), prop), "", []string{
			"return {" + strings.Join(entries, ", ") + "};",
		})
		ce.out.line("")
	}
	return nil
}

// staticInit writes the static initializer. Its first statement rebinds it to the
// empty function so the body runs at most once.
func (ce *classEmitter) staticInit() error {
	c := ce.class
	rt := ce.cfg.Options.Runtime
	required := ce.reg.HasClassInit(ce.name)
	if len(c.StaticInits) == 0 && !required {
		return nil
	}

	fn := ce.name + "." + rt.StaticInit
	body := append([]string{fn + " = " + rt.EmptyFunction + ";"}, c.StaticInits...)
	ce.out.function(fn, "", body)
	if !required {
		// An unregistered initializer is never called lazily; run it in place.
		ce.out.line("%s();", fn)
	}
	ce.out.line("")
	return nil
}

// checkShadow warns when t, private or not, reuses the name of a private instance
// member of a base class. The first base class declaring the name decides.
func (ce *classEmitter) checkShadow(t *model.Trait) {
	if ce.class.Super == nil {
		return
	}
	base := t.Name.BaseName
	seen := map[string]struct{}{ce.name: {}}

	super := ce.class.Super.FullName()
	for super != "" {
		if _, loop := seen[super]; loop {
			return
		}
		seen[super] = struct{}{}

		if def, ok := ce.reg.Definition(super, base); ok {
			if def.IsPrivate() && !def.Static {
				ce.problems.Warn(diag.KindShadowedPrivate, ce.name, base,
					"%s shadows private member %s.%s in the flattened target", base, super, base)
			}
			return
		}
		super, _ = ce.reg.SuperClass(super)
	}
}
