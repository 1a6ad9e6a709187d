package emitter

import (
	"strings"

	"classgen/internal/config"
	"classgen/internal/model"
)

// mapType maps a source type to its JSDoc type using the configured mappings.
func mapType(cfg *config.Config, t *model.TypeRef) string {
	if t.IsAny() {
		return "*"
	}

	// Check for exact raw match first
	if t.Raw != "" {
		if mapped := cfg.MapType(t.Raw); mapped != t.Raw {
			return mapped
		}
	}

	// Check for full name match (package.Type)
	if t.Package != "" {
		fullName := t.FullName()
		if mapped := cfg.MapType(fullName); mapped != fullName {
			return mapped
		}
		if t.Elem == nil {
			return fullName
		}
	}

	// Typed arrays (Vector.<T>)
	if t.Elem != nil {
		return "Array.<" + mapType(cfg, t.Elem) + ">"
	}

	// Check for basic type name match
	return cfg.MapType(t.Name)
}

// typeKey returns the name a type is looked up by in the default-initializer table.
func typeKey(t *model.TypeRef) string {
	if t.IsAny() {
		return "*"
	}
	return t.FullName()
}

// docBlock accumulates JSDoc tags for one declaration.
type docBlock struct {
	tags []string
}

func (d *docBlock) add(tag string) {
	d.tags = append(d.tags, tag)
}

// visibility adds the visibility tag for ns.
func (d *docBlock) visibility(ns model.Namespace) {
	switch {
	case ns.IsPrivate():
		d.add("@private")
	case ns.IsProtected():
		d.add("@protected")
	case ns.Kind == model.NsPublic:
		d.add("@expose")
	}
}

// String formats the tags as a JSDoc comment.
func (d *docBlock) String() string {
	switch len(d.tags) {
	case 0:
		return ""
	case 1:
		return "/** " + strings.TrimSpace(d.tags[0]) + " */"
	}
	var result []string
	result = append(result, "/**")
	for _, tag := range d.tags {
		result = append(result, " * "+strings.TrimSpace(tag))
	}
	result = append(result, " */")
	return strings.Join(result, "\n")
}

// paramTags documents the parameters of m, marking optional and rest parameters.
func paramTags(cfg *config.Config, d *docBlock, m *model.MethodInfo) error {
	for i, p := range m.FixedParams() {
		typ := mapType(cfg, p.Type)
		def, ok := m.DefaultFor(i)
		if !ok {
			d.add("@param {" + typ + "} " + p.Name)
			continue
		}
		lit, err := def.Literal()
		if err != nil {
			return err
		}
		d.add("@param {" + typ + "=} " + p.Name + " Defaults to " + lit + ".")
	}
	if rest, ok := m.RestParam(); ok {
		d.add("@param {...*} " + rest.Name)
	}
	return nil
}

// returnTag documents a non-void return type.
func returnTag(cfg *config.Config, d *docBlock, t *model.TypeRef) {
	if t == nil || t.IsVoid() {
		return
	}
	d.add("@return {" + mapType(cfg, t) + "}")
}
