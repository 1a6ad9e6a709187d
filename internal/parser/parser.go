// Package parser decodes the IR unit documents handed over by the front-end.
//
// A YAML file may hold several documents, one unit each; a JSON file holds a
// unit object or an array of units.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"classgen/internal/diag"
	"classgen/internal/model"

	"gopkg.in/yaml.v3"
)

// Parser reads IR documents.
type Parser struct {
	strict bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithStrict rejects unknown document fields.
func WithStrict(strict bool) Option {
	return func(p *Parser) { p.strict = strict }
}

// New creates a new Parser.
func New(opts ...Option) *Parser {
	p := &Parser{strict: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads every unit stored in path.
func (p *Parser) ParseFile(path string) ([]*model.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var units []*model.Unit
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		units, err = p.decodeJSON(data)
	default:
		units, err = p.decodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	for i, u := range units {
		if u.Path != "" {
			continue
		}
		u.Path = path
		if len(units) > 1 {
			u.Path = fmt.Sprintf("%s#%d", path, i)
		}
	}
	return units, nil
}

func (p *Parser) decodeYAML(data []byte) ([]*model.Unit, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)

	var units []*model.Unit
	for {
		var u model.Unit
		err := dec.Decode(&u)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		units = append(units, &u)
	}
	return units, nil
}

func (p *Parser) decodeJSON(data []byte) ([]*model.Unit, error) {
	trimmed := bytes.TrimSpace(data)
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if p.strict {
		dec.DisallowUnknownFields()
	}

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var units []*model.Unit
		if err := dec.Decode(&units); err != nil {
			return nil, err
		}
		return units, nil
	}

	var u model.Unit
	if err := dec.Decode(&u); err != nil {
		return nil, err
	}
	return []*model.Unit{&u}, nil
}

// IsUnitFile reports whether path has an IR document extension.
func IsUnitFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// ParseDir reads every IR document below dir, in path order.
func (p *Parser) ParseDir(dir string) ([]*model.Unit, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsUnitFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)
	return p.ParsePaths(paths)
}

// ParsePaths reads files and directories in the given order.
func (p *Parser) ParsePaths(paths []string) ([]*model.Unit, error) {
	var units []*model.Unit
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		var parsed []*model.Unit
		if info.IsDir() {
			parsed, err = p.ParseDir(path)
		} else {
			parsed, err = p.ParseFile(path)
		}
		if err != nil {
			return nil, err
		}
		units = append(units, parsed...)
	}
	return units, nil
}

var (
	nodeKinds = map[model.NodeKind]bool{
		model.NodePackage: true, model.NodeClass: true, model.NodeInterface: true,
		model.NodeFunction: true, model.NodeVariable: true, model.NodeStatement: true,
		model.NodeNamespace: true, model.NodeImport: true,
	}
	modifiers = map[model.Modifier]bool{
		model.ModStatic: true, model.ModConst: true, model.ModFinal: true,
		model.ModOverride: true, model.ModNative: true, model.ModDynamic: true,
		model.ModConstructor: true, model.ModGetter: true, model.ModSetter: true,
	}
)

// Check validates the structure of a decoded unit. Every problem is an error of
// kind invalid-input.
func Check(u *model.Unit) []diag.Problem {
	c := &checker{unit: u.Path}
	if u.Path == "" {
		c.report("", "", "unit without a path")
	}
	c.directives(u.Directives, "")
	return c.problems
}

type checker struct {
	unit     string
	problems []diag.Problem
}

func (c *checker) report(class, member, format string, args ...interface{}) {
	c.problems = append(c.problems, diag.Problem{
		Severity: diag.SeverityError,
		Kind:     diag.KindInvalidInput,
		Unit:     c.unit,
		Class:    class,
		Member:   member,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) directives(nodes []*model.Node, class string) {
	for _, n := range nodes {
		if n == nil {
			c.report(class, "", "empty directive")
			continue
		}
		c.node(n, class)

		switch n.Kind {
		case model.NodePackage:
			if class != "" {
				c.report(class, n.Name, "package directive inside a class")
			}
			c.directives(n.Body, "")
		case model.NodeClass, model.NodeInterface:
			if class != "" {
				c.report(class, n.Name, "nested class definitions are not supported")
				continue
			}
			c.directives(n.Body, n.Name)
		case model.NodeFunction:
			c.statements(n.Body, class, n.Name)
			if n.Rest && len(n.Params) == 0 {
				c.report(class, n.Name, "rest flag without parameters")
			}
			fixed := len(n.Params)
			if n.Rest {
				fixed = max(fixed-1, 0)
			}
			if len(n.Defaults) > fixed {
				c.report(class, n.Name, "%d defaults for %d parameters", len(n.Defaults), fixed)
			}
		case model.NodeVariable:
			if n.Init != nil {
				c.statements([]*model.Node{n.Init}, class, n.Name)
			}
		}
	}
}

func (c *checker) node(n *model.Node, class string) {
	if !nodeKinds[n.Kind] {
		c.report(class, n.Name, "unknown directive kind %q", n.Kind)
		return
	}
	if n.Kind != model.NodeStatement && n.Name == "" {
		c.report(class, "", "%s directive without a name", n.Kind)
	}
	for _, m := range n.Modifiers {
		if !modifiers[m] {
			c.report(class, n.Name, "unknown modifier %q", m)
		}
	}
	if n.Namespace != nil && !n.Namespace.Kind.Valid() {
		c.report(class, n.Name, "unknown namespace kind %d", int(n.Namespace.Kind))
	}
	c.constant(n.Value, class, n.Name)
	for _, d := range n.Defaults {
		c.constant(d, class, n.Name)
	}
}

func (c *checker) constant(v *model.Constant, class, member string) {
	if v == nil {
		return
	}
	if _, err := v.Literal(); err != nil {
		c.report(class, member, "invalid constant: %v", err)
	}
}

func (c *checker) statements(nodes []*model.Node, class, member string) {
	for _, s := range nodes {
		if s == nil {
			c.report(class, member, "empty statement")
			continue
		}
		if s.Kind != "" && s.Kind != model.NodeStatement {
			c.report(class, member, "unexpected %q directive in a function body", s.Kind)
			continue
		}
		c.constant(s.Value, class, member)
	}
}
