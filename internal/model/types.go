// Package model defines the class model, trait stores and IR consumed by the generator.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"classgen/internal/diag"
)

// TypeRef represents a reference to a source-language type.
type TypeRef struct {
	Name    string   `yaml:"name" json:"name"`       // Type name (e.g., "int", "Sprite")
	Package string   `yaml:"package" json:"package"` // Package (e.g., "flash.display" for flash.display.Sprite)
	Elem    *TypeRef `yaml:"elem" json:"elem"`       // Element type (for Vector.<T>)
	Raw     string   `yaml:"raw" json:"raw"`         // Raw source type string representation
}

// FullName returns the full qualified name of a TypeRef (e.g., "flash.display.Sprite").
func (t *TypeRef) FullName() string {
	if t == nil {
		return "*"
	}
	if t.Package != "" {
		return t.Package + "." + t.Name
	}
	if t.Name == "" && t.Raw != "" {
		return t.Raw
	}
	return t.Name
}

// IsVoid reports whether the type denotes no value.
func (t *TypeRef) IsVoid() bool {
	return t != nil && t.Package == "" && t.Name == "void"
}

// IsAny reports whether the type is absent or the untyped "*".
func (t *TypeRef) IsAny() bool {
	if t == nil {
		return true
	}
	name := t.FullName()
	return name == "*" || name == ""
}

// Metadata is an annotation attached to a declaration (e.g., [SkinPart(required="true")]).
type Metadata struct {
	Name string        `yaml:"name" json:"name"` // Tag name
	Args []MetadataArg `yaml:"args" json:"args"` // Ordered key/value arguments
}

// MetadataArg is a single metadata argument. Key is empty for positional values.
type MetadataArg struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// Arg returns the value for key and whether it was present.
func (m Metadata) Arg(key string) (string, bool) {
	for _, a := range m.Args {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// FindMetadata returns the first tag named name.
func FindMetadata(tags []Metadata, name string) (Metadata, bool) {
	for _, m := range tags {
		if m.Name == name {
			return m, true
		}
	}
	return Metadata{}, false
}

// ConstantKind represents the category of a folded constant.
type ConstantKind string

const (
	ConstString    ConstantKind = "string"
	ConstInt       ConstantKind = "int"
	ConstUint      ConstantKind = "uint"
	ConstDouble    ConstantKind = "double"
	ConstBool      ConstantKind = "bool"
	ConstNull      ConstantKind = "null"
	ConstUndefined ConstantKind = "undefined"
	ConstNamespace ConstantKind = "namespace"
)

// Constant is a compile-time value: a slot value or a parameter default.
type Constant struct {
	Kind  ConstantKind `yaml:"kind" json:"kind"`
	Value interface{}  `yaml:"value" json:"value"`
}

// StringConst returns a string constant.
func StringConst(s string) *Constant { return &Constant{Kind: ConstString, Value: s} }

// IntConst returns an integer constant.
func IntConst(i int64) *Constant { return &Constant{Kind: ConstInt, Value: i} }

// BoolConst returns a boolean constant.
func BoolConst(b bool) *Constant { return &Constant{Kind: ConstBool, Value: b} }

// Literal renders the constant as target-language source text.
func (c *Constant) Literal() (string, error) {
	switch c.Kind {
	case ConstString:
		return QuoteString(fmt.Sprint(c.Value)), nil
	case ConstNamespace:
		return QuoteString(fmt.Sprint(c.Value)), nil
	case ConstInt:
		i, err := toInt(c.Value)
		if err != nil {
			return "", diag.Wrap(err, diag.CodeInternal, "bad int constant")
		}
		return strconv.FormatInt(i, 10), nil
	case ConstUint:
		i, err := toInt(c.Value)
		if err != nil || i < 0 {
			return "", diag.Internalf("", "", "bad uint constant %v", c.Value)
		}
		return strconv.FormatInt(i, 10), nil
	case ConstDouble:
		f, err := toFloat(c.Value)
		if err != nil {
			return "", diag.Wrap(err, diag.CodeInternal, "bad double constant")
		}
		return formatDouble(f), nil
	case ConstBool:
		switch v := c.Value.(type) {
		case bool:
			return strconv.FormatBool(v), nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return "", diag.Wrap(err, diag.CodeInternal, "bad bool constant")
			}
			return strconv.FormatBool(b), nil
		}
		return "", diag.Internalf("", "", "bad bool constant %v", c.Value)
	case ConstNull:
		return "null", nil
	case ConstUndefined:
		return "undefined", nil
	}
	return "", diag.Internalf("", "", "unrecognized constant kind %q", c.Kind)
}

func toInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("non-integral value %v", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 0, 64)
	}
	return 0, fmt.Errorf("unsupported value %T", v)
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		switch n {
		case "NaN", ".nan":
			return math.NaN(), nil
		case "Infinity", ".inf":
			return math.Inf(1), nil
		case "-Infinity", "-.inf":
			return math.Inf(-1), nil
		}
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("unsupported value %T", v)
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// QuoteString renders s as a single-quoted target string literal.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
