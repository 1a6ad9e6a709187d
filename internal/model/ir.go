package model

// NodeKind represents the category of an IR directive.
type NodeKind string

const (
	NodePackage   NodeKind = "package"
	NodeClass     NodeKind = "class"
	NodeInterface NodeKind = "interface"
	NodeFunction  NodeKind = "function"
	NodeVariable  NodeKind = "variable"
	NodeStatement NodeKind = "statement"
	NodeNamespace NodeKind = "namespace"
	NodeImport    NodeKind = "import"
)

// Modifier is a declaration modifier.
type Modifier string

const (
	ModStatic      Modifier = "static"
	ModConst       Modifier = "const"
	ModFinal       Modifier = "final"
	ModOverride    Modifier = "override"
	ModNative      Modifier = "native"
	ModDynamic     Modifier = "dynamic"
	ModConstructor Modifier = "constructor"
	ModGetter      Modifier = "getter"
	ModSetter      Modifier = "setter"
)

// Unit is one compilation unit as handed over by the front-end.
type Unit struct {
	Path       string   `yaml:"path" json:"path"`             // Source path, used as the unit key
	Package    string   `yaml:"package" json:"package"`       // Package name (empty for the top level)
	Imports    []string `yaml:"imports" json:"imports"`       // Fully qualified imported definitions
	Directives []*Node  `yaml:"directives" json:"directives"` // Top-level directives in source order
}

// Node is a resolved directive or expression of the IR.
//
// Declarations carry their symbol facts (namespace, modifiers, type, metadata).
// Expressions and statements carry the opaque payload consumed by the reducer:
// Code is pre-lowered target text, Value a folded constant.
type Node struct {
	Kind       NodeKind    `yaml:"kind" json:"kind"`
	Name       string      `yaml:"name" json:"name"`
	Namespace  *Namespace  `yaml:"namespace" json:"namespace"`
	Modifiers  []Modifier  `yaml:"modifiers" json:"modifiers"`
	Type       *TypeRef    `yaml:"type" json:"type"`
	Metadata   []Metadata  `yaml:"metadata" json:"metadata"`
	Params     []Param     `yaml:"params" json:"params"`
	Defaults   []*Constant `yaml:"defaults" json:"defaults"`
	Rest       bool        `yaml:"rest" json:"rest"`
	ReturnType *TypeRef    `yaml:"returnType" json:"returnType"`
	Init       *Node       `yaml:"init" json:"init"`
	Body       []*Node     `yaml:"body" json:"body"`
	Super      string      `yaml:"super" json:"super"`
	Interfaces []string    `yaml:"interfaces" json:"interfaces"`

	Code       string    `yaml:"code" json:"code"`
	Value      *Constant `yaml:"value" json:"value"`
	References []string  `yaml:"references" json:"references"`
	Accesses   []string  `yaml:"accesses" json:"accesses"`
	Fail       string    `yaml:"fail" json:"fail"`
}

// Has reports whether the node carries modifier m.
func (n *Node) Has(m Modifier) bool {
	for _, mod := range n.Modifiers {
		if mod == m {
			return true
		}
	}
	return false
}

// QualifiedName returns the node's declared name in its visibility namespace.
// Declarations without an explicit namespace are public in pkg.
func (n *Node) QualifiedName(pkg string) QualifiedName {
	if n.Namespace != nil {
		return NewQualifiedName(n.Name, *n.Namespace)
	}
	return NewQualifiedName(n.Name, Public(pkg))
}

// IsConstant reports whether the node folded to a compile-time value.
func (n *Node) IsConstant() bool {
	return n != nil && n.Value != nil
}
