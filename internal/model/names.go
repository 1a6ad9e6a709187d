package model

import (
	"fmt"
	"sort"
	"strings"
)

// NamespaceKind represents the visibility category of a namespace.
type NamespaceKind int

const (
	NsPublic NamespaceKind = iota + 1
	NsInternal
	NsProtected
	NsExplicit
	NsStaticProtected
	NsPrivate
	NsClassPrivate
)

var namespaceKindNames = map[NamespaceKind]string{
	NsPublic:          "public",
	NsInternal:        "internal",
	NsProtected:       "protected",
	NsExplicit:        "explicit",
	NsStaticProtected: "static-protected",
	NsPrivate:         "private",
	NsClassPrivate:    "class-private",
}

func (k NamespaceKind) String() string {
	if s, ok := namespaceKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("NamespaceKind(%d)", int(k))
}

// Valid reports whether k is one of the known namespace kinds.
func (k NamespaceKind) Valid() bool {
	_, ok := namespaceKindNames[k]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (k NamespaceKind) MarshalText() ([]byte, error) {
	s, ok := namespaceKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown namespace kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *NamespaceKind) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	if name == "" {
		*k = NsPublic
		return nil
	}
	for kind, s := range namespaceKindNames {
		if s == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown namespace kind %q", name)
}

// Namespace is a visibility qualifier: a kind plus a URI.
type Namespace struct {
	Kind NamespaceKind `yaml:"kind" json:"kind"`
	URI  string        `yaml:"uri" json:"uri"`
}

// Public returns the public namespace of a package.
func Public(pkg string) Namespace { return Namespace{Kind: NsPublic, URI: pkg} }

// Private returns the private namespace owned by a class.
func Private(owner string) Namespace { return Namespace{Kind: NsPrivate, URI: owner} }

// IsPrivate reports whether the namespace hides members from subclasses.
func (ns Namespace) IsPrivate() bool {
	return ns.Kind == NsPrivate || ns.Kind == NsClassPrivate
}

// IsProtected reports whether the namespace is one of the protected kinds.
func (ns Namespace) IsProtected() bool {
	return ns.Kind == NsProtected || ns.Kind == NsStaticProtected
}

func (ns Namespace) String() string {
	return ns.Kind.String() + ":" + ns.URI
}

// QualifiedName is a base name qualified by a non-empty namespace set.
// Values are treated as immutable once constructed.
type QualifiedName struct {
	BaseName   string      `yaml:"name" json:"name"`
	Namespaces []Namespace `yaml:"namespaces" json:"namespaces"`
}

// NewQualifiedName builds a QualifiedName, copying the namespace set.
func NewQualifiedName(base string, namespaces ...Namespace) QualifiedName {
	ns := make([]Namespace, len(namespaces))
	copy(ns, namespaces)
	if len(ns) == 0 {
		ns = []Namespace{Public("")}
	}
	return QualifiedName{BaseName: base, Namespaces: ns}
}

// ClassName builds the public qualified name of a class in pkg.
func ClassName(pkg, base string) QualifiedName {
	return NewQualifiedName(base, Public(pkg))
}

// ParseClassName splits "pkg.sub.Name" into a public qualified name.
func ParseClassName(full string) QualifiedName {
	if i := strings.LastIndex(full, "."); i >= 0 {
		return ClassName(full[:i], full[i+1:])
	}
	return ClassName("", full)
}

// Single returns the first namespace; qualified names of declared members have exactly one.
func (q QualifiedName) Single() Namespace {
	if len(q.Namespaces) == 0 {
		return Public("")
	}
	return q.Namespaces[0]
}

// Package returns the URI of the single namespace, which for classes is the package.
func (q QualifiedName) Package() string {
	return q.Single().URI
}

// FullName returns the dotted target-language name (e.g., "pkg.A").
func (q QualifiedName) FullName() string {
	pkg := q.Package()
	if pkg == "" {
		return q.BaseName
	}
	return pkg + "." + q.BaseName
}

// IsZero reports whether the name is unset.
func (q QualifiedName) IsZero() bool {
	return q.BaseName == "" && len(q.Namespaces) == 0
}

// Key returns a canonical string usable as a map key. Namespace order is ignored.
func (q QualifiedName) Key() string {
	parts := make([]string, 0, len(q.Namespaces))
	for _, ns := range q.Namespaces {
		parts = append(parts, ns.String())
	}
	sort.Strings(parts)
	return q.BaseName + "{" + strings.Join(parts, ",") + "}"
}

// Equal compares two qualified names structurally.
func (q QualifiedName) Equal(other QualifiedName) bool {
	if q.BaseName != other.BaseName || len(q.Namespaces) != len(other.Namespaces) {
		return false
	}
	return q.Key() == other.Key()
}

func (q QualifiedName) String() string {
	return q.FullName()
}
