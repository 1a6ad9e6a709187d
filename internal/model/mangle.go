package model

import (
	"strconv"
	"strings"
	"unicode"

	"classgen/internal/diag"
)

// classPrivatePrefix marks a private namespace nested inside a class whose URI was
// flattened together with its owner ("ClassPrivateNS.tests.Test").
const classPrivatePrefix = "ClassPrivateNS"

const classPrivateCode = 8

// kindCode returns the numeric token used for a namespace kind in mangled names.
func kindCode(kind NamespaceKind) (int, bool) {
	switch kind {
	case NsPublic:
		return 2, true
	case NsInternal:
		return 3, true
	case NsProtected:
		return 4, true
	case NsExplicit:
		return 5, true
	case NsStaticProtected:
		return 6, true
	case NsPrivate:
		return 7, true
	case NsClassPrivate:
		return classPrivateCode, true
	}
	return 0, false
}

// normalizeURI maps every path-separator-like character to '.'.
func normalizeURI(uri string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\':
			return '.'
		}
		return r
	}, uri)
}

// Mangle flattens a (baseName, namespace) pair into a single token of the form
// "base::<kind>:<uri>". The result is deterministic and distinct for distinct pairs.
func Mangle(baseName string, ns Namespace) (string, error) {
	code, ok := kindCode(ns.Kind)
	if !ok {
		return "", diag.Internalf("", baseName, "unrecognized namespace kind %d", int(ns.Kind))
	}

	var b strings.Builder
	b.WriteString(baseName)
	b.WriteString("::")
	b.WriteString(strconv.Itoa(code))

	uri := normalizeURI(strings.ReplaceAll(ns.URI, `"`, ""))

	// A private namespace nested in a class arrives as "ClassPrivateNS.owner";
	// the canonical form is the class-private qualifier followed by the owner.
	if rest, found := strings.CutPrefix(uri, classPrivatePrefix+"."); found {
		if ns.Kind != NsClassPrivate {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(classPrivateCode))
		}
		uri = rest
	}

	if uri != "" {
		b.WriteString(":")
		b.WriteString(uri)
	}
	return b.String(), nil
}

// FlattenedName returns the property name a qualified member occupies on the target
// object. Built-in visibility kinds collapse to the base name; explicit namespaces keep
// the mangled token so they cannot collide with a same-named public member.
func FlattenedName(q QualifiedName) (string, error) {
	ns := q.Single()
	if !ns.Kind.Valid() {
		return Mangle(q.BaseName, ns)
	}
	if ns.Kind == NsExplicit {
		return Mangle(q.BaseName, ns)
	}
	return q.BaseName, nil
}

// IsIdentifier reports whether s can be written after a '.' in the target language.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
