// Package config provides configuration handling for classgen.
package config

// DefaultTypeMappings returns default source to JSDoc type mappings.
func DefaultTypeMappings() map[string]string {
	return map[string]string{
		// Basic types
		"int":       "number",
		"uint":      "number",
		"Number":    "number",
		"String":    "string",
		"Boolean":   "boolean",
		"void":      "void",
		"*":         "*",
		"Object":    "Object",
		"Array":     "Array",
		"Function":  "Function",
		"Class":     "Function",
		"Namespace": "string",
		"QName":     "string",

		// XML is backed by runtime wrappers
		"XML":     "browser.AS3XML",
		"XMLList": "browser.AS3XMLList",
	}
}

// DefaultInitializers returns the literal an uninitialized field of each type starts with.
// Types not listed start as undefined.
func DefaultInitializers() map[string]string {
	return map[string]string{
		"int":     "0",
		"uint":    "0",
		"Number":  "NaN",
		"Boolean": "false",
	}
}

// DefaultOptions returns default generation options.
func DefaultOptions() Options {
	return Options{
		IgnoredPrefixes: []string{"goog", "__AS3__"},
		RootClass:       "Object",
		Runtime: Runtime{
			Provide:       "goog.provide",
			Require:       "goog.require",
			Inherits:      "goog.inherits",
			EmptyFunction: "goog.nullFunction",
			StaticInit:    "__static_init",
			GetterPrefix:  "get_",
			SetterPrefix:  "set_",
		},
		AccessorTags: map[string]string{
			"SkinPart": "skinParts",
		},
		MaxPasses: 2,
		Workers:   4,
	}
}
