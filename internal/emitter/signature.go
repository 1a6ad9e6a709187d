package emitter

import (
	"fmt"
	"strings"

	"classgen/internal/model"
)

// signature returns the parameter list of m and the prologue statements that apply
// default values and collect the rest parameter.
func signature(m *model.MethodInfo) (params string, prologue []string, err error) {
	fixed := m.FixedParams()
	names := make([]string, 0, len(fixed))
	for i, p := range fixed {
		names = append(names, p.Name)

		def, ok := m.DefaultFor(i)
		if !ok {
			continue
		}
		lit, err := def.Literal()
		if err != nil {
			return "", nil, err
		}
		prologue = append(prologue,
			fmt.Sprintf("if (arguments.length < %d) {", i+1),
			indentUnit+p.Name+" = "+lit+";",
			"}",
		)
	}

	if rest, ok := m.RestParam(); ok {
		prologue = append(prologue,
			fmt.Sprintf("var %s = Array.prototype.slice.call(arguments, %d);", rest.Name, len(fixed)))
	}
	return strings.Join(names, ", "), prologue, nil
}
