package emitter

import (
	"fmt"
	"strings"

	"classgen/internal/model"
)

const indentUnit = "  "

// codeWriter builds target text line by line.
type codeWriter struct {
	b      strings.Builder
	indent int
}

func (w *codeWriter) line(format string, args ...interface{}) {
	if format == "" {
		w.b.WriteByte('\n')
		return
	}
	w.b.WriteString(strings.Repeat(indentUnit, w.indent))
	if len(args) == 0 {
		w.b.WriteString(format)
	} else {
		fmt.Fprintf(&w.b, format, args...)
	}
	w.b.WriteByte('\n')
}

// stmts writes statements, splitting multi-line fragments so every line is indented.
func (w *codeWriter) stmts(stmts []string) {
	for _, s := range stmts {
		for _, l := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
			if strings.TrimSpace(l) == "" {
				continue
			}
			w.line("%s", l)
		}
	}
}

func (w *codeWriter) doc(d *docBlock) {
	if text := d.String(); text != "" {
		for _, l := range strings.Split(text, "\n") {
			w.line("%s", l)
		}
	}
}

// function writes "target = function(params) { body };".
func (w *codeWriter) function(target, params string, body []string) {
	if len(body) == 0 {
		w.line("%s = function(%s) {};", target, params)
		return
	}
	w.line("%s = function(%s) {", target, params)
	w.indent++
	w.stmts(body)
	w.indent--
	w.line("};")
}

func (w *codeWriter) String() string {
	return w.b.String()
}

// Member renders a property access on receiver, using bracket syntax for mangled names.
func Member(receiver, name string) string {
	if model.IsIdentifier(name) {
		return receiver + "." + name
	}
	return receiver + "[" + model.QuoteString(name) + "]"
}
