// Package reducer defines the boundary to the expression lowering service and a
// pass-through implementation over pre-lowered IR payloads.
package reducer

import (
	"context"
	"fmt"
	"strings"

	"classgen/internal/diag"
	"classgen/internal/model"
	"classgen/internal/registry"
)

// Goal is the shape the caller needs the reduced node in.
type Goal int

const (
	GoalStatement Goal = iota
	GoalExpression
	GoalConstant
)

func (g Goal) String() string {
	switch g {
	case GoalStatement:
		return "statement"
	case GoalExpression:
		return "expression"
	case GoalConstant:
		return "constant"
	}
	return fmt.Sprintf("Goal(%d)", int(g))
}

// Scope identifies where a node is being reduced.
type Scope struct {
	Unit   string
	Class  string
	Static bool
}

// Result is the reduced form of a node: target text, a folded constant, or both.
type Result struct {
	Text     string
	Constant *model.Constant
}

// Reducer lowers IR subtrees to target text.
type Reducer interface {
	Reduce(ctx context.Context, node *model.Node, goal Goal, scope Scope) (Result, error)
}

// Passthrough reads the Code and Value payloads the front-end attached to each node.
// References to classes that carry a class-init requirement get a static-init call
// inserted ahead of their use.
type Passthrough struct {
	registry   *registry.Registry
	staticInit string
}

// NewPassthrough creates a Passthrough reducer. staticInit is the name of the
// generated static-init function (e.g., "__static_init").
func NewPassthrough(reg *registry.Registry, staticInit string) *Passthrough {
	return &Passthrough{registry: reg, staticInit: staticInit}
}

// Reduce implements Reducer.
func (p *Passthrough) Reduce(ctx context.Context, node *model.Node, goal Goal, scope Scope) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("reduce: %w", diag.ErrInterrupted)
	}
	if node == nil {
		return Result{}, diag.Internalf(scope.Class, "", "reduce of nil node")
	}

	switch node.Fail {
	case "":
	case "interrupt":
		return Result{}, fmt.Errorf("reduce: %w", diag.ErrInterrupted)
	case "missing-builtin":
		return Result{}, fmt.Errorf("reduce %s: %w", node.Name, diag.ErrMissingBuiltin)
	default:
		return Result{}, diag.Wrap(fmt.Errorf("%s", node.Fail), diag.CodeNotFound, "cannot reduce node")
	}

	for _, name := range node.Accesses {
		p.registry.RegisterAccessedProperty(name)
	}

	if goal == GoalConstant {
		if node.Value == nil {
			return Result{}, diag.New(diag.CodeNotFound, "node has no constant value")
		}
		return Result{Constant: node.Value}, nil
	}

	text := node.Code
	if text == "" && node.Value != nil {
		lit, err := node.Value.Literal()
		if err != nil {
			return Result{}, err
		}
		text = lit
	}

	inits := p.pendingInits(node, scope)
	if len(inits) == 0 {
		return Result{Text: text, Constant: node.Value}, nil
	}

	switch goal {
	case GoalExpression:
		// Comma expression keeps the value of the last operand.
		text = "(" + strings.Join(inits, ", ") + ", " + text + ")"
	default:
		var b strings.Builder
		for _, call := range inits {
			b.WriteString(call)
			b.WriteString(";\n")
		}
		b.WriteString(text)
		text = b.String()
	}
	return Result{Text: text}, nil
}

// pendingInits returns the static-init calls needed before node may touch the
// classes it references. A class never calls its own initializer.
func (p *Passthrough) pendingInits(node *model.Node, scope Scope) []string {
	var calls []string
	seen := make(map[string]struct{})
	for _, ref := range node.References {
		if ref == scope.Class {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		if p.registry.HasClassInit(ref) {
			calls = append(calls, ref+"."+p.staticInit+"()")
		}
	}
	return calls
}
