package diag

import (
	"fmt"
	"sort"
	"sync"

	"classgen/internal/observability"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Kind classifies a problem.
type Kind string

const (
	KindDuplicateMember Kind = "duplicate-member"
	KindShadowedPrivate Kind = "shadowed-private"
	KindMissingBuiltin  Kind = "missing-builtin"
	KindReduceFailure   Kind = "reduce-failure"
	KindInternal        Kind = "internal"
	KindClassInit       Kind = "class-init"
	KindDuplicateClass  Kind = "duplicate-class"
	KindNonConvergence  Kind = "non-convergence"
	KindInvalidInput    Kind = "invalid-input"
)

// Problem is a single diagnostic attributed to a unit, class and member.
type Problem struct {
	Severity Severity
	Kind     Kind
	Unit     string
	Class    string
	Member   string
	Message  string
}

func (p Problem) String() string {
	loc := p.Unit
	if p.Class != "" {
		if loc != "" {
			loc += ": "
		}
		loc += p.Class
		if p.Member != "" {
			loc += "." + p.Member
		}
	}
	if loc == "" {
		return fmt.Sprintf("%s [%s] %s", p.Severity, p.Kind, p.Message)
	}
	return fmt.Sprintf("%s: %s [%s] %s", loc, p.Severity, p.Kind, p.Message)
}

// Collector accumulates problems. It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	problems []Problem
}

func NewCollector() *Collector {
	return &Collector{}
}

// Add appends a problem.
func (c *Collector) Add(p Problem) {
	c.mu.Lock()
	c.problems = append(c.problems, p)
	c.mu.Unlock()
}

// Warn appends a warning.
func (c *Collector) Warn(kind Kind, class, member, format string, args ...interface{}) {
	c.Add(Problem{
		Severity: SeverityWarning,
		Kind:     kind,
		Class:    class,
		Member:   member,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Error appends an error.
func (c *Collector) Error(kind Kind, class, member, format string, args ...interface{}) {
	c.Add(Problem{
		Severity: SeverityError,
		Kind:     kind,
		Class:    class,
		Member:   member,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Problems returns a copy of the collected problems in insertion order.
func (c *Collector) Problems() []Problem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Problem, len(c.problems))
	copy(out, c.problems)
	return out
}

// Len returns the number of collected problems.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.problems)
}

// HasErrors reports whether any error-severity problem was collected.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.problems {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Clear drops every collected problem.
func (c *Collector) Clear() {
	c.mu.Lock()
	c.problems = nil
	c.mu.Unlock()
}

// Merge moves src's problems into c. See Report.
func (c *Collector) Merge(unit string, src *Collector) {
	moved := src.Problems()
	src.Clear()
	c.Report(unit, moved)
}

// Report appends problems, tagging them with unit when they carry none, and counts
// them in the diagnostics metric.
func (c *Collector) Report(unit string, problems []Problem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range problems {
		if p.Unit == "" {
			p.Unit = unit
		}
		observability.DiagnosticsTotal.WithLabelValues(p.Severity.String()).Inc()
		c.problems = append(c.problems, p)
	}
}

// Sorted returns the problems ordered by unit, class, member and kind, which
// gives a stable listing regardless of worker scheduling.
func Sorted(problems []Problem) []Problem {
	out := make([]Problem, len(problems))
	copy(out, problems)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		if a.Member != b.Member {
			return a.Member < b.Member
		}
		return a.Kind < b.Kind
	})
	return out
}
