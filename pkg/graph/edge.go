package graph

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Predicate decides whether a conditional edge fires for a given state.
type Predicate func(state State) bool

// Edge represents a directed connection between two nodes.
//
// An unconditional edge always activates when its source completes. A
// conditional edge activates only when its predicate evaluates true against
// the post-merge state. Predicates come either as a Go function or as an
// expression string compiled at AddEdge time; when both are set the
// function wins.
type Edge struct {
	Source      string         `json:"source"`
	Target      string         `json:"target"`
	Conditional bool           `json:"conditional"`
	Condition   string         `json:"condition,omitempty"`
	Predicate   Predicate      `json:"-"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	program *vm.Program
}

// Validate checks structural edge invariants.
func (e *Edge) Validate() error {
	if e.Source == "" {
		return errors.New("edge: empty source node")
	}
	if e.Target == "" {
		return errors.New("edge: empty target node")
	}
	if e.Source == e.Target {
		return fmt.Errorf("edge: self-loop detected (node %s to itself)", e.Source)
	}
	if e.Conditional && e.Predicate == nil && e.Condition == "" {
		return fmt.Errorf("edge %s -> %s: conditional edge requires a predicate or condition expression", e.Source, e.Target)
	}
	return nil
}

// compile builds the expression program for string conditions.
func (e *Edge) compile() error {
	if e.Condition == "" {
		return nil
	}
	program, err := expr.Compile(e.Condition, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return fmt.Errorf("edge %s -> %s: invalid condition %q: %w", e.Source, e.Target, e.Condition, err)
	}
	e.program = program
	return nil
}

// Matches evaluates the edge against a state snapshot. Unconditional edges
// always match. Evaluation errors count as non-matches.
func (e *Edge) Matches(state State) bool {
	if !e.Conditional {
		return true
	}
	if e.Predicate != nil {
		return e.Predicate(state)
	}
	if e.program == nil {
		return false
	}
	result, err := vm.Run(e.program, map[string]any(state))
	if err != nil {
		return false
	}
	matched, ok := result.(bool)
	return ok && matched
}
