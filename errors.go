package estimate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycleDetected    = errors.New("estimate: cycle detected, graph is not acyclic")
	ErrGraphNotFound    = errors.New("estimate: graph not found")
	ErrNodeNotFound     = errors.New("estimate: node not found")
	ErrEdgeNotFound     = errors.New("estimate: edge not found")
	ErrFactNotFound     = errors.New("estimate: fact definition not found")
	ErrFactInUse        = errors.New("estimate: fact is referenced by a graph")
	ErrVariableNotFound = errors.New("estimate: variable definition not found")
	ErrInvalidFact      = errors.New("estimate: invalid fact definition")
	ErrInvalidCondition = errors.New("estimate: invalid condition")
	ErrInvalidOperand   = errors.New("estimate: invalid pricing operand")
	ErrUnknownLine      = errors.New("estimate: unknown pricing line")
	ErrInvalidGraph     = errors.New("estimate: invalid pricing graph")
	ErrCyclicGraph      = errors.New("estimate: pricing graph has a dependency cycle")
	ErrTypeMismatch     = errors.New("estimate: value does not match fact type")
	ErrMissingFact      = errors.New("estimate: required fact is missing")
	ErrMissingVariable  = errors.New("estimate: variable cannot be resolved")
	ErrAnswerRequired   = errors.New("estimate: answer is required")
	ErrNotCurrentNode   = errors.New("estimate: node is not the current question")
	ErrSessionDone      = errors.New("estimate: session has already finished")
	ErrSessionNotFound  = errors.New("estimate: session not found")
)

// TypeMismatchError reports an answer that cannot be coerced to its fact's declared type.
type TypeMismatchError struct {
	Key    string
	Type   FactType
	Value  any
	Reason string
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("estimate: fact %q: cannot store %v as %s", e.Key, e.Value, e.Type)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// MissingInputError reports a fact or variable a pricing evaluation needed but could not find.
type MissingInputError struct {
	// Kind is "fact" or "variable".
	Kind string
	Key  string
	// Line is the pricing line being evaluated, if known.
	Line string
}

func (e *MissingInputError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("estimate: line %q: missing %s %q", e.Line, e.Kind, e.Key)
	}
	return fmt.Sprintf("estimate: missing %s %q", e.Kind, e.Key)
}

// Unwrap matches ErrMissingFact for every missing input and ErrMissingVariable for variables.
func (e *MissingInputError) Unwrap() []error {
	if e.Kind == "variable" {
		return []error{ErrMissingVariable, ErrMissingFact}
	}
	return []error{ErrMissingFact}
}

// CycleError names the lines left unordered by a dependency cycle.
type CycleError struct {
	Lines []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("estimate: pricing graph has a dependency cycle among lines [%s]", strings.Join(e.Lines, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicGraph }
