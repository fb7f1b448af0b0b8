package estimate

import (
	"encoding/json"
	"fmt"
	"math"
)

// OperandKind names what a pricing operand node reads.
type OperandKind string

const (
	OperandConstant OperandKind = "constant"
	OperandFact     OperandKind = "fact"
	OperandVariable OperandKind = "variable"
	OperandBucket   OperandKind = "contributor-bucket"
)

// Operator combines an operand with its line's running accumulator.
type Operator string

const (
	OpAdd Operator = "+"
	OpSub Operator = "-"
	OpMul Operator = "*"
	OpDiv Operator = "/"
)

// Apply returns acc combined with x. Division by zero leaves acc unchanged.
func (op Operator) Apply(acc, x float64) float64 {
	switch op {
	case OpSub:
		return acc - x
	case OpMul:
		return acc * x
	case OpDiv:
		if x == 0 {
			return acc
		}
		return acc / x
	}
	return acc + x
}

// PricingOperandNode is one term of a pricing line.
type PricingOperandNode struct {
	ID       string      `json:"id,omitempty"`
	Kind     OperandKind `json:"type"`
	Operator Operator    `json:"operand,omitempty"`
	// Value is read by constant nodes.
	Value float64 `json:"value,omitempty"`
	// FactKey is read by fact nodes.
	FactKey string `json:"fact_key,omitempty"`
	// VarKey is read by variable nodes.
	VarKey string `json:"var_key,omitempty"`
	// TargetLineID is read by contributor-bucket nodes, e.g. "bucket-labor__repair".
	// Buckets are always summed; their Operator is ignored.
	TargetLineID string `json:"target_line_id,omitempty"`
}

// Validate rejects operand nodes whose shape does not match their kind.
func (n PricingOperandNode) Validate() error {
	switch n.Operator {
	case "", OpAdd, OpSub, OpMul, OpDiv:
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidOperand, n.Operator)
	}

	switch n.Kind {
	case OperandConstant:
		if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
			return fmt.Errorf("%w: constant is not finite", ErrInvalidOperand)
		}
	case OperandFact:
		if n.FactKey == "" {
			return fmt.Errorf("%w: fact node without fact_key", ErrInvalidOperand)
		}
	case OperandVariable:
		if n.VarKey == "" {
			return fmt.Errorf("%w: variable node without var_key", ErrInvalidOperand)
		}
	case OperandBucket:
		if n.TargetLineID == "" {
			return fmt.Errorf("%w: contributor-bucket node without target_line_id", ErrInvalidOperand)
		}
	default:
		return fmt.Errorf("%w: unknown operand type %q", ErrInvalidOperand, n.Kind)
	}
	return nil
}

// PricingLine is a named sequence of operand nodes.
type PricingLine struct {
	ID    string               `json:"line_id"`
	Label string               `json:"label,omitempty"`
	Nodes []PricingOperandNode `json:"nodes"`
}

// PricingGraph is a project's set of pricing lines. The first line is the root
// whose breakdown is the headline estimate.
type PricingGraph struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	Lines     []PricingLine `json:"lines"`
}

// VariableDefinition computes a named scalar from facts and other variables.
// Expression is a JsonLogic rule, e.g. {"*": [{"var": "length"}, {"var": "width"}]}.
type VariableDefinition struct {
	Key         string          `json:"var_key"`
	Expression  json.RawMessage `json:"expression"`
	Description string          `json:"description,omitempty"`
}
