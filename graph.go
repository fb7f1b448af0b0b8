// Package estimate holds the data model of the estimation engine: fact
// definitions, decision graphs, pricing graphs and the persistence contract.
package estimate

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NodeType distinguishes question nodes from terminal outcome nodes.
type NodeType string

const (
	NodeQuestion NodeType = "question"
	NodeOutcome  NodeType = "outcome"
)

// InputType is the widget a question node asks its answer through.
type InputType string

const (
	InputText    InputType = "text"
	InputNumber  InputType = "number"
	InputBoolean InputType = "boolean"
	InputSelect  InputType = "select"
)

// SelectMode controls whether a select question takes one or many options.
type SelectMode string

const (
	SelectSingle SelectMode = "single"
	SelectMulti  SelectMode = "multi"
)

// Option is one choice offered by a select question.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// NodeConfig is the authored payload of a decision node.
type NodeConfig struct {
	Prompt     string     `json:"prompt,omitempty"`
	InputType  InputType  `json:"input_type,omitempty"`
	Required   bool       `json:"required,omitempty"`
	SelectMode SelectMode `json:"select_mode,omitempty"`
	Options    []Option   `json:"options,omitempty"`
	// ProducesFacts lists the fact keys written when the node is answered.
	ProducesFacts []string `json:"produces_facts,omitempty"`
	// VisibilityRules is a condition; when it evaluates false the node is skipped.
	VisibilityRules json.RawMessage `json:"visibility_rules,omitempty"`
	// SetsVariables binds pricing variables when a walk passes through the node.
	SetsVariables map[string]float64 `json:"sets_variables,omitempty"`
}

// Position is the node's location on the authoring canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DecisionGraph is a branching questionnaire owned by a project.
type DecisionGraph struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Nodes     []DecisionNode `json:"nodes"`
	Edges     []DecisionEdge `json:"edges"`
}

// DecisionNode is a question or outcome in a decision graph.
// Ref is a temporary key used only during CreateDecisionGraph for edge wiring; it is never persisted.
type DecisionNode struct {
	ID       string     `json:"id,omitempty"`
	Ref      string     `json:"ref,omitempty"`
	Type     NodeType   `json:"node_type"`
	Label    string     `json:"label"`
	Config   NodeConfig `json:"config"`
	Position Position   `json:"position"`
}

// DecisionEdge is a conditional transition between two nodes of the same graph.
// FromNodeRef / ToNodeRef are temporary keys used only during CreateDecisionGraph; they are never persisted.
type DecisionEdge struct {
	ID          string `json:"id,omitempty"`
	FromNodeID  string `json:"from_node_id,omitempty"`
	ToNodeID    string `json:"to_node_id,omitempty"`
	FromNodeRef string `json:"from_node_ref,omitempty"`
	ToNodeRef   string `json:"to_node_ref,omitempty"`
	// Condition is a condition expression; an empty object is always true.
	Condition json.RawMessage `json:"edge_condition,omitempty"`
	// Priority orders a node's outgoing edges, lowest first. Ties keep insertion order.
	Priority int `json:"execution_priority"`
}

// Unconditional reports whether the edge is a catch-all default.
func (e DecisionEdge) Unconditional() bool {
	return IsEmptyCondition(e.Condition)
}

// IsEmptyCondition reports whether raw is absent, null or an empty object.
func IsEmptyCondition(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// ResolveRefs gives every node and edge without an ID a fresh UUID, rewrites
// edge refs to the IDs of the nodes carrying them and then clears every ref.
func (g *DecisionGraph) ResolveRefs() error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	refs := make(map[string]string, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.Ref != "" {
			refs[n.Ref] = n.ID
		}
	}

	for i := range g.Edges {
		e := &g.Edges[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.FromNodeRef != "" {
			id, ok := refs[e.FromNodeRef]
			if !ok {
				return fmt.Errorf("%w: unknown from_node_ref %q", ErrNodeNotFound, e.FromNodeRef)
			}
			e.FromNodeID = id
		}
		if e.ToNodeRef != "" {
			id, ok := refs[e.ToNodeRef]
			if !ok {
				return fmt.Errorf("%w: unknown to_node_ref %q", ErrNodeNotFound, e.ToNodeRef)
			}
			e.ToNodeID = id
		}
		e.FromNodeRef, e.ToNodeRef = "", ""
	}
	for i := range g.Nodes {
		g.Nodes[i].Ref = ""
	}
	return nil
}
