// Package record converts decision nodes and edges to and from the JSON
// payload column both stores persist them in. Identity and endpoint columns
// live outside the payload.
package record

import (
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/estimate"
)

type nodeData struct {
	Type     estimate.NodeType   `json:"node_type"`
	Label    string              `json:"label"`
	Config   estimate.NodeConfig `json:"config"`
	Position estimate.Position   `json:"position"`
}

type edgeData struct {
	Condition json.RawMessage `json:"edge_condition,omitempty"`
	Priority  int             `json:"execution_priority"`
}

// NodeData encodes the payload of n.
func NodeData(n *estimate.DecisionNode) ([]byte, error) {
	typ := n.Type
	if typ == "" {
		typ = estimate.NodeQuestion
	}
	b, err := json.Marshal(nodeData{Type: typ, Label: n.Label, Config: n.Config, Position: n.Position})
	if err != nil {
		return nil, fmt.Errorf("encode node %s: %w", n.ID, err)
	}
	return b, nil
}

// Node decodes a node payload.
func Node(id string, data []byte) (estimate.DecisionNode, error) {
	var d nodeData
	if err := json.Unmarshal(data, &d); err != nil {
		return estimate.DecisionNode{}, fmt.Errorf("decode node %s: %w", id, err)
	}
	return estimate.DecisionNode{ID: id, Type: d.Type, Label: d.Label, Config: d.Config, Position: d.Position}, nil
}

// EdgeData encodes the payload of e. An absent condition is stored as {}.
func EdgeData(e *estimate.DecisionEdge) ([]byte, error) {
	cond := e.Condition
	if estimate.IsEmptyCondition(cond) {
		cond = json.RawMessage(`{}`)
	}
	b, err := json.Marshal(edgeData{Condition: cond, Priority: e.Priority})
	if err != nil {
		return nil, fmt.Errorf("encode edge %s: %w", e.ID, err)
	}
	return b, nil
}

// Edge decodes an edge payload.
func Edge(id, from, to string, data []byte) (estimate.DecisionEdge, error) {
	var d edgeData
	if err := json.Unmarshal(data, &d); err != nil {
		return estimate.DecisionEdge{}, fmt.Errorf("decode edge %s: %w", id, err)
	}
	return estimate.DecisionEdge{ID: id, FromNodeID: from, ToNodeID: to, Condition: d.Condition, Priority: d.Priority}, nil
}
