// Package decision walks decision graphs: it picks the next question from a
// node's prioritized edges and records answers into a fact store.
package decision

import (
	"fmt"
	"sort"

	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/condition"
)

// Edge is a decision edge with its condition decoded.
type Edge struct {
	estimate.DecisionEdge
	Cond condition.Expr
}

// Node is a decision node with its visibility rule decoded.
type Node struct {
	estimate.DecisionNode
	Visible condition.Expr
}

// Graph is a decision graph prepared for walking. It is read-only once built
// and can be shared by many sessions.
type Graph struct {
	ID     string
	nodes  map[string]*Node
	out    map[string][]Edge
	start  string
	facts  []estimate.FactDefinition
	byFact map[string]estimate.FactDefinition
}

// Compile decodes every condition, checks that edges join known nodes, that
// produced facts are defined and that the graph is acyclic, and sorts each
// node's outgoing edges by priority.
func Compile(g *estimate.DecisionGraph, facts []estimate.FactDefinition) (*Graph, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, fmt.Errorf("%w: decision graph has no nodes", estimate.ErrGraphNotFound)
	}
	if err := estimate.ValidateAcyclic(g.Nodes, g.Edges); err != nil {
		return nil, err
	}

	out := &Graph{
		ID:     g.ID,
		nodes:  make(map[string]*Node, len(g.Nodes)),
		out:    make(map[string][]Edge),
		facts:  facts,
		byFact: make(map[string]estimate.FactDefinition, len(facts)),
	}
	for _, f := range facts {
		out.byFact[f.Key] = f
	}

	for _, n := range g.Nodes {
		vis, err := condition.Decode(n.Config.VisibilityRules)
		if err != nil {
			return nil, fmt.Errorf("node %s visibility: %w", n.ID, err)
		}
		for _, k := range n.Config.ProducesFacts {
			if _, ok := out.byFact[k]; !ok {
				return nil, fmt.Errorf("node %s: %w: %q", n.ID, estimate.ErrFactNotFound, k)
			}
		}
		out.nodes[n.ID] = &Node{DecisionNode: n, Visible: vis}
	}

	for _, e := range g.Edges {
		if _, ok := out.nodes[e.FromNodeID]; !ok {
			return nil, fmt.Errorf("edge %s: %w: %s", e.ID, estimate.ErrNodeNotFound, e.FromNodeID)
		}
		if _, ok := out.nodes[e.ToNodeID]; !ok {
			return nil, fmt.Errorf("edge %s: %w: %s", e.ID, estimate.ErrNodeNotFound, e.ToNodeID)
		}
		cond, err := condition.Decode(e.Condition)
		if err != nil {
			return nil, fmt.Errorf("edge %s: %w", e.ID, err)
		}
		out.out[e.FromNodeID] = append(out.out[e.FromNodeID], Edge{DecisionEdge: e, Cond: cond})
	}
	for id := range out.out {
		edges := out.out[id]
		sort.SliceStable(edges, func(i, j int) bool { return edges[i].Priority < edges[j].Priority })
	}

	start, ok := estimate.StartNode(g.Nodes, g.Edges)
	if !ok {
		return nil, fmt.Errorf("%w: no start node", estimate.ErrCycleDetected)
	}
	out.start = start
	return out, nil
}

// Start returns the id of the first question.
func (g *Graph) Start() string { return g.start }

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edges returns a node's outgoing edges in the order they are tested.
func (g *Graph) Edges(id string) []Edge { return g.out[id] }

// Facts returns the fact definitions the graph was compiled with.
func (g *Graph) Facts() []estimate.FactDefinition { return g.facts }

// NextNode returns the target of the first outgoing edge of current whose
// condition holds, or false when none does.
func (g *Graph) NextNode(current string, facts condition.Facts) (string, bool) {
	for _, e := range g.out[current] {
		if e.Cond.Eval(facts) {
			return e.ToNodeID, true
		}
	}
	return "", false
}

// Check validates a graph's shape without fact definitions: edges join known
// nodes, every condition and visibility rule decodes and there is no cycle.
// Stores call it before persisting.
func Check(nodes []estimate.DecisionNode, edges []estimate.DecisionEdge) error {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if _, err := condition.Decode(n.Config.VisibilityRules); err != nil {
			return fmt.Errorf("node %s visibility: %w", n.ID, err)
		}
		known[n.ID] = true
	}
	for _, e := range edges {
		if !known[e.FromNodeID] {
			return fmt.Errorf("edge %s: %w: %s", e.ID, estimate.ErrNodeNotFound, e.FromNodeID)
		}
		if !known[e.ToNodeID] {
			return fmt.Errorf("edge %s: %w: %s", e.ID, estimate.ErrNodeNotFound, e.ToNodeID)
		}
		if _, err := condition.Decode(e.Condition); err != nil {
			return fmt.Errorf("edge %s: %w", e.ID, err)
		}
	}
	return estimate.ValidateAcyclic(nodes, edges)
}
