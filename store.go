package estimate

import "context"

// Store defines the contract for persisting and retrieving the graphs and
// definitions the engine evaluates. Implementations reject writes that would
// make a decision graph or pricing graph cyclic.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Fact definitions
	UpsertFactDefinition(ctx context.Context, projectID string, def *FactDefinition) error
	GetFactDefinition(ctx context.Context, projectID, factKey string) (*FactDefinition, error)
	ListFactDefinitions(ctx context.Context, projectID string) ([]FactDefinition, error)
	DeleteFactDefinition(ctx context.Context, projectID, factKey string) error

	// Variable definitions
	UpsertVariable(ctx context.Context, projectID string, v *VariableDefinition) error
	ListVariables(ctx context.Context, projectID string) ([]VariableDefinition, error)
	DeleteVariable(ctx context.Context, projectID, varKey string) error

	// Decision graphs (bulk operations)
	CreateDecisionGraph(ctx context.Context, g *DecisionGraph) (*DecisionGraph, error)
	GetDecisionGraph(ctx context.Context, graphID string) (*DecisionGraph, error)
	DeleteDecisionGraph(ctx context.Context, graphID string) error

	// Decision nodes
	AddNode(ctx context.Context, graphID string, node *DecisionNode) (string, error)
	GetNode(ctx context.Context, nodeID string) (*DecisionNode, error)
	UpdateNode(ctx context.Context, node *DecisionNode) error
	DeleteNode(ctx context.Context, nodeID string) error
	ListNodes(ctx context.Context, graphID string) ([]DecisionNode, error)

	// Decision edges
	AddEdge(ctx context.Context, graphID string, edge *DecisionEdge) (string, error)
	GetEdge(ctx context.Context, edgeID string) (*DecisionEdge, error)
	UpdateEdge(ctx context.Context, edge *DecisionEdge) error
	DeleteEdge(ctx context.Context, edgeID string) error
	ListEdges(ctx context.Context, graphID string) ([]DecisionEdge, error)

	// Pricing graphs
	SavePricingGraph(ctx context.Context, g *PricingGraph) error
	GetPricingGraph(ctx context.Context, graphID string) (*PricingGraph, error)
	DeletePricingGraph(ctx context.Context, graphID string) error
}

// FactReferenced reports whether factKey is produced by any decision node or
// read by any pricing operand.
func FactReferenced(factKey string, nodes []DecisionNode, graphs []PricingGraph) bool {
	for _, n := range nodes {
		for _, k := range n.Config.ProducesFacts {
			if k == factKey {
				return true
			}
		}
	}
	for _, g := range graphs {
		for _, l := range g.Lines {
			for _, op := range l.Nodes {
				if op.Kind == OperandFact && op.FactKey == factKey {
					return true
				}
			}
		}
	}
	return false
}
