package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/meikuraledutech/estimate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStore connects to ESTIMATE_TEST_DATABASE_URL and recreates the schema.
// The tests are skipped when it is unset.
func newStore(t *testing.T) *PGStore {
	t.Helper()
	url := os.Getenv("ESTIMATE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ESTIMATE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.DropSchema(ctx))
	require.NoError(t, s.CreateSchema(ctx))
	return s
}

func TestPGStore_DecisionGraph(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.CreateDecisionGraph(ctx, &estimate.DecisionGraph{
		ID:        "g1",
		ProjectID: "p1",
		Nodes: []estimate.DecisionNode{
			{Ref: "a", Label: "Has motor?", Config: estimate.NodeConfig{ProducesFacts: []string{"has_motor"}}},
			{Ref: "b", Label: "Hours"},
		},
		Edges: []estimate.DecisionEdge{
			{FromNodeRef: "a", ToNodeRef: "b", Condition: json.RawMessage(`{"var": "has_motor"}`)},
		},
	})
	require.NoError(t, err)
	a, b := created.Nodes[0].ID, created.Nodes[1].ID

	got, err := s.GetDecisionGraph(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)
	require.Len(t, got.Edges, 1)
	assert.Equal(t, a, got.Nodes[0].ID)
	assert.JSONEq(t, `{"var": "has_motor"}`, string(got.Edges[0].Condition))

	_, err = s.AddEdge(ctx, "g1", &estimate.DecisionEdge{FromNodeID: b, ToNodeID: a})
	assert.ErrorIs(t, err, estimate.ErrCycleDetected)
	_, err = s.AddNode(ctx, "missing", &estimate.DecisionNode{})
	assert.ErrorIs(t, err, estimate.ErrGraphNotFound)

	require.NoError(t, s.UpsertFactDefinition(ctx, "p1", &estimate.FactDefinition{Key: "has_motor", Type: estimate.FactBoolean}))
	assert.ErrorIs(t, s.DeleteFactDefinition(ctx, "p1", "has_motor"), estimate.ErrFactInUse)

	require.NoError(t, s.DeleteDecisionGraph(ctx, "g1"))
	got, err = s.GetDecisionGraph(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPGStore_PricingAndFacts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFactDefinition(ctx, "p1", &estimate.FactDefinition{
		Key: "finish", Type: estimate.FactEnum, EnumOptions: []estimate.EnumOption{{Value: "matte", Ordinal: 1}},
	}))
	require.NoError(t, s.UpsertFactDefinition(ctx, "p1", &estimate.FactDefinition{Key: "finish", Type: estimate.FactString}))
	def, err := s.GetFactDefinition(ctx, "p1", "finish")
	require.NoError(t, err)
	assert.Equal(t, estimate.FactString, def.Type)
	assert.Empty(t, def.EnumOptions)

	g := &estimate.PricingGraph{ID: "pg", ProjectID: "p1", Lines: []estimate.PricingLine{
		{ID: "root", Nodes: []estimate.PricingOperandNode{{Kind: estimate.OperandConstant, Value: 42}}},
	}}
	require.NoError(t, s.SavePricingGraph(ctx, g))
	got, err := s.GetPricingGraph(ctx, "pg")
	require.NoError(t, err)
	assert.Equal(t, g, got)

	require.NoError(t, s.UpsertVariable(ctx, "p1", &estimate.VariableDefinition{
		Key: "area", Expression: json.RawMessage(`{"*": [{"var": "length"}, {"var": "width"}]}`),
	}))
	vars, err := s.ListVariables(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.JSONEq(t, `{"*": [{"var": "length"}, {"var": "width"}]}`, string(vars[0].Expression))
}
