package record

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/meikuraledutech/estimate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode(t *testing.T) {
	in := estimate.DecisionNode{
		ID:    "n1",
		Ref:   "dropped",
		Label: "Has motor?",
		Config: estimate.NodeConfig{
			InputType:     estimate.InputBoolean,
			ProducesFacts: []string{"has_motor"},
			SetsVariables: map[string]float64{"rate": 75},
		},
		Position: estimate.Position{X: 10, Y: 20},
	}
	data, err := NodeData(&in)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")

	got, err := Node("n1", data)
	require.NoError(t, err)

	want := in
	want.Ref = ""
	want.Type = estimate.NodeQuestion
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("node mismatch (-want +got):\n%s", diff)
	}
}

func TestEdge(t *testing.T) {
	data, err := EdgeData(&estimate.DecisionEdge{ID: "e1", Priority: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"edge_condition": {}, "execution_priority": 3}`, string(data))

	got, err := Edge("e1", "a", "b", []byte(`{"edge_condition": {"var": "x"}, "execution_priority": 1}`))
	require.NoError(t, err)
	assert.Equal(t, "a", got.FromNodeID)
	assert.Equal(t, 1, got.Priority)
	assert.JSONEq(t, `{"var": "x"}`, string(got.Condition))

	_, err = Edge("e1", "a", "b", []byte(`nope`))
	assert.Error(t, err)
}

func TestEdgeData_KeepsCondition(t *testing.T) {
	data, err := EdgeData(&estimate.DecisionEdge{Condition: json.RawMessage(`{"==": [{"var": "x"}, 1]}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"edge_condition": {"==": [{"var": "x"}, 1]}, "execution_priority": 0}`, string(data))
}
