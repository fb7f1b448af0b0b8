package pricing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/meikuraledutech/estimate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Variable(t *testing.T) {
	facts := newFacts(t, map[string]any{"length": 4, "width": 2.5, "rush": true, "hours": 6})
	defs := []estimate.VariableDefinition{
		{Key: "area", Expression: json.RawMessage(`{"*": [{"var": "length"}, {"var": "width"}]}`)},
		{Key: "padded_area", Expression: json.RawMessage(`{"+": [{"var": "area"}, 2]}`)},
		{Key: "rate", Expression: json.RawMessage(`{"if": [{"var": "rush"}, 90, 60]}`)},
		{Key: "crew", Expression: json.RawMessage(`{"*": [{"var": "crew_size"}, 1]}`)},
	}
	r := NewResolver(facts, defs, map[string]float64{"crew_size": 3})

	tests := []struct {
		key  string
		want float64
	}{
		{"area", 10},
		{"padded_area", 12},
		{"rate", 90},
		{"crew", 3},
		{"crew_size", 3},
		// Falls back to a numeric fact of the same name.
		{"hours", 6},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, err := r.Variable(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestResolver_BindingsWin(t *testing.T) {
	facts := newFacts(t, map[string]any{"length": 4, "width": 2})
	defs := []estimate.VariableDefinition{
		{Key: "area", Expression: json.RawMessage(`{"*": [{"var": "length"}, {"var": "width"}]}`)},
	}
	r := NewResolver(facts, defs, map[string]float64{"area": 99})
	v, err := r.Variable("area")
	require.NoError(t, err)
	assert.Equal(t, 99.0, v)
}

func TestResolver_MissingInputs(t *testing.T) {
	facts := newFacts(t, map[string]any{"length": 4})
	defs := []estimate.VariableDefinition{
		{Key: "area", Expression: json.RawMessage(`{"*": [{"var": "length"}, {"var": "width"}]}`)},
		{Key: "markup", Expression: json.RawMessage(`{"*": [{"var": "margin"}, 2]}`)},
	}
	r := NewResolver(facts, defs, nil)

	_, err := r.Variable("area")
	require.ErrorIs(t, err, estimate.ErrMissingFact)
	var mi *estimate.MissingInputError
	require.True(t, errors.As(err, &mi))
	assert.Equal(t, "fact", mi.Kind)
	assert.Equal(t, "width", mi.Key)

	_, err = r.Variable("markup")
	require.ErrorIs(t, err, estimate.ErrMissingVariable)
	require.True(t, errors.As(err, &mi))
	assert.Equal(t, "margin", mi.Key)

	_, err = r.Variable("nothing")
	assert.ErrorIs(t, err, estimate.ErrMissingVariable)
}

func TestResolver_SelfReference(t *testing.T) {
	defs := []estimate.VariableDefinition{
		{Key: "a", Expression: json.RawMessage(`{"+": [{"var": "b"}, 1]}`)},
		{Key: "b", Expression: json.RawMessage(`{"+": [{"var": "a"}, 1]}`)},
	}
	_, err := NewResolver(nil, defs, nil).Variable("a")
	assert.ErrorIs(t, err, estimate.ErrCyclicGraph)
}

func TestResolver_NonNumericResult(t *testing.T) {
	defs := []estimate.VariableDefinition{
		{Key: "label", Expression: json.RawMessage(`{"cat": ["a", "b"]}`)},
	}
	_, err := NewResolver(nil, defs, nil).Variable("label")
	assert.ErrorIs(t, err, estimate.ErrTypeMismatch)
}

func TestValidateVariable(t *testing.T) {
	assert.NoError(t, ValidateVariable(estimate.VariableDefinition{Key: "a", Expression: json.RawMessage(`{"+": [1, 2]}`)}))
	assert.ErrorIs(t, ValidateVariable(estimate.VariableDefinition{Key: "", Expression: json.RawMessage(`{"+": [1, 2]}`)}), estimate.ErrInvalidOperand)
	assert.ErrorIs(t, ValidateVariable(estimate.VariableDefinition{Key: "a"}), estimate.ErrInvalidOperand)
	assert.ErrorIs(t, ValidateVariable(estimate.VariableDefinition{Key: "a", Expression: json.RawMessage(`{"+": `)}), estimate.ErrInvalidOperand)
}

func TestVarRefs(t *testing.T) {
	var rule any
	require.NoError(t, json.Unmarshal([]byte(`{"if": [{"var": "rush"}, {"*": [{"var": ["hours"]}, 2]}, {"var": "hours"}]}`), &rule))
	assert.Equal(t, []string{"hours", "rush"}, varRefs(rule))
}
