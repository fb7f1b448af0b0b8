package condition

import (
	"encoding/json"
	"testing"

	"github.com/meikuraledutech/estimate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFacts(t *testing.T, values map[string]any) *estimate.FactStore {
	t.Helper()
	s := estimate.NewFactStore([]estimate.FactDefinition{
		{Key: "has_motor", Type: estimate.FactBoolean},
		{Key: "hours", Type: estimate.FactNumber},
		{Key: "notes", Type: estimate.FactString},
		{Key: "size", Type: estimate.FactEnum, EnumOptions: []estimate.EnumOption{
			{Value: "small", Ordinal: 1}, {Value: "medium", Ordinal: 2}, {Value: "large", Ordinal: 3},
		}},
		{Key: "extras", Type: estimate.FactEnum, EnumOptions: []estimate.EnumOption{
			{Value: "paint"}, {Value: "wax"},
		}},
	})
	for k, v := range values {
		require.NoError(t, s.Set(k, v))
	}
	return s
}

func TestEval(t *testing.T) {
	facts := newFacts(t, map[string]any{
		"has_motor": true,
		"hours":     4,
		"notes":     "rusty chain",
		"size":      "medium",
		"extras":    []any{"paint", "wax"},
	})

	tests := []struct {
		cond string
		want bool
	}{
		{`{}`, true},
		{`null`, true},
		{`{"var": "has_motor"}`, true},
		{`{"var": ["hours"]}`, true},
		{`{"==": [{"var": "has_motor"}, true]}`, true},
		{`{"===": [{"var": "has_motor"}, false]}`, false},
		{`{"!=": [{"var": "hours"}, 3]}`, true},
		{`{">": [{"var": "hours"}, 3]}`, true},
		{`{"<=": [{"var": "hours"}, 3]}`, false},
		{`{"<": [3, {"var": "hours"}]}`, true},
		{`{">=": [{"var": "size"}, "medium"]}`, true},
		{`{">": [{"var": "size"}, "medium"]}`, false},
		{`{"<": [{"var": "size"}, "large"]}`, true},
		{`{"==": [{"var": "size"}, "medium"]}`, true},
		{`{"in": [{"var": "size"}, ["small", "medium"]]}`, true},
		{`{"in": [{"var": "hours"}, [1, 2]]}`, false},
		{`{"contains": [{"var": "extras"}, "wax"]}`, true},
		{`{"contains": [{"var": "notes"}, "chain"]}`, true},
		{`{"and": [{"var": "has_motor"}, {">": [{"var": "hours"}, 1]}]}`, true},
		{`{"or": [{"==": [{"var": "hours"}, 1]}, {"==": [{"var": "notes"}, "rusty chain"]}]}`, true},
		{`{"!": {"var": "has_motor"}}`, false},
		{`{"not": [{"==": [{"var": "hours"}, 1]}]}`, true},
		{`{"exists": "notes"}`, true},
		// Loose and strict equality follow JsonLogic.
		{`{"==": [{"var": "hours"}, "4"]}`, true},
		{`{"===": [{"var": "hours"}, "4"]}`, false},
		{`{"!==": [{"var": "hours"}, "4"]}`, true},
		// The rest of the JsonLogic operator set is available to leaves.
		{`{"<=": [1, {"var": "hours"}, 10]}`, true},
		{`{"<": [5, {"var": "hours"}, 10]}`, false},
		{`{"!!": {"var": "hours"}}`, true},
		{`{">": [{"+": [{"var": "hours"}, 1]}, 4]}`, true},
		{`{"==": [{"%": [{"var": "hours"}, 2]}, 0]}`, true},
		{`{"==": [{"var": "hours"}, {"var": "hours"}]}`, true},
		{`{"in": ["paint", {"var": "extras"}]}`, true},
		{`{"some": [{"var": "extras"}, {"==": [{"var": ""}, "wax"]}]}`, true},
		{`{"if": [{"var": "has_motor"}, true, false]}`, true},
		// Values jsonlogic cannot compare evaluate to false.
		{`{"==": [{"var": "hours"}, [1]]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			e, err := Decode(json.RawMessage(tt.cond))
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Eval(facts))
		})
	}
}

func TestEval_MissingFactIsFalse(t *testing.T) {
	facts := newFacts(t, map[string]any{"hours": 2})

	conds := []string{
		`{"var": "has_motor"}`,
		`{"==": [{"var": "has_motor"}, true]}`,
		`{"!=": [{"var": "has_motor"}, true]}`,
		`{"!": {"==": [{"var": "has_motor"}, true]}}`,
		`{"and": [{">": [{"var": "hours"}, 1]}, {"var": "has_motor"}]}`,
		`{"or": [{"<": [{"var": "hours"}, 1]}, {"var": "has_motor"}]}`,
		`{"!": {"or": [{"<": [{"var": "hours"}, 1]}, {"var": "has_motor"}]}}`,
		`{"exists": "has_motor"}`,
	}
	for _, c := range conds {
		t.Run(c, func(t *testing.T) {
			e, err := Decode(json.RawMessage(c))
			require.NoError(t, err)
			assert.False(t, e.Eval(facts))
		})
	}
}

func TestEval_KnownBranchDecides(t *testing.T) {
	facts := newFacts(t, map[string]any{"hours": 2})

	e, err := Decode(json.RawMessage(`{"or": [{"var": "has_motor"}, {">": [{"var": "hours"}, 1]}]}`))
	require.NoError(t, err)
	assert.True(t, e.Eval(facts), "a true branch decides or even when another branch is unknown")

	e, err = Decode(json.RawMessage(`{"!": {"exists": "has_motor"}}`))
	require.NoError(t, err)
	assert.True(t, e.Eval(facts))
}

func TestEval_OptionalReads(t *testing.T) {
	facts := newFacts(t, map[string]any{"hours": 2})

	tests := []struct {
		cond string
		want bool
	}{
		{`{"missing": ["has_motor"]}`, true},
		{`{"missing": ["hours"]}`, false},
		{`{"==": [{"var": ["has_motor", false]}, false]}`, true},
		{`{"missing_some": [1, ["has_motor", "notes"]]}`, true},
		{`{"missing_some": [1, ["hours", "notes"]]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			e, err := Decode(json.RawMessage(tt.cond))
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Eval(facts))
		})
	}
}

func TestEval_EnumOrdinals(t *testing.T) {
	// Lexically "small" > "medium"; by ordinal it is the other way round.
	facts := newFacts(t, map[string]any{"size": "small", "notes": "small"})

	tests := []struct {
		cond string
		want bool
	}{
		{`{"<": [{"var": "size"}, "medium"]}`, true},
		{`{">": ["medium", {"var": "size"}]}`, true},
		{`{">=": [{"var": "size"}, "large"]}`, false},
		{`{"<": [{"var": "size"}, "huge"]}`, false},
		// String facts stay lexical.
		{`{"<": [{"var": "notes"}, "medium"]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			e, err := Decode(json.RawMessage(tt.cond))
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Eval(facts))
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	bad := []string{
		`[]`,
		`true`,
		`{"bogus": 1}`,
		`{"and": []}`,
		`{"and": {"var": "x"}}`,
		`{"var": ""}`,
		`{"var": 3}`,
		`{"==": [1, 2]}`,
		`{"==": [{"var": "x"}, {"bogus": 1}]}`,
		`{"in": [{"var": "x"}, [{"a": 1}]]}`,
		`{"contains": [{"var": "x"}]}`,
		`{"var": ["x", 1, 2]}`,
		`{"!": [{"var": "x"}, {"var": "y"}]}`,
		`{"var": "x", "exists": "y"}`,
		`{"==": `,
	}
	for _, c := range bad {
		t.Run(c, func(t *testing.T) {
			_, err := Decode(json.RawMessage(c))
			assert.ErrorIs(t, err, estimate.ErrInvalidCondition)
		})
	}
}

func TestDecode_Reads(t *testing.T) {
	tests := []struct {
		cond     string
		reads    []string
		optional []string
	}{
		{`{">": [{"+": [{"var": "hours"}, {"var": "extra_hours"}]}, 3]}`, []string{"extra_hours", "hours"}, nil},
		{`{"==": [{"var": ["size", "small"]}, "small"]}`, nil, []string{"size"}},
		{`{"missing_some": [1, ["a", "b"]]}`, nil, []string{"a", "b"}},
		{`{"some": [{"var": "extras"}, {"==": [{"var": ""}, "wax"]}]}`, []string{"extras"}, nil},
		{`{"==": [{"var": "hours"}, {"var": ["hours", 0]}]}`, []string{"hours"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			e, err := Decode(json.RawMessage(tt.cond))
			require.NoError(t, err)
			assert.Equal(t, OpRule, e.Op)
			assert.Equal(t, tt.reads, e.Reads)
			assert.Equal(t, tt.optional, e.Optional)
		})
	}
}

func TestDecode_ContainsIsSwappedIn(t *testing.T) {
	e, err := Decode(json.RawMessage(`{"contains": [{"var": "extras"}, "wax"]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"in": []any{"wax", map[string]any{"var": "extras"}}}, e.Rule)
	assert.Equal(t, []string{"extras"}, e.Reads)
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte(`{"and": [{"var": "a"}, {"==": [{"var": "b"}, 1]}]}`))
	f.Add([]byte(`{"in": [{"var": "size"}, ["s", "m"]]}`))
	f.Add([]byte(`{}`))
	f.Fuzz(func(t *testing.T, raw []byte) {
		e, err := Decode(raw)
		if err != nil {
			return
		}
		e.Eval(estimate.NewFactStore(nil))
	})
}
