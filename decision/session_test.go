package decision

import (
	"encoding/json"
	"testing"

	"github.com/meikuraledutech/estimate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var motorFacts = []estimate.FactDefinition{
	{Key: "has_motor", Type: estimate.FactBoolean},
	{Key: "hours", Type: estimate.FactNumber},
	{Key: "finish", Type: estimate.FactEnum, EnumOptions: []estimate.EnumOption{
		{Value: "matte", Ordinal: 1}, {Value: "gloss", Ordinal: 2},
	}},
}

func question(id string, produces ...string) estimate.DecisionNode {
	return estimate.DecisionNode{ID: id, Label: id, Type: estimate.NodeQuestion, Config: estimate.NodeConfig{ProducesFacts: produces}}
}

func outcome(id string) estimate.DecisionNode {
	return estimate.DecisionNode{ID: id, Label: id, Type: estimate.NodeOutcome}
}

func link(id, from, to string, cond string, priority int) estimate.DecisionEdge {
	e := estimate.DecisionEdge{ID: id, FromNodeID: from, ToNodeID: to, Priority: priority}
	if cond != "" {
		e.Condition = json.RawMessage(cond)
	}
	return e
}

// motorGraph: A asks has_motor; A->B when true, A->C otherwise.
func motorGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Compile(&estimate.DecisionGraph{
		ID: "motor",
		Nodes: []estimate.DecisionNode{
			question("A", "has_motor"),
			question("B", "hours"),
			outcome("C"),
		},
		Edges: []estimate.DecisionEdge{
			link("e2", "A", "C", `{}`, 1),
			link("e1", "A", "B", `{"==": [{"var": "has_motor"}, true]}`, 0),
		},
	}, motorFacts)
	require.NoError(t, err)
	return g
}

func TestSession_BranchesOnAnswer(t *testing.T) {
	g := motorGraph(t)

	s, step := NewSession("s1", g)
	assert.Equal(t, Step{NodeID: "A"}, step)

	step, err := s.Submit("A", true)
	require.NoError(t, err)
	assert.Equal(t, Step{NodeID: "B"}, step)
	v, ok := s.Facts().Fact("has_motor")
	require.True(t, ok)
	assert.True(t, v.Bool)

	s, _ = NewSession("s2", g)
	step, err = s.Submit("A", false)
	require.NoError(t, err)
	assert.Equal(t, Step{Done: true, Reason: ReasonOutcome}, step)

	done, reason := s.Done()
	assert.True(t, done)
	assert.Equal(t, ReasonOutcome, reason)
	assert.Equal(t, []string{"A", "C"}, s.State().Path)
}

func TestNextNode_DefaultEdgeFallback(t *testing.T) {
	g, err := Compile(&estimate.DecisionGraph{
		Nodes: []estimate.DecisionNode{question("A", "has_motor"), question("X"), question("Y")},
		Edges: []estimate.DecisionEdge{
			link("never", "A", "X", `{"and": [{"var": "has_motor"}, {"!": {"var": "has_motor"}}]}`, 0),
			link("default", "A", "Y", `{}`, 1),
		},
	}, motorFacts)
	require.NoError(t, err)

	for _, raw := range []any{nil, true, false} {
		facts := estimate.NewFactStore(motorFacts)
		if raw != nil {
			require.NoError(t, facts.Set("has_motor", raw))
		}
		next, ok := g.NextNode("A", facts)
		require.True(t, ok)
		assert.Equal(t, "Y", next, "has_motor=%v", raw)
	}
}

func TestNextNode_PriorityTiesKeepInsertionOrder(t *testing.T) {
	g, err := Compile(&estimate.DecisionGraph{
		Nodes: []estimate.DecisionNode{question("A"), question("X"), question("Y"), question("Z")},
		Edges: []estimate.DecisionEdge{
			link("z", "A", "Z", `{}`, 5),
			link("x", "A", "X", `{}`, 1),
			link("y", "A", "Y", `{}`, 1),
		},
	}, nil)
	require.NoError(t, err)

	var ids []string
	for _, e := range g.Edges("A") {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"x", "y", "z"}, ids)

	next, ok := g.NextNode("A", estimate.NewFactStore(nil))
	require.True(t, ok)
	assert.Equal(t, "X", next)
}

func TestSession_TypeMismatchDoesNotAdvance(t *testing.T) {
	s, _ := NewSession("s", motorGraph(t))
	_, err := s.Submit("A", true)
	require.NoError(t, err)

	_, err = s.Submit("B", "two")
	require.ErrorIs(t, err, estimate.ErrTypeMismatch)
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "B", cur.ID)
	_, ok = s.Facts().Fact("hours")
	assert.False(t, ok)

	step, err := s.Submit("B", "2")
	require.NoError(t, err)
	assert.Equal(t, Step{Done: true, Reason: ReasonEnd}, step)
	v, _ := s.Facts().Fact("hours")
	assert.Equal(t, 2.0, v.Number)
}

func TestSession_DeadEnd(t *testing.T) {
	g, err := Compile(&estimate.DecisionGraph{
		Nodes: []estimate.DecisionNode{question("A", "has_motor"), outcome("B")},
		Edges: []estimate.DecisionEdge{link("e", "A", "B", `{"var": "has_motor"}`, 0)},
	}, motorFacts)
	require.NoError(t, err)

	s, _ := NewSession("s", g)
	step, err := s.Submit("A", false)
	require.NoError(t, err)
	assert.Equal(t, Step{Done: true, Reason: ReasonDeadEnd}, step)
	assert.Equal(t, "A", s.State().LastNode)

	_, err = s.Submit("A", true)
	assert.ErrorIs(t, err, estimate.ErrSessionDone)
}

func TestSession_RequiredAndCurrentNode(t *testing.T) {
	a := question("A", "has_motor")
	a.Config.Required = true
	g, err := Compile(&estimate.DecisionGraph{
		Nodes: []estimate.DecisionNode{a, question("B")},
		Edges: []estimate.DecisionEdge{link("e", "A", "B", "", 0)},
	}, motorFacts)
	require.NoError(t, err)

	s, _ := NewSession("s", g)
	_, err = s.Submit("B", true)
	assert.ErrorIs(t, err, estimate.ErrNotCurrentNode)

	_, err = s.Submit("A", nil)
	assert.ErrorIs(t, err, estimate.ErrAnswerRequired)

	step, err := s.Submit("", true)
	require.NoError(t, err)
	assert.Equal(t, "B", step.NodeID)

	// B is optional; a blank answer advances without writing.
	step, err = s.Submit("B", "")
	require.NoError(t, err)
	assert.True(t, step.Done)
}

func TestSession_SelectValidation(t *testing.T) {
	a := question("A", "finish")
	a.Config.InputType = estimate.InputSelect
	a.Config.Options = []estimate.Option{{Value: "matte"}, {Value: "gloss"}}
	g, err := Compile(&estimate.DecisionGraph{Nodes: []estimate.DecisionNode{a}}, motorFacts)
	require.NoError(t, err)

	s, _ := NewSession("s", g)
	_, err = s.Submit("A", "satin")
	assert.ErrorIs(t, err, estimate.ErrTypeMismatch)
	_, err = s.Submit("A", []any{"matte"})
	assert.ErrorIs(t, err, estimate.ErrTypeMismatch, "single select rejects lists")

	step, err := s.Submit("A", "gloss")
	require.NoError(t, err)
	assert.Equal(t, Step{Done: true, Reason: ReasonEnd}, step)
	assert.Equal(t, map[string]any{"A": "gloss"}, s.State().Answers)
}

func TestSession_VisibilityAndVariables(t *testing.T) {
	hidden := question("H", "hours")
	hidden.Config.VisibilityRules = json.RawMessage(`{"var": "has_motor"}`)
	hidden.Config.SetsVariables = map[string]float64{"never": 1}
	done := outcome("D")
	done.Config.SetsVariables = map[string]float64{"rate": 75}

	g, err := Compile(&estimate.DecisionGraph{
		Nodes: []estimate.DecisionNode{question("A", "has_motor"), hidden, done},
		Edges: []estimate.DecisionEdge{
			link("e1", "A", "H", "", 0),
			link("e2", "H", "D", "", 0),
		},
	}, motorFacts)
	require.NoError(t, err)

	s, _ := NewSession("s", g)
	step, err := s.Submit("A", false)
	require.NoError(t, err)
	assert.Equal(t, Step{Done: true, Reason: ReasonOutcome, Skipped: []string{"H"}}, step)
	assert.Equal(t, map[string]float64{"rate": 75}, s.Bindings())

	s, _ = NewSession("s", g)
	step, err = s.Submit("A", true)
	require.NoError(t, err)
	assert.Equal(t, "H", step.NodeID)
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		g    *estimate.DecisionGraph
		want error
	}{
		{"empty", &estimate.DecisionGraph{}, estimate.ErrGraphNotFound},
		{"cycle", &estimate.DecisionGraph{
			Nodes: []estimate.DecisionNode{question("A"), question("B")},
			Edges: []estimate.DecisionEdge{link("1", "A", "B", "", 0), link("2", "B", "A", "", 0)},
		}, estimate.ErrCycleDetected},
		{"bad condition", &estimate.DecisionGraph{
			Nodes: []estimate.DecisionNode{question("A"), question("B")},
			Edges: []estimate.DecisionEdge{link("1", "A", "B", `{"bogus": 1}`, 0)},
		}, estimate.ErrInvalidCondition},
		{"unknown node", &estimate.DecisionGraph{
			Nodes: []estimate.DecisionNode{question("A")},
			Edges: []estimate.DecisionEdge{link("1", "A", "Q", "", 0)},
		}, estimate.ErrNodeNotFound},
		{"undefined fact", &estimate.DecisionGraph{
			Nodes: []estimate.DecisionNode{question("A", "color")},
		}, estimate.ErrFactNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.g, motorFacts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheck(t *testing.T) {
	nodes := []estimate.DecisionNode{question("A", "undeclared"), question("B")}
	assert.NoError(t, Check(nodes, []estimate.DecisionEdge{link("1", "A", "B", `{"exists": "x"}`, 0)}))
	assert.ErrorIs(t, Check(nodes, []estimate.DecisionEdge{link("1", "A", "C", "", 0)}), estimate.ErrNodeNotFound)
	assert.ErrorIs(t, Check(nodes, []estimate.DecisionEdge{link("1", "A", "B", `[1]`, 0)}), estimate.ErrInvalidCondition)
	assert.ErrorIs(t, Check(nodes, []estimate.DecisionEdge{
		link("1", "A", "B", "", 0), link("2", "B", "A", "", 0),
	}), estimate.ErrCycleDetected)
}
