package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/decision"
	"github.com/meikuraledutech/estimate/internal/ctxlog"
	"github.com/meikuraledutech/estimate/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repairLines(rate estimate.PricingOperandNode) []estimate.PricingLine {
	return []estimate.PricingLine{
		{ID: "repair-job", Label: "Repair", Nodes: []estimate.PricingOperandNode{
			{Kind: estimate.OperandBucket, TargetLineID: "bucket-labor__repair"},
		}},
		{ID: "bucket-labor__repair", Nodes: []estimate.PricingOperandNode{
			{Kind: estimate.OperandFact, FactKey: "hours"},
			rate,
		}},
	}
}

// seed stores a motor questionnaire: A asks has_motor, B asks hours when
// there is a motor and D binds rate=75. Without a motor the walk ends at C.
func seed(t *testing.T) (*Engine, estimate.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.CreateSchema(ctx))
	require.NoError(t, store.UpsertFactDefinition(ctx, "p", &estimate.FactDefinition{Key: "has_motor", Type: estimate.FactBoolean}))
	require.NoError(t, store.UpsertFactDefinition(ctx, "p", &estimate.FactDefinition{Key: "hours", Type: estimate.FactNumber}))
	require.NoError(t, store.UpsertVariable(ctx, "p", &estimate.VariableDefinition{
		Key: "rate", Expression: json.RawMessage(`{"if": [{"var": "has_motor"}, 90, 60]}`),
	}))

	_, err = store.CreateDecisionGraph(ctx, &estimate.DecisionGraph{
		ID:        "motor",
		ProjectID: "p",
		Nodes: []estimate.DecisionNode{
			{ID: "A", Label: "Has motor?", Config: estimate.NodeConfig{ProducesFacts: []string{"has_motor"}, Required: true}},
			{ID: "B", Label: "Hours", Config: estimate.NodeConfig{ProducesFacts: []string{"hours"}}},
			{ID: "C", Label: "No motor", Type: estimate.NodeOutcome},
			{ID: "D", Label: "Quote", Type: estimate.NodeOutcome, Config: estimate.NodeConfig{SetsVariables: map[string]float64{"rate": 75}}},
		},
		Edges: []estimate.DecisionEdge{
			{FromNodeID: "A", ToNodeID: "B", Condition: json.RawMessage(`{"==": [{"var": "has_motor"}, true]}`)},
			{FromNodeID: "A", ToNodeID: "C", Priority: 1},
			{FromNodeID: "B", ToNodeID: "D", Condition: json.RawMessage(`{">": [{"var": "hours"}, 0]}`)},
		},
	})
	require.NoError(t, err)

	rate := estimate.PricingOperandNode{Kind: estimate.OperandVariable, Operator: estimate.OpMul, VarKey: "rate"}
	require.NoError(t, store.SavePricingGraph(ctx, &estimate.PricingGraph{ID: "repair", ProjectID: "p", Lines: repairLines(rate)}))
	low := estimate.PricingOperandNode{Kind: estimate.OperandConstant, Operator: estimate.OpMul, Value: 50}
	require.NoError(t, store.SavePricingGraph(ctx, &estimate.PricingGraph{ID: "repair-low", ProjectID: "p", Lines: repairLines(low)}))

	return New(store), store
}

func TestEngine_SessionToEstimate(t *testing.T) {
	eng, _ := seed(t)
	ctx := context.Background()

	s, step, err := eng.StartSession(ctx, "motor")
	require.NoError(t, err)
	assert.Equal(t, "A", step.NodeID)

	step, err = eng.SubmitAnswer(ctx, s, "A", true)
	require.NoError(t, err)
	assert.Equal(t, "B", step.NodeID)

	step, err = eng.SubmitAnswer(ctx, s, "B", 2)
	require.NoError(t, err)
	assert.Equal(t, decision.Step{Done: true, Reason: decision.ReasonOutcome}, step)

	res, err := eng.ComputeEstimate(ctx, "repair", s.Facts(), s.Bindings())
	require.NoError(t, err)
	assert.Equal(t, "repair-job", res.NodeID)
	assert.Equal(t, 150.0, res.Breakdown.Labor)
	assert.Equal(t, 150.0, res.Breakdown.Total)
}

func TestEngine_NoMotorBranch(t *testing.T) {
	eng, _ := seed(t)
	ctx := context.Background()

	s, _, err := eng.StartSession(ctx, "motor")
	require.NoError(t, err)

	_, err = eng.SubmitAnswer(ctx, s, "A", "maybe")
	require.ErrorIs(t, err, estimate.ErrTypeMismatch)

	step, err := eng.SubmitAnswer(ctx, s, "A", false)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Equal(t, "C", s.State().LastNode)

	_, err = eng.ComputeEstimate(ctx, "repair", s.Facts(), s.Bindings())
	assert.ErrorIs(t, err, estimate.ErrMissingFact, "hours was never asked")
}

func TestEngine_DeadEndIsLogged(t *testing.T) {
	eng, _ := seed(t)
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	s, _, err := eng.StartSession(ctx, "motor")
	require.NoError(t, err)
	_, err = eng.SubmitAnswer(ctx, s, "A", true)
	require.NoError(t, err)

	step, err := eng.SubmitAnswer(ctx, s, "B", 0)
	require.NoError(t, err)
	assert.Equal(t, decision.ReasonDeadEnd, step.Reason)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "dead end")
	assert.Contains(t, buf.String(), "session started")
}

func TestEngine_StatelessEstimateUsesVariableDefinitions(t *testing.T) {
	eng, _ := seed(t)
	ctx := context.Background()

	facts, err := eng.FactsFor(ctx, "repair", map[string]any{"has_motor": true, "hours": 2})
	require.NoError(t, err)
	res, err := eng.ComputeEstimate(ctx, "repair", facts, nil)
	require.NoError(t, err)
	assert.Equal(t, 180.0, res.Breakdown.Total)

	facts, err = eng.FactsFor(ctx, "repair", map[string]any{"has_motor": false, "hours": 2})
	require.NoError(t, err)
	res, err = eng.ComputeEstimate(ctx, "repair", facts, nil)
	require.NoError(t, err)
	assert.Equal(t, 120.0, res.Breakdown.Total)

	_, err = eng.FactsFor(ctx, "repair", map[string]any{"colour": "red"})
	assert.ErrorIs(t, err, estimate.ErrFactNotFound)
	_, err = eng.FactsFor(ctx, "nope", nil)
	assert.ErrorIs(t, err, estimate.ErrGraphNotFound)
}

func TestEngine_ComputeRange(t *testing.T) {
	eng, _ := seed(t)
	ctx := context.Background()

	facts, err := eng.FactsFor(ctx, "repair", map[string]any{"hours": 2})
	require.NoError(t, err)
	r, err := eng.ComputeRange(ctx, "repair-low", "repair", facts, map[string]float64{"rate": 75})
	require.NoError(t, err)
	assert.Equal(t, 100.0, r.Min.Breakdown.Total)
	assert.Equal(t, 150.0, r.Max.Breakdown.Total)

	_, err = eng.ComputeRange(ctx, "repair-low", "missing", facts, nil)
	assert.ErrorIs(t, err, estimate.ErrGraphNotFound)
}

func TestEngine_LintAndCycleProbe(t *testing.T) {
	eng, _ := seed(t)
	ctx := context.Background()

	issues, err := eng.Lint(ctx, "motor")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, estimate.LintMissingDefault, issues[0].Code)
	assert.Equal(t, "B", issues[0].NodeID)

	cyc, err := eng.WouldCreateCycle(ctx, "motor", "D", "A")
	require.NoError(t, err)
	assert.True(t, cyc)
	cyc, err = eng.WouldCreateCycle(ctx, "motor", "C", "D")
	require.NoError(t, err)
	assert.False(t, cyc)

	_, err = eng.WouldCreateCycle(ctx, "missing", "C", "D")
	assert.ErrorIs(t, err, estimate.ErrGraphNotFound)
	_, err = eng.Lint(ctx, "missing")
	assert.ErrorIs(t, err, estimate.ErrGraphNotFound)
	_, _, err = eng.StartSession(ctx, "missing")
	assert.ErrorIs(t, err, estimate.ErrGraphNotFound)
}

func TestSessions_Concurrent(t *testing.T) {
	eng, _ := seed(t)
	ctx := context.Background()
	reg := NewSessions(0)

	s, _, err := eng.StartSession(ctx, "motor")
	require.NoError(t, err)
	reg.Put(s)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reg.With(s.ID(), func(s *decision.Session) error {
				_, err := eng.SubmitAnswer(ctx, s, "A", false)
				return err
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted, "only the first answer lands; the rest see a finished session")

	err = reg.With("missing", func(*decision.Session) error { return nil })
	assert.ErrorIs(t, err, estimate.ErrSessionNotFound)
	reg.Delete(s.ID())
	assert.Equal(t, 0, reg.Len())
}

func TestSessions_IdleExpiry(t *testing.T) {
	eng, _ := seed(t)
	ctx := context.Background()
	reg := NewSessions(time.Minute)
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return clock }

	stale, _, err := eng.StartSession(ctx, "motor")
	require.NoError(t, err)
	reg.Put(stale)
	kept, _, err := eng.StartSession(ctx, "motor")
	require.NoError(t, err)
	reg.Put(kept)

	clock = clock.Add(45 * time.Second)
	require.NoError(t, reg.With(kept.ID(), func(*decision.Session) error { return nil }))

	clock = clock.Add(30 * time.Second)
	fresh, _, err := eng.StartSession(ctx, "motor")
	require.NoError(t, err)
	reg.Put(fresh)

	assert.Equal(t, 2, reg.Len())
	err = reg.With(stale.ID(), func(*decision.Session) error { return nil })
	assert.ErrorIs(t, err, estimate.ErrSessionNotFound)

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 2, reg.Sweep())
	assert.Equal(t, 0, reg.Len())
}
