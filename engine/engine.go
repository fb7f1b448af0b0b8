// Package engine drives decision sessions and pricing evaluations against a
// Store. It loads the records a computation needs, compiles them and runs the
// in-memory evaluators in decision and pricing.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/decision"
	"github.com/meikuraledutech/estimate/internal/ctxlog"
	"github.com/meikuraledutech/estimate/pricing"
)

// Engine evaluates graphs loaded from a Store. It is safe for concurrent use;
// sessions it returns are not.
type Engine struct {
	store estimate.Store
}

// New returns an Engine reading from store.
func New(store estimate.Store) *Engine {
	return &Engine{store: store}
}

// Range is a pair of independent estimates.
type Range struct {
	Min pricing.ContributorResult `json:"min"`
	Max pricing.ContributorResult `json:"max"`
}

// LoadDecisionGraph fetches a decision graph with its project's fact
// definitions and compiles it.
func (e *Engine) LoadDecisionGraph(ctx context.Context, graphID string) (*decision.Graph, error) {
	g, err := e.store.GetDecisionGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s", estimate.ErrGraphNotFound, graphID)
	}
	defs, err := e.store.ListFactDefinitions(ctx, g.ProjectID)
	if err != nil {
		return nil, err
	}
	return decision.Compile(g, defs)
}

// StartSession begins a walk through the decision graph graphID.
func (e *Engine) StartSession(ctx context.Context, graphID string) (*decision.Session, decision.Step, error) {
	g, err := e.LoadDecisionGraph(ctx, graphID)
	if err != nil {
		return nil, decision.Step{}, err
	}
	s, step := decision.NewSession(uuid.NewString(), g)
	ctxlog.FromContext(ctx).Info("session started",
		"session_id", s.ID(), "graph_id", graphID, "node_id", step.NodeID, "done", step.Done)
	return s, step, nil
}

// SubmitAnswer records an answer to nodeID and advances s.
func (e *Engine) SubmitAnswer(ctx context.Context, s *decision.Session, nodeID string, raw any) (decision.Step, error) {
	logger := ctxlog.FromContext(ctx).With("session_id", s.ID())
	step, err := s.Submit(nodeID, raw)
	if err != nil {
		logger.Debug("answer rejected", "node_id", nodeID, "error", err)
		return step, err
	}

	switch {
	case step.Reason == decision.ReasonDeadEnd:
		logger.Warn("session reached a dead end", "node_id", s.State().LastNode)
	case step.Done:
		logger.Info("session finished", "reason", step.Reason, "node_id", s.State().LastNode)
	default:
		logger.Debug("answer accepted", "node_id", nodeID, "next_node_id", step.NodeID, "skipped", step.Skipped)
	}
	return step, nil
}

// ComputeEstimate evaluates the pricing graph graphID. Variables resolve from
// bindings first, then from the graph's project variable definitions, then
// from numeric facts.
func (e *Engine) ComputeEstimate(ctx context.Context, graphID string, facts *estimate.FactStore, bindings map[string]float64) (pricing.ContributorResult, error) {
	g, err := e.store.GetPricingGraph(ctx, graphID)
	if err != nil {
		return pricing.ContributorResult{}, err
	}
	if g == nil {
		return pricing.ContributorResult{}, fmt.Errorf("%w: pricing graph %s", estimate.ErrGraphNotFound, graphID)
	}
	vars, err := e.store.ListVariables(ctx, g.ProjectID)
	if err != nil {
		return pricing.ContributorResult{}, err
	}

	res, err := pricing.Evaluate(g, pricing.NewResolver(facts, vars, bindings))
	if err != nil {
		ctxlog.FromContext(ctx).Debug("estimate failed", "graph_id", graphID, "error", err)
		return pricing.ContributorResult{}, err
	}
	ctxlog.FromContext(ctx).Info("estimate computed",
		"graph_id", graphID, "total", res.Breakdown.Total,
		"labor", res.Breakdown.Labor, "materials", res.Breakdown.Materials, "misc", res.Breakdown.Misc)
	return res, nil
}

// ComputeRange evaluates two pricing graphs over the same inputs, typically a
// pessimistic and an optimistic variant of one estimate.
func (e *Engine) ComputeRange(ctx context.Context, minGraphID, maxGraphID string, facts *estimate.FactStore, bindings map[string]float64) (Range, error) {
	lo, err := e.ComputeEstimate(ctx, minGraphID, facts, bindings)
	if err != nil {
		return Range{}, fmt.Errorf("min: %w", err)
	}
	hi, err := e.ComputeEstimate(ctx, maxGraphID, facts, bindings)
	if err != nil {
		return Range{}, fmt.Errorf("max: %w", err)
	}
	return Range{Min: lo, Max: hi}, nil
}

// FactsFor builds a fact store over the definitions of the project owning the
// pricing graph graphID and fills it with values. It backs estimates computed
// outside a session.
func (e *Engine) FactsFor(ctx context.Context, graphID string, values map[string]any) (*estimate.FactStore, error) {
	g, err := e.store.GetPricingGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: pricing graph %s", estimate.ErrGraphNotFound, graphID)
	}
	defs, err := e.store.ListFactDefinitions(ctx, g.ProjectID)
	if err != nil {
		return nil, err
	}
	facts := estimate.NewFactStore(defs)
	for k, v := range values {
		if err := facts.Set(k, v); err != nil {
			return nil, err
		}
	}
	return facts, nil
}

// Lint reports authoring problems in the decision graph graphID.
func (e *Engine) Lint(ctx context.Context, graphID string) ([]estimate.LintIssue, error) {
	g, err := e.store.GetDecisionGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s", estimate.ErrGraphNotFound, graphID)
	}
	defs, err := e.store.ListFactDefinitions(ctx, g.ProjectID)
	if err != nil {
		return nil, err
	}
	issues := estimate.Lint(g.Nodes, g.Edges, defs)
	if issues == nil {
		issues = []estimate.LintIssue{}
	}
	return issues, nil
}

// WouldCreateCycle reports whether adding fromID -> toID to the decision graph
// graphID would make it cyclic.
func (e *Engine) WouldCreateCycle(ctx context.Context, graphID, fromID, toID string) (bool, error) {
	g, err := e.store.GetDecisionGraph(ctx, graphID)
	if err != nil {
		return false, err
	}
	if g == nil {
		return false, fmt.Errorf("%w: %s", estimate.ErrGraphNotFound, graphID)
	}
	return estimate.WouldCreateCycle(fromID, toID, g.Edges), nil
}
