package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/decision"
)

// CreateDecisionGraph saves a full decision graph (nodes + edges) in one
// transaction, replacing any graph stored under the same ID.
// Nodes/edges without IDs get auto-generated UUIDs and edge refs are resolved
// to real node IDs. The graph is rejected if an edge condition does not decode
// or the edges form a cycle. Returns the graph with all IDs filled in.
func (s *PGStore) CreateDecisionGraph(ctx context.Context, g *estimate.DecisionGraph) (*estimate.DecisionGraph, error) {
	if err := g.ResolveRefs(); err != nil {
		return nil, err
	}
	if err := decision.Check(g.Nodes, g.Edges); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("estimate: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Replace semantics: the graph row survives, its nodes and edges do not.
	if _, err := tx.Exec(ctx,
		`INSERT INTO decision_graphs (id, project_id) VALUES ($1, $2)
         ON CONFLICT (id) DO UPDATE SET project_id = EXCLUDED.project_id`,
		g.ID, g.ProjectID,
	); err != nil {
		return nil, fmt.Errorf("estimate: upsert graph: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM decision_edges WHERE graph_id = $1`, g.ID); err != nil {
		return nil, fmt.Errorf("estimate: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM decision_nodes WHERE graph_id = $1`, g.ID); err != nil {
		return nil, fmt.Errorf("estimate: delete nodes: %w", err)
	}

	for i := range g.Nodes {
		if err := insertNode(ctx, tx, g.ID, &g.Nodes[i]); err != nil {
			return nil, err
		}
	}
	for i := range g.Edges {
		if err := insertEdge(ctx, tx, g.ID, &g.Edges[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("estimate: commit: %w", err)
	}
	return g, nil
}

// GetDecisionGraph retrieves a full decision graph (nodes + edges) by its ID.
// Returns nil, nil if the graph doesn't exist.
func (s *PGStore) GetDecisionGraph(ctx context.Context, graphID string) (*estimate.DecisionGraph, error) {
	g := &estimate.DecisionGraph{ID: graphID}
	err := s.db.QueryRow(ctx, `SELECT project_id FROM decision_graphs WHERE id = $1`, graphID).Scan(&g.ProjectID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate: get graph: %w", err)
	}

	if g.Nodes, err = listNodes(ctx, s.db, graphID); err != nil {
		return nil, err
	}
	if g.Edges, err = listEdges(ctx, s.db, graphID); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteDecisionGraph removes a graph with all its nodes and edges.
// No error if the graph doesn't exist.
func (s *PGStore) DeleteDecisionGraph(ctx context.Context, graphID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM decision_graphs WHERE id = $1`, graphID); err != nil {
		return fmt.Errorf("estimate: delete graph: %w", err)
	}
	return nil
}

// lockGraph takes a row lock on the graph so concurrent edge writes to it are
// checked for cycles one at a time.
func lockGraph(ctx context.Context, q querier, graphID string) error {
	var id string
	err := q.QueryRow(ctx, `SELECT id FROM decision_graphs WHERE id = $1 FOR UPDATE`, graphID).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: %s", estimate.ErrGraphNotFound, graphID)
		}
		return fmt.Errorf("estimate: lock graph: %w", err)
	}
	return nil
}

// projectNodes returns the nodes of every decision graph in a project.
func (s *PGStore) projectNodes(ctx context.Context, projectID string) ([]estimate.DecisionNode, error) {
	rows, err := s.db.Query(ctx,
		`SELECT n.id, n.data FROM decision_nodes n
         JOIN decision_graphs g ON g.id = n.graph_id
         WHERE g.project_id = $1 ORDER BY n.seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list project nodes: %w", err)
	}
	return scanNodes(rows)
}
