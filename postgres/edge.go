package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/condition"
	"github.com/meikuraledutech/estimate/internal/record"
)

// AddEdge inserts a single edge into a decision graph.
// If edge.ID is empty, a UUID is auto-generated.
// Validates the condition, that both endpoints belong to the graph and that
// adding this edge does not create a cycle.
// Returns the edge ID (generated or provided).
func (s *PGStore) AddEdge(ctx context.Context, graphID string, edge *estimate.DecisionEdge) (string, error) {
	if err := condition.Validate(edge.Condition); err != nil {
		return "", err
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	edge.FromNodeRef, edge.ToNodeRef = "", ""

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("estimate: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockGraph(ctx, tx, graphID); err != nil {
		return "", err
	}
	nodes, err := listNodes(ctx, tx, graphID)
	if err != nil {
		return "", err
	}
	edges, err := listEdges(ctx, tx, graphID)
	if err != nil {
		return "", err
	}
	if err := estimate.CheckEndpoints(nodes, *edge); err != nil {
		return "", err
	}
	if estimate.WouldCreateCycle(edge.FromNodeID, edge.ToNodeID, edges) {
		return "", fmt.Errorf("%w: edge %s -> %s", estimate.ErrCycleDetected, edge.FromNodeID, edge.ToNodeID)
	}

	if err := insertEdge(ctx, tx, graphID, edge); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("estimate: commit: %w", err)
	}
	return edge.ID, nil
}

// GetEdge fetches a single edge by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetEdge(ctx context.Context, edgeID string) (*estimate.DecisionEdge, error) {
	var from, to string
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT from_node_id, to_node_id, data FROM decision_edges WHERE id = $1`, edgeID,
	).Scan(&from, &to, &data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate: get edge: %w", err)
	}

	e, err := record.Edge(edgeID, from, to, data)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEdge updates an existing edge's endpoints, condition and priority.
// Validates that the update does not create a cycle.
// Returns ErrEdgeNotFound if the edge doesn't exist.
func (s *PGStore) UpdateEdge(ctx context.Context, edge *estimate.DecisionEdge) error {
	if err := condition.Validate(edge.Condition); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("estimate: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var graphID string
	err = tx.QueryRow(ctx, `SELECT graph_id FROM decision_edges WHERE id = $1`, edge.ID).Scan(&graphID)
	if err != nil {
		if isNoRows(err) {
			return estimate.ErrEdgeNotFound
		}
		return fmt.Errorf("estimate: find edge: %w", err)
	}
	if err := lockGraph(ctx, tx, graphID); err != nil {
		return err
	}

	nodes, err := listNodes(ctx, tx, graphID)
	if err != nil {
		return err
	}
	edges, err := listEdges(ctx, tx, graphID)
	if err != nil {
		return err
	}
	if err := estimate.CheckEndpoints(nodes, *edge); err != nil {
		return err
	}
	for i := range edges {
		if edges[i].ID == edge.ID {
			edges[i].FromNodeID = edge.FromNodeID
			edges[i].ToNodeID = edge.ToNodeID
			break
		}
	}
	if err := estimate.ValidateAcyclic(nodes, edges); err != nil {
		return err
	}

	data, err := record.EdgeData(edge)
	if err != nil {
		return err
	}
	ct, err := tx.Exec(ctx,
		`UPDATE decision_edges SET from_node_id = $1, to_node_id = $2, data = $3 WHERE id = $4`,
		edge.FromNodeID, edge.ToNodeID, data, edge.ID,
	)
	if err != nil {
		return fmt.Errorf("estimate: update edge: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return estimate.ErrEdgeNotFound
	}
	return tx.Commit(ctx)
}

// DeleteEdge deletes an edge by its ID.
// No error if the edge doesn't exist.
func (s *PGStore) DeleteEdge(ctx context.Context, edgeID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM decision_edges WHERE id = $1`, edgeID); err != nil {
		return fmt.Errorf("estimate: delete edge: %w", err)
	}
	return nil
}

// ListEdges returns all edges for a graphID in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListEdges(ctx context.Context, graphID string) ([]estimate.DecisionEdge, error) {
	return listEdges(ctx, s.db, graphID)
}

func listEdges(ctx context.Context, q querier, graphID string) ([]estimate.DecisionEdge, error) {
	rows, err := q.Query(ctx,
		`SELECT id, from_node_id, to_node_id, data FROM decision_edges WHERE graph_id = $1 ORDER BY seq`, graphID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list edges: %w", err)
	}
	defer rows.Close()

	edges := []estimate.DecisionEdge{}
	for rows.Next() {
		var id, from, to string
		var data []byte
		if err := rows.Scan(&id, &from, &to, &data); err != nil {
			return nil, fmt.Errorf("estimate: scan edge: %w", err)
		}
		e, err := record.Edge(id, from, to, data)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("estimate: rows edges: %w", err)
	}
	return edges, nil
}

func insertEdge(ctx context.Context, q querier, graphID string, e *estimate.DecisionEdge) error {
	data, err := record.EdgeData(e)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO decision_edges (id, graph_id, from_node_id, to_node_id, data) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, graphID, e.FromNodeID, e.ToNodeID, data,
	); err != nil {
		return fmt.Errorf("estimate: insert edge %s: %w", e.ID, err)
	}
	return nil
}
