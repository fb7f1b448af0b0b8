package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/condition"
	"github.com/meikuraledutech/estimate/internal/record"
)

// AddNode inserts a single node into a decision graph.
// If node.ID is empty, a UUID is auto-generated.
// Returns the node ID (generated or provided).
func (s *PGStore) AddNode(ctx context.Context, graphID string, node *estimate.DecisionNode) (string, error) {
	if err := condition.Validate(node.Config.VisibilityRules); err != nil {
		return "", err
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	node.Ref = ""

	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM decision_graphs WHERE id = $1)`, graphID,
	).Scan(&exists); err != nil {
		return "", fmt.Errorf("estimate: find graph: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", estimate.ErrGraphNotFound, graphID)
	}

	if err := insertNode(ctx, s.db, graphID, node); err != nil {
		return "", err
	}
	return node.ID, nil
}

// GetNode fetches a single node by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetNode(ctx context.Context, nodeID string) (*estimate.DecisionNode, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM decision_nodes WHERE id = $1`, nodeID).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate: get node: %w", err)
	}

	n, err := record.Node(nodeID, data)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNode replaces the payload of an existing node.
// Returns ErrNodeNotFound if the node doesn't exist.
func (s *PGStore) UpdateNode(ctx context.Context, node *estimate.DecisionNode) error {
	if err := condition.Validate(node.Config.VisibilityRules); err != nil {
		return err
	}
	data, err := record.NodeData(node)
	if err != nil {
		return err
	}

	ct, err := s.db.Exec(ctx, `UPDATE decision_nodes SET data = $1 WHERE id = $2`, data, node.ID)
	if err != nil {
		return fmt.Errorf("estimate: update node: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return estimate.ErrNodeNotFound
	}
	return nil
}

// DeleteNode deletes a node by its ID.
// Associated edges are cascade-deleted by the DB.
// No error if the node doesn't exist.
func (s *PGStore) DeleteNode(ctx context.Context, nodeID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM decision_nodes WHERE id = $1`, nodeID); err != nil {
		return fmt.Errorf("estimate: delete node: %w", err)
	}
	return nil
}

// ListNodes returns all nodes for a graphID in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListNodes(ctx context.Context, graphID string) ([]estimate.DecisionNode, error) {
	return listNodes(ctx, s.db, graphID)
}

func listNodes(ctx context.Context, q querier, graphID string) ([]estimate.DecisionNode, error) {
	rows, err := q.Query(ctx,
		`SELECT id, data FROM decision_nodes WHERE graph_id = $1 ORDER BY seq`, graphID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list nodes: %w", err)
	}
	return scanNodes(rows)
}

func scanNodes(rows pgx.Rows) ([]estimate.DecisionNode, error) {
	defer rows.Close()

	nodes := []estimate.DecisionNode{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("estimate: scan node: %w", err)
		}
		n, err := record.Node(id, data)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("estimate: rows nodes: %w", err)
	}
	return nodes, nil
}

func insertNode(ctx context.Context, q querier, graphID string, n *estimate.DecisionNode) error {
	data, err := record.NodeData(n)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO decision_nodes (id, graph_id, data) VALUES ($1, $2, $3)`,
		n.ID, graphID, data,
	); err != nil {
		return fmt.Errorf("estimate: insert node %s: %w", n.ID, err)
	}
	return nil
}
