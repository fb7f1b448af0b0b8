package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/condition"
	"github.com/meikuraledutech/estimate/decision"
	"github.com/meikuraledutech/estimate/internal/record"
)

// CreateDecisionGraph saves a full decision graph (nodes + edges) in one
// transaction, replacing any graph stored under the same ID. IDs and refs are
// resolved as the postgres store does, and the graph must pass decision.Check.
func (s *Store) CreateDecisionGraph(ctx context.Context, g *estimate.DecisionGraph) (*estimate.DecisionGraph, error) {
	if err := g.ResolveRefs(); err != nil {
		return nil, err
	}
	if err := decision.Check(g.Nodes, g.Edges); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("estimate: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decision_graphs (id, project_id) VALUES (?, ?)
         ON CONFLICT (id) DO UPDATE SET project_id = excluded.project_id`,
		g.ID, g.ProjectID,
	); err != nil {
		return nil, fmt.Errorf("estimate: upsert graph: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM decision_edges WHERE graph_id = ?`, g.ID); err != nil {
		return nil, fmt.Errorf("estimate: delete edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM decision_nodes WHERE graph_id = ?`, g.ID); err != nil {
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

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("estimate: commit: %w", err)
	}
	return g, nil
}

// GetDecisionGraph retrieves a full decision graph by its ID.
// Returns nil, nil if the graph doesn't exist.
func (s *Store) GetDecisionGraph(ctx context.Context, graphID string) (*estimate.DecisionGraph, error) {
	g := &estimate.DecisionGraph{ID: graphID}
	err := s.db.QueryRowContext(ctx, `SELECT project_id FROM decision_graphs WHERE id = ?`, graphID).Scan(&g.ProjectID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate: get graph: %w", err)
	}
	if g.Nodes, err = listNodes(ctx, s.db, `WHERE graph_id = ?`, graphID); err != nil {
		return nil, err
	}
	if g.Edges, err = listEdges(ctx, s.db, graphID); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteDecisionGraph removes a graph with all its nodes and edges.
// No error if the graph doesn't exist.
func (s *Store) DeleteDecisionGraph(ctx context.Context, graphID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM decision_graphs WHERE id = ?`, graphID); err != nil {
		return fmt.Errorf("estimate: delete graph: %w", err)
	}
	return nil
}

// AddNode inserts a single node into a decision graph.
// If node.ID is empty, a UUID is auto-generated.
func (s *Store) AddNode(ctx context.Context, graphID string, node *estimate.DecisionNode) (string, error) {
	if err := condition.Validate(node.Config.VisibilityRules); err != nil {
		return "", err
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	node.Ref = ""

	if err := graphExists(ctx, s.db, graphID); err != nil {
		return "", err
	}
	if err := insertNode(ctx, s.db, graphID, node); err != nil {
		return "", err
	}
	return node.ID, nil
}

// GetNode fetches a single node by its ID.
// Returns nil, nil if not found.
func (s *Store) GetNode(ctx context.Context, nodeID string) (*estimate.DecisionNode, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM decision_nodes WHERE id = ?`, nodeID).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate: get node: %w", err)
	}
	n, err := record.Node(nodeID, []byte(data))
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNode replaces the payload of an existing node.
// Returns ErrNodeNotFound if the node doesn't exist.
func (s *Store) UpdateNode(ctx context.Context, node *estimate.DecisionNode) error {
	if err := condition.Validate(node.Config.VisibilityRules); err != nil {
		return err
	}
	data, err := record.NodeData(node)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE decision_nodes SET data = ? WHERE id = ?`, string(data), node.ID)
	if err != nil {
		return fmt.Errorf("estimate: update node: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return estimate.ErrNodeNotFound
	}
	return nil
}

// DeleteNode deletes a node by its ID; its edges cascade.
// No error if the node doesn't exist.
func (s *Store) DeleteNode(ctx context.Context, nodeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM decision_nodes WHERE id = ?`, nodeID); err != nil {
		return fmt.Errorf("estimate: delete node: %w", err)
	}
	return nil
}

// ListNodes returns all nodes for a graphID in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *Store) ListNodes(ctx context.Context, graphID string) ([]estimate.DecisionNode, error) {
	return listNodes(ctx, s.db, `WHERE graph_id = ?`, graphID)
}

// AddEdge inserts a single edge after checking its condition, its endpoints
// and that it does not close a cycle.
func (s *Store) AddEdge(ctx context.Context, graphID string, edge *estimate.DecisionEdge) (string, error) {
	if err := condition.Validate(edge.Condition); err != nil {
		return "", err
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	edge.FromNodeRef, edge.ToNodeRef = "", ""

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("estimate: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := graphExists(ctx, tx, graphID); err != nil {
		return "", err
	}
	nodes, err := listNodes(ctx, tx, `WHERE graph_id = ?`, graphID)
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
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("estimate: commit: %w", err)
	}
	return edge.ID, nil
}

// GetEdge fetches a single edge by its ID.
// Returns nil, nil if not found.
func (s *Store) GetEdge(ctx context.Context, edgeID string) (*estimate.DecisionEdge, error) {
	var from, to, data string
	err := s.db.QueryRowContext(ctx,
		`SELECT from_node_id, to_node_id, data FROM decision_edges WHERE id = ?`, edgeID,
	).Scan(&from, &to, &data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate: get edge: %w", err)
	}
	e, err := record.Edge(edgeID, from, to, []byte(data))
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEdge updates an existing edge's endpoints, condition and priority.
// Returns ErrEdgeNotFound if the edge doesn't exist.
func (s *Store) UpdateEdge(ctx context.Context, edge *estimate.DecisionEdge) error {
	if err := condition.Validate(edge.Condition); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("estimate: begin tx: %w", err)
	}
	defer tx.Rollback()

	var graphID string
	err = tx.QueryRowContext(ctx, `SELECT graph_id FROM decision_edges WHERE id = ?`, edge.ID).Scan(&graphID)
	if err != nil {
		if isNoRows(err) {
			return estimate.ErrEdgeNotFound
		}
		return fmt.Errorf("estimate: find edge: %w", err)
	}
	nodes, err := listNodes(ctx, tx, `WHERE graph_id = ?`, graphID)
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
	if _, err := tx.ExecContext(ctx,
		`UPDATE decision_edges SET from_node_id = ?, to_node_id = ?, data = ? WHERE id = ?`,
		edge.FromNodeID, edge.ToNodeID, string(data), edge.ID,
	); err != nil {
		return fmt.Errorf("estimate: update edge: %w", err)
	}
	return tx.Commit()
}

// DeleteEdge deletes an edge by its ID.
// No error if the edge doesn't exist.
func (s *Store) DeleteEdge(ctx context.Context, edgeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM decision_edges WHERE id = ?`, edgeID); err != nil {
		return fmt.Errorf("estimate: delete edge: %w", err)
	}
	return nil
}

// ListEdges returns all edges for a graphID in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *Store) ListEdges(ctx context.Context, graphID string) ([]estimate.DecisionEdge, error) {
	return listEdges(ctx, s.db, graphID)
}

func (s *Store) projectNodes(ctx context.Context, projectID string) ([]estimate.DecisionNode, error) {
	return listNodes(ctx, s.db,
		`WHERE graph_id IN (SELECT id FROM decision_graphs WHERE project_id = ?)`, projectID)
}

func graphExists(ctx context.Context, q queryer, graphID string) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM decision_graphs WHERE id = ?`, graphID).Scan(&n); err != nil {
		return fmt.Errorf("estimate: find graph: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", estimate.ErrGraphNotFound, graphID)
	}
	return nil
}

// listNodes reads nodes matching where in insertion order.
func listNodes(ctx context.Context, q queryer, where string, args ...any) ([]estimate.DecisionNode, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, data FROM decision_nodes `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("estimate: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []estimate.DecisionNode{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("estimate: scan node: %w", err)
		}
		n, err := record.Node(id, []byte(data))
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

func listEdges(ctx context.Context, q queryer, graphID string) ([]estimate.DecisionEdge, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, from_node_id, to_node_id, data FROM decision_edges WHERE graph_id = ? ORDER BY seq`, graphID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list edges: %w", err)
	}
	defer rows.Close()

	edges := []estimate.DecisionEdge{}
	for rows.Next() {
		var id, from, to, data string
		if err := rows.Scan(&id, &from, &to, &data); err != nil {
			return nil, fmt.Errorf("estimate: scan edge: %w", err)
		}
		e, err := record.Edge(id, from, to, []byte(data))
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

func insertNode(ctx context.Context, q queryer, graphID string, n *estimate.DecisionNode) error {
	data, err := record.NodeData(n)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO decision_nodes (id, graph_id, data) VALUES (?, ?, ?)`, n.ID, graphID, string(data),
	); err != nil {
		return fmt.Errorf("estimate: insert node %s: %w", n.ID, err)
	}
	return nil
}

func insertEdge(ctx context.Context, q queryer, graphID string, e *estimate.DecisionEdge) error {
	data, err := record.EdgeData(e)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO decision_edges (id, graph_id, from_node_id, to_node_id, data) VALUES (?, ?, ?, ?, ?)`,
		e.ID, graphID, e.FromNodeID, e.ToNodeID, string(data),
	); err != nil {
		return fmt.Errorf("estimate: insert edge %s: %w", e.ID, err)
	}
	return nil
}
