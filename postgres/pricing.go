package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/pricing"
)

// SavePricingGraph creates or replaces a pricing graph. The graph must
// compile: every line and operand is valid and the line dependencies are
// acyclic.
func (s *PGStore) SavePricingGraph(ctx context.Context, g *estimate.PricingGraph) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if _, err := pricing.Compile(g); err != nil {
		return err
	}
	lines, err := json.Marshal(g.Lines)
	if err != nil {
		return fmt.Errorf("estimate: encode lines: %w", err)
	}

	if _, err := s.db.Exec(ctx,
		`INSERT INTO pricing_graphs (id, project_id, lines) VALUES ($1, $2, $3)
         ON CONFLICT (id) DO UPDATE SET project_id = EXCLUDED.project_id, lines = EXCLUDED.lines, updated_at = NOW()`,
		g.ID, g.ProjectID, lines,
	); err != nil {
		return fmt.Errorf("estimate: save pricing graph: %w", err)
	}
	return nil
}

// GetPricingGraph fetches a pricing graph by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetPricingGraph(ctx context.Context, graphID string) (*estimate.PricingGraph, error) {
	g := &estimate.PricingGraph{ID: graphID}
	var lines []byte
	err := s.db.QueryRow(ctx,
		`SELECT project_id, lines FROM pricing_graphs WHERE id = $1`, graphID,
	).Scan(&g.ProjectID, &lines)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate: get pricing graph: %w", err)
	}
	if err := json.Unmarshal(lines, &g.Lines); err != nil {
		return nil, fmt.Errorf("estimate: decode pricing graph %s: %w", graphID, err)
	}
	return g, nil
}

// DeletePricingGraph removes a pricing graph.
// No error if it doesn't exist.
func (s *PGStore) DeletePricingGraph(ctx context.Context, graphID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM pricing_graphs WHERE id = $1`, graphID); err != nil {
		return fmt.Errorf("estimate: delete pricing graph: %w", err)
	}
	return nil
}

func (s *PGStore) projectPricingGraphs(ctx context.Context, projectID string) ([]estimate.PricingGraph, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, lines FROM pricing_graphs WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list pricing graphs: %w", err)
	}
	defer rows.Close()

	var graphs []estimate.PricingGraph
	for rows.Next() {
		g := estimate.PricingGraph{ProjectID: projectID}
		var lines []byte
		if err := rows.Scan(&g.ID, &lines); err != nil {
			return nil, fmt.Errorf("estimate: scan pricing graph: %w", err)
		}
		if err := json.Unmarshal(lines, &g.Lines); err != nil {
			return nil, fmt.Errorf("estimate: decode pricing graph %s: %w", g.ID, err)
		}
		graphs = append(graphs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("estimate: rows pricing graphs: %w", err)
	}
	return graphs, nil
}
