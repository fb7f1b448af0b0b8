package sqlite

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
func (s *Store) SavePricingGraph(ctx context.Context, g *estimate.PricingGraph) error {
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
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO pricing_graphs (id, project_id, lines) VALUES (?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET project_id = excluded.project_id, lines = excluded.lines,
             updated_at = CURRENT_TIMESTAMP`,
		g.ID, g.ProjectID, string(lines),
	); err != nil {
		return fmt.Errorf("estimate: save pricing graph: %w", err)
	}
	return nil
}

// GetPricingGraph fetches a pricing graph by its ID.
// Returns nil, nil if not found.
func (s *Store) GetPricingGraph(ctx context.Context, graphID string) (*estimate.PricingGraph, error) {
	g := &estimate.PricingGraph{ID: graphID}
	var lines string
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, lines FROM pricing_graphs WHERE id = ?`, graphID,
	).Scan(&g.ProjectID, &lines)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate: get pricing graph: %w", err)
	}
	if err := json.Unmarshal([]byte(lines), &g.Lines); err != nil {
		return nil, fmt.Errorf("estimate: decode pricing graph %s: %w", graphID, err)
	}
	return g, nil
}

// DeletePricingGraph removes a pricing graph.
// No error if it doesn't exist.
func (s *Store) DeletePricingGraph(ctx context.Context, graphID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pricing_graphs WHERE id = ?`, graphID); err != nil {
		return fmt.Errorf("estimate: delete pricing graph: %w", err)
	}
	return nil
}

func (s *Store) projectPricingGraphs(ctx context.Context, projectID string) ([]estimate.PricingGraph, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lines FROM pricing_graphs WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list pricing graphs: %w", err)
	}
	defer rows.Close()

	var graphs []estimate.PricingGraph
	for rows.Next() {
		g := estimate.PricingGraph{ProjectID: projectID}
		var lines string
		if err := rows.Scan(&g.ID, &lines); err != nil {
			return nil, fmt.Errorf("estimate: scan pricing graph: %w", err)
		}
		if err := json.Unmarshal([]byte(lines), &g.Lines); err != nil {
			return nil, fmt.Errorf("estimate: decode pricing graph %s: %w", g.ID, err)
		}
		graphs = append(graphs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("estimate: rows pricing graphs: %w", err)
	}
	return graphs, nil
}

// UpsertVariable creates or replaces a variable definition after checking that
// its expression is a valid JsonLogic rule.
func (s *Store) UpsertVariable(ctx context.Context, projectID string, v *estimate.VariableDefinition) error {
	if err := pricing.ValidateVariable(*v); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO variable_definitions (project_id, var_key, expression, description) VALUES (?, ?, ?, ?)
         ON CONFLICT (project_id, var_key) DO UPDATE SET expression = excluded.expression, description = excluded.description`,
		projectID, v.Key, string(v.Expression), v.Description,
	); err != nil {
		return fmt.Errorf("estimate: upsert variable %s: %w", v.Key, err)
	}
	return nil
}

// ListVariables returns a project's variable definitions ordered by key.
// Returns an empty slice (not nil) if none found.
func (s *Store) ListVariables(ctx context.Context, projectID string) ([]estimate.VariableDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT var_key, expression, description FROM variable_definitions WHERE project_id = ? ORDER BY var_key`, projectID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list variables: %w", err)
	}
	defer rows.Close()

	vars := []estimate.VariableDefinition{}
	for rows.Next() {
		var v estimate.VariableDefinition
		var expr string
		if err := rows.Scan(&v.Key, &expr, &v.Description); err != nil {
			return nil, fmt.Errorf("estimate: scan variable: %w", err)
		}
		v.Expression = json.RawMessage(expr)
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("estimate: rows variables: %w", err)
	}
	return vars, nil
}

// DeleteVariable removes a variable definition.
// No error if it doesn't exist.
func (s *Store) DeleteVariable(ctx context.Context, projectID, varKey string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM variable_definitions WHERE project_id = ? AND var_key = ?`, projectID, varKey,
	); err != nil {
		return fmt.Errorf("estimate: delete variable: %w", err)
	}
	return nil
}
