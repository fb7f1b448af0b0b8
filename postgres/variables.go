package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/pricing"
)

// UpsertVariable creates or replaces a variable definition after checking that
// its expression is a valid JsonLogic rule.
func (s *PGStore) UpsertVariable(ctx context.Context, projectID string, v *estimate.VariableDefinition) error {
	if err := pricing.ValidateVariable(*v); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO variable_definitions (project_id, var_key, expression, description) VALUES ($1, $2, $3, $4)
         ON CONFLICT (project_id, var_key) DO UPDATE SET expression = EXCLUDED.expression, description = EXCLUDED.description`,
		projectID, v.Key, []byte(v.Expression), v.Description,
	)
	if err != nil {
		return fmt.Errorf("estimate: upsert variable %s: %w", v.Key, err)
	}
	return nil
}

// ListVariables returns a project's variable definitions ordered by key.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListVariables(ctx context.Context, projectID string) ([]estimate.VariableDefinition, error) {
	rows, err := s.db.Query(ctx,
		`SELECT var_key, expression, description FROM variable_definitions WHERE project_id = $1 ORDER BY var_key`, projectID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list variables: %w", err)
	}
	defer rows.Close()

	vars := []estimate.VariableDefinition{}
	for rows.Next() {
		var v estimate.VariableDefinition
		var expr []byte
		if err := rows.Scan(&v.Key, &expr, &v.Description); err != nil {
			return nil, fmt.Errorf("estimate: scan variable: %w", err)
		}
		v.Expression = expr
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("estimate: rows variables: %w", err)
	}
	return vars, nil
}

// DeleteVariable removes a variable definition.
// No error if it doesn't exist.
func (s *PGStore) DeleteVariable(ctx context.Context, projectID, varKey string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM variable_definitions WHERE project_id = $1 AND var_key = $2`, projectID, varKey,
	); err != nil {
		return fmt.Errorf("estimate: delete variable: %w", err)
	}
	return nil
}
