package sqlite

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/estimate"
)

// UpsertFactDefinition creates or replaces a fact definition. Its enum options
// are replaced wholesale, so a type change away from enum clears them.
func (s *Store) UpsertFactDefinition(ctx context.Context, projectID string, def *estimate.FactDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("estimate: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fact_definitions (project_id, fact_key, fact_type) VALUES (?, ?, ?)
         ON CONFLICT (project_id, fact_key) DO UPDATE SET fact_type = excluded.fact_type`,
		projectID, def.Key, string(def.Type),
	); err != nil {
		return fmt.Errorf("estimate: upsert fact %s: %w", def.Key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fact_enum_options WHERE project_id = ? AND fact_key = ?`, projectID, def.Key,
	); err != nil {
		return fmt.Errorf("estimate: clear enum options: %w", err)
	}
	for _, o := range def.EnumOptions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fact_enum_options (project_id, fact_key, value, label, ordinal) VALUES (?, ?, ?, ?, ?)`,
			projectID, def.Key, o.Value, o.Label, o.Ordinal,
		); err != nil {
			return fmt.Errorf("estimate: insert enum option %s: %w", o.Value, err)
		}
	}
	return tx.Commit()
}

// GetFactDefinition fetches one fact definition with its enum options.
// Returns nil, nil if not found.
func (s *Store) GetFactDefinition(ctx context.Context, projectID, factKey string) (*estimate.FactDefinition, error) {
	def := estimate.FactDefinition{Key: factKey}
	var typ string
	err := s.db.QueryRowContext(ctx,
		`SELECT fact_type FROM fact_definitions WHERE project_id = ? AND fact_key = ?`, projectID, factKey,
	).Scan(&typ)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate: get fact: %w", err)
	}
	def.Type = estimate.FactType(typ)

	opts, err := enumOptions(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	def.EnumOptions = opts[factKey]
	return &def, nil
}

// ListFactDefinitions returns a project's fact definitions ordered by key.
// Returns an empty slice (not nil) if none found.
func (s *Store) ListFactDefinitions(ctx context.Context, projectID string) ([]estimate.FactDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fact_key, fact_type FROM fact_definitions WHERE project_id = ? ORDER BY fact_key`, projectID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list facts: %w", err)
	}
	defer rows.Close()

	defs := []estimate.FactDefinition{}
	for rows.Next() {
		var d estimate.FactDefinition
		var typ string
		if err := rows.Scan(&d.Key, &typ); err != nil {
			return nil, fmt.Errorf("estimate: scan fact: %w", err)
		}
		d.Type = estimate.FactType(typ)
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("estimate: rows facts: %w", err)
	}
	rows.Close()

	opts, err := enumOptions(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	for i := range defs {
		defs[i].EnumOptions = opts[defs[i].Key]
	}
	return defs, nil
}

// DeleteFactDefinition removes a fact definition and its enum options.
// Returns ErrFactInUse if a decision node produces the fact or a pricing
// operand reads it. No error if the fact doesn't exist.
func (s *Store) DeleteFactDefinition(ctx context.Context, projectID, factKey string) error {
	nodes, err := s.projectNodes(ctx, projectID)
	if err != nil {
		return err
	}
	graphs, err := s.projectPricingGraphs(ctx, projectID)
	if err != nil {
		return err
	}
	if estimate.FactReferenced(factKey, nodes, graphs) {
		return fmt.Errorf("%w: %s", estimate.ErrFactInUse, factKey)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM fact_definitions WHERE project_id = ? AND fact_key = ?`, projectID, factKey,
	); err != nil {
		return fmt.Errorf("estimate: delete fact: %w", err)
	}
	return nil
}

func enumOptions(ctx context.Context, q queryer, projectID string) (map[string][]estimate.EnumOption, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT fact_key, value, label, ordinal FROM fact_enum_options
         WHERE project_id = ? ORDER BY fact_key, ordinal, value`, projectID)
	if err != nil {
		return nil, fmt.Errorf("estimate: list enum options: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]estimate.EnumOption)
	for rows.Next() {
		var key string
		var o estimate.EnumOption
		if err := rows.Scan(&key, &o.Value, &o.Label, &o.Ordinal); err != nil {
			return nil, fmt.Errorf("estimate: scan enum option: %w", err)
		}
		out[key] = append(out[key], o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("estimate: rows enum options: %w", err)
	}
	return out, nil
}
