package sqlite

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS fact_definitions (
    project_id TEXT NOT NULL,
    fact_key   TEXT NOT NULL,
    fact_type  TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project_id, fact_key)
);

CREATE TABLE IF NOT EXISTS fact_enum_options (
    project_id TEXT NOT NULL,
    fact_key   TEXT NOT NULL,
    value      TEXT NOT NULL,
    label      TEXT NOT NULL DEFAULT '',
    ordinal    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (project_id, fact_key, value),
    FOREIGN KEY (project_id, fact_key)
        REFERENCES fact_definitions(project_id, fact_key) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS variable_definitions (
    project_id  TEXT NOT NULL,
    var_key     TEXT NOT NULL,
    expression  TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (project_id, var_key)
);

CREATE TABLE IF NOT EXISTS decision_graphs (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS decision_nodes (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    graph_id   TEXT NOT NULL REFERENCES decision_graphs(id) ON DELETE CASCADE,
    data       TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS decision_edges (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT NOT NULL UNIQUE,
    graph_id     TEXT NOT NULL REFERENCES decision_graphs(id) ON DELETE CASCADE,
    from_node_id TEXT NOT NULL REFERENCES decision_nodes(id) ON DELETE CASCADE,
    to_node_id   TEXT NOT NULL REFERENCES decision_nodes(id) ON DELETE CASCADE,
    data         TEXT NOT NULL DEFAULT '{}',
    created_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pricing_graphs (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    lines      TEXT NOT NULL DEFAULT '[]',
    updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_decision_graphs_project ON decision_graphs(project_id);
CREATE INDEX IF NOT EXISTS idx_decision_nodes_graph    ON decision_nodes(graph_id);
CREATE INDEX IF NOT EXISTS idx_decision_edges_graph    ON decision_edges(graph_id);
CREATE INDEX IF NOT EXISTS idx_decision_edges_from     ON decision_edges(from_node_id);
CREATE INDEX IF NOT EXISTS idx_decision_edges_to       ON decision_edges(to_node_id);
CREATE INDEX IF NOT EXISTS idx_pricing_graphs_project  ON pricing_graphs(project_id);
`

// CreateSchema creates the engine's tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropSchema drops every table CreateSchema creates, children first.
func (s *Store) DropSchema(ctx context.Context) error {
	for _, t := range []string{
		"decision_edges", "decision_nodes", "decision_graphs", "pricing_graphs",
		"variable_definitions", "fact_enum_options", "fact_definitions",
	} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return err
		}
	}
	return nil
}
