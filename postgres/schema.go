package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS fact_definitions (
    project_id TEXT NOT NULL,
    fact_key   TEXT NOT NULL,
    fact_type  TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
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
    expression  JSONB NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (project_id, var_key)
);

CREATE TABLE IF NOT EXISTS decision_graphs (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS decision_nodes (
    id         TEXT PRIMARY KEY,
    graph_id   TEXT NOT NULL REFERENCES decision_graphs(id) ON DELETE CASCADE,
    seq        BIGSERIAL,
    data       JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS decision_edges (
    id           TEXT PRIMARY KEY,
    graph_id     TEXT NOT NULL REFERENCES decision_graphs(id) ON DELETE CASCADE,
    from_node_id TEXT NOT NULL REFERENCES decision_nodes(id) ON DELETE CASCADE,
    to_node_id   TEXT NOT NULL REFERENCES decision_nodes(id) ON DELETE CASCADE,
    seq          BIGSERIAL,
    data         JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pricing_graphs (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    lines      JSONB NOT NULL DEFAULT '[]',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_decision_graphs_project ON decision_graphs(project_id);
CREATE INDEX IF NOT EXISTS idx_decision_nodes_graph    ON decision_nodes(graph_id);
CREATE INDEX IF NOT EXISTS idx_decision_edges_graph    ON decision_edges(graph_id);
CREATE INDEX IF NOT EXISTS idx_decision_edges_from     ON decision_edges(from_node_id);
CREATE INDEX IF NOT EXISTS idx_decision_edges_to       ON decision_edges(to_node_id);
CREATE INDEX IF NOT EXISTS idx_pricing_graphs_project  ON pricing_graphs(project_id);
`

// CreateSchema creates the engine's tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops every table CreateSchema creates.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS
    decision_edges, decision_nodes, decision_graphs, pricing_graphs,
    variable_definitions, fact_enum_options, fact_definitions CASCADE;`)
	return err
}
