package db

import (
	"context"
	"fmt"
)

// Every element table is partitioned by backend_id so one cache can be
// dropped in bulk. position keeps discovery order.
const schema = `
CREATE TABLE IF NOT EXISTS cache_metadata (
	backend_id       TEXT PRIMARY KEY,
	last_updated     INTEGER NOT NULL,
	ttl_ms           INTEGER NOT NULL,
	schema_version   INTEGER NOT NULL,
	class_count      INTEGER NOT NULL DEFAULT 0,
	property_count   INTEGER NOT NULL DEFAULT 0,
	individual_count INTEGER NOT NULL DEFAULT 0,
	namespace_count  INTEGER NOT NULL DEFAULT 0,
	total_count      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ontology_classes (
	backend_id  TEXT NOT NULL REFERENCES cache_metadata(backend_id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	iri         TEXT NOT NULL,
	label       TEXT,
	description TEXT,
	namespace   TEXT,
	local_name  TEXT,
	PRIMARY KEY (backend_id, iri)
);

CREATE TABLE IF NOT EXISTS ontology_properties (
	backend_id    TEXT NOT NULL REFERENCES cache_metadata(backend_id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	iri           TEXT NOT NULL,
	label         TEXT,
	description   TEXT,
	namespace     TEXT,
	local_name    TEXT,
	property_type TEXT NOT NULL,
	domain_json   TEXT,
	range_json    TEXT,
	PRIMARY KEY (backend_id, iri)
);

CREATE TABLE IF NOT EXISTS ontology_individuals (
	backend_id   TEXT NOT NULL REFERENCES cache_metadata(backend_id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	iri          TEXT NOT NULL,
	label        TEXT,
	description  TEXT,
	namespace    TEXT,
	local_name   TEXT,
	classes_json TEXT,
	PRIMARY KEY (backend_id, iri)
);

CREATE TABLE IF NOT EXISTS ontology_namespaces (
	backend_id TEXT NOT NULL REFERENCES cache_metadata(backend_id) ON DELETE CASCADE,
	prefix     TEXT NOT NULL,
	uri        TEXT NOT NULL,
	PRIMARY KEY (backend_id, prefix)
);

CREATE INDEX IF NOT EXISTS idx_classes_position ON ontology_classes(backend_id, position);
CREATE INDEX IF NOT EXISTS idx_properties_position ON ontology_properties(backend_id, position);
CREATE INDEX IF NOT EXISTS idx_individuals_position ON ontology_individuals(backend_id, position);
`

// elementTables lists the per-backend partitions, children first.
var elementTables = []string{
	"ontology_classes",
	"ontology_properties",
	"ontology_individuals",
	"ontology_namespaces",
}

func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating cache schema: %w", err)
	}
	return nil
}
