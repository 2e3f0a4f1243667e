package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bdgould/shiny-sub001/internal/ontology"
	"go.uber.org/zap"
)

// StoreCache replaces the cache for cache.Metadata.BackendID in a single
// transaction. The previous cache survives if anything fails.
func (d *DB) StoreCache(ctx context.Context, cache *ontology.Cache) error {
	if cache == nil || cache.Metadata.BackendID == "" {
		return fmt.Errorf("storing cache: backend id is required")
	}
	id := cache.Metadata.BackendID

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storing cache %s: %w", id, err)
	}
	defer tx.Rollback()

	if err := deleteCache(ctx, tx, id); err != nil {
		return fmt.Errorf("storing cache %s: %w", id, err)
	}

	stats := cache.ComputeStats()
	m := cache.Metadata
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cache_metadata (backend_id, last_updated, ttl_ms, schema_version,
			class_count, property_count, individual_count, namespace_count, total_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, m.LastUpdated.UnixMilli(), m.TTL.Milliseconds(), m.SchemaVersion,
		stats.ClassCount, stats.PropertyCount, stats.IndividualCount, stats.NamespaceCount, stats.TotalCount); err != nil {
		return fmt.Errorf("storing cache %s metadata: %w", id, err)
	}

	if err := insertElements(ctx, tx, cache); err != nil {
		return fmt.Errorf("storing cache %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cache %s: %w", id, err)
	}
	d.logger.Debug("cache stored", zap.String("backend", id), zap.Int("elements", stats.TotalCount))
	return nil
}

func insertElements(ctx context.Context, tx *sql.Tx, cache *ontology.Cache) error {
	id := cache.Metadata.BackendID

	for i, c := range cache.Classes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ontology_classes (backend_id, position, `+resourceColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, i, c.IRI, nullable(c.Label), nullable(c.Description), nullable(c.Namespace), nullable(c.LocalName)); err != nil {
			return fmt.Errorf("inserting class %s: %w", c.IRI, err)
		}
	}

	for i, p := range cache.Properties {
		domain, err := encodeIRIs(p.Domain)
		if err != nil {
			return err
		}
		rng, err := encodeIRIs(p.Range)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ontology_properties (backend_id, position, `+resourceColumns+`,
				property_type, domain_json, range_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, p.IRI, nullable(p.Label), nullable(p.Description), nullable(p.Namespace), nullable(p.LocalName),
			string(p.PropertyType), domain, rng); err != nil {
			return fmt.Errorf("inserting property %s: %w", p.IRI, err)
		}
	}

	for i, ind := range cache.Individuals {
		classes, err := encodeIRIs(ind.Classes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ontology_individuals (backend_id, position, `+resourceColumns+`, classes_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, ind.IRI, nullable(ind.Label), nullable(ind.Description), nullable(ind.Namespace), nullable(ind.LocalName),
			classes); err != nil {
			return fmt.Errorf("inserting individual %s: %w", ind.IRI, err)
		}
	}

	for prefix, uri := range cache.Namespaces {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ontology_namespaces (backend_id, prefix, uri) VALUES (?, ?, ?)
		`, id, prefix, uri); err != nil {
			return fmt.Errorf("inserting namespace %s: %w", prefix, err)
		}
	}
	return nil
}

func deleteCache(ctx context.Context, tx *sql.Tx, backendID string) error {
	for _, table := range elementTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE backend_id = ?`, backendID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_metadata WHERE backend_id = ?`, backendID); err != nil {
		return fmt.Errorf("clearing cache_metadata: %w", err)
	}
	return nil
}

// GetMetadata returns the cache metadata for backendID, or nil if no cache
// is stored.
func (d *DB) GetMetadata(ctx context.Context, backendID string) (*ontology.Metadata, error) {
	return getMetadata(ctx, d.conn, backendID)
}

func getMetadata(ctx context.Context, q querier, backendID string) (*ontology.Metadata, error) {
	var (
		m                 ontology.Metadata
		lastUpdated, ttl int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT backend_id, last_updated, ttl_ms, schema_version,
		       class_count, property_count, individual_count, namespace_count, total_count
		FROM cache_metadata WHERE backend_id = ?
	`, backendID).Scan(&m.BackendID, &lastUpdated, &ttl, &m.SchemaVersion,
		&m.Stats.ClassCount, &m.Stats.PropertyCount, &m.Stats.IndividualCount, &m.Stats.NamespaceCount, &m.Stats.TotalCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache metadata for %s: %w", backendID, err)
	}
	m.LastUpdated = time.UnixMilli(lastUpdated).UTC()
	m.TTL = time.Duration(ttl) * time.Millisecond
	return &m, nil
}

// GetCache returns the stored cache for backendID, or nil if there is none.
func (d *DB) GetCache(ctx context.Context, backendID string) (*ontology.Cache, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("reading cache %s: %w", backendID, err)
	}
	defer tx.Rollback()

	m, err := getMetadata(ctx, tx, backendID)
	if err != nil || m == nil {
		return nil, err
	}

	cache := &ontology.Cache{Metadata: *m}
	if cache.Classes, err = loadClasses(ctx, tx, backendID, ""); err != nil {
		return nil, fmt.Errorf("reading classes for %s: %w", backendID, err)
	}
	if cache.Properties, err = loadProperties(ctx, tx, backendID, ""); err != nil {
		return nil, fmt.Errorf("reading properties for %s: %w", backendID, err)
	}
	if cache.Individuals, err = loadIndividuals(ctx, tx, backendID, ""); err != nil {
		return nil, fmt.Errorf("reading individuals for %s: %w", backendID, err)
	}

	if cache.Namespaces, err = loadNamespaces(ctx, tx, backendID); err != nil {
		return nil, err
	}
	return cache, nil
}

// ClearCache deletes the cache for backendID. Clearing a missing cache is
// not an error.
func (d *DB) ClearCache(ctx context.Context, backendID string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clearing cache %s: %w", backendID, err)
	}
	defer tx.Rollback()

	if err := deleteCache(ctx, tx, backendID); err != nil {
		return fmt.Errorf("clearing cache %s: %w", backendID, err)
	}
	return tx.Commit()
}

// ClearAllCaches deletes every stored cache.
func (d *DB) ClearAllCaches(ctx context.Context) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clearing caches: %w", err)
	}
	defer tx.Rollback()

	for _, table := range append(elementTables, "cache_metadata") {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// ListCachedBackendIDs returns the ids of all backends with a stored cache.
func (d *DB) ListCachedBackendIDs(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT backend_id FROM cache_metadata ORDER BY backend_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetNamespaces returns the prefix table of backendID's cache. It is empty
// when no cache is stored.
func (d *DB) GetNamespaces(ctx context.Context, backendID string) (map[string]string, error) {
	return loadNamespaces(ctx, d.conn, backendID)
}

func loadNamespaces(ctx context.Context, q querier, backendID string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT prefix, uri FROM ontology_namespaces WHERE backend_id = ?`, backendID)
	if err != nil {
		return nil, fmt.Errorf("reading namespaces for %s: %w", backendID, err)
	}
	defer rows.Close()

	namespaces := map[string]string{}
	for rows.Next() {
		var prefix, uri string
		if err := rows.Scan(&prefix, &uri); err != nil {
			return nil, err
		}
		namespaces[prefix] = uri
	}
	return namespaces, rows.Err()
}
