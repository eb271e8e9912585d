package crossref

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/codeprysm/codeprysm/internal/graph"
)

const driverName = "sqlite3"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS cross_refs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id TEXT NOT NULL,
	source_partition TEXT NOT NULL,
	target_id TEXT NOT NULL,
	target_partition TEXT NOT NULL,
	edge_type TEXT NOT NULL,
	ref_line INTEGER,
	ident TEXT,
	version_spec TEXT,
	is_dev_dependency INTEGER,
	UNIQUE(source_id, target_id, edge_type, ref_line)
);

CREATE TABLE IF NOT EXISTS cross_refs_metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE INDEX IF NOT EXISTS idx_cross_refs_source ON cross_refs(source_id);
CREATE INDEX IF NOT EXISTS idx_cross_refs_target ON cross_refs(target_id);
CREATE INDEX IF NOT EXISTS idx_cross_refs_source_partition ON cross_refs(source_partition);
CREATE INDEX IF NOT EXISTS idx_cross_refs_target_partition ON cross_refs(target_partition);
`

// Store persists the cross_refs.db database (spec §6.3).
type Store struct {
	db *sql.DB
}

// Open opens or creates the cross-ref database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open cross-ref db: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO cross_refs_metadata(key, value) VALUES('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, SchemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("write schema_version: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAll replaces the table's entire contents with refs, inside a
// single transaction (spec §4.2).
func (s *Store) SaveAll(ctx context.Context, refs []CrossRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save_all: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM cross_refs`); err != nil {
		return fmt.Errorf("clear cross_refs: %w", err)
	}
	for _, r := range refs {
		if err := insertOne(ctx, tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AddRefs performs a best-effort insert-ignore of refs, leaving
// existing rows untouched (spec §4.2).
func (s *Store) AddRefs(ctx context.Context, refs []CrossRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add_refs: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range refs {
		if err := insertOne(ctx, tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertOne(ctx context.Context, tx *sql.Tx, r CrossRef) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cross_refs(source_id, source_partition, target_id, target_partition, edge_type, ref_line, ident, version_spec, is_dev_dependency)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM cross_refs WHERE source_id = ? AND target_id = ? AND edge_type = ? AND ref_line IS ?
		)
		ON CONFLICT(source_id, target_id, edge_type, ref_line) DO NOTHING
	`, r.SourceID, r.SourcePartition, r.TargetID, r.TargetPartition, string(r.EdgeType), nullableInt(r.RefLine), nullableString(r.Ident), nullableString(r.VersionSpec), boolToInt(r.IsDevDependency),
		r.SourceID, r.TargetID, string(r.EdgeType), nullableInt(r.RefLine))
	if err != nil {
		return fmt.Errorf("insert cross-ref %s->%s: %w", r.SourceID, r.TargetID, err)
	}
	return nil
}

// LoadAll returns every cross-ref currently persisted.
func (s *Store) LoadAll(ctx context.Context) ([]CrossRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, source_partition, target_id, target_partition, edge_type, ref_line, ident, version_spec, is_dev_dependency
		FROM cross_refs`)
	if err != nil {
		return nil, fmt.Errorf("load all cross-refs: %w", err)
	}
	defer rows.Close()

	var out []CrossRef
	for rows.Next() {
		var (
			r           CrossRef
			edgeType    string
			refLine     sql.NullInt64
			ident       sql.NullString
			versionSpec sql.NullString
			isDev       sql.NullInt64
		)
		if err := rows.Scan(&r.SourceID, &r.SourcePartition, &r.TargetID, &r.TargetPartition, &edgeType, &refLine, &ident, &versionSpec, &isDev); err != nil {
			return nil, fmt.Errorf("scan cross-ref: %w", err)
		}
		r.EdgeType = graph.NormalizeEdgeType(edgeType)
		r.RefLine = int(refLine.Int64)
		r.Ident = ident.String
		r.VersionSpec = versionSpec.String
		r.IsDevDependency = isDev.Int64 != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
