// Package partition implements the per-directory embedded partition
// store (spec §4.1): a self-contained database holding nodes, edges,
// and partition metadata for one namespace-scoped slice of the code
// graph.
package partition

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/codeprysm/codeprysm/internal/graph"
)

// driverName is the database/sql driver registered by
// github.com/ncruces/go-sqlite3/driver.
const driverName = "sqlite3"

// Stats summarizes a partition's contents (spec §4.1: "stats(node_count,
// edge_count, partition_id)").
type Stats struct {
	NodeCount   int
	EdgeCount   int
	PartitionID string
}

// Store wraps one partition database file.
type Store struct {
	db          *sql.DB
	partitionID string
	logger      *slog.Logger
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open partition db: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return db, nil
}

// Create creates a new partition database at path with the full v1.1
// schema and records its partition_id metadata (spec §4.1).
func Create(path, partitionID string, logger *slog.Logger) (*Store, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := setMetadata(db, "schema_version", SchemaVersionCurrent); err != nil {
		db.Close()
		return nil, err
	}
	if err := setMetadata(db, "partition_id", partitionID); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, partitionID: partitionID, logger: logger}, nil
}

// Open opens an existing partition database, verifying (and if
// necessary migrating) its schema version. A v1.0 database is migrated
// additively in place to v1.1; any other mismatch is a fatal schema
// error (spec §4.1, §7).
func Open(path, expectedPartitionID string, logger *slog.Logger) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat partition db: %w", err)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	version, err := getMetadata(db, "schema_version")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	switch version {
	case SchemaVersionCurrent:
		// Nothing to do.
	case SchemaVersionV1:
		if logger != nil {
			logger.Warn("migrating legacy partition schema", "partition_id", expectedPartitionID, "from", SchemaVersionV1, "to", SchemaVersionCurrent)
		}
		if err := migrateV1ToV11(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	default:
		db.Close()
		return nil, &SchemaVersionMismatchError{Expected: SchemaVersionCurrent, Found: version}
	}
	return &Store{db: db, partitionID: expectedPartitionID, logger: logger}, nil
}

func migrateV1ToV11(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`ALTER TABLE edges ADD COLUMN version_spec TEXT`); err != nil {
		return fmt.Errorf("add version_spec column: %w", err)
	}
	if _, err := tx.Exec(`ALTER TABLE edges ADD COLUMN is_dev_dependency INTEGER`); err != nil {
		return fmt.Errorf("add is_dev_dependency column: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO partition_metadata(key, value) VALUES('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, SchemaVersionCurrent); err != nil {
		return fmt.Errorf("write schema_version: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PartitionID returns the partition ID this store was opened/created
// with.
func (s *Store) PartitionID() string {
	return s.partitionID
}

func setMetadata(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT INTO partition_metadata(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

func getMetadata(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM partition_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// InsertNode inserts or replaces a single node.
func (s *Store) InsertNode(ctx context.Context, n *graph.Node) error {
	return insertNode(ctx, s.db, n)
}

func insertNode(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, n *graph.Node) error {
	metaJSON, err := metadataJSON(n.Metadata)
	if err != nil {
		return fmt.Errorf("serialize metadata for %s: %w", n.ID, err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO nodes(id, name, node_type, kind, subtype, file, line, end_line, text, hash, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, node_type=excluded.node_type, kind=excluded.kind,
			subtype=excluded.subtype, file=excluded.file, line=excluded.line,
			end_line=excluded.end_line, text=excluded.text, hash=excluded.hash,
			metadata_json=excluded.metadata_json
	`, n.ID, nameOf(n), string(n.NodeType), n.Kind, n.Subtype, n.File, n.Line, n.EndLine, n.Text, nullableString(n.Hash), metaJSON)
	if err != nil {
		return fmt.Errorf("insert node %s: %w", n.ID, err)
	}
	return nil
}

func nameOf(n *graph.Node) string {
	// Name is derived from the ID's last path segment for display
	// purposes; producers that want a distinct display name should set
	// Metadata.Extra["name"].
	if n.Metadata.Extra != nil {
		if name, ok := n.Metadata.Extra["name"]; ok {
			return name
		}
	}
	if idx := strings.LastIndexByte(n.ID, ':'); idx >= 0 {
		return n.ID[idx+1:]
	}
	return n.ID
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// GetNode retrieves a single node by ID, or ErrNotFound.
func (s *Store) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, node_type, kind, subtype, file, line, end_line, text, hash, metadata_json
		FROM nodes WHERE id = ?`, id)
	var r nodeRow
	if err := row.Scan(&r.ID, &r.Name, &r.NodeType, &r.Kind, &r.Subtype, &r.File, &r.Line, &r.EndLine, &r.Text, &r.Hash, &r.MetadataJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	return r.toNode(s.logger), nil
}

// DeleteNode removes a node by ID.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	return nil
}

// InsertEdge inserts an edge, ignoring duplicates by the (source,
// target, edge_type, ref_line) unique key (spec §3.2).
func (s *Store) InsertEdge(ctx context.Context, e *graph.Edge) error {
	return insertEdge(ctx, s.db, e)
}

func insertEdge(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, e *graph.Edge) error {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO edges(source, target, edge_type, ref_line, ident, version_spec, is_dev_dependency)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM edges WHERE source = ? AND target = ? AND edge_type = ? AND ref_line IS ?
		)
		ON CONFLICT(source, target, edge_type, ref_line) DO NOTHING
	`, e.Source, e.Target, string(e.EdgeType), nullableInt(e.RefLine), nullableString(e.Ident), nullableString(e.VersionSpec), boolToInt(e.IsDevDependency),
		e.Source, e.Target, string(e.EdgeType), nullableInt(e.RefLine))
	if err != nil {
		return fmt.Errorf("insert edge %s->%s: %w", e.Source, e.Target, err)
	}
	return nil
}

func nullableInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DeleteEdge removes a single edge by its dedup key.
func (s *Store) DeleteEdge(ctx context.Context, e *graph.Edge) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM edges WHERE source = ? AND target = ? AND edge_type = ? AND ref_line IS ?
	`, e.Source, e.Target, string(e.EdgeType), nullableInt(e.RefLine))
	if err != nil {
		return fmt.Errorf("delete edge %s->%s: %w", e.Source, e.Target, err)
	}
	return nil
}

// QueryAllNodes returns every node in this partition.
func (s *Store) QueryAllNodes(ctx context.Context) ([]*graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, node_type, kind, subtype, file, line, end_line, text, hash, metadata_json FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("query all nodes: %w", err)
	}
	defer rows.Close()

	var out []*graph.Node
	for rows.Next() {
		var r nodeRow
		if err := rows.Scan(&r.ID, &r.Name, &r.NodeType, &r.Kind, &r.Subtype, &r.File, &r.Line, &r.EndLine, &r.Text, &r.Hash, &r.MetadataJSON); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, r.toNode(s.logger))
	}
	return out, rows.Err()
}

// QueryAllEdges returns every edge in this partition.
func (s *Store) QueryAllEdges(ctx context.Context) ([]*graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, target, edge_type, ref_line, ident, version_spec, is_dev_dependency FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("query all edges: %w", err)
	}
	defer rows.Close()

	var out []*graph.Edge
	for rows.Next() {
		var r edgeRow
		if err := rows.Scan(&r.Source, &r.Target, &r.EdgeType, &r.RefLine, &r.Ident, &r.VersionSpec, &r.IsDevDependency); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, r.toEdge())
	}
	return out, rows.Err()
}

// BulkInsert inserts all nodes and edges under a single transaction
// (spec §4.1: "writes must occur under a single transaction for bulk
// operations").
func (s *Store) BulkInsert(ctx context.Context, nodes []*graph.Node, edges []*graph.Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, n := range nodes {
		if err := insertNode(ctx, tx, n); err != nil {
			return err
		}
	}
	for _, e := range edges {
		if err := insertEdge(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteByFile removes every node and edge whose file matches path,
// including edges incident to those nodes (used by incremental
// repartitioning, spec §4.7 update_partition).
func (s *Store) DeleteByFile(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete by file: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `SELECT id FROM nodes WHERE file = ?`, path)
	if err != nil {
		return fmt.Errorf("select nodes for file %s: %w", path, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE source = ? OR target = ?`, id, id); err != nil {
			return fmt.Errorf("delete edges for node %s: %w", id, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE file = ?`, path); err != nil {
		return fmt.Errorf("delete nodes for file %s: %w", path, err)
	}
	return tx.Commit()
}

// Count returns the current node and edge counts.
func (s *Store) Count(ctx context.Context) (nodeCount, edgeCount int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&nodeCount); err != nil {
		return 0, 0, fmt.Errorf("count nodes: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&edgeCount); err != nil {
		return 0, 0, fmt.Errorf("count edges: %w", err)
	}
	return nodeCount, edgeCount, nil
}

// Stats returns node/edge counts plus the stored partition_id.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	nodeCount, edgeCount, err := s.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{NodeCount: nodeCount, EdgeCount: edgeCount, PartitionID: s.partitionID}, nil
}

// ClearDataKeepSchema deletes all node and edge rows but leaves the
// schema and partition_metadata in place (used to rewrite a partition
// end-to-end during incremental repartitioning, spec §4.7
// update_partition).
func (s *Store) ClearDataKeepSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges`); err != nil {
		return fmt.Errorf("clear edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}
	return tx.Commit()
}
