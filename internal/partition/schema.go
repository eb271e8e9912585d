package partition

// SchemaVersionV1 is the legacy schema, missing the DependsOn-specific
// edge columns. SchemaVersionCurrent is the schema this store writes
// and reads natively.
const (
	SchemaVersionV1      = "1.0"
	SchemaVersionCurrent = "1.1"
)

// schemaDDL creates the full v1.1 schema (spec §6.2): nodes, edges,
// partition_metadata plus the indexes on nodes.file, edges.source,
// edges.target.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	name TEXT,
	node_type TEXT NOT NULL,
	kind TEXT,
	subtype TEXT,
	file TEXT NOT NULL,
	line INTEGER,
	end_line INTEGER,
	text TEXT,
	hash TEXT,
	metadata_json TEXT
);

CREATE TABLE IF NOT EXISTS edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	edge_type TEXT NOT NULL,
	ref_line INTEGER,
	ident TEXT,
	version_spec TEXT,
	is_dev_dependency INTEGER,
	UNIQUE(source, target, edge_type, ref_line)
);

CREATE TABLE IF NOT EXISTS partition_metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
`

// schemaDDLv1 is the legacy v1.0 edges table, missing version_spec and
// is_dev_dependency, kept only so migration tests can construct a
// pre-migration database.
const schemaDDLv1 = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	name TEXT,
	node_type TEXT NOT NULL,
	kind TEXT,
	subtype TEXT,
	file TEXT NOT NULL,
	line INTEGER,
	end_line INTEGER,
	text TEXT,
	hash TEXT,
	metadata_json TEXT
);

CREATE TABLE IF NOT EXISTS edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	edge_type TEXT NOT NULL,
	ref_line INTEGER,
	ident TEXT,
	UNIQUE(source, target, edge_type, ref_line)
);

CREATE TABLE IF NOT EXISTS partition_metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
`

// pragmas configures WAL journaling, a >=64MiB read cache, and
// memory-mapped reads, per spec §4.1.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA cache_size=-65536", // 64 MiB, negative = KiB
	"PRAGMA mmap_size=268435456",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}
