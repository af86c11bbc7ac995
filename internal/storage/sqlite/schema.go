// ABOUTME: SQLite database schema for the answer cache and ingest log
// ABOUTME: Creates all tables and indexes for local bookkeeping
package sqlite

// Schema contains all SQL statements for database initialization.
// Timestamps are stored as Unix nanoseconds.
const Schema = `
-- Cached generated answers keyed by normalized question hash
CREATE TABLE IF NOT EXISTS answer_cache (
    key TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    sources TEXT,
    category TEXT,
    degraded INTEGER DEFAULT 0,
    created_at INTEGER NOT NULL
);

-- One row per ingestion run
CREATE TABLE IF NOT EXISTS ingest_runs (
    id TEXT PRIMARY KEY,
    dir TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'running',
    documents INTEGER DEFAULT 0,
    chunks INTEGER DEFAULT 0,
    error TEXT,
    started_at INTEGER NOT NULL,
    finished_at INTEGER
);

-- Per-document outcome of a run
CREATE TABLE IF NOT EXISTS ingest_documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES ingest_runs(id) ON DELETE CASCADE,
    source TEXT NOT NULL,
    pages INTEGER DEFAULT 0,
    chunks INTEGER DEFAULT 0,
    content_hash TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_answer_cache_created ON answer_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_ingest_documents_run ON ingest_documents(run_id);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 2

// migrations bring databases created by older schema versions up to date.
// Each entry adds one column when the table lacks it.
var migrations = []struct {
	table  string
	column string
	ddl    string
}{
	{"ingest_documents", "content_hash", "ALTER TABLE ingest_documents ADD COLUMN content_hash TEXT"},
}
