// ABOUTME: Ingest log storage recording each ingestion run and its documents
// ABOUTME: Runs are keyed by UUID and keep a per-document outcome for auditing
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// IngestRun is one recorded ingestion run
type IngestRun struct {
	ID         string            `yaml:"id" json:"id"`
	Dir        string            `yaml:"dir" json:"dir"`
	Status     string            `yaml:"status" json:"status"`
	Documents  int               `yaml:"documents" json:"documents"`
	Chunks     int               `yaml:"chunks" json:"chunks"`
	Error      string            `yaml:"error,omitempty" json:"error,omitempty"`
	StartedAt  time.Time         `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time         `yaml:"finished_at,omitempty" json:"finished_at,omitempty"`
	Outcomes   []DocumentOutcome `yaml:"outcomes,omitempty" json:"outcomes,omitempty"`
}

// DocumentOutcome is what happened to one document during a run
type DocumentOutcome struct {
	Source string `yaml:"source" json:"source"`
	Pages  int    `yaml:"pages" json:"pages"`
	Chunks int    `yaml:"chunks" json:"chunks"`
	Hash   string `yaml:"hash,omitempty" json:"hash,omitempty"`
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`
}

// IngestLog handles ingest run persistence
type IngestLog struct {
	db  *DB
	now func() time.Time
}

// NewIngestLog creates a new IngestLog
func NewIngestLog(db *DB) *IngestLog {
	return &IngestLog{db: db, now: time.Now}
}

// StartRun records a new running run and returns its ID
func (l *IngestLog) StartRun(dir string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.Exec(`
		INSERT INTO ingest_runs (id, dir, status, started_at)
		VALUES (?, ?, ?, ?)
	`, id, dir, RunRunning, l.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to start ingest run: %w", err)
	}
	return id, nil
}

// RecordDocument stores the outcome of one document
func (l *IngestLog) RecordDocument(runID string, outcome DocumentOutcome) error {
	_, err := l.db.Exec(`
		INSERT INTO ingest_documents (run_id, source, pages, chunks, content_hash, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, outcome.Source, outcome.Pages, outcome.Chunks, nullString(outcome.Hash), nullString(outcome.Error))
	if err != nil {
		return fmt.Errorf("failed to record document %s: %w", outcome.Source, err)
	}
	return nil
}

// FinishRun marks a run succeeded, or failed when runErr is non-nil
func (l *IngestLog) FinishRun(runID string, documents, chunks int, runErr error) error {
	status := RunSucceeded
	errText := ""
	if runErr != nil {
		status = RunFailed
		errText = runErr.Error()
	}

	res, err := l.db.Exec(`
		UPDATE ingest_runs
		SET status = ?, documents = ?, chunks = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, status, documents, chunks, nullString(errText), l.now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish ingest run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ingest run %s not found", runID)
	}
	return nil
}

// Get returns a run with its document outcomes, or nil if unknown
func (l *IngestLog) Get(runID string) (*IngestRun, error) {
	runs, err := l.queryRuns("WHERE id = ?", runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	run := &runs[0]
	if run.Outcomes, err = l.outcomes(run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// LastRun returns the most recently started run, or nil if none exists
func (l *IngestLog) LastRun() (*IngestRun, error) {
	runs, err := l.Recent(1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return l.Get(runs[0].ID)
}

// Recent lists up to limit runs, newest first, without document outcomes
func (l *IngestLog) Recent(limit int) ([]IngestRun, error) {
	if limit <= 0 {
		limit = 10
	}
	return l.queryRuns("ORDER BY started_at DESC LIMIT ?", limit)
}

func (l *IngestLog) queryRuns(clause string, args ...interface{}) ([]IngestRun, error) {
	rows, err := l.db.Query(`
		SELECT id, dir, status, documents, chunks, error, started_at, finished_at
		FROM ingest_runs
	`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []IngestRun
	for rows.Next() {
		var (
			run        IngestRun
			errText    sql.NullString
			startedAt  int64
			finishedAt sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &run.Dir, &run.Status, &run.Documents, &run.Chunks,
			&errText, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		run.Error = errText.String
		run.StartedAt = time.Unix(0, startedAt)
		if finishedAt.Valid {
			run.FinishedAt = time.Unix(0, finishedAt.Int64)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (l *IngestLog) outcomes(runID string) ([]DocumentOutcome, error) {
	rows, err := l.db.Query(`
		SELECT source, pages, chunks, content_hash, error
		FROM ingest_documents
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var outcomes []DocumentOutcome
	for rows.Next() {
		var (
			o       DocumentOutcome
			hash    sql.NullString
			errText sql.NullString
		)
		if err := rows.Scan(&o.Source, &o.Pages, &o.Chunks, &hash, &errText); err != nil {
			return nil, err
		}
		o.Hash = hash.String
		o.Error = errText.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// TrackedHashes maps each document ingested without error by the latest
// successful run to its content hash. Documents recorded without a hash are
// left out. It is empty when no run has succeeded.
func (l *IngestLog) TrackedHashes() (map[string]string, error) {
	rows, err := l.db.Query(`
		SELECT source, content_hash
		FROM ingest_documents
		WHERE run_id = (
			SELECT id FROM ingest_runs
			WHERE status = ?
			ORDER BY started_at DESC
			LIMIT 1
		)
		AND error IS NULL
		AND content_hash IS NOT NULL
	`, RunSucceeded)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracked hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hashes := make(map[string]string)
	for rows.Next() {
		var source, hash string
		if err := rows.Scan(&source, &hash); err != nil {
			return nil, err
		}
		hashes[source] = hash
	}
	return hashes, rows.Err()
}

// nullString maps empty strings to NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
