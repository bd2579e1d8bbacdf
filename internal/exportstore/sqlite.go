package exportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/daimoniac/covdocs/internal/defects"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the export database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// _foreign_keys=1: CASCADE DELETE from runs to defects
	// mode=rwc: Read/Write/Create mode
	// _journal_mode=WAL: concurrent readers alongside the single writer
	// _busy_timeout=3000: wait up to 3 seconds for locks
	connStr := dbPath + "?_foreign_keys=1&mode=rwc&_journal_mode=WAL&_busy_timeout=3000"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check foreign keys status: %w", err)
	}
	if fkEnabled != 1 {
		db.Close()
		return nil, fmt.Errorf("foreign keys are not enabled (got %d, expected 1)", fkEnabled)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stream TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		defect_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (cast(strftime('%s', 'now') as integer))
	);

	CREATE TABLE IF NOT EXISTS run_defects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		cid INTEGER NOT NULL,
		checker TEXT NOT NULL,
		classification TEXT NOT NULL,
		action TEXT,
		status TEXT,
		component TEXT,
		impact TEXT,
		kind TEXT,
		cwe TEXT,
		file_path TEXT,
		line_number INTEGER,
		comment TEXT,
		external_reference TEXT,
		properties_json TEXT, -- JSON object of extra checker columns
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_stream ON runs(stream);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_run_defects_run ON run_defects(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_defects_cid ON run_defects(cid);
	CREATE INDEX IF NOT EXISTS idx_run_defects_classification ON run_defects(classification);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordRun saves a defect set under a new run in a single transaction
func (s *SQLiteStore) RecordRun(ctx context.Context, stream, snapshot string, records []defects.Record) (*Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (stream, snapshot, defect_count) VALUES (?, ?, ?)
	`, stream, snapshot, len(records))
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get run ID: %w", err)
	}

	if len(records) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_defects (
				run_id, cid, checker, classification, action, status,
				component, impact, kind, cwe, file_path, line_number,
				comment, external_reference, properties_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare defect statement: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			propertiesJSON := ""
			if len(r.CheckerProperties) > 0 {
				jsonBytes, err := json.Marshal(r.CheckerProperties)
				if err != nil {
					return nil, fmt.Errorf("failed to marshal checker properties: %w", err)
				}
				propertiesJSON = string(jsonBytes)
			}

			_, err := stmt.ExecContext(ctx,
				runID, r.CID, r.Checker, r.Classification, r.Action, r.Status,
				r.Component, r.Impact, r.Kind, r.CWE, r.FilePath, r.LineNumber,
				r.Comment, r.ExternalReference, propertiesJSON,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to insert defect: %w", err)
			}
		}
	}

	run := &Run{
		ID:          runID,
		Stream:      stream,
		Snapshot:    snapshot,
		DefectCount: len(records),
	}
	err = tx.QueryRowContext(ctx, `
		SELECT created_at FROM runs WHERE id = ?
	`, runID).Scan(&run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read run timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return run, nil
}

// GetLastRun retrieves the most recent run for a stream
func (s *SQLiteStore) GetLastRun(ctx context.Context, stream string) (*Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, stream, snapshot, defect_count, created_at
		FROM runs
		WHERE stream = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, stream).Scan(&run.ID, &run.Stream, &run.Snapshot, &run.DefectCount, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return &run, nil
}

// ListRuns returns runs matching the filter, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `
		SELECT id, stream, snapshot, defect_count, created_at
		FROM runs
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Stream != "" {
		query += " AND stream = ?"
		args = append(args, filter.Stream)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Stream, &run.Snapshot, &run.DefectCount, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

// GetDefects loads the defect records stored under a run
func (s *SQLiteStore) GetDefects(ctx context.Context, runID int64) ([]defects.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cid, checker, classification, action, status,
			component, impact, kind, cwe, file_path, line_number,
			comment, external_reference, properties_json
		FROM run_defects
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query defects: %w", err)
	}
	defer rows.Close()

	var records []defects.Record
	for rows.Next() {
		var r defects.Record
		var propertiesJSON sql.NullString

		err := rows.Scan(
			&r.CID, &r.Checker, &r.Classification, &r.Action, &r.Status,
			&r.Component, &r.Impact, &r.Kind, &r.CWE, &r.FilePath, &r.LineNumber,
			&r.Comment, &r.ExternalReference, &propertiesJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan defect row: %w", err)
		}

		if propertiesJSON.Valid && propertiesJSON.String != "" {
			if err := json.Unmarshal([]byte(propertiesJSON.String), &r.CheckerProperties); err != nil {
				return nil, fmt.Errorf("failed to unmarshal checker properties: %w", err)
			}
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating defect rows: %w", err)
	}

	return records, nil
}

// CleanupExcessRuns removes old runs for a stream, keeping the most recent N.
// Returns the number of runs deleted.
func (s *SQLiteStore) CleanupExcessRuns(ctx context.Context, stream string, maxRunsToKeep int) (int, error) {
	if maxRunsToKeep <= 0 {
		return 0, fmt.Errorf("maxRunsToKeep must be positive, got %d", maxRunsToKeep)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM runs
		WHERE stream = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, stream, maxRunsToKeep)
	if err != nil {
		return 0, fmt.Errorf("failed to query runs to keep: %w", err)
	}
	defer rows.Close()

	var keepIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan run ID: %w", err)
		}
		keepIDs = append(keepIDs, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating run IDs: %w", err)
	}

	if len(keepIDs) < maxRunsToKeep {
		// fewer runs than the limit, nothing to clean up
		return 0, tx.Commit()
	}

	placeholders := make([]string, len(keepIDs))
	args := make([]interface{}, len(keepIDs)+1)
	args[0] = stream
	for i, id := range keepIDs {
		placeholders[i] = "?"
		args[i+1] = id
	}

	deleteQuery := fmt.Sprintf(`
		DELETE FROM runs
		WHERE stream = ? AND id NOT IN (%s)
	`, strings.Join(placeholders, ","))

	result, err := tx.ExecContext(ctx, deleteQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete excess runs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted rows count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup transaction: %w", err)
	}

	return int(deleted), nil
}
