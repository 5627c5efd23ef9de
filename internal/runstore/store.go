// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runstore persists audit run records in SQLite: timing, artifact
// metadata, the final result and the thinking log. The watcher's raw
// output is never stored.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/veragate/pkg/types"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at cfg.Path and ensures the schema
// exists.
func Open(cfg types.StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("store path is empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			processing_ms INTEGER NOT NULL DEFAULT 0,
			video_name TEXT,
			video_type TEXT,
			video_size INTEGER,
			document_name TEXT,
			document_type TEXT,
			document_size INTEGER,
			prompt_version TEXT,
			parse_fallback INTEGER NOT NULL DEFAULT 0,
			result TEXT,
			error TEXT,
			contradiction_count INTEGER NOT NULL DEFAULT 0,
			verified_fact_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS thinking (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			agent TEXT NOT NULL,
			phase TEXT NOT NULL,
			content TEXT NOT NULL,
			ts TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_thinking_run_id ON thinking(run_id, seq)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Create records a run that has just started.
func (s *Store) Create(ctx context.Context, run types.Run) error {
	if run.Status == "" {
		run.Status = types.RunRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at, video_name, video_type, video_size,
			document_name, document_type, document_size, prompt_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), formatTime(run.StartedAt),
		run.Video.Name, run.Video.MediaType, run.Video.Size,
		run.Document.Name, run.Document.MediaType, run.Document.Size,
		run.PromptVersion,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// Finish stores the terminal state of a run together with its thinking log.
func (s *Store) Finish(ctx context.Context, run types.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		resultJSON     sql.NullString
		contradictions int
		facts          int
	)
	if run.Result != nil {
		data, err := json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
		contradictions = len(run.Result.Contradictions)
		facts = len(run.Result.VerifiedFacts)
	}

	finished := ""
	if run.FinishedAt != nil {
		finished = formatTime(*run.FinishedAt)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, processing_ms = ?, parse_fallback = ?,
			result = ?, error = ?, contradiction_count = ?, verified_fact_count = ?
		 WHERE id = ?`,
		string(run.Status), finished, run.ProcessingMS, run.ParseFallback,
		resultJSON, run.Error, contradictions, facts, run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run %s: %w", run.ID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM thinking WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clearing thinking log: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO thinking (run_id, seq, agent, phase, content, ts) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range run.ThinkingLog {
		if _, err := stmt.ExecContext(ctx, run.ID, i, string(e.Agent), string(e.Phase), e.Content, formatTime(e.Timestamp)); err != nil {
			return fmt.Errorf("inserting thinking entry %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Get returns the full record of one run.
func (s *Store) Get(ctx context.Context, id string) (types.Run, error) {
	var (
		run                                                   types.Run
		status                                                string
		startedAt                                             string
		finishedAt                                            sql.NullString
		videoName, videoType, docName, docType, promptVersion sql.NullString
		videoSize, docSize                                    sql.NullInt64
		resultJSON                                            sql.NullString
		errMsg                                                sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, finished_at, processing_ms,
			video_name, video_type, video_size, document_name, document_type, document_size,
			prompt_version, parse_fallback, result, error
		 FROM runs WHERE id = ?`, id,
	).Scan(
		&run.ID, &status, &startedAt, &finishedAt, &run.ProcessingMS,
		&videoName, &videoType, &videoSize, &docName, &docType, &docSize,
		&promptVersion, &run.ParseFallback, &resultJSON, &errMsg,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, ErrNotFound
	}
	if err != nil {
		return types.Run{}, fmt.Errorf("querying run %s: %w", id, err)
	}

	run.Status = types.RunStatus(status)
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid && finishedAt.String != "" {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	run.Video = types.ArtifactInfo{Name: videoName.String, MediaType: videoType.String, Size: videoSize.Int64}
	run.Document = types.ArtifactInfo{Name: docName.String, MediaType: docType.String, Size: docSize.Int64}
	run.PromptVersion = promptVersion.String
	run.Error = errMsg.String
	if resultJSON.Valid {
		var r types.AuditResult
		if err := json.Unmarshal([]byte(resultJSON.String), &r); err != nil {
			return types.Run{}, fmt.Errorf("decoding result of run %s: %w", id, err)
		}
		r.Normalize()
		run.Result = &r
	}

	log, err := s.thinkingLog(ctx, id)
	if err != nil {
		return types.Run{}, err
	}
	run.ThinkingLog = log
	return run, nil
}

func (s *Store) thinkingLog(ctx context.Context, id string) ([]types.ThinkingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent, phase, content, ts FROM thinking WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying thinking log: %w", err)
	}
	defer rows.Close()

	entries := []types.ThinkingEntry{}
	for rows.Next() {
		var agent, phase, content, ts string
		if err := rows.Scan(&agent, &phase, &content, &ts); err != nil {
			return nil, fmt.Errorf("scanning thinking entry: %w", err)
		}
		entries = append(entries, types.ThinkingEntry{
			Agent: types.Agent(agent), Phase: types.Phase(phase), Content: content, Timestamp: parseTime(ts),
		})
	}
	return entries, rows.Err()
}

// List returns the most recent runs first. A non-positive limit selects
// the default of 20; limits above 500 are capped.
func (s *Store) List(ctx context.Context, limit int) ([]types.RunSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, processing_ms, video_name, document_name,
			contradiction_count, verified_fact_count
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	summaries := []types.RunSummary{}
	for rows.Next() {
		var (
			rs                 types.RunSummary
			status, startedAt  string
			videoName, docName sql.NullString
		)
		if err := rows.Scan(&rs.ID, &status, &startedAt, &rs.ProcessingMS, &videoName, &docName,
			&rs.ContradictionCount, &rs.VerifiedFactCount); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rs.Status = types.RunStatus(status)
		rs.StartedAt = parseTime(startedAt)
		rs.VideoName = videoName.String
		rs.DocumentName = docName.String
		summaries = append(summaries, rs)
	}
	return summaries, rows.Err()
}

// timeLayout is fixed-width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
