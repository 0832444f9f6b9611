// Package history keeps a SQLite ledger of finished batches.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"vidspeed/internal/logger"
	"vidspeed/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	dbFileName = "history.db"
	// fixed width so text order matches time order
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

var ErrNotFound = errors.New("batch not found")

type Store struct {
	db *sql.DB
}

// BatchRecord is one row of the ledger.
type BatchRecord struct {
	ID         string    `json:"id"`
	Speed      float64   `json:"speed"`
	OutputDir  string    `json:"output_dir"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	Abandoned  int       `json:"abandoned"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

// Open opens (creating if needed) the ledger in stateDir and migrates it.
func Open(stateDir string) (*Store, error) {
	registerHook()

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(stateDir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	goose.SetLogger(logger.Debug)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordBatch stores the summary and its jobs in one transaction.
func (s *Store) RecordBatch(ctx context.Context, summary model.BatchSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (id, speed, output_dir, total, completed, failed, abandoned, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.BatchID, summary.Speed, summary.OutputDir,
		summary.Total, summary.Completed, summary.Failed, summary.Abandoned,
		formatTime(summary.StartedAt), formatTime(summary.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", summary.BatchID, err)
	}

	for _, j := range summary.Jobs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO jobs (batch_id, job_index, input_path, output_path, status, exit_code, crashed, error_message, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.BatchID, j.Index, j.InputPath, j.OutputPath, string(j.Status),
			j.ExitCode, j.Crashed, j.ErrorMessage,
			formatTime(j.StartedAt), formatTime(j.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("insert job %d: %w", j.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns the most recent batches first. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]BatchRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, speed, output_dir, total, completed, failed, abandoned, started_at, finished_at
		FROM batches
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		var r BatchRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Speed, &r.OutputDir, &r.Total, &r.Completed, &r.Failed, &r.Abandoned, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Jobs returns the jobs recorded for batchID in queue order.
func (s *Store) Jobs(ctx context.Context, batchID string) ([]model.Job, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE id = ?`, batchID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("lookup batch: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_index, input_path, output_path, status, exit_code, crashed, error_message, started_at, finished_at
		FROM jobs WHERE batch_id = ? ORDER BY job_index`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		var j model.Job
		var status, started, finished string
		if err := rows.Scan(&j.Index, &j.InputPath, &j.OutputPath, &status, &j.ExitCode, &j.Crashed, &j.ErrorMessage, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Status = model.JobStatus(status)
		j.StartedAt = parseTime(started)
		j.FinishedAt = parseTime(finished)
		out = append(out, j)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
