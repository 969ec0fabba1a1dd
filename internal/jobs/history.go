package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"autodub/internal/pipeline"
)

// History is an append-only journal of terminal job records backed by
// SQLite. It exists for the `jobs history` command and post-mortems; the
// registry never consults it for control flow.
type History struct {
	db   *sql.DB
	path string
}

// OpenHistory initializes or connects to the history database.
func OpenHistory(dir string) (*History, error) {
	dbPath := filepath.Join(dir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS job_history (
        id TEXT PRIMARY KEY,
        source TEXT NOT NULL,
        source_language TEXT,
        target_language TEXT NOT NULL,
        clone_voices INTEGER NOT NULL DEFAULT 0,
        status TEXT NOT NULL,
        progress INTEGER NOT NULL,
        output_path TEXT,
        error TEXT,
        created_at TEXT NOT NULL,
        finished_at TEXT NOT NULL
    )`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &History{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Record appends one terminal job record. Re-recording the same job id
// replaces the earlier row.
func (h *History) Record(ctx context.Context, job Job) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO job_history (
            id, source, source_language, target_language, clone_voices,
            status, progress, output_path, error, created_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Source,
		nullableString(job.SourceLanguage),
		job.TargetLanguage,
		boolToInt(job.CloneVoices),
		string(job.Status),
		job.Progress,
		nullableString(job.OutputPath),
		nullableString(job.Error),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record job history: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, source, source_language, target_language, clone_voices,
                status, progress, output_path, error, created_at, finished_at
        FROM job_history ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	defer rows.Close()

	var list []Job
	for rows.Next() {
		job, err := scanHistoryRow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job history: %w", err)
	}
	return list, nil
}

func scanHistoryRow(rows *sql.Rows) (Job, error) {
	var job Job
	var sourceLanguage, outputPath, jobError sql.NullString
	var cloneVoices int
	var status, createdAt, finishedAt string

	if err := rows.Scan(
		&job.ID, &job.Source, &sourceLanguage, &job.TargetLanguage, &cloneVoices,
		&status, &job.Progress, &outputPath, &jobError, &createdAt, &finishedAt,
	); err != nil {
		return Job{}, fmt.Errorf("scan job history row: %w", err)
	}

	job.SourceLanguage = sourceLanguage.String
	job.OutputPath = outputPath.String
	job.Error = jobError.String
	job.CloneVoices = cloneVoices != 0
	job.Status = pipeline.Stage(status)
	if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		job.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339Nano, finishedAt); err == nil {
		job.UpdatedAt = parsed
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
