package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed-width UTC timestamps so text comparison in SQL orders correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists jobs in a SQLite file so results survive restarts and
// are shared between the API process and separate workers.
type SQLiteStore struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// OpenSQLite opens (creating if needed) the job database at path.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, log: log.With(slog.String("component", "job-store")), clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    result TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    chunks_total INTEGER NOT NULL DEFAULT 0,
    chunks_failed INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    started_at TEXT NOT NULL DEFAULT '',
    completed_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_jobs_status_completed ON jobs(status, completed_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init job schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) now() string {
	return s.clock().UTC().Format(timeLayout)
}

func (s *SQLiteStore) Create(ctx context.Context, job Job) error {
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(id, status, created_at) VALUES(?, ?, ?)`,
		job.ID, string(job.Status), job.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, result, error, chunks_total, chunks_failed, created_at, started_at, completed_at
		 FROM jobs WHERE id = ?`, id)

	var job Job
	var status, created, started, completed string
	err := row.Scan(&job.ID, &status, &job.Result, &job.Error, &job.ChunksTotal, &job.ChunksFailed,
		&created, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}

	job.Status = Status(status)
	job.CreatedAt = parseTime(created)
	job.StartedAt = parseTime(started)
	job.CompletedAt = parseTime(completed)
	return job, nil
}

func (s *SQLiteStore) Start(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(StatusRunning), s.now(), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("start job %s: %w", id, err)
	}
	return s.checkUpdated(ctx, res, id, StatusRunning)
}

func (s *SQLiteStore) Finish(ctx context.Context, id string, out Outcome) error {
	if err := out.validate(); err != nil {
		return err
	}

	from := []any{string(StatusRunning)}
	if out.Status == StatusFailed {
		from = append(from, string(StatusPending))
	} else {
		from = append(from, string(StatusRunning))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = ?, error = ?, chunks_total = ?, chunks_failed = ?, completed_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		append([]any{string(out.Status), out.Result, out.Error, out.ChunksTotal, out.ChunksFailed, s.now(), id}, from...)...)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	return s.checkUpdated(ctx, res, id, out.Status)
}

// checkUpdated turns a zero-row update into ErrNotFound or ErrInvalidTransition.
func (s *SQLiteStore) checkUpdated(ctx context.Context, res sql.Result, id string, to Status) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, id, job.Status, to)
}

func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND completed_at != '' AND completed_at < ?`,
		string(StatusSucceeded), string(StatusFailed), cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("pruned jobs", slog.Int64("count", n))
	}
	return int(n), nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	ts, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return ts
}
