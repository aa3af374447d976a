package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spiralhq/doomspiral/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements SessionStore using SQLite, giving transcripts and
// request counts restart durability.
type SQLiteStore struct {
	db          *sql.DB
	quotaWindow time.Duration
}

// NewSQLite creates a SQLite-backed session store at dbPath. quotaWindow has
// the same meaning as for NewMemory.
func NewSQLite(dbPath string, quotaWindow time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, quotaWindow: quotaWindow}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS turns (
		user_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, seq)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		last_active_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active_at);

	CREATE TABLE IF NOT EXISTS request_counts (
		user_id TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		window_start_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// History returns the transcript for a user, oldest turn first.
func (s *SQLiteStore) History(ctx context.Context, userID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM turns WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var role string
		if err := rows.Scan(&role, &t.Content); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Role = domain.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

// AppendTurn appends one turn and marks the session active.
func (s *SQLiteStore) AppendTurn(ctx context.Context, userID string, turn domain.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (user_id, seq, role, content, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE user_id = ?), ?, ?, ?)`,
		userID, userID, string(turn.Role), turn.Content, now)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (user_id, last_active_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_active_at = excluded.last_active_at`,
		userID, now)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// CountUserTurns counts user-authored turns in the transcript.
func (s *SQLiteStore) CountUserTurns(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE user_id = ? AND role = ?`,
		userID, string(domain.RoleUser)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count user turns: %w", err)
	}
	return n, nil
}

// ClearHistory removes the session and its transcript.
func (s *SQLiteStore) ClearHistory(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// IncrementRequestCount increments and returns the user's request count for
// the current quota window.
func (s *SQLiteStore) IncrementRequestCount(ctx context.Context, userID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var count int
	var windowStart int64
	err = tx.QueryRowContext(ctx,
		`SELECT count, window_start_at FROM request_counts WHERE user_id = ?`,
		userID).Scan(&count, &windowStart)
	switch {
	case err == sql.ErrNoRows:
		count = 0
		windowStart = now.Unix()
	case err != nil:
		return 0, fmt.Errorf("query request count: %w", err)
	}

	if s.quotaWindow > 0 && now.Sub(time.Unix(windowStart, 0)) >= s.quotaWindow {
		count = 0
		windowStart = now.Unix()
	}
	count++

	_, err = tx.ExecContext(ctx, `
		INSERT INTO request_counts (user_id, count, window_start_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			count = excluded.count,
			window_start_at = excluded.window_start_at`,
		userID, count, windowStart)
	if err != nil {
		return 0, fmt.Errorf("upsert request count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit increment: %w", err)
	}
	return count, nil
}

// RequestCount returns the current count without incrementing.
func (s *SQLiteStore) RequestCount(ctx context.Context, userID string) (int, error) {
	var count int
	var windowStart int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count, window_start_at FROM request_counts WHERE user_id = ?`,
		userID).Scan(&count, &windowStart)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query request count: %w", err)
	}
	if s.quotaWindow > 0 && time.Since(time.Unix(windowStart, 0)) >= s.quotaWindow {
		return 0, nil
	}
	return count, nil
}

// ResetRequestCount clears the user's request count.
func (s *SQLiteStore) ResetRequestCount(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM request_counts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete request count: %w", err)
	}
	return nil
}

// CleanupIdleSessions removes transcripts idle longer than idleFor.
func (s *SQLiteStore) CleanupIdleSessions(ctx context.Context, idleFor time.Duration) (int64, error) {
	cutoff := time.Now().Add(-idleFor).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM turns WHERE user_id IN
			(SELECT user_id FROM sessions WHERE last_active_at < ?)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete idle turns: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE last_active_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count removed sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return removed, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
