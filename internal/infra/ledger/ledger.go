// Package ledger implements the shared checkpoint ledger on SQLite.
//
// The ledger records which pipeline stages have completed which fetch
// ids. Marking a stage complete is a targeted INSERT, not a full-file
// read-modify-write, so two racing stage invocations cannot lose each
// other's updates; the UNIQUE constraint makes the transition at most
// once and irreversible.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// OriginStage is the predecessor name meaning "the ledger entry itself
// exists"; the origin stage has no completion row of its own.
const OriginStage = "fetch"

// ErrNoWork signals that no entry qualifies for processing. It is a
// normal outcome, not a failure.
var ErrNoWork = errors.New("no unprocessed ledger entry")

// SelectionPolicy controls which unprocessed entry a stage picks.
type SelectionPolicy string

const (
	// SelectOldestFirst processes entries in append order, skipping
	// entries whose attempts reached the dead-letter cutoff.
	SelectOldestFirst SelectionPolicy = "fifo"

	// SelectNewestFirst reproduces the legacy behavior: always take the
	// most recently appended qualifying entry. Older unprocessed
	// entries may starve if new ones keep arriving.
	SelectNewestFirst SelectionPolicy = "newest"
)

// Entry is one checkpoint ledger row.
type Entry struct {
	Seq       int64
	FetchID   string
	CreatedAt string
}

// EntryStatus is an Entry plus its per-stage completion set, used by
// the status command to surface stalled work.
type EntryStatus struct {
	Entry
	Completed map[string]string // stage -> completed_at
}

// Config configures a Ledger.
type Config struct {
	Path            string
	Policy          SelectionPolicy
	DeadLetterAfter int // attempts before an entry is skipped under fifo; 0 disables
}

// Ledger is the SQLite-backed checkpoint ledger.
type Ledger struct {
	db     *sql.DB
	policy SelectionPolicy
	cutoff int
}

// Open opens (creating if absent) the ledger database and applies the
// schema. A missing file is never fatal; it is a ledger with no entries.
func Open(cfg Config) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", cfg.Path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}

	policy := cfg.Policy
	if policy == "" {
		policy = SelectOldestFirst
	}
	return &Ledger{db: db, policy: policy, cutoff: cfg.DeadLetterAfter}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

// CreateEntry appends a new entry with no stage completions. Called
// exactly once by the origin stage when a new fetch frame is produced.
func (l *Ledger) CreateEntry(ctx context.Context, fetchID, createdAt string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO fetch_entries (fetch_id, created_at) VALUES (?, ?)`,
		fetchID, createdAt,
	)
	if err != nil {
		return fmt.Errorf("create ledger entry %s: %w", fetchID, err)
	}
	return nil
}

// FindUnprocessed returns an entry whose predecessor stage is completed
// and whose own stage is not, according to the selection policy.
// Returns ErrNoWork when nothing qualifies.
func (l *Ledger) FindUnprocessed(ctx context.Context, stage, predecessor string) (*Entry, error) {
	order := "ASC"
	if l.policy == SelectNewestFirst {
		order = "DESC"
	}

	// Dead-letter skipping only applies to the fifo policy; newest-first
	// documents the legacy behavior unchanged.
	cutoff := l.cutoff
	if l.policy == SelectNewestFirst || cutoff <= 0 {
		cutoff = 1 << 30
	}

	query := fmt.Sprintf(`
		SELECT e.seq, e.fetch_id, e.created_at
		FROM fetch_entries e
		WHERE NOT EXISTS (
			SELECT 1 FROM stage_completions c
			WHERE c.fetch_id = e.fetch_id AND c.stage = ?1
		)
		AND (?2 = '%s' OR EXISTS (
			SELECT 1 FROM stage_completions p
			WHERE p.fetch_id = e.fetch_id AND p.stage = ?2
		))
		AND COALESCE((
			SELECT a.attempts FROM stage_attempts a
			WHERE a.fetch_id = e.fetch_id AND a.stage = ?1
		), 0) < ?3
		ORDER BY e.seq %s
		LIMIT 1
	`, OriginStage, order)

	var e Entry
	err := l.db.QueryRowContext(ctx, query, stage, predecessor, cutoff).
		Scan(&e.Seq, &e.FetchID, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoWork
	}
	if err != nil {
		return nil, fmt.Errorf("find unprocessed for %s: %w", stage, err)
	}
	return &e, nil
}

// MarkCompleted records that stage finished fetchID. The insert is
// ignored if the row already exists, so the transition happens at most
// once and can never revert to "not completed".
func (l *Ledger) MarkCompleted(ctx context.Context, fetchID, stage string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO stage_completions (fetch_id, stage, completed_at)
		 VALUES (?, ?, ?)`,
		fetchID, stage, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("mark %s completed for %s: %w", stage, fetchID, err)
	}
	return nil
}

// Completed reports whether stage has completed fetchID.
func (l *Ledger) Completed(ctx context.Context, fetchID, stage string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stage_completions WHERE fetch_id = ? AND stage = ?`,
		fetchID, stage,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query completion %s/%s: %w", fetchID, stage, err)
	}
	return n > 0, nil
}

// RecordAttempt bumps the attempt counter a stage has made against an
// entry. Under the fifo policy an entry whose counter reaches the
// dead-letter cutoff is skipped by FindUnprocessed.
func (l *Ledger) RecordAttempt(ctx context.Context, fetchID, stage string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO stage_attempts (fetch_id, stage, attempts, last_attempt_at)
		VALUES (?1, ?2, 1, ?3)
		ON CONFLICT (fetch_id, stage)
		DO UPDATE SET attempts = attempts + 1, last_attempt_at = ?3`,
		fetchID, stage, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record attempt %s/%s: %w", fetchID, stage, err)
	}
	return nil
}

// Entries returns every ledger entry with its completion set, newest
// first. Used by the status command.
func (l *Ledger) Entries(ctx context.Context) ([]EntryStatus, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, fetch_id, created_at FROM fetch_entries ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var statuses []EntryStatus
	for rows.Next() {
		var s EntryStatus
		if err := rows.Scan(&s.Seq, &s.FetchID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		s.Completed = make(map[string]string)
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}

	crows, err := l.db.QueryContext(ctx,
		`SELECT fetch_id, stage, completed_at FROM stage_completions`)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer crows.Close()

	byID := make(map[string]*EntryStatus, len(statuses))
	for i := range statuses {
		byID[statuses[i].FetchID] = &statuses[i]
	}
	for crows.Next() {
		var fetchID, stage, at string
		if err := crows.Scan(&fetchID, &stage, &at); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		if s, ok := byID[fetchID]; ok {
			s.Completed[stage] = at
		}
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return statuses, nil
}
