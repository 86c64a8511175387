// Package storage implements the local entry cache on SQLite. The cache is
// the single source of truth for reads within a session; the remote ledger
// only replaces it wholesale after a successful full fetch.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pindi/internal/core"

	_ "modernc.org/sqlite"
)

// Store is the durable local cache of the full entry collection. A single
// mutex sequences full-collection replacement against individual writes so
// a refresh in flight can never silently drop a local append or delete.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateSchema(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadAll returns the cached collection in the order it was written. It
// never fails: an absent or unreadable cache reads as empty, logged but not
// surfaced to the caller.
func (s *Store) LoadAll(ctx context.Context) []core.Entry {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, note, type, date, time, created_at FROM entries ORDER BY rowid`)
	if err != nil {
		slog.WarnContext(ctx, "Entry cache unreadable, treating as empty", "error", err)
		return []core.Entry{}
	}
	defer rows.Close()

	entries := make([]core.Entry, 0)
	for rows.Next() {
		var e core.Entry
		if err := rows.Scan(&e.ID, &e.Amount, &e.Note, &e.Type, &e.Date, &e.Time, &e.CreatedAt); err != nil {
			slog.WarnContext(ctx, "Skipping unreadable cache row", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		slog.WarnContext(ctx, "Entry cache scan interrupted", "error", err, "loaded", len(entries))
	}
	return entries
}

// GetEntry returns a single cached entry by id.
func (s *Store) GetEntry(ctx context.Context, id string) (core.Entry, bool) {
	var e core.Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, amount, note, type, date, time, created_at FROM entries WHERE id = ?`, id).
		Scan(&e.ID, &e.Amount, &e.Note, &e.Type, &e.Date, &e.Time, &e.CreatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.WarnContext(ctx, "Entry lookup failed", "id", id, "error", err)
		}
		return core.Entry{}, false
	}
	return e, true
}

// ReplaceAll overwrites the cached collection with a remote snapshot. Two
// classes of local rows survive the overwrite: entries still pending remote
// deletion are not resurrected, and unsynced local entries are kept so the
// retry machinery can still push them. An unsynced entry that does appear in
// the snapshot is marked synced instead of re-inserted. Every replace bumps
// the cache revision so readers in other processes can notice.
func (s *Store) ReplaceAll(ctx context.Context, entries []core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.pendingDeletionSet(ctx)
	if err != nil {
		return fmt.Errorf("load pending deletions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	unsynced, err := unsyncedIDSet(ctx, tx)
	if err != nil {
		return fmt.Errorf("load unsynced ids: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE synced = 1`); err != nil {
		return fmt.Errorf("clear synced entries: %w", err)
	}

	skipped := 0
	confirmed := 0
	for _, e := range entries {
		if _, gone := pending[e.ID]; gone {
			skipped++
			continue
		}
		if _, local := unsynced[e.ID]; local {
			// The remote holds this entry after all; the local copy stays
			// and only its flag changes.
			_, err := tx.ExecContext(ctx,
				`UPDATE entries SET synced = 1, sync_error = 0 WHERE id = ?`, e.ID)
			if err != nil {
				return fmt.Errorf("confirm entry %s: %w", e.ID, err)
			}
			confirmed++
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entries (id, amount, note, type, date, time, created_at, synced)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
			e.ID, e.Amount, e.Note, e.Type, e.Date, e.Time, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	if err := bumpRevision(ctx, tx); err != nil {
		return fmt.Errorf("bump cache revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	slog.InfoContext(ctx, "Entry cache replaced from remote snapshot",
		"count", len(entries)-skipped,
		"kept_unsynced", len(unsynced)-confirmed,
		"skipped_pending_delete", skipped)
	return nil
}

// Append adds one entry to the cache. New entries start unsynced; the sync
// path flips the flag once the remote ledger acknowledges them.
func (s *Store) Append(ctx context.Context, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, amount, note, type, date, time, created_at, synced)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		e.ID, e.Amount, e.Note, e.Type, e.Date, e.Time, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved to cache",
		"id", e.ID, "type", e.Type, "amount", e.Amount, "date", e.Date)
	return nil
}

// RemoveByID deletes the matching entry. Removing an absent id is a no-op,
// not an error.
func (s *Store) RemoveByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.InfoContext(ctx, "Entry removed from cache", "id", id)
	}
	return nil
}

// MarkSynced records that the remote ledger acknowledged an entry.
func (s *Store) MarkSynced(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET synced = 1, sync_error = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	return nil
}

// MarkSyncError flags an entry whose remote push failed. The entry stays
// unsynced so the pending scan retries it.
func (s *Store) MarkSyncError(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET sync_error = sync_error + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	slog.WarnContext(ctx, "Entry marked with sync error", "id", id)
	return nil
}

// PendingSync returns entries not yet acknowledged by the remote ledger,
// oldest first.
func (s *Store) PendingSync(ctx context.Context, limit int) ([]core.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, note, type, date, time, created_at FROM entries
		 WHERE synced = 0 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var e core.Entry
		if err := rows.Scan(&e.ID, &e.Amount, &e.Note, &e.Type, &e.Date, &e.Time, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddPendingDeletion parks a deletion whose remote push failed so the sync
// worker can retry it.
func (s *Store) AddPendingDeletion(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_deletions (id, requested_at) VALUES (?, ?)`,
		id, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record pending deletion: %w", err)
	}
	return nil
}

// PendingDeletions returns ids whose remote deletion is still outstanding.
func (s *Store) PendingDeletions(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM pending_deletions ORDER BY requested_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending deletions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending deletion: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClearPendingDeletion drops a deletion after the remote ledger confirmed it.
func (s *Store) ClearPendingDeletion(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_deletions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear pending deletion: %w", err)
	}
	return nil
}

// GetSetting returns a persisted preference, or fallback when unset.
func (s *Store) GetSetting(ctx context.Context, key, fallback string) string {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.WarnContext(ctx, "Setting lookup failed", "key", key, "error", err)
		}
		return fallback
	}
	return value
}

// SetSetting persists a preference.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

const revisionKey = "cache_revision"

// Revision reports a counter incremented by every snapshot replace. Readers
// can compare it across requests to detect a refresh done by another process
// sharing the database file.
func (s *Store) Revision(ctx context.Context) int64 {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`SELECT CAST(value AS INTEGER) FROM settings WHERE key = ?`, revisionKey).Scan(&v)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.WarnContext(ctx, "Cache revision lookup failed", "error", err)
		}
		return 0
	}
	return v
}

func bumpRevision(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, '1')
		 ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1`, revisionKey)
	return err
}

func unsyncedIDSet(ctx context.Context, tx *sql.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM entries WHERE synced = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

func (s *Store) pendingDeletionSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM pending_deletions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}
