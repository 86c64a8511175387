// Package services orchestrates entry operations across the local store,
// the sync queue, and the remote ledger. Writes commit locally first; the
// remote push is best-effort and its failure is never rolled back.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"pindi/internal/amqp"
	"pindi/internal/core"
	"pindi/internal/remote"
	"pindi/internal/storage"
)

type EntryService struct {
	store      *storage.Store
	ledger     remote.Ledger
	queue      *amqp.Client
	credential string
}

// NewEntryService wires the write path. ledger and queue are both optional:
// with a queue the remote push is delegated to the sync worker, with only a
// ledger it happens inline, with neither the entry just stays unsynced.
func NewEntryService(store *storage.Store, ledger remote.Ledger, queue *amqp.Client, credential string) *EntryService {
	return &EntryService{
		store:      store,
		ledger:     ledger,
		queue:      queue,
		credential: credential,
	}
}

// Create validates the input, commits the entry to the local store, and then
// offers it to the remote ledger. The local commit is the source of truth;
// a failed remote push only leaves the entry pending sync.
func (s *EntryService) Create(ctx context.Context, amount float64, note string, typ core.EntryType) (core.Entry, error) {
	if amount <= 0 {
		return core.Entry{}, core.ErrInvalidAmount
	}
	if !typ.Valid() {
		return core.Entry{}, core.ErrInvalidType
	}

	e := core.NewEntry(amount, note, typ, time.Now())
	if err := s.store.Append(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.PublishEntrySync(ctx, e.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message", "id", e.ID, "error", err)
			// Entry is saved locally; the pending scan will pick it up.
		}
		return e, nil
	}

	if s.ledger != nil {
		if s.ledger.Append(ctx, e, s.credential) {
			if err := s.store.MarkSynced(ctx, e.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark entry synced", "id", e.ID, "error", err)
			}
		} else {
			if err := s.store.MarkSyncError(ctx, e.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", e.ID, "error", err)
			}
		}
	}

	return e, nil
}

// Delete removes the entry locally first, then propagates the deletion.
// A failed remote deletion is parked for the worker to retry; the local
// removal stands either way.
func (s *EntryService) Delete(ctx context.Context, id string) error {
	if err := s.store.RemoveByID(ctx, id); err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.PublishEntryDelete(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
			s.parkDeletion(ctx, id)
		}
		return nil
	}

	if s.ledger != nil && !s.ledger.RemoveByID(ctx, id, s.credential) {
		s.parkDeletion(ctx, id)
	}

	return nil
}

// Refresh replaces the local cache with the remote collection. When the
// remote is unavailable the cache stays exactly as it was.
func (s *EntryService) Refresh(ctx context.Context) bool {
	if s.ledger == nil {
		return false
	}
	entries, ok := s.ledger.FetchAll(ctx, s.credential)
	if !ok {
		slog.InfoContext(ctx, "Remote unavailable, keeping local cache")
		return false
	}
	if err := s.store.ReplaceAll(ctx, entries); err != nil {
		slog.ErrorContext(ctx, "Failed to replace cache from remote", "error", err)
		return false
	}
	return true
}

// Entries returns the cached collection newest-first by creation time.
func (s *EntryService) Entries(ctx context.Context) []core.Entry {
	entries := s.store.LoadAll(ctx)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt > entries[j].CreatedAt
	})
	return entries
}

func (s *EntryService) parkDeletion(ctx context.Context, id string) {
	if err := s.store.AddPendingDeletion(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to record pending deletion", "id", id, "error", err)
	}
}
