package worker

import (
	"context"
	"fmt"
	"log/slog"

	"pindi/internal/amqp"
	"pindi/internal/core"
	"pindi/internal/remote"
	"pindi/internal/storage"
)

// SyncWorker pushes locally committed entries to the remote ledger and
// retries deletions that failed at request time.
type SyncWorker struct {
	store      *storage.Store
	ledger     remote.Ledger
	credential string
	batchSize  int
}

func NewSyncWorker(store *storage.Store, ledger remote.Ledger, credential string, batchSize int) *SyncWorker {
	return &SyncWorker{
		store:      store,
		ledger:     ledger,
		credential: credential,
		batchSize:  batchSize,
	}
}

// HandleMessage processes a single sync message from AMQP.
// Returning an error causes the message to be requeued.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"action", msg.Action)

	switch msg.Action {
	case amqp.ActionAdd:
		return w.syncEntry(ctx, msg.ID)
	case amqp.ActionDelete:
		return w.syncDeletion(ctx, msg.ID)
	default:
		// Unknown actions are dropped, requeueing them would loop forever.
		slog.WarnContext(ctx, "Dropping message with unknown action",
			"id", msg.ID,
			"action", msg.Action)
		return nil
	}
}

// ProcessPending pushes any entries and deletions that haven't reached the
// remote ledger yet. This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.PendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending entries: %w", err)
	}

	for _, entry := range pending {
		if err := w.pushEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry", "id", entry.ID, "error", err)
		}
	}

	deletions, err := w.store.PendingDeletions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending deletions: %w", err)
	}

	for _, id := range deletions {
		if err := w.syncDeletion(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync deletion", "id", id, "error", err)
		}
	}

	if len(pending) > 0 || len(deletions) > 0 {
		slog.InfoContext(ctx, "Processed pending work",
			"entries", len(pending),
			"deletions", len(deletions))
	}

	return nil
}

// StartupCheck drains the pending backlog at worker startup with a larger
// batch. Useful to recover from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.store.PendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending entries for startup check: %w", err)
	}

	deletions, err := w.store.PendingDeletions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending deletions for startup check: %w", err)
	}

	if len(pending) == 0 && len(deletions) == 0 {
		slog.InfoContext(ctx, "No pending work found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending work on startup, processing...",
		"entries", len(pending),
		"deletions", len(deletions))

	synced := 0
	errors := 0

	for _, entry := range pending {
		if err := w.pushEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry during startup",
				"id", entry.ID, "error", err)
			errors++
			continue
		}
		synced++
	}

	for _, id := range deletions {
		if err := w.syncDeletion(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync deletion during startup",
				"id", id, "error", err)
			errors++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending)+len(deletions),
		"synced", synced,
		"errors", errors)

	return nil
}

// RefreshFromRemote replaces the local cache with the ledger's snapshot.
// An unavailable remote leaves the cache untouched.
func (w *SyncWorker) RefreshFromRemote(ctx context.Context) error {
	entries, ok := w.ledger.FetchAll(ctx, w.credential)
	if !ok {
		slog.WarnContext(ctx, "Remote ledger unavailable, keeping local cache")
		return nil
	}

	if err := w.store.ReplaceAll(ctx, entries); err != nil {
		return fmt.Errorf("replace local cache: %w", err)
	}

	slog.InfoContext(ctx, "Refreshed local cache from remote", "count", len(entries))
	return nil
}

func (w *SyncWorker) syncEntry(ctx context.Context, id string) error {
	entry, found := w.store.GetEntry(ctx, id)
	if !found {
		// Deleted locally before the worker got to it, nothing to push.
		slog.WarnContext(ctx, "Entry no longer exists locally, skipping sync", "id", id)
		return nil
	}
	return w.pushEntry(ctx, entry)
}

func (w *SyncWorker) pushEntry(ctx context.Context, entry core.Entry) error {
	if !w.ledger.Append(ctx, entry, w.credential) {
		if markErr := w.store.MarkSyncError(ctx, entry.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", entry.ID, "error", markErr)
		}
		return fmt.Errorf("append entry %s to remote ledger", entry.ID)
	}

	if err := w.store.MarkSynced(ctx, entry.ID); err != nil {
		// Don't fail here, the push itself worked.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", entry.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced entry",
		"id", entry.ID,
		"date", entry.Date,
		"amount", entry.Amount)

	return nil
}

func (w *SyncWorker) syncDeletion(ctx context.Context, id string) error {
	if !w.ledger.RemoveByID(ctx, id, w.credential) {
		return fmt.Errorf("delete entry %s from remote ledger", id)
	}

	if err := w.store.ClearPendingDeletion(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to clear pending deletion", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully deleted entry from remote", "id", id)
	return nil
}
