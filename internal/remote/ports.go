// Package remote defines the port for the external append-only ledger. All
// implementations are best-effort: every transport failure, parse failure,
// or remote-reported error degrades to an unavailable/false result so the
// caller can keep operating on the local cache.
package remote

import (
	"context"

	"pindi/internal/core"
)

// Ledger is the outbound port to the remote ledger.
type Ledger interface {
	// FetchAll requests the full remote collection. ok is false when the
	// remote is unavailable in any way; the caller must then fall back to
	// the local cache.
	FetchAll(ctx context.Context, credential string) (entries []core.Entry, ok bool)

	// Append pushes one new entry. The local write is already committed;
	// the result is observed, never rolled back.
	Append(ctx context.Context, e core.Entry, credential string) bool

	// RemoveByID pushes a deletion. Same non-blocking contract as Append.
	RemoveByID(ctx context.Context, id string, credential string) bool
}
