package permit

import (
	"context"
	"time"
)

// Store is the record-store gateway the lifecycle service persists through.
// Implementations own both underlying tables (registered permits and drafts);
// a single call here may touch both, and partial application is tolerated by
// the callers where the contract says so.
type Store interface {
	// Insert persists a new permit record. The storage layer enforces folio
	// uniqueness and must reject a duplicate insert.
	Insert(ctx context.Context, p *Permit) error

	// UpdateStatus sets the status and the proof/validation timestamp for the
	// given folio on every table that carries the record.
	UpdateStatus(ctx context.Context, folio string, st Status, at time.Time) error

	// Delete removes the record for the folio from every table. Deleting an
	// absent folio is a no-op. A failure on one table must not prevent the
	// delete attempt on the other.
	Delete(ctx context.Context, folio string) error

	// FoliosByPrefix returns all folios for the entity that start with prefix.
	FoliosByPrefix(ctx context.Context, entidad, prefix string) ([]string, error)

	// ByFolio returns the permit record or ErrNotFound.
	ByFolio(ctx context.Context, folio string) (*Permit, error)
}

// Notifier delivers best-effort messages to a permit owner. Errors are
// reported but callers on cleanup paths suppress them.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}
