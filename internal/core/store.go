package core

import (
	"context"

	"github.com/helpora/partnercall/internal/domain"
)

type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

// RecordChange is one push from a live subscription.
type RecordChange struct {
	Kind   ChangeKind
	Record domain.CallRecord
}

// RecordFilter is the server-side predicate of a subscription:
// equality on both fields.
type RecordFilter struct {
	ProviderID domain.PartyID
	Status     domain.CallStatus
}

// SignalingStore is the shared record store both parties rendezvous
// through. One live (non-ended) record may exist per booking at a time.
type SignalingStore interface {
	CreateInvite(ctx context.Context, rec *domain.CallRecord) error
	// EndCall flips the booking's live record to ended and stamps the
	// duration. Updating twice with the same duration is idempotent.
	EndCall(ctx context.Context, booking domain.BookingID, durationSeconds int) error
	Get(ctx context.Context, booking domain.BookingID) (*domain.CallRecord, error)
	// Subscribe delivers changes matching f until ctx is done.
	// The returned channel is closed by the store.
	Subscribe(ctx context.Context, f RecordFilter) (<-chan RecordChange, error)
}

// Directory is the identity resolution source: a bulk-readable
// collection scanned client-side, no indexed lookup available.
type Directory interface {
	ListCustomers(ctx context.Context) ([]domain.CustomerRecord, error)
}
