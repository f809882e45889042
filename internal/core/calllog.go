package core

import (
	"context"
	"time"

	"github.com/helpora/partnercall/internal/domain"
)

// CallLogEntry is one finished call in the local history.
type CallLogEntry struct {
	BookingID       domain.BookingID `json:"booking_id"`
	DurationSeconds int              `json:"duration_seconds"`
	EndedAt         time.Time        `json:"ended_at"`
}

// CallLogger persists finished calls locally for the history screen.
// Writes are best-effort; callers log failures and move on.
type CallLogger interface {
	Record(ctx context.Context, booking domain.BookingID, durationSeconds int, endedAt time.Time) error
	Recent(ctx context.Context, limit int) ([]CallLogEntry, error)
}
