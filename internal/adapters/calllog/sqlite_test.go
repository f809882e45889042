package calllog

import (
	"context"
	"testing"
	"time"

	"github.com/helpora/partnercall/internal/domain"
)

func TestRecordAndRecent(t *testing.T) {
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, booking := range []string{"B1", "B2", "B3"} {
		if err := l.Record(ctx, domain.BookingID(booking), (i+1)*10, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("record %s: %v", booking, err)
		}
	}

	entries, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].BookingID != "B3" || entries[1].BookingID != "B2" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[0].DurationSeconds != 30 {
		t.Fatalf("unexpected duration: %d", entries[0].DurationSeconds)
	}
	if !entries[0].EndedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("unexpected ended_at: %v", entries[0].EndedAt)
	}
}

func TestRecentDefaultsLimit(t *testing.T) {
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	entries, err := l.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent on empty log: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %d", len(entries))
	}
}
