// Package memstore is an in-memory signaling store and customer
// directory used by dev mode and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

type subscriber struct {
	filter core.RecordFilter
	ch     chan core.RecordChange
}

// Store keeps every record ever written: ending a call flips status,
// nothing is deleted. At most one live record exists per booking.
type Store struct {
	mu        sync.RWMutex
	records   map[domain.BookingID][]*domain.CallRecord
	customers []domain.CustomerRecord
	subs      map[int]*subscriber
	nextSub   int
}

func New() *Store {
	return &Store{
		records: make(map[domain.BookingID][]*domain.CallRecord),
		subs:    make(map[int]*subscriber),
	}
}

// SeedCustomers loads the directory used for identity resolution.
func (s *Store) SeedCustomers(customers []domain.CustomerRecord) {
	s.mu.Lock()
	s.customers = append([]domain.CustomerRecord(nil), customers...)
	s.mu.Unlock()
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.CustomerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CustomerRecord(nil), s.customers...), nil
}

func (s *Store) CreateInvite(ctx context.Context, rec *domain.CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	for _, existing := range s.records[rec.BookingID] {
		if existing.Status.IsLive() {
			s.mu.Unlock()
			return core.ErrCallInProgress
		}
	}
	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.records[rec.BookingID] = append(s.records[rec.BookingID], &stored)
	s.mu.Unlock()

	rec.ID = stored.ID
	s.notify(core.RecordChange{Kind: core.ChangeAdded, Record: stored})
	return nil
}

func (s *Store) EndCall(ctx context.Context, booking domain.BookingID, durationSeconds int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	var live *domain.CallRecord
	var lastEnded *domain.CallRecord
	for _, rec := range s.records[booking] {
		if rec.Status.IsLive() {
			live = rec
		} else if rec.Status == domain.CallEnded {
			lastEnded = rec
		}
	}
	if live == nil {
		s.mu.Unlock()
		// Repeating the same end write is not an error.
		if lastEnded != nil && lastEnded.DurationSeconds == durationSeconds {
			return nil
		}
		return core.ErrNoLiveCall
	}
	now := time.Now().UTC()
	live.Status = domain.CallEnded
	live.DurationSeconds = durationSeconds
	live.EndedAt = &now
	live.UpdatedAt = now
	changed := *live
	s.mu.Unlock()

	s.notify(core.RecordChange{Kind: core.ChangeModified, Record: changed})
	return nil
}

func (s *Store) Get(ctx context.Context, booking domain.BookingID) (*domain.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[booking]
	if len(recs) == 0 {
		return nil, core.ErrRecordNotFound
	}
	out := *recs[len(recs)-1]
	return &out, nil
}

func (s *Store) Subscribe(ctx context.Context, f core.RecordFilter) (<-chan core.RecordChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscriber{filter: f, ch: make(chan core.RecordChange, 16)}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if cur, ok := s.subs[id]; ok && cur == sub {
			close(sub.ch)
			delete(s.subs, id)
		}
		s.mu.Unlock()
	}()
	return sub.ch, nil
}

func (s *Store) notify(change core.RecordChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		if sub.filter.ProviderID != "" && sub.filter.ProviderID != change.Record.ProviderID {
			continue
		}
		if sub.filter.Status != "" && sub.filter.Status != change.Record.Status {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			log.Warn().Str("module", "memstore").Msg("slow subscriber dropped")
			close(sub.ch)
			delete(s.subs, id)
		}
	}
}
