package signalstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

func TestCreateInviteAssignsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/records" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var rec domain.CallRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Fatalf("decode: %v", err)
		}
		rec.ID = "rec-1"
		_ = json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ws://unused")
	rec, err := domain.NewCallInvite("B1", "P1", "U1", "ch_B1", "tok", "A1")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := c.CreateInvite(context.Background(), rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID != "rec-1" {
		t.Fatalf("expected server-assigned id, got %q", rec.ID)
	}
}

func TestCreateInviteConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ws://unused")
	rec, _ := domain.NewCallInvite("B1", "P1", "U1", "ch_B1", "tok", "A1")
	if err := c.CreateInvite(context.Background(), rec); !errors.Is(err, core.ErrCallInProgress) {
		t.Fatalf("expected conflict sentinel, got %v", err)
	}
}

func TestEndCallPostsDuration(t *testing.T) {
	var gotPath string
	var gotBody endRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ws://unused")
	if err := c.EndCall(context.Background(), "B1", 42); err != nil {
		t.Fatalf("end: %v", err)
	}
	if gotPath != "/records/B1/end" || gotBody.DurationSeconds != 42 {
		t.Fatalf("unexpected request: %s %+v", gotPath, gotBody)
	}
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(srv.URL, "ws://unused")
	if _, err := c.Get(context.Background(), "B404"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected not-found sentinel, got %v", err)
	}
}

func TestListCustomers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]domain.CustomerRecord{
			{ID: "U1", Name: "Dana", Bookings: []domain.BookingID{"B1"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ws://unused")
	customers, err := c.ListCustomers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(customers) != 1 || !customers[0].HasBooking("B1") {
		t.Fatalf("unexpected customers: %+v", customers)
	}
}

func TestSubscribeStreamsChanges(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/records/watch" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("provider_id") != "P1" || q.Get("status") != "inviting" {
			t.Fatalf("unexpected filter: %v", q)
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer ws.Close()
		_ = ws.WriteJSON(wireChange{Kind: "added", Record: domain.CallRecord{BookingID: "B1", Status: domain.CallInviting, ProviderID: "P1"}})
		_ = ws.WriteJSON(wireChange{Kind: "bogus"})
		_ = ws.WriteJSON(wireChange{Kind: "modified", Record: domain.CallRecord{BookingID: "B1", Status: domain.CallEnded, ProviderID: "P1"}})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClient(srv.URL, "ws"+strings.TrimPrefix(srv.URL, "http"))
	ch, err := c.Subscribe(ctx, core.RecordFilter{ProviderID: "P1", Status: domain.CallInviting})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	first := <-ch
	if first.Kind != core.ChangeAdded || first.Record.BookingID != "B1" {
		t.Fatalf("unexpected first change: %+v", first)
	}
	// The bogus kind is skipped; the next delivered event is the
	// modification.
	second := <-ch
	if second.Kind != core.ChangeModified || second.Record.Status != domain.CallEnded {
		t.Fatalf("unexpected second change: %+v", second)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// Drain until close.
			for range ch {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
