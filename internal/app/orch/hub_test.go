package orch

import "testing"

func TestHubReplayAfterSeq(t *testing.T) {
	h := NewHub(8)
	h.Publish(SetupState{Phase: PhaseValidatingPermission, BookingID: "B1"})
	h.Publish(SetupState{Phase: PhasePermissionGranted, BookingID: "B1"})
	h.Publish(SetupState{Phase: PhaseReady, BookingID: "B1"})

	backlog, _, cancel := h.Subscribe(1)
	defer cancel()
	if len(backlog) != 2 {
		t.Fatalf("expected 2 replayed events after seq 1, got %d", len(backlog))
	}
	if backlog[0].Seq != 2 || backlog[1].Seq != 3 {
		t.Fatalf("unexpected replay seqs: %d, %d", backlog[0].Seq, backlog[1].Seq)
	}
}

func TestHubHistoryBounded(t *testing.T) {
	h := NewHub(2)
	for i := 0; i < 5; i++ {
		h.Publish(SetupState{Phase: PhaseValidatingPermission})
	}
	backlog, _, cancel := h.Subscribe(0)
	defer cancel()
	if len(backlog) != 2 {
		t.Fatalf("expected bounded history of 2, got %d", len(backlog))
	}
	if backlog[0].Seq != 4 {
		t.Fatalf("expected oldest retained seq 4, got %d", backlog[0].Seq)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub(4)
	_, ch, cancel := h.Subscribe(0)
	defer cancel()

	// Overflow the subscriber buffer without draining.
	for i := 0; i < 20; i++ {
		h.Publish(SetupState{Phase: PhaseValidatingPermission})
	}
	drained := 0
	for range ch {
		drained++
	}
	if drained == 0 || drained >= 20 {
		t.Fatalf("expected a dropped subscriber with partial delivery, drained %d", drained)
	}
}

func TestHubSubscribeCancelIdempotent(t *testing.T) {
	h := NewHub(4)
	_, ch, cancel := h.Subscribe(0)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	// Publishing after cancel must not panic.
	h.Publish(SetupState{Phase: PhaseIdle})
}
