package orch

import (
	"sync"
	"time"
)

// StateEvent is one published setup state with a replay cursor.
type StateEvent struct {
	Seq       int64      `json:"seq"`
	State     SetupState `json:"state"`
	Timestamp time.Time  `json:"timestamp"`
}

// Hub fans setup states out to subscribers. Slow subscribers are
// dropped rather than ever blocking the orchestrator. A bounded
// history lets late subscribers (a recreated UI) catch up.
type Hub struct {
	mu      sync.Mutex
	nextSeq int64
	limit   int
	history []StateEvent
	subs    map[int]chan StateEvent
	nextSub int
}

func NewHub(limit int) *Hub {
	if limit < 1 {
		limit = 1
	}
	return &Hub{
		limit: limit,
		subs:  make(map[int]chan StateEvent),
	}
}

func (h *Hub) Publish(s SetupState) StateEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	event := StateEvent{Seq: h.nextSeq, State: s, Timestamp: time.Now().UTC()}
	h.history = append(h.history, event)
	if len(h.history) > h.limit {
		h.history = append([]StateEvent(nil), h.history[len(h.history)-h.limit:]...)
	}

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}

	return event
}

// Subscribe returns the buffered history after fromSeq, a channel of
// subsequent events, and a cancel func. The channel is closed when the
// subscriber falls behind or cancels.
func (h *Hub) Subscribe(fromSeq int64) ([]StateEvent, <-chan StateEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var backlog []StateEvent
	for _, ev := range h.history {
		if ev.Seq > fromSeq {
			backlog = append(backlog, ev)
		}
	}

	ch := make(chan StateEvent, 16)
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return backlog, ch, cancel
}
