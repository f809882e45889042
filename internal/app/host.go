// Package app wires the call-session subsystem into one long-lived
// host process. The host outlives any UI: screens attach and detach
// through the control surface while attempts keep running.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/app/listen"
	"github.com/helpora/partnercall/internal/app/media"
	"github.com/helpora/partnercall/internal/app/metrics"
	"github.com/helpora/partnercall/internal/app/orch"
	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

// resubscribeDelay spaces invite listener re-subscription attempts
// after a dropped watch socket.
const resubscribeDelay = 500 * time.Millisecond

// HostConfig is the subset of config the host needs.
type HostConfig struct {
	// Provider is the local party identity, when already known at
	// startup (dev mode). Otherwise it arrives via SetIdentity after
	// authentication.
	Provider domain.PartyID
	// IdentityWait bounds how long the host waits for an identity
	// before self-terminating.
	IdentityWait time.Duration
	// RemoteTimeout is passed through to the orchestrator.
	RemoteTimeout time.Duration
}

// Host owns the media manager, orchestrator and listener, and exposes
// the control surface operations. It stops itself once EndSetup
// completes or when no identity ever becomes available.
type Host struct {
	Media *media.Manager
	Orch  *orch.Orchestrator

	store   core.SignalingStore
	metrics *metrics.Set
	cfg     HostConfig

	mu             sync.Mutex
	identity       domain.PartyID
	listenerCancel context.CancelFunc
	inviteSubs     map[int]chan listen.Invite
	nextInviteSub  int

	done     chan struct{}
	stopOnce sync.Once
}

func NewHost(dir core.Directory, auth core.CallAuthority, store core.SignalingStore, factory core.EngineFactory, callLog core.CallLogger, m *metrics.Set, cfg HostConfig) *Host {
	h := &Host{
		store:      store,
		metrics:    m,
		cfg:        cfg,
		inviteSubs: make(map[int]chan listen.Invite),
		done:       make(chan struct{}),
	}
	h.Media = media.NewManager(factory)
	h.Media.OnStateChange(func(s media.ConnState) {
		if m != nil {
			m.EngineState.Set(float64(s))
		}
	})
	h.Orch = orch.New(dir, auth, store, h.Media, cfg.Provider, orch.Options{
		RemoteTimeout: cfg.RemoteTimeout,
		CallLog:       callLog,
		OnEnded:       h.stop,
	})
	return h
}

// Run starts the outcome watcher and the identity wait. It returns
// immediately; use Done to observe host termination.
func (h *Host) Run(ctx context.Context) {
	go h.watchOutcomes(ctx)

	if h.cfg.Provider != "" {
		h.SetIdentity(ctx, h.cfg.Provider)
		return
	}
	wait := h.cfg.IdentityWait
	if wait <= 0 {
		wait = time.Minute
	}
	go func() {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-h.done:
		case <-t.C:
			h.mu.Lock()
			missing := h.identity == ""
			h.mu.Unlock()
			if missing {
				log.Warn().Str("module", "app.host").Msg("no identity became available, stopping host")
				h.stop()
			}
		}
	}()
}

// SetIdentity records the authenticated local party and (re)establishes
// the invite listener for it.
func (h *Host) SetIdentity(ctx context.Context, id domain.PartyID) {
	if id == "" {
		return
	}
	h.mu.Lock()
	h.identity = id
	if h.listenerCancel != nil {
		h.listenerCancel()
	}
	lctx, cancel := context.WithCancel(ctx)
	h.listenerCancel = cancel
	h.mu.Unlock()

	h.Orch.SetProvider(id)
	l := listen.New(h.store, h, id)
	go func() {
		for {
			err := l.Run(lctx)
			if lctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("module", "app.host").Msg("invite listener dropped, resubscribing")
			select {
			case <-lctx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
		}
	}()
	log.Info().Str("module", "app.host").Str("provider", string(id)).Msg("identity set, listener established")
}

// Identity returns the current local party id, empty until set.
func (h *Host) Identity() domain.PartyID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.identity
}

// PresentIncomingCall implements listen.Presenter by fanning the
// invite out to attached UI subscribers.
func (h *Host) PresentIncomingCall(inv listen.Invite) {
	if h.metrics != nil {
		h.metrics.InvitesReceived.Inc()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.inviteSubs {
		select {
		case ch <- inv:
		default:
			close(ch)
			delete(h.inviteSubs, id)
		}
	}
}

// SubscribeInvites attaches a UI to the incoming-call stream.
func (h *Host) SubscribeInvites() (<-chan listen.Invite, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan listen.Invite, 8)
	id := h.nextInviteSub
	h.nextInviteSub++
	h.inviteSubs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.inviteSubs[id]; ok {
			close(sub)
			delete(h.inviteSubs, id)
		}
	}
	return ch, cancel
}

// watchOutcomes mirrors terminal setup states into metrics.
func (h *Host) watchOutcomes(ctx context.Context) {
	if h.metrics == nil {
		return
	}
	_, events, cancel := h.Orch.Watch(0)
	defer cancel()

	var started time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch {
			case ev.State.Phase == orch.PhaseValidatingPermission:
				started = ev.Timestamp
			case ev.State.Phase.Terminal():
				h.metrics.SetupOutcomes.WithLabelValues(ev.State.Phase.String()).Inc()
				if !started.IsZero() {
					h.metrics.SetupDuration.Observe(ev.Timestamp.Sub(started).Seconds())
					started = time.Time{}
				}
			}
		}
	}
}

// Done is closed when the host has stopped itself.
func (h *Host) Done() <-chan struct{} { return h.done }

func (h *Host) stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		if h.listenerCancel != nil {
			h.listenerCancel()
			h.listenerCancel = nil
		}
		h.mu.Unlock()
		close(h.done)
	})
}
