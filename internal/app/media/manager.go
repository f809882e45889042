// Package media owns the real-time media engine handle. Every engine
// operation is funneled through the Manager so no other call site
// mutates the engine.
package media

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateWaitingForPeer
	StateConnected
	StateEnded
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateWaitingForPeer:
		return "waiting_for_peer"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Manager is the single authoritative owner of the engine handle.
// It is constructed once by the host and handed to the orchestrator;
// there is no hidden global instance.
//
// The connection state is driven by engine callbacks, not by the
// return values of Join/Leave. StateError and StateEnded are not
// self-healing: recover via LeaveChannel/Destroy plus a fresh
// JoinChannel.
type Manager struct {
	factory core.EngineFactory

	mu       sync.Mutex
	engine   core.MediaEngine
	appID    string
	state    ConnState
	muted    bool
	speaker  bool
	joinedAt time.Time
	endedAt  time.Time

	onState func(ConnState)
}

func NewManager(factory core.EngineFactory) *Manager {
	return &Manager{factory: factory, state: StateIdle}
}

// OnStateChange registers a single observer for state transitions,
// called with the new state while no call is in flight on m.
func (m *Manager) OnStateChange(fn func(ConnState)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

func (m *Manager) setState(s ConnState) {
	if m.state == s {
		return
	}
	log.Info().Str("module", "app.media").Str("from", m.state.String()).Str("to", s.String()).Msg("state transition")
	m.state = s
	if m.onState != nil {
		m.onState(s)
	}
}

func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InitEngine is idempotent per app identity: same identity is a no-op,
// a different identity tears the old engine down exactly once before
// constructing a new one. Failures land in StateError, they are not
// returned.
func (m *Manager) InitEngine(appID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initLocked(appID)
}

func (m *Manager) initLocked(appID string) {
	if appID == "" {
		log.Error().Str("module", "app.media").Msg("blank engine app id")
		m.setState(StateError)
		return
	}
	if m.engine != nil && m.appID == appID {
		return
	}
	if m.engine != nil {
		log.Info().Str("module", "app.media").Str("old_app", m.appID).Str("new_app", appID).Msg("engine identity changed, tearing down")
		_ = m.engine.Leave()
		m.engine.Destroy()
		m.engine = nil
		m.appID = ""
	}
	eng, err := m.factory.New(appID, m)
	if err != nil {
		log.Error().Err(err).Str("module", "app.media").Str("app", appID).Msg("engine create failed")
		m.setState(StateError)
		return
	}
	m.engine = eng
	m.appID = appID
}

// JoinChannel ensures the engine exists for appID and requests to
// join. The state moves to connecting immediately; everything after
// that arrives via engine callbacks. An unavailable engine moves the
// state to error without blocking.
func (m *Manager) JoinChannel(channel domain.ChannelName, token string, localID uint32, appID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.initLocked(appID)
	if m.engine == nil {
		m.setState(StateError)
		return
	}
	m.joinedAt = time.Time{}
	m.endedAt = time.Time{}
	m.setState(StateConnecting)
	if err := m.engine.Join(channel, token, localID); err != nil {
		log.Error().Err(err).Str("module", "app.media").Str("channel", string(channel)).Msg("join request failed")
		m.setState(StateError)
	}
}

// LeaveChannel requests to leave, stops the duration clock and resets
// to idle. Calling it outside a call is a no-op beyond the reset.
func (m *Manager) LeaveChannel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine != nil {
		if err := m.engine.Leave(); err != nil {
			log.Error().Err(err).Str("module", "app.media").Msg("leave request failed")
		}
	}
	m.joinedAt = time.Time{}
	m.endedAt = time.Time{}
	m.setState(StateIdle)
}

// ToggleMute flips the tracked mute flag and applies it to the engine.
// The flag reflects the last requested state: an engine failure is
// logged and the flag stands. Returns the new value.
func (m *Manager) ToggleMute() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = !m.muted
	if m.engine != nil {
		if err := m.engine.SetMuted(m.muted); err != nil {
			log.Error().Err(err).Str("module", "app.media").Bool("muted", m.muted).Msg("set mute failed")
		}
	}
	return m.muted
}

// ToggleSpeaker mirrors ToggleMute for the speakerphone route.
func (m *Manager) ToggleSpeaker() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speaker = !m.speaker
	if m.engine != nil {
		if err := m.engine.SetSpeakerphone(m.speaker); err != nil {
			log.Error().Err(err).Str("module", "app.media").Bool("speaker", m.speaker).Msg("set speaker failed")
		}
	}
	return m.speaker
}

// CallDuration returns wall-clock seconds since the join succeeded,
// frozen once the call ended, or 0 when no call is active.
func (m *Manager) CallDuration() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joinedAt.IsZero() {
		return 0
	}
	end := m.endedAt
	if end.IsZero() {
		end = time.Now()
	}
	return int(end.Sub(m.joinedAt) / time.Second)
}

// Destroy leaves any active channel and releases the engine. Not
// reversible; the next call needs a fresh InitEngine.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine != nil {
		_ = m.engine.Leave()
		m.engine.Destroy()
		m.engine = nil
	}
	m.appID = ""
	m.joinedAt = time.Time{}
	m.endedAt = time.Time{}
	m.setState(StateIdle)
	log.Info().Str("module", "app.media").Msg("engine destroyed")
}

// Engine callbacks. One handler instance per engine, registered at
// creation; the engine adapter invokes these from its own goroutines.

func (m *Manager) OnJoinSuccess(channel domain.ChannelName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnecting {
		return
	}
	m.joinedAt = time.Now()
	m.setState(StateWaitingForPeer)
	log.Info().Str("module", "app.media").Str("channel", string(channel)).Msg("joined channel")
}

func (m *Manager) OnPeerJoined() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateWaitingForPeer {
		return
	}
	m.setState(StateConnected)
}

func (m *Manager) OnPeerLeft() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected {
		return
	}
	m.endedAt = time.Now()
	m.setState(StateEnded)
}

func (m *Manager) OnLeftChannel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateWaitingForPeer && m.state != StateConnected {
		return
	}
	m.joinedAt = time.Time{}
	m.endedAt = time.Time{}
	m.setState(StateIdle)
}

func (m *Manager) OnEngineError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Error().Err(err).Str("module", "app.media").Msg("engine error")
	if !m.joinedAt.IsZero() && m.endedAt.IsZero() {
		m.endedAt = time.Now()
	}
	m.setState(StateError)
}
