// Package rtc implements the media engine over a pion PeerConnection
// negotiated with the media gateway through a websocket control
// socket authenticated by the issued session token.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

var ErrNotInChannel = errors.New("engine not in a channel")

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Factory builds engines bound to one media app identity.
type Factory struct {
	GatewayURL string
	WebRTC     webrtc.Configuration
	Dialer     *websocket.Dialer
}

func NewFactory(gatewayURL string) *Factory {
	return &Factory{
		GatewayURL: gatewayURL,
		WebRTC:     DefaultWebRTCConfig(),
		Dialer:     websocket.DefaultDialer,
	}
}

func (f *Factory) New(appID string, h core.EngineHandler) (core.MediaEngine, error) {
	if appID == "" {
		return nil, errors.New("blank media app id")
	}
	if h == nil {
		return nil, errors.New("nil engine handler")
	}
	return &Engine{
		appID:      appID,
		handler:    h,
		gatewayURL: f.GatewayURL,
		cfg:        f.WebRTC,
		dialer:     f.Dialer,
	}, nil
}

// gatewayMsg is the control-socket envelope shared with the gateway.
type gatewayMsg struct {
	Type      string                     `json:"type"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	On        bool                       `json:"on,omitempty"`
}

type Engine struct {
	appID      string
	handler    core.EngineHandler
	gatewayURL string
	cfg        webrtc.Configuration
	dialer     *websocket.Dialer

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	ws      *websocket.Conn
	cancel  context.CancelFunc
	joining bool
	leaving bool
}

// Join dials the gateway and negotiates in the background. The call
// returns once the request is accepted; the outcome arrives through
// the handler callbacks.
func (e *Engine) Join(channel domain.ChannelName, token string, localID uint32) error {
	if channel == "" {
		return errors.New("blank channel name")
	}
	if token == "" {
		return errors.New("blank session token")
	}
	e.mu.Lock()
	// The peer connection only exists once negotiation is underway, so
	// the joining flag is what guards back-to-back join requests.
	if e.joining || e.pc != nil {
		e.mu.Unlock()
		return errors.New("already joining a channel")
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.joining = true
	e.leaving = false
	e.mu.Unlock()

	go e.negotiate(ctx, channel, token, localID)
	return nil
}

func (e *Engine) negotiate(ctx context.Context, channel domain.ChannelName, token string, localID uint32) {
	u, err := url.Parse(e.gatewayURL)
	if err != nil {
		e.handler.OnEngineError(fmt.Errorf("gateway url: %w", err))
		return
	}
	q := u.Query()
	q.Set("app", e.appID)
	q.Set("channel", string(channel))
	q.Set("uid", fmt.Sprintf("%d", localID))
	u.RawQuery = q.Encode()

	ws, _, err := e.dialer.DialContext(ctx, u.String(), map[string][]string{
		"Authorization": {"Bearer " + token},
	})
	if err != nil {
		e.handler.OnEngineError(fmt.Errorf("gateway dial: %w", err))
		return
	}

	pc, err := webrtc.NewPeerConnection(e.cfg)
	if err != nil {
		_ = ws.Close()
		e.handler.OnEngineError(fmt.Errorf("peer connection: %w", err))
		return
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		_ = ws.Close()
		_ = pc.Close()
		e.handler.OnEngineError(fmt.Errorf("audio transceiver: %w", err))
		return
	}

	e.mu.Lock()
	e.pc = pc
	e.ws = ws
	e.mu.Unlock()

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("channel", string(channel)).Str("peer_connection_state", s.String()).Msg("peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			e.handler.OnJoinSuccess(channel)
		case webrtc.PeerConnectionStateFailed:
			e.handler.OnEngineError(errors.New("peer connection failed"))
		case webrtc.PeerConnectionStateClosed:
			if !e.isLeaving() {
				e.handler.OnLeftChannel()
			}
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().Str("module", "rtc").Str("kind", track.Kind().String()).Str("track_id", track.ID()).Msg("remote track")
		e.handler.OnPeerJoined()
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		e.send(gatewayMsg{Type: "candidate", Candidate: &init})
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		e.handler.OnEngineError(fmt.Errorf("create offer: %w", err))
		return
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		e.handler.OnEngineError(fmt.Errorf("set local description: %w", err))
		return
	}
	if err := e.send(gatewayMsg{Type: "offer", SDP: &offer}); err != nil {
		e.handler.OnEngineError(fmt.Errorf("send offer: %w", err))
		return
	}

	e.readPump(ctx, ws, pc)
}

func (e *Engine) readPump(ctx context.Context, ws *websocket.Conn, pc *webrtc.PeerConnection) {
	for {
		if ctx.Err() != nil {
			return
		}
		var msg gatewayMsg
		if err := ws.ReadJSON(&msg); err != nil {
			if !e.isLeaving() && ctx.Err() == nil {
				e.handler.OnEngineError(fmt.Errorf("gateway read: %w", err))
			}
			return
		}
		switch msg.Type {
		case "answer":
			if msg.SDP == nil {
				continue
			}
			if err := pc.SetRemoteDescription(*msg.SDP); err != nil {
				e.handler.OnEngineError(fmt.Errorf("set remote description: %w", err))
				return
			}
		case "candidate":
			if msg.Candidate == nil {
				continue
			}
			if err := pc.AddICECandidate(*msg.Candidate); err != nil {
				log.Warn().Err(err).Str("module", "rtc").Msg("add ice candidate")
			}
		case "peer_joined":
			e.handler.OnPeerJoined()
		case "peer_left":
			e.handler.OnPeerLeft()
		default:
			log.Warn().Str("module", "rtc").Str("type", msg.Type).Msg("unknown gateway message")
		}
	}
}

func (e *Engine) send(msg gatewayMsg) error {
	e.mu.Lock()
	ws := e.ws
	e.mu.Unlock()
	if ws == nil {
		return ErrNotInChannel
	}
	return ws.WriteJSON(msg)
}

func (e *Engine) isLeaving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaving
}

func (e *Engine) Leave() error {
	e.mu.Lock()
	e.leaving = true
	e.joining = false
	ws := e.ws
	pc := e.pc
	cancel := e.cancel
	e.ws = nil
	e.pc = nil
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ws != nil {
		_ = ws.WriteJSON(gatewayMsg{Type: "leave"})
		_ = ws.Close()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("close peer connection")
		}
	}
	return nil
}

// SetMuted signals the gateway to stop forwarding the local audio.
func (e *Engine) SetMuted(muted bool) error {
	return e.send(gatewayMsg{Type: "mute", On: muted})
}

// SetSpeakerphone selects the loud output route on the gateway mix.
func (e *Engine) SetSpeakerphone(on bool) error {
	return e.send(gatewayMsg{Type: "speaker", On: on})
}

func (e *Engine) Destroy() {
	_ = e.Leave()
	log.Info().Str("module", "rtc").Str("app", e.appID).Msg("engine destroyed")
}
