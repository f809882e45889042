package rtc

import (
	"testing"

	"github.com/helpora/partnercall/internal/domain"
)

type nopHandler struct{}

func (nopHandler) OnJoinSuccess(domain.ChannelName) {}
func (nopHandler) OnPeerJoined()                    {}
func (nopHandler) OnPeerLeft()                      {}
func (nopHandler) OnLeftChannel()                   {}
func (nopHandler) OnEngineError(error)              {}

func TestFactoryValidation(t *testing.T) {
	f := NewFactory("ws://gateway/session")
	if _, err := f.New("", nopHandler{}); err == nil {
		t.Fatal("expected error for blank app id")
	}
	if _, err := f.New("A1", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestJoinValidatesArguments(t *testing.T) {
	f := NewFactory("ws://gateway/session")
	eng, err := f.New("A1", nopHandler{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.Join("", "tok", 1); err == nil {
		t.Fatal("expected error for blank channel")
	}
	if err := eng.Join("ch", "", 1); err == nil {
		t.Fatal("expected error for blank token")
	}
}

func TestJoinRejectsOverlappingRequests(t *testing.T) {
	// An unreachable gateway: the dial fails in the background, but the
	// join guard must hold from the moment the first request is accepted.
	f := NewFactory("ws://127.0.0.1:1/session")
	eng, err := f.New("A1", nopHandler{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.Join("ch", "tok", 1); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := eng.Join("ch", "tok", 1); err == nil {
		t.Fatal("second join must be rejected while the first negotiates")
	}
	if err := eng.Leave(); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := eng.Join("ch", "tok", 1); err != nil {
		t.Fatalf("join after leave must be accepted again: %v", err)
	}
	_ = eng.Leave()
}

func TestControlsOutsideChannel(t *testing.T) {
	f := NewFactory("ws://gateway/session")
	eng, err := f.New("A1", nopHandler{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.SetMuted(true); err != ErrNotInChannel {
		t.Fatalf("expected not-in-channel error, got %v", err)
	}
	if err := eng.SetSpeakerphone(true); err != ErrNotInChannel {
		t.Fatalf("expected not-in-channel error, got %v", err)
	}
}
