// Package core holds the interfaces the app layer is written against.
// Adapters implement them; the app never touches transport types.
package core

import "github.com/helpora/partnercall/internal/domain"

// EngineHandler receives asynchronous callbacks from a media engine.
// Exactly one handler instance is registered per engine, at creation;
// engine state never advances on a call's return value, only on these.
type EngineHandler interface {
	OnJoinSuccess(channel domain.ChannelName)
	OnPeerJoined()
	OnPeerLeft()
	OnLeftChannel()
	OnEngineError(err error)
}

// MediaEngine is the real-time audio transport handle. Join and Leave
// are fire-and-forget: they return once the request is accepted, and
// the outcome arrives through the EngineHandler.
type MediaEngine interface {
	Join(channel domain.ChannelName, token string, localID uint32) error
	Leave() error
	SetMuted(muted bool) error
	SetSpeakerphone(on bool) error
	// Destroy releases the engine. The handle is unusable afterwards.
	Destroy()
}

// EngineFactory constructs an engine bound to one app identity.
// The credential set is issued per call by the token authority.
type EngineFactory interface {
	New(appID string, h EngineHandler) (MediaEngine, error)
}
