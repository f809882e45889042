package orch

import (
	"fmt"

	"github.com/helpora/partnercall/internal/domain"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidatingPermission
	PhasePermissionGranted
	PhasePermissionDenied
	PhaseGeneratingToken
	PhaseTokenGenerated
	PhaseInitializingEngine
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidatingPermission:
		return "validating_permission"
	case PhasePermissionGranted:
		return "permission_granted"
	case PhasePermissionDenied:
		return "permission_denied"
	case PhaseGeneratingToken:
		return "generating_token"
	case PhaseTokenGenerated:
		return "token_generated"
	case PhaseInitializingEngine:
		return "initializing_engine"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", p.String())), nil
}

// Terminal reports whether the phase ends an attempt. A superseded
// attempt has no terminal phase at all: it just stops publishing.
func (p Phase) Terminal() bool {
	return p == PhasePermissionDenied || p == PhaseReady || p == PhaseError
}

// SetupState is one observable state of the setup protocol. Fields
// beyond Phase and BookingID are populated per phase.
type SetupState struct {
	Phase     Phase            `json:"phase"`
	BookingID domain.BookingID `json:"booking_id,omitempty"`

	CustomerName  string `json:"customer_name,omitempty"`
	ServiceName   string `json:"service_name,omitempty"`
	BookingStatus string `json:"booking_status,omitempty"`

	// Reason is set on permission_denied, derived from the booking status.
	Reason string `json:"reason,omitempty"`

	Token   string             `json:"token,omitempty"`
	Channel domain.ChannelName `json:"channel,omitempty"`
	LocalID uint32             `json:"local_id,omitempty"`
	AppID   string             `json:"app_id,omitempty"`

	Err string `json:"error,omitempty"`
}
