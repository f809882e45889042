package core

import (
	"context"

	"github.com/helpora/partnercall/internal/domain"
)

type CallRole string

const RoleInitiator CallRole = "initiator"

// CallValidation is the authority's answer to "may this call happen
// right now for this booking".
type CallValidation struct {
	Allowed       bool   `json:"allowed"`
	BookingStatus string `json:"booking_status"`
	CustomerName  string `json:"customer_name"`
	ServiceName   string `json:"service_name"`
}

// TokenGrant carries the time-boxed media-session credentials.
type TokenGrant struct {
	Token      string             `json:"token"`
	Channel    domain.ChannelName `json:"channel_name"`
	LocalID    uint32             `json:"local_numeric_id"`
	MediaAppID string             `json:"media_app_id"`
}

// CallAuthority is the remote validation/token endpoint. Both calls
// must surface an absent endpoint as ErrEndpointNotFound so callers
// can tell "not deployed yet" apart from a real failure.
type CallAuthority interface {
	ValidateCall(ctx context.Context, booking domain.BookingID, customer domain.PartyID, role CallRole) (*CallValidation, error)
	IssueToken(ctx context.Context, booking domain.BookingID, customer domain.PartyID) (*TokenGrant, error)
}
