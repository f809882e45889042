package domain

import "time"

type CallStatus string

const (
	CallInviting CallStatus = "inviting"
	CallActive   CallStatus = "active"
	CallEnded    CallStatus = "ended"
)

// IsLive reports whether the status still occupies the booking's
// single live-record slot.
func (s CallStatus) IsLive() bool {
	return s == CallInviting || s == CallActive
}

type InitiatedBy string

const (
	InitiatedByProvider InitiatedBy = "provider"
	InitiatedByCustomer InitiatedBy = "customer"
)

// CallRecord is the shared signaling record, keyed by BookingID.
// It is the only channel through which the counterparty discovers an
// invitation. Records are never deleted; ending a call flips the
// status to ended and keeps the row as audit trail.
type CallRecord struct {
	ID              string      `json:"id"`
	BookingID       BookingID   `json:"booking_id"`
	ProviderID      PartyID     `json:"provider_id"`
	CustomerID      PartyID     `json:"customer_id"`
	Status          CallStatus  `json:"status"`
	Channel         ChannelName `json:"channel"`
	Token           string      `json:"token"`
	MediaAppID      string      `json:"media_app_id"`
	InitiatedBy     InitiatedBy `json:"initiated_by"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	DurationSeconds int         `json:"duration_seconds,omitempty"`
	EndedAt         *time.Time  `json:"ended_at,omitempty"`
}

// NewCallInvite avoids raw literals in adapters and keeps construction obvious.
func NewCallInvite(booking BookingID, provider, customer PartyID, channel ChannelName, token, appID string) (*CallRecord, error) {
	if booking == "" {
		return nil, ErrBookingIDEmpty
	}
	if provider == "" || customer == "" {
		return nil, ErrPartyIDEmpty
	}
	now := time.Now().UTC()
	return &CallRecord{
		BookingID:   booking,
		ProviderID:  provider,
		CustomerID:  customer,
		Status:      CallInviting,
		Channel:     channel,
		Token:       token,
		MediaAppID:  appID,
		InitiatedBy: InitiatedByProvider,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
