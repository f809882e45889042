// Package listen watches the signaling store for invitations addressed
// to the local party.
package listen

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

// ErrSubscriptionDropped reports a subscription channel that closed
// while the listener's context was still live, e.g. a watch socket
// read error. Callers are expected to re-subscribe.
var ErrSubscriptionDropped = errors.New("invite subscription dropped")

// Invite is what the presenter receives for each new inbound call.
type Invite struct {
	RecordID    string             `json:"record_id"`
	BookingID   domain.BookingID   `json:"booking_id"`
	CustomerID  domain.PartyID     `json:"customer_id"`
	Channel     domain.ChannelName `json:"channel"`
	InitiatedBy domain.InitiatedBy `json:"initiated_by"`
}

// Presenter triggers local incoming-call presentation.
type Presenter interface {
	PresentIncomingCall(Invite)
}

// Listener maintains exactly one live subscription filtered to
// records addressed to the local party with inviting status. Only
// added-type changes trigger presentation; modifications to records
// already seen are ignored so a call is never presented twice.
type Listener struct {
	store     core.SignalingStore
	presenter Presenter
	localID   domain.PartyID
}

func New(store core.SignalingStore, presenter Presenter, localID domain.PartyID) *Listener {
	return &Listener{store: store, presenter: presenter, localID: localID}
}

// Run blocks until ctx is done or the subscription drops.
func (l *Listener) Run(ctx context.Context) error {
	ch, err := l.store.Subscribe(ctx, core.RecordFilter{
		ProviderID: l.localID,
		Status:     domain.CallInviting,
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "app.listen").Str("provider", string(l.localID)).Msg("invite subscription established")

	for change := range ch {
		if change.Kind != core.ChangeAdded {
			continue
		}
		rec := change.Record
		log.Info().Str("module", "app.listen").Str("booking", string(rec.BookingID)).Str("customer", string(rec.CustomerID)).Msg("incoming call invite")
		l.presenter.PresentIncomingCall(Invite{
			RecordID:    rec.ID,
			BookingID:   rec.BookingID,
			CustomerID:  rec.CustomerID,
			Channel:     rec.Channel,
			InitiatedBy: rec.InitiatedBy,
		})
	}
	if err := ctx.Err(); err != nil {
		log.Info().Str("module", "app.listen").Msg("invite subscription closed")
		return err
	}
	log.Warn().Str("module", "app.listen").Str("provider", string(l.localID)).Msg("invite subscription dropped")
	return ErrSubscriptionDropped
}
