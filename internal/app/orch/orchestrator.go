// Package orch runs the invite-side call setup protocol as an
// explicit state machine. It is long-lived and independent of any
// screen: the UI may disappear and come back mid-attempt.
package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/app/media"
	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

const defaultRemoteTimeout = 15 * time.Second

// Options carries the optional collaborators of an Orchestrator.
type Options struct {
	// RemoteTimeout bounds every remote call of one setup step.
	// Zero means defaultRemoteTimeout.
	RemoteTimeout time.Duration
	// CallLog, when set, receives a best-effort local history row on
	// EndCallAndLog.
	CallLog core.CallLogger
	// OnEnded is invoked after EndSetup finishes; the host uses it to
	// stop itself.
	OnEnded func()
}

// Orchestrator drives setup attempts. At most one non-terminal attempt
// exists at a time: StartSetup revokes the previous attempt before the
// new one reaches its first suspension point.
type Orchestrator struct {
	directory core.Directory
	authority core.CallAuthority
	signals   core.SignalingStore
	media     *media.Manager
	provider  domain.PartyID
	timeout   time.Duration
	callLog   core.CallLogger
	onEnded   func()

	hub *Hub

	mu     sync.Mutex
	cancel context.CancelFunc
	state  SetupState
}

func New(dir core.Directory, auth core.CallAuthority, store core.SignalingStore, m *media.Manager, provider domain.PartyID, opts Options) *Orchestrator {
	timeout := opts.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Orchestrator{
		directory: dir,
		authority: auth,
		signals:   store,
		media:     m,
		provider:  provider,
		timeout:   timeout,
		callLog:   opts.CallLog,
		onEnded:   opts.OnEnded,
		hub:       NewHub(64),
		state:     SetupState{Phase: PhaseIdle},
	}
}

// SetProvider updates the local party identity used for invite
// records. Called once authentication completes.
func (o *Orchestrator) SetProvider(id domain.PartyID) {
	o.mu.Lock()
	o.provider = id
	o.mu.Unlock()
}

// State returns the last committed setup state.
func (o *Orchestrator) State() SetupState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Watch subscribes to state transitions; see Hub.Subscribe.
func (o *Orchestrator) Watch(fromSeq int64) ([]StateEvent, <-chan StateEvent, func()) {
	return o.hub.Subscribe(fromSeq)
}

// StartSetup begins a new attempt for the booking, revoking any
// in-flight attempt first.
func (o *Orchestrator) StartSetup(booking domain.BookingID) {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.mu.Unlock()

	log.Info().Str("module", "app.orch").Str("booking", string(booking)).Msg("setup attempt started")
	go o.run(ctx, booking)
}

// EndSetup revokes any in-flight attempt, resets to idle, leaves the
// media channel and signals the host to stop. Idempotent.
func (o *Orchestrator) EndSetup() {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state = SetupState{Phase: PhaseIdle}
	o.hub.Publish(o.state)
	o.mu.Unlock()

	o.media.LeaveChannel()
	log.Info().Str("module", "app.orch").Msg("setup ended")
	if o.onEnded != nil {
		o.onEnded()
	}
}

// EndCallAndLog stamps the booking's signaling record as ended with
// the given duration and appends a local history row. Both writes are
// best-effort: failures are logged and EndSetup runs regardless.
func (o *Orchestrator) EndCallAndLog(durationSeconds int, booking domain.BookingID) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	if err := o.signals.EndCall(ctx, booking, durationSeconds); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("booking", string(booking)).Msg("end-call record update failed")
	}
	if o.callLog != nil {
		if err := o.callLog.Record(ctx, booking, durationSeconds, time.Now().UTC()); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Str("booking", string(booking)).Msg("call history write failed")
		}
	}
	o.EndSetup()
}

// commit applies the state unless the attempt was superseded. The
// check and the write share the orchestrator lock, so a newer
// attempt's revoke is linearized with this attempt's transitions.
func (o *Orchestrator) commit(ctx context.Context, st SetupState) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ctx.Err() != nil {
		log.Debug().Str("module", "app.orch").Str("phase", st.Phase.String()).Msg("attempt superseded, transition discarded")
		return false
	}
	o.state = st
	o.hub.Publish(st)
	log.Info().Str("module", "app.orch").Str("phase", st.Phase.String()).Str("booking", string(st.BookingID)).Msg("setup state")
	return true
}

// failUnlessSuperseded maps a step failure to the terminal error
// state, except when the attempt itself was cancelled: a superseded
// attempt stops silently.
func (o *Orchestrator) failUnlessSuperseded(ctx context.Context, booking domain.BookingID, msg string) {
	if ctx.Err() != nil {
		return
	}
	o.commit(ctx, SetupState{Phase: PhaseError, BookingID: booking, Err: msg})
}

func (o *Orchestrator) run(ctx context.Context, booking domain.BookingID) {
	if !o.commit(ctx, SetupState{Phase: PhaseValidatingPermission, BookingID: booking}) {
		return
	}

	customer, ok := o.resolveCustomer(ctx, booking)
	if !ok {
		return
	}

	validation, ok := o.validate(ctx, booking, customer)
	if !ok {
		return
	}
	if !validation.Allowed {
		o.commit(ctx, SetupState{
			Phase:         PhasePermissionDenied,
			BookingID:     booking,
			BookingStatus: validation.BookingStatus,
			Reason:        deniedReason(validation.BookingStatus),
		})
		return
	}
	if !o.commit(ctx, SetupState{
		Phase:         PhasePermissionGranted,
		BookingID:     booking,
		CustomerName:  validation.CustomerName,
		ServiceName:   validation.ServiceName,
		BookingStatus: validation.BookingStatus,
	}) {
		return
	}

	grant, ok := o.issueToken(ctx, booking, customer)
	if !ok {
		return
	}
	if !o.commit(ctx, SetupState{
		Phase:     PhaseTokenGenerated,
		BookingID: booking,
		Token:     grant.Token,
		Channel:   grant.Channel,
		LocalID:   grant.LocalID,
		AppID:     grant.MediaAppID,
	}) {
		return
	}

	o.writeInvite(ctx, booking, customer, grant)

	if !o.commit(ctx, SetupState{Phase: PhaseInitializingEngine, BookingID: booking, Channel: grant.Channel}) {
		return
	}
	if !o.joinMedia(ctx, grant) {
		return
	}
	if o.media.State() == media.StateError {
		o.failUnlessSuperseded(ctx, booking, "media engine failed to start")
		return
	}
	o.commit(ctx, SetupState{Phase: PhaseReady, BookingID: booking, Channel: grant.Channel})
}

// joinMedia performs the engine join under the orchestrator lock, like
// commit: either a newer attempt's revoke lands first and the join is
// discarded, or the join completes before the successor's first
// transition. A revoked attempt can never write into the media manager.
func (o *Orchestrator) joinMedia(ctx context.Context, grant *core.TokenGrant) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ctx.Err() != nil {
		log.Debug().Str("module", "app.orch").Msg("attempt superseded, engine join discarded")
		return false
	}
	o.media.JoinChannel(grant.Channel, grant.Token, grant.LocalID, grant.MediaAppID)
	return true
}

// resolveCustomer scans the customer collection for the record whose
// embedded booking list contains the id. There is no index to use.
func (o *Orchestrator) resolveCustomer(ctx context.Context, booking domain.BookingID) (*domain.CustomerRecord, bool) {
	rctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	customers, err := o.directory.ListCustomers(rctx)
	if err != nil {
		o.failUnlessSuperseded(ctx, booking, remoteErrMessage(err))
		return nil, false
	}
	for i := range customers {
		if customers[i].HasBooking(booking) {
			return &customers[i], true
		}
	}
	o.failUnlessSuperseded(ctx, booking, "could not find booking owner")
	return nil, false
}

func (o *Orchestrator) validate(ctx context.Context, booking domain.BookingID, customer *domain.CustomerRecord) (*core.CallValidation, bool) {
	rctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	v, err := o.authority.ValidateCall(rctx, booking, customer.ID, core.RoleInitiator)
	switch {
	case errors.Is(err, core.ErrEndpointNotFound):
		// Validation not deployed yet: degrade to granted-with-defaults
		// instead of blocking every call behind an absent endpoint.
		log.Warn().Str("module", "app.orch").Str("booking", string(booking)).Msg("validation endpoint absent, allowing call with defaults")
		return &core.CallValidation{
			Allowed:       true,
			BookingStatus: "unknown",
			CustomerName:  "Customer",
			ServiceName:   "Service Call",
		}, true
	case err != nil:
		o.failUnlessSuperseded(ctx, booking, remoteErrMessage(err))
		return nil, false
	}
	return v, true
}

func (o *Orchestrator) issueToken(ctx context.Context, booking domain.BookingID, customer *domain.CustomerRecord) (*core.TokenGrant, bool) {
	if !o.commit(ctx, SetupState{Phase: PhaseGeneratingToken, BookingID: booking}) {
		return nil, false
	}
	rctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	grant, err := o.authority.IssueToken(rctx, booking, customer.ID)
	switch {
	case errors.Is(err, core.ErrEndpointNotFound):
		// Unlike validation, no token means no call. Fatal.
		o.failUnlessSuperseded(ctx, booking, "voice calling service not available")
		return nil, false
	case err != nil:
		o.failUnlessSuperseded(ctx, booking, remoteErrMessage(err))
		return nil, false
	}
	return grant, true
}

// writeInvite publishes the signaling record the counterparty
// discovers the call through. Best-effort: a failed write impairs
// remote discovery but the local call still proceeds.
func (o *Orchestrator) writeInvite(ctx context.Context, booking domain.BookingID, customer *domain.CustomerRecord, grant *core.TokenGrant) {
	o.mu.Lock()
	provider := o.provider
	o.mu.Unlock()
	rec, err := domain.NewCallInvite(booking, provider, customer.ID, grant.Channel, grant.Token, grant.MediaAppID)
	if err == nil {
		wctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		err = o.signals.CreateInvite(wctx, rec)
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("booking", string(booking)).Msg("invite record write failed, continuing setup")
	}
}

func deniedReason(bookingStatus string) string {
	if bookingStatus == "" {
		return "calls are not available for this booking"
	}
	return fmt.Sprintf("calls are not available while the booking is %s", bookingStatus)
}

func remoteErrMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "remote service timed out"
	}
	return err.Error()
}
