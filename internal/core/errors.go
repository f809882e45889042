package core

import "errors"

var (
	// ErrEndpointNotFound marks a remote authority endpoint that is
	// absent (not yet deployed), as opposed to failing.
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrNoLiveCall is returned by stores when no live record exists
	// for the booking.
	ErrNoLiveCall = errors.New("no live call record")

	// ErrCallInProgress is returned when a live record already
	// occupies the booking's slot.
	ErrCallInProgress = errors.New("live call record already exists")

	// ErrRecordNotFound is returned by point reads with no match.
	ErrRecordNotFound = errors.New("call record not found")
)
