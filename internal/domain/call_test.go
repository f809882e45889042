package domain

import (
	"errors"
	"testing"
)

func TestNewCallInviteValidation(t *testing.T) {
	if _, err := NewCallInvite("", "P1", "U1", "ch", "tok", "A1"); !errors.Is(err, ErrBookingIDEmpty) {
		t.Fatalf("expected booking id error, got %v", err)
	}
	if _, err := NewCallInvite("B1", "", "U1", "ch", "tok", "A1"); !errors.Is(err, ErrPartyIDEmpty) {
		t.Fatalf("expected party id error, got %v", err)
	}
	rec, err := NewCallInvite("B1", "P1", "U1", "ch_B1", "tok", "A1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != CallInviting || rec.InitiatedBy != InitiatedByProvider {
		t.Fatalf("unexpected defaults: %+v", rec)
	}
	if rec.CreatedAt.IsZero() || !rec.CreatedAt.Equal(rec.UpdatedAt) {
		t.Fatalf("expected matching creation stamps: %+v", rec)
	}
}

func TestCallStatusIsLive(t *testing.T) {
	cases := []struct {
		status CallStatus
		live   bool
	}{
		{CallInviting, true},
		{CallActive, true},
		{CallEnded, false},
		{CallStatus("garbage"), false},
	}
	for _, tc := range cases {
		if got := tc.status.IsLive(); got != tc.live {
			t.Fatalf("IsLive(%q) = %v, want %v", tc.status, got, tc.live)
		}
	}
}

func TestCustomerRecordHasBooking(t *testing.T) {
	rec := CustomerRecord{ID: "U1", Bookings: []BookingID{"B1", "B2"}}
	if !rec.HasBooking("B2") {
		t.Fatal("expected B2 to be found")
	}
	if rec.HasBooking("B404") {
		t.Fatal("did not expect B404")
	}
}
