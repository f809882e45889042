// Package domain contains entity without logic, just meta-data
package domain

import "errors"

var (
	ErrBookingIDEmpty = errors.New("booking id empty")
	ErrPartyIDEmpty   = errors.New("party id empty")
)

type (
	BookingID   string
	PartyID     string
	ChannelName string
)

// CustomerRecord is one document of the identity resolution source:
// a customer with the bookings they own embedded as a plain list.
// There is no index by booking id; callers scan.
type CustomerRecord struct {
	ID       PartyID     `json:"id"`
	Name     string      `json:"name"`
	Bookings []BookingID `json:"bookings"`
}

// HasBooking reports whether the record's embedded booking list
// contains the given id.
func (c *CustomerRecord) HasBooking(id BookingID) bool {
	for _, b := range c.Bookings {
		if b == id {
			return true
		}
	}
	return false
}
