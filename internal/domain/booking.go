package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the state of a booking.
//
//	pending  --accept--> accepted
//	pending  --cancel--> cancelled
//	accepted --cancel--> cancelled
//
// Nothing leaves cancelled.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a passenger's reservation of SeatCount seats on a trip.
// The price fields are fixed when the booking is confirmed and never recomputed.
type Booking struct {
	ID             uuid.UUID
	TripID         uuid.UUID
	PassengerID    uuid.UUID
	SeatCount      int
	FullRide       bool
	BasePrice      int64
	ServiceFee     int64
	DiscountAmount int64
	TotalPrice     int64
	VoucherCode    *string // code of the voucher whose discount was applied, if any
	Status         BookingStatus
	BookingTime    time.Time
	UpdatedAt      time.Time
}

// CanAccept reports whether the booking may move to accepted.
func (b Booking) CanAccept() bool {
	return b.Status == BookingPending
}

// IsCancelled reports whether the booking has reached its terminal state.
func (b Booking) IsCancelled() bool {
	return b.Status == BookingCancelled
}

// Quote is a non-mutating price preview, also returned as the price
// breakdown of a confirmed booking.
type Quote struct {
	TripID           uuid.UUID
	SeatCount        int
	FullRide         bool
	BasePrice        int64
	ServiceFee       int64
	Subtotal         int64
	DiscountAmount   int64
	TotalPrice       int64
	VoucherCode      *string // the code the caller asked for
	VoucherApplied   bool
	AppliedVoucher   *string // the code whose discount is reflected in TotalPrice
	IneligibleReason string  // why the requested voucher was not applied; empty when applied
}

// ApplicableVoucher is one of the caller's unused grants evaluated against a
// prospective booking.
type ApplicableVoucher struct {
	Grant            UserVoucher
	DiscountAmount   int64
	Applicable       bool
	IneligibleReason string
}

// EntityRef points a notification at the record it concerns.
type EntityRef struct {
	Kind string // "booking" or "trip"
	ID   uuid.UUID
}

// BookingRef returns the EntityRef for a booking.
func BookingRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: "booking", ID: id}
}
