package domain

import "time"

// ManifestRow is one line of a trip's passenger manifest: a flat view of a
// booking as the driver needs it at departure. Cancelled bookings are excluded.
type ManifestRow struct {
	BookingID   string
	PassengerID string
	SeatCount   int
	FullRide    bool
	Status      BookingStatus
	TotalPrice  int64
	VoucherCode string // empty when no discount was applied
	BookingTime time.Time
}
