// Package pricing turns a trip's fare parameters into the amounts a passenger
// pays: base price, service fee, voucher discount and total.
// Everything here is pure and safe to call any number of times for a quote.
// All amounts are integer currency units.
package pricing

import (
	"fmt"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// DefaultFeeBasisPoints is the platform service fee: 200 bp = 2% of the base price.
const DefaultFeeBasisPoints = 200

// Fare holds the trip fields that determine the base price.
type Fare struct {
	PricePerSeat  int64
	PriceFullRide *int64
}

// FareOf extracts the fare fields from a trip.
func FareOf(t domain.Trip) Fare {
	return Fare{PricePerSeat: t.PricePerSeat, PriceFullRide: t.PriceFullRide}
}

// Price is the undiscounted breakdown of a booking.
type Price struct {
	BasePrice  int64
	ServiceFee int64
}

// Subtotal is the amount a voucher discount is computed against.
func (p Price) Subtotal() int64 {
	return p.BasePrice + p.ServiceFee
}

// Calculator computes base price and service fee.
type Calculator struct {
	feeBasisPoints int64
}

// NewCalculator returns a Calculator charging feeBasisPoints/10000 of the base
// price as service fee. A negative value is rejected.
func NewCalculator(feeBasisPoints int64) (Calculator, error) {
	if feeBasisPoints < 0 {
		return Calculator{}, fmt.Errorf("pricing: fee basis points must be >= 0, got %d", feeBasisPoints)
	}
	return Calculator{feeBasisPoints: feeBasisPoints}, nil
}

// Calculate returns the base price and service fee for seatCount seats.
// When fullRide is set and the trip has a whole-ride price, that price is used
// regardless of seatCount.
func (c Calculator) Calculate(f Fare, seatCount int, fullRide bool) Price {
	var base int64
	if fullRide && f.PriceFullRide != nil {
		base = *f.PriceFullRide
	} else {
		base = int64(seatCount) * f.PricePerSeat
	}
	return Price{
		BasePrice:  base,
		ServiceFee: roundDiv(base*c.feeBasisPoints, 10_000),
	}
}

// Total applies discount to the subtotal, never going below zero.
func Total(p Price, discount int64) int64 {
	return max(0, p.Subtotal()-discount)
}

// roundDiv divides n by d rounding to the nearest integer, halves away from zero.
func roundDiv(n, d int64) int64 {
	if n < 0 {
		return -roundDiv(-n, d)
	}
	return (n + d/2) / d
}
