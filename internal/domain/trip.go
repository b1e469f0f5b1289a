// Package domain contains the core data types for the ride-sharing booking core.
// This package has zero external dependencies beyond uuid and is imported by
// every other internal package (pricing, repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus is the lifecycle state of a trip. Trips are never deleted,
// only transitioned; this core never changes a trip's status.
type TripStatus string

const (
	TripPending   TripStatus = "pending"
	TripAccepted  TripStatus = "accepted"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
	TripWithdrawn TripStatus = "withdrawn"
	TripLooking   TripStatus = "looking"
)

// Trip is a driver-offered or passenger-requested ride with a finite seat inventory.
// SeatAvailable is mutated only through the seat guard's conditional update
// and always satisfies 0 <= SeatAvailable <= SeatTotal.
type Trip struct {
	ID            uuid.UUID
	DriverID      uuid.UUID
	SeatTotal     int
	SeatAvailable int
	PricePerSeat  int64
	PriceFullRide *int64 // nil when the trip cannot be booked as a whole
	Status        TripStatus
	DepartureTime time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsOwnedBy reports whether userID is the trip's driver.
func (t Trip) IsOwnedBy(userID uuid.UUID) bool {
	return t.DriverID == userID
}
