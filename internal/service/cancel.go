package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
	"github.com/pkordes/rideshare-booking/internal/repo"
)

// CancellationService reverses a booking's seat consumption.
// Voucher quota consumed at confirm time is not given back.
type CancellationService struct {
	trips    repo.TripRepo
	bookings repo.BookingRepo
	tx       repo.TxRunner
	notifier Notifier
	log      *slog.Logger
}

// NewCancellationService constructs a CancellationService backed by the provided repos.
func NewCancellationService(trips repo.TripRepo, bookings repo.BookingRepo, tx repo.TxRunner, notifier Notifier, log *slog.Logger) *CancellationService {
	return &CancellationService{
		trips:    trips,
		bookings: bookings,
		tx:       tx,
		notifier: notifier,
		log:      log,
	}
}

// Cancel cancels a pending or accepted booking on behalf of its passenger
// or the trip's owner, then releases its seats and tells the other party.
//
// The status change is conditional, so of two racing cancels exactly one
// releases seats; the other gets domain.ErrAlreadyCancelled. The status
// change and the seat release commit together, so a failed release leaves
// the booking as it was and the cancel can be retried.
func (s *CancellationService) Cancel(ctx context.Context, bookingID, actingUserID uuid.UUID) (domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.CancellationService.Cancel: %w", err)
	}
	trip, err := s.trips.GetByID(ctx, b.TripID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.CancellationService.Cancel: %w", err)
	}

	byPassenger := b.PassengerID == actingUserID
	if !byPassenger && !trip.IsOwnedBy(actingUserID) {
		return domain.Booking{}, fmt.Errorf("service.CancellationService.Cancel: %w", domain.ErrForbidden)
	}
	if b.IsCancelled() {
		return domain.Booking{}, fmt.Errorf("service.CancellationService.Cancel: %w", domain.ErrAlreadyCancelled)
	}

	var cancelled domain.Booking
	err = s.tx.InTx(ctx, func(st repo.Stores) error {
		c, err := st.Bookings.Transition(ctx, b.ID, domain.BookingCancelled, domain.BookingPending, domain.BookingAccepted)
		if err != nil {
			return err
		}
		if err := NewSeatGuard(st.Trips).Release(ctx, trip.ID, c.SeatCount); err != nil {
			return err
		}
		cancelled = c
		return nil
	})
	if errors.Is(err, domain.ErrInvalidState) {
		return domain.Booking{}, fmt.Errorf("service.CancellationService.Cancel: %w", domain.ErrAlreadyCancelled)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "booking not cancelled",
			slog.String("booking_id", b.ID.String()),
			slog.String("trip_id", trip.ID.String()),
			slog.Int("seats", b.SeatCount),
			slog.String("error", err.Error()),
		)
		return domain.Booking{}, fmt.Errorf("service.CancellationService.Cancel: %w", err)
	}

	recipient, who := trip.DriverID, "The passenger"
	if !byPassenger {
		recipient, who = cancelled.PassengerID, "The driver"
	}
	notify(ctx, s.notifier, s.log, recipient,
		"Booking cancelled",
		fmt.Sprintf("%s cancelled a booking of %d seat(s).", who, cancelled.SeatCount),
		domain.BookingRef(cancelled.ID))

	return cancelled, nil
}
