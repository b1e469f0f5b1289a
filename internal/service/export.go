package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
	"github.com/pkordes/rideshare-booking/internal/repo"
)

// ExportService assembles a trip's passenger manifest for its driver.
type ExportService struct {
	trips    repo.TripRepo
	bookings repo.BookingRepo
}

// NewExportService constructs an ExportService backed by the provided repos.
func NewExportService(trips repo.TripRepo, bookings repo.BookingRepo) *ExportService {
	return &ExportService{trips: trips, bookings: bookings}
}

// Manifest returns one ManifestRow per pending or accepted booking on the
// trip, oldest first. Only the trip's owner may export it.
func (s *ExportService) Manifest(ctx context.Context, tripID, actingUserID uuid.UUID) ([]domain.ManifestRow, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Manifest: %w", err)
	}
	if !trip.IsOwnedBy(actingUserID) {
		return nil, fmt.Errorf("service.ExportService.Manifest: %w", domain.ErrForbidden)
	}

	bookings, err := s.bookings.ListActiveByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Manifest: %w", err)
	}

	rows := make([]domain.ManifestRow, 0, len(bookings))
	for _, b := range bookings {
		row := domain.ManifestRow{
			BookingID:   b.ID.String(),
			PassengerID: b.PassengerID.String(),
			SeatCount:   b.SeatCount,
			FullRide:    b.FullRide,
			Status:      b.Status,
			TotalPrice:  b.TotalPrice,
			BookingTime: b.BookingTime,
		}
		if b.VoucherCode != nil {
			row.VoucherCode = *b.VoucherCode
		}
		rows = append(rows, row)
	}
	return rows, nil
}
