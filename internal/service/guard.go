package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
	"github.com/pkordes/rideshare-booking/internal/repo"
)

// SeatGuard is the only way this package changes a trip's seat inventory.
// Reservation is a single conditional decrement in the store, never a read
// followed by a write.
type SeatGuard struct {
	trips repo.TripRepo
}

// NewSeatGuard constructs a SeatGuard over the trip store.
func NewSeatGuard(trips repo.TripRepo) *SeatGuard {
	return &SeatGuard{trips: trips}
}

// TryReserve takes n seats from the trip or fails with domain.ErrInsufficientSeats,
// leaving the inventory untouched.
func (g *SeatGuard) TryReserve(ctx context.Context, tripID uuid.UUID, n int) error {
	ok, err := g.trips.TryReserveSeats(ctx, tripID, n)
	if err != nil {
		return fmt.Errorf("service.SeatGuard.TryReserve: %w", err)
	}
	if !ok {
		return fmt.Errorf("service.SeatGuard.TryReserve: %d seat(s) on trip %s: %w", n, tripID, domain.ErrInsufficientSeats)
	}
	return nil
}

// Release gives n seats back to the trip, never exceeding its total.
func (g *SeatGuard) Release(ctx context.Context, tripID uuid.UUID, n int) error {
	if err := g.trips.ReleaseSeats(ctx, tripID, n); err != nil {
		return fmt.Errorf("service.SeatGuard.Release: %w", err)
	}
	return nil
}

// QuotaGuard is the only way this package changes a voucher's global usage
// limit. It is independent of marking an individual grant as used.
type QuotaGuard struct {
	vouchers repo.VoucherRepo
}

// NewQuotaGuard constructs a QuotaGuard over the voucher store.
func NewQuotaGuard(vouchers repo.VoucherRepo) *QuotaGuard {
	return &QuotaGuard{vouchers: vouchers}
}

// TryConsume takes one use of the voucher. It reports false when a finite
// limit is already exhausted; unlimited vouchers always succeed.
func (g *QuotaGuard) TryConsume(ctx context.Context, voucherID uuid.UUID) (bool, error) {
	ok, err := g.vouchers.TryConsumeQuota(ctx, voucherID)
	if err != nil {
		return false, fmt.Errorf("service.QuotaGuard.TryConsume: %w", err)
	}
	return ok, nil
}

// Restore gives back a use taken by TryConsume. Only call it to undo a
// consumption whose booking never came into existence.
func (g *QuotaGuard) Restore(ctx context.Context, voucherID uuid.UUID) error {
	if err := g.vouchers.RestoreQuota(ctx, voucherID); err != nil {
		return fmt.Errorf("service.QuotaGuard.Restore: %w", err)
	}
	return nil
}
