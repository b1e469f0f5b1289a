package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripSeed describes a trip row to insert. Trips are created outside the
// booking core, so tests insert them directly.
type TripSeed struct {
	DriverID      uuid.UUID
	SeatTotal     int
	SeatAvailable int
	PricePerSeat  int64
	PriceFullRide *int64
}

// SeedTrip inserts a trip and returns its id.
func SeedTrip(t *testing.T, q Querier, s TripSeed) uuid.UUID {
	t.Helper()
	if s.DriverID == uuid.Nil {
		s.DriverID = uuid.New()
	}

	var id uuid.UUID
	err := q.QueryRow(context.Background(), `
		INSERT INTO trips (driver_id, seat_total, seat_available, price_per_seat, price_full_ride, departure_time)
		VALUES (@driver_id, @seat_total, @seat_available, @price_per_seat, @price_full_ride, @departure_time)
		RETURNING id`,
		pgx.NamedArgs{
			"driver_id":       s.DriverID,
			"seat_total":      s.SeatTotal,
			"seat_available":  s.SeatAvailable,
			"price_per_seat":  s.PricePerSeat,
			"price_full_ride": s.PriceFullRide,
			"departure_time":  time.Now().Add(24 * time.Hour).UTC(),
		}).Scan(&id)
	if err != nil {
		t.Fatalf("testutil.SeedTrip: %v", err)
	}
	return id
}

// VoucherSeed describes a voucher row to insert.
type VoucherSeed struct {
	Code          string
	DiscountType  string // "percent" or "fixed"
	DiscountValue int64
	MinOrderValue *int64
	ExpiryDate    *time.Time
	UsageLimit    *int
}

// SeedVoucher inserts a voucher and returns its id.
func SeedVoucher(t *testing.T, q Querier, s VoucherSeed) uuid.UUID {
	t.Helper()
	if s.Code == "" {
		s.Code = "TEST-" + uuid.NewString()[:8]
	}

	var id uuid.UUID
	err := q.QueryRow(context.Background(), `
		INSERT INTO vouchers (code, discount_type, discount_value, min_order_value, expiry_date, usage_limit)
		VALUES (@code, @discount_type, @discount_value, @min_order_value, @expiry_date, @usage_limit)
		RETURNING id`,
		pgx.NamedArgs{
			"code":            s.Code,
			"discount_type":   s.DiscountType,
			"discount_value":  s.DiscountValue,
			"min_order_value": s.MinOrderValue,
			"expiry_date":     s.ExpiryDate,
			"usage_limit":     s.UsageLimit,
		}).Scan(&id)
	if err != nil {
		t.Fatalf("testutil.SeedVoucher: %v", err)
	}
	return id
}

// SeedGrant gives userID one unused grant of voucherID and returns the grant id.
func SeedGrant(t *testing.T, q Querier, userID, voucherID uuid.UUID) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := q.QueryRow(context.Background(), `
		INSERT INTO user_vouchers (user_id, voucher_id)
		VALUES (@user_id, @voucher_id)
		RETURNING id`,
		pgx.NamedArgs{"user_id": userID, "voucher_id": voucherID}).Scan(&id)
	if err != nil {
		t.Fatalf("testutil.SeedGrant: %v", err)
	}
	return id
}
