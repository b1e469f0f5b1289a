package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// BookingRepo defines the persistence operations for Bookings.
// Bookings are never deleted; cancellation is a status change.
type BookingRepo interface {
	// Create inserts a new booking and returns the persisted record
	// (with DB-generated id, booking_time, and updated_at populated).
	Create(ctx context.Context, b domain.Booking) (domain.Booking, error)

	// GetByID retrieves a single booking by its UUID primary key.
	// Returns domain.ErrNotFound if no booking with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// Transition sets the booking's status to `to` only if its current status
	// is one of `from`, and returns the updated record.
	// Returns domain.ErrNotFound if the booking does not exist and
	// domain.ErrInvalidState if it exists but its status is not in `from`.
	Transition(ctx context.Context, id uuid.UUID, to domain.BookingStatus, from ...domain.BookingStatus) (domain.Booking, error)

	// ListByPassenger returns one page of the passenger's bookings, newest first,
	// and the total number of bookings the passenger has.
	ListByPassenger(ctx context.Context, passengerID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error)

	// ListByTrip returns one page of a trip's bookings in booking order and the
	// total number of bookings on the trip.
	ListByTrip(ctx context.Context, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error)

	// ListActiveByTrip returns every non-cancelled booking on the trip in booking order.
	ListActiveByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Booking, error)
}

// pgBookingRepo is the Postgres implementation of BookingRepo.
type pgBookingRepo struct {
	db db
}

// NewBookingRepo constructs a BookingRepo backed by the provided db connection.
func NewBookingRepo(db db) BookingRepo {
	return &pgBookingRepo{db: db}
}

const bookingColumns = `
	id, trip_id, passenger_id, seat_count, full_ride, base_price, service_fee,
	discount_amount, total_price, voucher_code, status, booking_time, updated_at`

// Create inserts a new booking row and returns the full persisted record.
func (r *pgBookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	q := `
		INSERT INTO bookings (trip_id, passenger_id, seat_count, full_ride, base_price, service_fee,
		                      discount_amount, total_price, voucher_code, status)
		VALUES (@trip_id, @passenger_id, @seat_count, @full_ride, @base_price, @service_fee,
		        @discount_amount, @total_price, @voucher_code, @status)
		RETURNING ` + bookingColumns

	args := pgx.NamedArgs{
		"trip_id":         b.TripID,
		"passenger_id":    b.PassengerID,
		"seat_count":      b.SeatCount,
		"full_ride":       b.FullRide,
		"base_price":      b.BasePrice,
		"service_fee":     b.ServiceFee,
		"discount_amount": b.DiscountAmount,
		"total_price":     b.TotalPrice,
		"voucher_code":    b.VoucherCode, // nil becomes NULL
		"status":          string(b.Status),
	}

	result, err := scanBooking(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a booking by primary key.
func (r *pgBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = @id`

	result, err := scanBooking(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.GetByID: %w", err)
	}
	return result, nil
}

// Transition performs a conditional status update so that racing transitions
// on the same booking are decided by Postgres rather than by a prior read.
func (r *pgBookingRepo) Transition(ctx context.Context, id uuid.UUID, to domain.BookingStatus, from ...domain.BookingStatus) (domain.Booking, error) {
	q := `
		UPDATE bookings
		SET status     = @to,
		    updated_at = now()
		WHERE id = @id
		  AND status = ANY(@from)
		RETURNING ` + bookingColumns

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	result, err := scanBooking(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "to": string(to), "from": fromStrs}))
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Transition: %w", err)
	}

	// No row updated: distinguish a missing booking from a status mismatch.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Transition: %w", getErr)
	}
	return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Transition: %w", domain.ErrInvalidState)
}

// ListByPassenger returns one page of the passenger's bookings.
func (r *pgBookingRepo) ListByPassenger(ctx context.Context, passengerID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	const countQ = `SELECT count(*) FROM bookings WHERE passenger_id = @owner`
	q := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE passenger_id = @owner
		ORDER BY booking_time DESC, id
		LIMIT @limit OFFSET @offset`

	bookings, total, err := r.listPaged(ctx, countQ, q, passengerID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.BookingRepo.ListByPassenger: %w", err)
	}
	return bookings, total, nil
}

// ListByTrip returns one page of the trip's bookings.
func (r *pgBookingRepo) ListByTrip(ctx context.Context, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	const countQ = `SELECT count(*) FROM bookings WHERE trip_id = @owner`
	q := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE trip_id = @owner
		ORDER BY booking_time, id
		LIMIT @limit OFFSET @offset`

	bookings, total, err := r.listPaged(ctx, countQ, q, tripID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.BookingRepo.ListByTrip: %w", err)
	}
	return bookings, total, nil
}

// ListActiveByTrip returns every booking on the trip that is not cancelled.
func (r *pgBookingRepo) ListActiveByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Booking, error) {
	q := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE trip_id = @trip_id
		  AND status <> 'cancelled'
		ORDER BY booking_time, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListActiveByTrip: %w", err)
	}
	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListActiveByTrip: %w", err)
	}
	return bookings, nil
}

func (r *pgBookingRepo) listPaged(ctx context.Context, countQ, q string, owner uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"owner": owner}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{
		"owner":  owner,
		"limit":  p.Limit,
		"offset": p.Offset(),
	})
	if err != nil {
		return nil, 0, err
	}
	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// collectBookings drains rows into a non-nil slice and closes them.
func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()

	bookings := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return bookings, nil
}

// scanBooking maps a single database row into a domain.Booking.
func scanBooking(s scanner) (domain.Booking, error) {
	var (
		b           domain.Booking
		id          pgtype.UUID
		tripID      pgtype.UUID
		passengerID pgtype.UUID
		voucherCode pgtype.Text
		status      string
	)

	err := s.Scan(&id, &tripID, &passengerID, &b.SeatCount, &b.FullRide, &b.BasePrice, &b.ServiceFee,
		&b.DiscountAmount, &b.TotalPrice, &voucherCode, &status, &b.BookingTime, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, err
	}

	b.ID = uuid.UUID(id.Bytes)
	b.TripID = uuid.UUID(tripID.Bytes)
	b.PassengerID = uuid.UUID(passengerID.Bytes)
	b.Status = domain.BookingStatus(status)
	if voucherCode.Valid {
		c := voucherCode.String
		b.VoucherCode = &c
	}
	return b, nil
}
