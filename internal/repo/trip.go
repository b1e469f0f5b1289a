// Package repo contains all database access logic for the booking core.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
//
// The shared counters (trips.seat_available, vouchers.usage_limit) are only
// ever changed by single conditional UPDATE statements whose affected-row
// count says whether the change happened. Nothing here reads a counter and
// writes it back.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripRepo defines the persistence operations this core needs on Trips.
// Trips are created and status-transitioned elsewhere; here they are read
// and their seat inventory is consumed or released.
type TripRepo interface {
	// GetByID retrieves a single trip by its UUID primary key.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// TryReserveSeats decrements seat_available by n only if at least n seats
	// are available at the moment of the write. Reports whether it did.
	// Returns domain.ErrNotFound if the trip does not exist.
	TryReserveSeats(ctx context.Context, id uuid.UUID, n int) (bool, error)

	// ReleaseSeats increments seat_available by n, capped at seat_total.
	// Returns domain.ErrNotFound if the trip does not exist.
	ReleaseSeats(ctx context.Context, id uuid.UUID, n int) error
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `
		SELECT id, driver_id, seat_total, seat_available, price_per_seat, price_full_ride,
		       status, departure_time, created_at, updated_at
		FROM trips
		WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// TryReserveSeats is the seat inventory's compare-and-swap. The predicate and
// the decrement are evaluated by Postgres under the row lock taken by UPDATE,
// so two racing reservations for the last seats cannot both match.
func (r *pgTripRepo) TryReserveSeats(ctx context.Context, id uuid.UUID, n int) (bool, error) {
	const q = `
		UPDATE trips
		SET seat_available = seat_available - @n,
		    updated_at     = now()
		WHERE id = @id
		  AND seat_available >= @n`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "n": n})
	if err != nil {
		return false, fmt.Errorf("repo.TripRepo.TryReserveSeats: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Zero rows: either the trip is missing or it is short of seats.
	if err := r.exists(ctx, id); err != nil {
		return false, fmt.Errorf("repo.TripRepo.TryReserveSeats: %w", err)
	}
	return false, nil
}

// ReleaseSeats returns n seats to the inventory without exceeding seat_total.
func (r *pgTripRepo) ReleaseSeats(ctx context.Context, id uuid.UUID, n int) error {
	const q = `
		UPDATE trips
		SET seat_available = LEAST(seat_total, seat_available + @n),
		    updated_at     = now()
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "n": n})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.ReleaseSeats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.ReleaseSeats: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgTripRepo) exists(ctx context.Context, id uuid.UUID) error {
	var found bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = @id)`,
		pgx.NamedArgs{"id": id}).Scan(&found)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan helpers
// to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t        domain.Trip
		id       pgtype.UUID
		driverID pgtype.UUID
		fullRide pgtype.Int8
		status   string
	)

	err := s.Scan(&id, &driverID, &t.SeatTotal, &t.SeatAvailable, &t.PricePerSeat, &fullRide,
		&status, &t.DepartureTime, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.DriverID = uuid.UUID(driverID.Bytes)
	t.Status = domain.TripStatus(status)
	if fullRide.Valid {
		p := fullRide.Int64
		t.PriceFullRide = &p
	}
	return t, nil
}
