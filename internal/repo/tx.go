package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores groups the repos a unit of work may touch. Inside TxRunner.InTx
// every one of them runs on the same transaction.
type Stores struct {
	Trips    TripRepo
	Vouchers VoucherRepo
	Bookings BookingRepo
}

// TxRunner runs fn in a single database transaction. The transaction
// commits when fn returns nil and rolls back on any error, which InTx
// returns unchanged apart from wrapping.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

type pgTxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner constructs a TxRunner that begins its transactions on pool.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &pgTxRunner{pool: pool}
}

func (r *pgTxRunner) InTx(ctx context.Context, fn func(Stores) error) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(StoresOn(tx))
	})
	if err != nil {
		return fmt.Errorf("repo.TxRunner.InTx: %w", err)
	}
	return nil
}

// StoresOn builds every repo over one connection or transaction.
func StoresOn(conn db) Stores {
	return Stores{
		Trips:    NewTripRepo(conn),
		Vouchers: NewVoucherRepo(conn),
		Bookings: NewBookingRepo(conn),
	}
}
