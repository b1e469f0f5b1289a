package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
	"github.com/pkordes/rideshare-booking/internal/repo"
	"github.com/pkordes/rideshare-booking/internal/service"
)

// mockTripRepo is a hand-written test double for repo.TripRepo.
// Each method is a function field; set only the ones your test needs.
type mockTripRepo struct {
	getByID         func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	tryReserveSeats func(ctx context.Context, id uuid.UUID, n int) (bool, error)
	releaseSeats    func(ctx context.Context, id uuid.UUID, n int) error
}

func (m *mockTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripRepo) TryReserveSeats(ctx context.Context, id uuid.UUID, n int) (bool, error) {
	return m.tryReserveSeats(ctx, id, n)
}
func (m *mockTripRepo) ReleaseSeats(ctx context.Context, id uuid.UUID, n int) error {
	return m.releaseSeats(ctx, id, n)
}

var _ repo.TripRepo = (*mockTripRepo)(nil)

type mockVoucherRepo struct {
	getUnusedGrant   func(ctx context.Context, userID uuid.UUID, code string) (domain.UserVoucher, error)
	listUnusedGrants func(ctx context.Context, userID uuid.UUID) ([]domain.UserVoucher, error)
	tryConsumeQuota  func(ctx context.Context, voucherID uuid.UUID) (bool, error)
	restoreQuota     func(ctx context.Context, voucherID uuid.UUID) error
	markGrantUsed    func(ctx context.Context, grantID uuid.UUID, usedAt time.Time) (bool, error)
}

func (m *mockVoucherRepo) GetUnusedGrant(ctx context.Context, userID uuid.UUID, code string) (domain.UserVoucher, error) {
	return m.getUnusedGrant(ctx, userID, code)
}
func (m *mockVoucherRepo) ListUnusedGrants(ctx context.Context, userID uuid.UUID) ([]domain.UserVoucher, error) {
	return m.listUnusedGrants(ctx, userID)
}
func (m *mockVoucherRepo) TryConsumeQuota(ctx context.Context, voucherID uuid.UUID) (bool, error) {
	return m.tryConsumeQuota(ctx, voucherID)
}
func (m *mockVoucherRepo) RestoreQuota(ctx context.Context, voucherID uuid.UUID) error {
	return m.restoreQuota(ctx, voucherID)
}
func (m *mockVoucherRepo) MarkGrantUsed(ctx context.Context, grantID uuid.UUID, usedAt time.Time) (bool, error) {
	return m.markGrantUsed(ctx, grantID, usedAt)
}

var _ repo.VoucherRepo = (*mockVoucherRepo)(nil)

type mockBookingRepo struct {
	create           func(ctx context.Context, b domain.Booking) (domain.Booking, error)
	getByID          func(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	transition       func(ctx context.Context, id uuid.UUID, to domain.BookingStatus, from ...domain.BookingStatus) (domain.Booking, error)
	listByPassenger  func(ctx context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error)
	listByTrip       func(ctx context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error)
	listActiveByTrip func(ctx context.Context, id uuid.UUID) ([]domain.Booking, error)
}

func (m *mockBookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	return m.create(ctx, b)
}
func (m *mockBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return m.getByID(ctx, id)
}
func (m *mockBookingRepo) Transition(ctx context.Context, id uuid.UUID, to domain.BookingStatus, from ...domain.BookingStatus) (domain.Booking, error) {
	return m.transition(ctx, id, to, from...)
}
func (m *mockBookingRepo) ListByPassenger(ctx context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	return m.listByPassenger(ctx, id, p)
}
func (m *mockBookingRepo) ListByTrip(ctx context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	return m.listByTrip(ctx, id, p)
}
func (m *mockBookingRepo) ListActiveByTrip(ctx context.Context, id uuid.UUID) ([]domain.Booking, error) {
	return m.listActiveByTrip(ctx, id)
}

var _ repo.BookingRepo = (*mockBookingRepo)(nil)

// passThroughTx hands fn the same mocks the service reads through, with no
// rollback. Tests that need rollback use memStore.
type passThroughTx struct {
	stores repo.Stores
}

func (p passThroughTx) InTx(_ context.Context, fn func(repo.Stores) error) error {
	return fn(p.stores)
}

func txOver(trips repo.TripRepo, vouchers repo.VoucherRepo, bookings repo.BookingRepo) passThroughTx {
	return passThroughTx{stores: repo.Stores{Trips: trips, Vouchers: vouchers, Bookings: bookings}}
}

// sentNotification is one call recorded by recordingNotifier.
type sentNotification struct {
	UserID uuid.UUID
	Title  string
	Body   string
	Ref    domain.EntityRef
	CtxErr error // ctx.Err() at the time of the call
}

// recordingNotifier records every Notify call and returns err from each.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, userID uuid.UUID, title, body string, ref domain.EntityRef) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Title: title, Body: body, Ref: ref, CtxErr: ctx.Err()})
	return n.err
}

func (n *recordingNotifier) Sent() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

var _ service.Notifier = (*recordingNotifier)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// today is the fixed clock used by every BookingService under test.
var today = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return today }
