package service_test

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
	"github.com/pkordes/rideshare-booking/internal/repo"
)

// memStore is an in-memory backing store whose conditional updates are
// atomic under one mutex, the same guarantee the Postgres statements give.
// It lets the service's concurrency properties run without a database.
type memStore struct {
	mu       sync.Mutex
	trips    map[uuid.UUID]domain.Trip
	vouchers map[uuid.UUID]domain.Voucher
	grants   []domain.UserVoucher // insertion order, oldest first
	bookings []domain.Booking     // insertion order

	createErr  error  // returned by the next bookings Create, if set
	releaseErr error  // returned by the next trips ReleaseSeats, if set
	onConsume  func() // runs after each successful quota consumption, outside mu
	onCreate   func() // runs after each successful bookings Create, outside mu
}

// memTx journals an undo step for every change made through it. Callers
// append while holding mu.
type memTx struct {
	undo []func()
}

func (tx *memTx) record(undo func()) {
	if tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

func newMemStore() *memStore {
	return &memStore{
		trips:    make(map[uuid.UUID]domain.Trip),
		vouchers: make(map[uuid.UUID]domain.Voucher),
	}
}

func (s *memStore) Trips() repo.TripRepo       { return memTrips{s: s} }
func (s *memStore) Vouchers() repo.VoucherRepo { return memVouchers{s: s} }
func (s *memStore) Bookings() repo.BookingRepo { return memBookings{s: s} }

// InTx runs fn over repos that journal their changes and undoes them, newest
// first, when fn fails. Changes are visible to other callers before fn
// returns; the conditional updates stay atomic, which is what the services
// rely on.
func (s *memStore) InTx(_ context.Context, fn func(repo.Stores) error) error {
	tx := &memTx{}
	err := fn(repo.Stores{
		Trips:    memTrips{s: s, tx: tx},
		Vouchers: memVouchers{s: s, tx: tx},
		Bookings: memBookings{s: s, tx: tx},
	})
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, undo := range slices.Backward(tx.undo) {
			undo()
		}
	}
	return err
}

var _ repo.TxRunner = (*memStore)(nil)

func (s *memStore) addTrip(t domain.Trip) domain.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.DriverID == uuid.Nil {
		t.DriverID = uuid.New()
	}
	if t.Status == "" {
		t.Status = domain.TripPending
	}
	s.trips[t.ID] = t
	return t
}

func (s *memStore) addVoucher(v domain.Voucher) domain.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	s.vouchers[v.ID] = v
	return v
}

func (s *memStore) grant(userID, voucherID uuid.UUID) domain.UserVoucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := domain.UserVoucher{ID: uuid.New(), UserID: userID, VoucherID: voucherID}
	s.grants = append(s.grants, g)
	return g
}

func (s *memStore) seatsAvailable(tripID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trips[tripID].SeatAvailable
}

func (s *memStore) usageLimit(voucherID uuid.UUID) *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vouchers[voucherID].UsageLimit
}

func (s *memStore) grantByID(id uuid.UUID) domain.UserVoucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants {
		if g.ID == id {
			return g
		}
	}
	return domain.UserVoucher{}
}

func (s *memStore) bookingByID(id uuid.UUID) domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return b
		}
	}
	return domain.Booking{}
}

func (s *memStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

// withVoucher returns g with a snapshot of its voucher attached. Callers hold mu.
func (s *memStore) withVoucher(g domain.UserVoucher) domain.UserVoucher {
	v := s.vouchers[g.VoucherID]
	if v.UsageLimit != nil {
		v.UsageLimit = ptr(*v.UsageLimit)
	}
	g.Voucher = v
	return g
}

// ---- trips -----------------------------------------------------------------

type memTrips struct {
	s  *memStore
	tx *memTx
}

func (r memTrips) GetByID(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trips[id]
	if !ok {
		return domain.Trip{}, domain.ErrNotFound
	}
	return t, nil
}

func (r memTrips) TryReserveSeats(_ context.Context, id uuid.UUID, n int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trips[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.SeatAvailable < n {
		return false, nil
	}
	t.SeatAvailable -= n
	r.s.trips[id] = t
	r.tx.record(func() { r.s.addSeats(id, n) })
	return true, nil
}

func (r memTrips) ReleaseSeats(_ context.Context, id uuid.UUID, n int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trips[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := r.s.releaseErr; err != nil {
		r.s.releaseErr = nil
		return err
	}
	released := min(t.SeatTotal, t.SeatAvailable+n) - t.SeatAvailable
	r.s.addSeats(id, released)
	r.tx.record(func() { r.s.addSeats(id, -released) })
	return nil
}

// addSeats moves a trip's availability by delta. Callers hold mu.
func (s *memStore) addSeats(id uuid.UUID, delta int) {
	t := s.trips[id]
	t.SeatAvailable += delta
	s.trips[id] = t
}

// ---- vouchers --------------------------------------------------------------

type memVouchers struct {
	s  *memStore
	tx *memTx
}

func (r memVouchers) GetUnusedGrant(_ context.Context, userID uuid.UUID, code string) (domain.UserVoucher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.grants {
		if g.UserID == userID && !g.IsUsed && r.s.vouchers[g.VoucherID].Code == code {
			return r.s.withVoucher(g), nil
		}
	}
	return domain.UserVoucher{}, domain.ErrNotFound
}

func (r memVouchers) ListUnusedGrants(_ context.Context, userID uuid.UUID) ([]domain.UserVoucher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.UserVoucher{}
	for _, g := range r.s.grants {
		if g.UserID == userID && !g.IsUsed {
			out = append(out, r.s.withVoucher(g))
		}
	}
	slices.SortStableFunc(out, func(a, b domain.UserVoucher) int {
		return cmp.Compare(a.Voucher.Code, b.Voucher.Code)
	})
	return out, nil
}

func (r memVouchers) TryConsumeQuota(_ context.Context, voucherID uuid.UUID) (bool, error) {
	ok, err := r.tryConsume(voucherID)
	if ok && r.s.onConsume != nil {
		r.s.onConsume()
	}
	return ok, err
}

func (r memVouchers) tryConsume(voucherID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vouchers[voucherID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if v.UsageLimit == nil {
		return true, nil
	}
	if *v.UsageLimit <= 0 {
		return false, nil
	}
	r.s.addUses(voucherID, -1)
	r.tx.record(func() { r.s.addUses(voucherID, 1) })
	return true, nil
}

func (r memVouchers) RestoreQuota(_ context.Context, voucherID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vouchers[voucherID]
	if !ok {
		return domain.ErrNotFound
	}
	if v.UsageLimit != nil {
		r.s.addUses(voucherID, 1)
		r.tx.record(func() { r.s.addUses(voucherID, -1) })
	}
	return nil
}

// addUses moves a finite usage limit by delta. Callers hold mu.
func (s *memStore) addUses(id uuid.UUID, delta int) {
	v := s.vouchers[id]
	if v.UsageLimit != nil {
		v.UsageLimit = ptr(*v.UsageLimit + delta)
		s.vouchers[id] = v
	}
}

func (r memVouchers) MarkGrantUsed(_ context.Context, grantID uuid.UUID, usedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, g := range r.s.grants {
		if g.ID != grantID {
			continue
		}
		if g.IsUsed {
			return false, nil
		}
		r.s.grants[i].IsUsed = true
		r.s.grants[i].UsedAt = &usedAt
		r.tx.record(func() {
			r.s.grants[i].IsUsed = false
			r.s.grants[i].UsedAt = nil
		})
		return true, nil
	}
	return false, nil
}

// ---- bookings --------------------------------------------------------------

type memBookings struct {
	s  *memStore
	tx *memTx
}

func (r memBookings) Create(_ context.Context, b domain.Booking) (domain.Booking, error) {
	b, err := r.create(b)
	if err == nil && r.s.onCreate != nil {
		r.s.onCreate()
	}
	return b, err
}

func (r memBookings) create(b domain.Booking) (domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.createErr; err != nil {
		r.s.createErr = nil
		return domain.Booking{}, err
	}
	b.ID = uuid.New()
	b.BookingTime = today.Add(time.Duration(len(r.s.bookings)) * time.Second)
	b.UpdatedAt = b.BookingTime
	r.s.bookings = append(r.s.bookings, b)
	r.tx.record(func() {
		r.s.bookings = slices.DeleteFunc(r.s.bookings, func(x domain.Booking) bool { return x.ID == b.ID })
	})
	return b, nil
}

func (r memBookings) GetByID(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Booking{}, domain.ErrNotFound
}

func (r memBookings) Transition(_ context.Context, id uuid.UUID, to domain.BookingStatus, from ...domain.BookingStatus) (domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, b := range r.s.bookings {
		if b.ID != id {
			continue
		}
		if !slices.Contains(from, b.Status) {
			return domain.Booking{}, domain.ErrInvalidState
		}
		r.s.bookings[i].Status = to
		r.tx.record(func() { r.s.setStatus(id, b.Status) })
		return r.s.bookings[i], nil
	}
	return domain.Booking{}, domain.ErrNotFound
}

// setStatus is used by undo steps, which must not rely on slice positions.
// Callers hold mu.
func (s *memStore) setStatus(id uuid.UUID, status domain.BookingStatus) {
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			s.bookings[i].Status = status
		}
	}
}

func (r memBookings) ListByPassenger(_ context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	return r.page(func(b domain.Booking) bool { return b.PassengerID == id }, p)
}

func (r memBookings) ListByTrip(_ context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	return r.page(func(b domain.Booking) bool { return b.TripID == id }, p)
}

func (r memBookings) ListActiveByTrip(_ context.Context, id uuid.UUID) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Booking{}
	for _, b := range r.s.bookings {
		if b.TripID == id && !b.IsCancelled() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r memBookings) page(match func(domain.Booking) bool, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []domain.Booking
	for _, b := range r.s.bookings {
		if match(b) {
			all = append(all, b)
		}
	}
	start := min(p.Offset(), len(all))
	end := min(start+p.Limit, len(all))
	return append([]domain.Booking{}, all[start:end]...), int64(len(all)), nil
}
