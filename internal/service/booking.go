// Package service contains the business logic of the booking core.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
	"github.com/pkordes/rideshare-booking/internal/pricing"
	"github.com/pkordes/rideshare-booking/internal/repo"
)

// BookingRequest is the input shared by GetQuote and Confirm.
type BookingRequest struct {
	UserID      uuid.UUID
	TripID      uuid.UUID
	SeatCount   int
	FullRide    bool
	VoucherCode *string
}

// Confirmation is the result of a successful Confirm: the persisted booking
// and the price breakdown that produced it.
type Confirmation struct {
	Booking domain.Booking
	Quote   domain.Quote
}

// BookingService quotes and confirms bookings and owns the booking state
// machine. Seat and voucher counters change only through its guards.
type BookingService struct {
	trips    repo.TripRepo
	vouchers repo.VoucherRepo
	bookings repo.BookingRepo
	tx       repo.TxRunner
	seats    *SeatGuard
	quota    *QuotaGuard
	calc     pricing.Calculator
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// BookingOption customises a BookingService.
type BookingOption func(*BookingService)

// WithClock replaces time.Now as the source of "today" for voucher expiry
// and of the used-at timestamp on redeemed grants.
func WithClock(now func() time.Time) BookingOption {
	return func(s *BookingService) { s.now = now }
}

// NewBookingService constructs a BookingService backed by the provided repos.
func NewBookingService(
	trips repo.TripRepo,
	vouchers repo.VoucherRepo,
	bookings repo.BookingRepo,
	tx repo.TxRunner,
	calc pricing.Calculator,
	notifier Notifier,
	log *slog.Logger,
	opts ...BookingOption,
) *BookingService {
	s := &BookingService{
		trips:    trips,
		vouchers: vouchers,
		bookings: bookings,
		tx:       tx,
		seats:    NewSeatGuard(trips),
		quota:    NewQuotaGuard(vouchers),
		calc:     calc,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetQuote prices a prospective booking without changing any state.
// A voucher that cannot be applied is reported in the quote, never as an error.
func (s *BookingService) GetQuote(ctx context.Context, req BookingRequest) (domain.Quote, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("service.BookingService.GetQuote: %w", err)
	}
	trip, err := s.resolveTrip(ctx, req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("service.BookingService.GetQuote: %w", err)
	}

	price := s.calc.Calculate(pricing.FareOf(trip), req.SeatCount, req.FullRide)
	q := newQuote(req, price)
	if req.VoucherCode == nil {
		return q, nil
	}

	_, eval, err := s.evaluateGrant(ctx, req.UserID, *req.VoucherCode, price)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("service.BookingService.GetQuote: %w", err)
	}
	if eval.Eligible {
		applyDiscount(&q, *req.VoucherCode, eval.Discount)
	} else {
		q.IneligibleReason = eval.Reason
	}
	return q, nil
}

// Confirm reserves seats, redeems the requested voucher when possible and
// persists a pending booking.
//
// The voucher quota is consumed before the seats. If the seat reservation
// fails, the quota is restored before ErrInsufficientSeats is returned; if
// persisting the booking fails, both are given back in reverse order.
//
// The booking row and the grant's used flag commit in one transaction. When
// a concurrent booking by the same user claimed the grant first, the
// transaction rolls back, the quota is restored and the booking is saved
// at full price.
func (s *BookingService) Confirm(ctx context.Context, req BookingRequest) (Confirmation, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return Confirmation{}, fmt.Errorf("service.BookingService.Confirm: %w", err)
	}
	trip, err := s.resolveTrip(ctx, req)
	if err != nil {
		return Confirmation{}, fmt.Errorf("service.BookingService.Confirm: %w", err)
	}
	if trip.IsOwnedBy(req.UserID) {
		return Confirmation{}, fmt.Errorf("service.BookingService.Confirm: %w", domain.ErrSelfBooking)
	}

	price := s.calc.Calculate(pricing.FareOf(trip), req.SeatCount, req.FullRide)
	q := newQuote(req, price)

	var redeemed *domain.UserVoucher
	if req.VoucherCode != nil {
		grant, eval, err := s.evaluateGrant(ctx, req.UserID, *req.VoucherCode, price)
		if err != nil {
			return Confirmation{}, fmt.Errorf("service.BookingService.Confirm: %w", err)
		}
		switch {
		case !eval.Eligible:
			q.IneligibleReason = eval.Reason
		default:
			ok, err := s.quota.TryConsume(ctx, grant.VoucherID)
			if err != nil {
				return Confirmation{}, fmt.Errorf("service.BookingService.Confirm: %w", err)
			}
			if !ok {
				q.IneligibleReason = pricing.ReasonQuotaExhausted
				break
			}
			redeemed = &grant
			applyDiscount(&q, *req.VoucherCode, eval.Discount)
		}
	}

	if err := s.seats.TryReserve(ctx, trip.ID, req.SeatCount); err != nil {
		if redeemed != nil {
			s.restoreQuota(ctx, redeemed.VoucherID, trip.ID)
		}
		return Confirmation{}, fmt.Errorf("service.BookingService.Confirm: %w", err)
	}

	booking, err := s.persist(ctx, req, q, redeemed)
	if errors.Is(err, errGrantClaimed) {
		s.log.WarnContext(ctx, "voucher grant claimed by a concurrent booking",
			slog.String("grant_id", redeemed.ID.String()),
			slog.String("voucher_id", redeemed.VoucherID.String()),
			slog.String("trip_id", trip.ID.String()),
		)
		s.restoreQuota(ctx, redeemed.VoucherID, trip.ID)
		redeemed = nil
		q = newQuote(req, price)
		q.IneligibleReason = pricing.ReasonNoGrant
		booking, err = s.persist(ctx, req, q, nil)
	}
	if err != nil {
		s.releaseSeats(ctx, trip.ID, req.SeatCount)
		if redeemed != nil {
			s.restoreQuota(ctx, redeemed.VoucherID, trip.ID)
		}
		return Confirmation{}, fmt.Errorf("service.BookingService.Confirm: %w", err)
	}

	notify(ctx, s.notifier, s.log, trip.DriverID,
		"New booking request",
		fmt.Sprintf("A passenger booked %d seat(s) on your trip.", booking.SeatCount),
		domain.BookingRef(booking.ID))

	return Confirmation{Booking: booking, Quote: q}, nil
}

// AcceptBooking moves a pending booking to accepted. Only the trip's owner
// may accept, and only while the booking is still pending.
func (s *BookingService) AcceptBooking(ctx context.Context, bookingID, actingUserID uuid.UUID) (domain.Booking, error) {
	b, trip, err := s.bookingWithTrip(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.AcceptBooking: %w", err)
	}
	if !trip.IsOwnedBy(actingUserID) {
		return domain.Booking{}, fmt.Errorf("service.BookingService.AcceptBooking: %w", domain.ErrForbidden)
	}
	if !b.CanAccept() {
		return domain.Booking{}, fmt.Errorf("service.BookingService.AcceptBooking: booking is %s: %w", b.Status, domain.ErrInvalidState)
	}

	accepted, err := s.bookings.Transition(ctx, b.ID, domain.BookingAccepted, domain.BookingPending)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.AcceptBooking: %w", err)
	}

	notify(ctx, s.notifier, s.log, accepted.PassengerID,
		"Booking accepted",
		"The driver accepted your booking.",
		domain.BookingRef(accepted.ID))

	return accepted, nil
}

// GetBooking returns a booking to its passenger or to the trip's owner.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, actingUserID uuid.UUID) (domain.Booking, error) {
	b, trip, err := s.bookingWithTrip(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.GetBooking: %w", err)
	}
	if b.PassengerID != actingUserID && !trip.IsOwnedBy(actingUserID) {
		return domain.Booking{}, fmt.Errorf("service.BookingService.GetBooking: %w", domain.ErrForbidden)
	}
	return b, nil
}

// ListBookingsForUser returns one page of the user's own bookings, newest first.
func (s *BookingService) ListBookingsForUser(ctx context.Context, userID uuid.UUID, p domain.PaginationParams) (domain.BookingPage, error) {
	bookings, total, err := s.bookings.ListByPassenger(ctx, userID, p)
	if err != nil {
		return domain.BookingPage{}, fmt.Errorf("service.BookingService.ListBookingsForUser: %w", err)
	}
	return domain.BookingPage{Bookings: bookings, Total: total, Params: p}, nil
}

// ListBookingsForTrip returns one page of a trip's bookings to the trip's owner.
func (s *BookingService) ListBookingsForTrip(ctx context.Context, tripID, actingUserID uuid.UUID, p domain.PaginationParams) (domain.BookingPage, error) {
	if err := s.requireOwner(ctx, tripID, actingUserID); err != nil {
		return domain.BookingPage{}, fmt.Errorf("service.BookingService.ListBookingsForTrip: %w", err)
	}
	bookings, total, err := s.bookings.ListByTrip(ctx, tripID, p)
	if err != nil {
		return domain.BookingPage{}, fmt.Errorf("service.BookingService.ListBookingsForTrip: %w", err)
	}
	return domain.BookingPage{Bookings: bookings, Total: total, Params: p}, nil
}

// GetApplicableVouchers evaluates every unused grant the user holds against
// the prospective booking. Nothing is consumed.
func (s *BookingService) GetApplicableVouchers(ctx context.Context, req BookingRequest) ([]domain.ApplicableVoucher, error) {
	req.VoucherCode = nil
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.GetApplicableVouchers: %w", err)
	}
	trip, err := s.resolveTrip(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.GetApplicableVouchers: %w", err)
	}
	grants, err := s.vouchers.ListUnusedGrants(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.GetApplicableVouchers: %w", err)
	}

	price := s.calc.Calculate(pricing.FareOf(trip), req.SeatCount, req.FullRide)
	now := s.now()
	out := make([]domain.ApplicableVoucher, 0, len(grants))
	for _, g := range grants {
		eval := pricing.Evaluate(price, g.Voucher, now)
		out = append(out, domain.ApplicableVoucher{
			Grant:            g,
			DiscountAmount:   eval.Discount,
			Applicable:       eval.Eligible,
			IneligibleReason: eval.Reason,
		})
	}
	return out, nil
}

// ---- helpers ---------------------------------------------------------------

// normalizeRequest trims the voucher code, treating a blank one as absent,
// and rejects seat counts below one.
func normalizeRequest(req BookingRequest) (BookingRequest, error) {
	if req.SeatCount < 1 {
		return req, fmt.Errorf("seat count must be at least 1, got %d: %w", req.SeatCount, domain.ErrValidation)
	}
	if req.VoucherCode != nil {
		code := strings.TrimSpace(*req.VoucherCode)
		if code == "" {
			req.VoucherCode = nil
		} else {
			req.VoucherCode = &code
		}
	}
	return req, nil
}

// resolveTrip loads the trip and checks the seat count against its capacity.
func (s *BookingService) resolveTrip(ctx context.Context, req BookingRequest) (domain.Trip, error) {
	trip, err := s.trips.GetByID(ctx, req.TripID)
	if err != nil {
		return domain.Trip{}, err
	}
	if req.SeatCount > trip.SeatTotal {
		return domain.Trip{}, fmt.Errorf("seat count %d exceeds trip capacity %d: %w", req.SeatCount, trip.SeatTotal, domain.ErrValidation)
	}
	return trip, nil
}

// evaluateGrant finds the user's unused grant for code and evaluates it.
// A missing grant is an ineligible evaluation, not an error.
func (s *BookingService) evaluateGrant(ctx context.Context, userID uuid.UUID, code string, price pricing.Price) (domain.UserVoucher, pricing.Evaluation, error) {
	grant, err := s.vouchers.GetUnusedGrant(ctx, userID, code)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UserVoucher{}, pricing.Evaluation{Reason: pricing.ReasonNoGrant, Total: price.Subtotal()}, nil
	}
	if err != nil {
		return domain.UserVoucher{}, pricing.Evaluation{}, err
	}
	return grant, pricing.Evaluate(price, grant.Voucher, s.now()), nil
}

func (s *BookingService) bookingWithTrip(ctx context.Context, bookingID uuid.UUID) (domain.Booking, domain.Trip, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, domain.Trip{}, err
	}
	trip, err := s.trips.GetByID(ctx, b.TripID)
	if err != nil {
		return domain.Booking{}, domain.Trip{}, err
	}
	return b, trip, nil
}

func (s *BookingService) requireOwner(ctx context.Context, tripID, userID uuid.UUID) error {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return err
	}
	if !trip.IsOwnedBy(userID) {
		return domain.ErrForbidden
	}
	return nil
}

// restoreQuota and releaseSeats run after the caller's request has already
// failed, so they outlive a cancelled context and log instead of returning.
func (s *BookingService) restoreQuota(ctx context.Context, voucherID, tripID uuid.UUID) {
	if err := s.quota.Restore(context.WithoutCancel(ctx), voucherID); err != nil {
		s.log.ErrorContext(ctx, "voucher quota not restored after failed booking",
			slog.String("voucher_id", voucherID.String()),
			slog.String("trip_id", tripID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.log.InfoContext(ctx, "voucher quota restored after failed booking",
		slog.String("voucher_id", voucherID.String()),
		slog.String("trip_id", tripID.String()),
	)
}

func (s *BookingService) releaseSeats(ctx context.Context, tripID uuid.UUID, n int) {
	if err := s.seats.Release(context.WithoutCancel(ctx), tripID, n); err != nil {
		s.log.ErrorContext(ctx, "seats not released after failed booking",
			slog.String("trip_id", tripID.String()),
			slog.Int("seats", n),
			slog.String("error", err.Error()),
		)
	}
}

// errGrantClaimed rolls back a persist whose grant was marked used by
// another booking after it was located.
var errGrantClaimed = errors.New("voucher grant already used")

// persist saves the pending booking and, when grant is set, marks the grant
// used in the same transaction.
func (s *BookingService) persist(ctx context.Context, req BookingRequest, q domain.Quote, grant *domain.UserVoucher) (domain.Booking, error) {
	var booking domain.Booking
	err := s.tx.InTx(ctx, func(st repo.Stores) error {
		b, err := st.Bookings.Create(ctx, domain.Booking{
			TripID:         req.TripID,
			PassengerID:    req.UserID,
			SeatCount:      req.SeatCount,
			FullRide:       req.FullRide,
			BasePrice:      q.BasePrice,
			ServiceFee:     q.ServiceFee,
			DiscountAmount: q.DiscountAmount,
			TotalPrice:     q.TotalPrice,
			VoucherCode:    q.AppliedVoucher,
			Status:         domain.BookingPending,
		})
		if err != nil {
			return err
		}
		if grant != nil {
			ok, err := st.Vouchers.MarkGrantUsed(ctx, grant.ID, s.now().UTC())
			if err != nil {
				return err
			}
			if !ok {
				return errGrantClaimed
			}
		}
		booking = b
		return nil
	})
	return booking, err
}

func newQuote(req BookingRequest, p pricing.Price) domain.Quote {
	return domain.Quote{
		TripID:      req.TripID,
		SeatCount:   req.SeatCount,
		FullRide:    req.FullRide,
		BasePrice:   p.BasePrice,
		ServiceFee:  p.ServiceFee,
		Subtotal:    p.Subtotal(),
		TotalPrice:  p.Subtotal(),
		VoucherCode: req.VoucherCode,
	}
}

func applyDiscount(q *domain.Quote, code string, discount int64) {
	q.DiscountAmount = discount
	q.TotalPrice = max(0, q.Subtotal-discount)
	q.VoucherApplied = true
	q.AppliedVoucher = &code
	q.IneligibleReason = ""
}
