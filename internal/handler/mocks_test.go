package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/rideshare-booking/internal/domain"
	"github.com/pkordes/rideshare-booking/internal/handler"
	"github.com/pkordes/rideshare-booking/internal/middleware"
	"github.com/pkordes/rideshare-booking/internal/service"
)

// ---- mock BookingServicer --------------------------------------------------

type mockBookingServicer struct {
	getQuote              func(ctx context.Context, req service.BookingRequest) (domain.Quote, error)
	confirm               func(ctx context.Context, req service.BookingRequest) (service.Confirmation, error)
	acceptBooking         func(ctx context.Context, bookingID, acting uuid.UUID) (domain.Booking, error)
	getBooking            func(ctx context.Context, bookingID, acting uuid.UUID) (domain.Booking, error)
	listBookingsForUser   func(ctx context.Context, userID uuid.UUID, p domain.PaginationParams) (domain.BookingPage, error)
	listBookingsForTrip   func(ctx context.Context, tripID, acting uuid.UUID, p domain.PaginationParams) (domain.BookingPage, error)
	getApplicableVouchers func(ctx context.Context, req service.BookingRequest) ([]domain.ApplicableVoucher, error)
}

func (m *mockBookingServicer) GetQuote(ctx context.Context, req service.BookingRequest) (domain.Quote, error) {
	return m.getQuote(ctx, req)
}

func (m *mockBookingServicer) Confirm(ctx context.Context, req service.BookingRequest) (service.Confirmation, error) {
	return m.confirm(ctx, req)
}

func (m *mockBookingServicer) AcceptBooking(ctx context.Context, bookingID, acting uuid.UUID) (domain.Booking, error) {
	return m.acceptBooking(ctx, bookingID, acting)
}

func (m *mockBookingServicer) GetBooking(ctx context.Context, bookingID, acting uuid.UUID) (domain.Booking, error) {
	return m.getBooking(ctx, bookingID, acting)
}

func (m *mockBookingServicer) ListBookingsForUser(ctx context.Context, userID uuid.UUID, p domain.PaginationParams) (domain.BookingPage, error) {
	return m.listBookingsForUser(ctx, userID, p)
}

func (m *mockBookingServicer) ListBookingsForTrip(ctx context.Context, tripID, acting uuid.UUID, p domain.PaginationParams) (domain.BookingPage, error) {
	return m.listBookingsForTrip(ctx, tripID, acting, p)
}

func (m *mockBookingServicer) GetApplicableVouchers(ctx context.Context, req service.BookingRequest) ([]domain.ApplicableVoucher, error) {
	return m.getApplicableVouchers(ctx, req)
}

// ---- mock CancellationServicer ---------------------------------------------

type mockCancellationServicer struct {
	cancel func(ctx context.Context, bookingID, acting uuid.UUID) (domain.Booking, error)
}

func (m *mockCancellationServicer) Cancel(ctx context.Context, bookingID, acting uuid.UUID) (domain.Booking, error) {
	return m.cancel(ctx, bookingID, acting)
}

// ---- mock ExportServicer ---------------------------------------------------

type mockExportServicer struct {
	manifest func(ctx context.Context, tripID, acting uuid.UUID) ([]domain.ManifestRow, error)
}

func (m *mockExportServicer) Manifest(ctx context.Context, tripID, acting uuid.UUID) ([]domain.ManifestRow, error) {
	return m.manifest(ctx, tripID, acting)
}

// compile-time checks: the mocks must satisfy the handler interfaces.
var (
	_ handler.BookingServicer      = (*mockBookingServicer)(nil)
	_ handler.CancellationServicer = (*mockCancellationServicer)(nil)
	_ handler.ExportServicer       = (*mockExportServicer)(nil)
)

// ---- helpers ---------------------------------------------------------------

// actingAs is an auth stand-in that trusts the request unconditionally and
// stores user as the acting user.
func actingAs(user uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), user)))
		})
	}
}

// serve runs one request through the full router with user as the acting user.
func serve(t *testing.T, srv *handler.Server, user uuid.UUID, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Routes(actingAs(user)).ServeHTTP(rec, req)
	return rec
}

// envelope mirrors the response wrapper with a typed data payload.
type envelope[T any] struct {
	Success bool                 `json:"success"`
	Data    T                    `json:"data"`
	Error   *handler.ErrorDetail `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

// requireFailure asserts status, a failed envelope and the error code.
func requireFailure(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) *handler.ErrorDetail {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	env := decode[json.RawMessage](t, rec)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
	return env.Error
}

func ptr[T any](v T) *T { return &v }
