// Package handler implements the HTTP handlers for the booking API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, booking.go, etc.) but share the same Server struct so they
// can access its dependencies.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
	"github.com/pkordes/rideshare-booking/internal/service"
)

// BookingServicer defines the business operations the booking handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type BookingServicer interface {
	GetQuote(ctx context.Context, req service.BookingRequest) (domain.Quote, error)
	Confirm(ctx context.Context, req service.BookingRequest) (service.Confirmation, error)
	AcceptBooking(ctx context.Context, bookingID, actingUserID uuid.UUID) (domain.Booking, error)
	GetBooking(ctx context.Context, bookingID, actingUserID uuid.UUID) (domain.Booking, error)
	ListBookingsForUser(ctx context.Context, userID uuid.UUID, p domain.PaginationParams) (domain.BookingPage, error)
	ListBookingsForTrip(ctx context.Context, tripID, actingUserID uuid.UUID, p domain.PaginationParams) (domain.BookingPage, error)
	GetApplicableVouchers(ctx context.Context, req service.BookingRequest) ([]domain.ApplicableVoucher, error)
}

// CancellationServicer defines the cancel operation.
type CancellationServicer interface {
	Cancel(ctx context.Context, bookingID, actingUserID uuid.UUID) (domain.Booking, error)
}

// ExportServicer defines the business operations the manifest export depends on.
type ExportServicer interface {
	Manifest(ctx context.Context, tripID, actingUserID uuid.UUID) ([]domain.ManifestRow, error)
}

// Server holds the services behind every endpoint.
type Server struct {
	bookings BookingServicer
	cancels  CancellationServicer
	export   ExportServicer
	openAPI  []byte
}

// NewServer constructs the Server with all its dependencies.
// openAPI is served verbatim at /openapi.yaml.
func NewServer(bookings BookingServicer, cancels CancellationServicer, export ExportServicer, openAPI []byte) *Server {
	return &Server{bookings: bookings, cancels: cancels, export: export, openAPI: openAPI}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil, nil, nil)
}

// Routes mounts every endpoint on a new chi router. auth guards everything
// except the health check and the API document; it must place the acting
// user id in the request context (see middleware.NewAuth).
func (s *Server) Routes(auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Route("/trips/{id}", func(r chi.Router) {
			r.Get("/vouchers", s.ListApplicableVouchers)
			r.Post("/quote", s.QuoteBooking)
			r.Post("/bookings", s.ConfirmBooking)
			r.Get("/bookings", s.ListTripBookings)
		})

		r.Get("/bookings", s.ListMyBookings)
		r.Route("/bookings/{id}", func(r chi.Router) {
			r.Get("/", s.GetBooking)
			r.Post("/accept", s.AcceptBooking)
			r.Post("/cancel", s.CancelBooking)
		})
	})
	return r
}
