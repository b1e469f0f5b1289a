package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/service"
)

// QuoteBooking handles POST /trips/{id}/quote.
func (s *Server) QuoteBooking(w http.ResponseWriter, r *http.Request) {
	req, ok := s.bookingRequest(w, r)
	if !ok {
		return
	}
	q, err := s.bookings.GetQuote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, quoteToResponse(q))
}

// ConfirmBooking handles POST /trips/{id}/bookings.
func (s *Server) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	req, ok := s.bookingRequest(w, r)
	if !ok {
		return
	}
	c, err := s.bookings.Confirm(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, Confirmation{
		Booking: bookingToResponse(c.Booking),
		Quote:   quoteToResponse(c.Quote),
	})
}

// ListTripBookings handles GET /trips/{id}/bookings.
// Only the trip's driver may list its bookings. ?format=csv returns the
// passenger manifest instead of a JSON page.
func (s *Server) ListTripBookings(w http.ResponseWriter, r *http.Request) {
	user, tripID, ok := resolve(w, r)
	if !ok {
		return
	}
	var format *string
	if err := queryParam(r, "format", &format); err != nil {
		requestError(w, err.Error())
		return
	}
	if format != nil && *format == "csv" {
		s.writeManifest(w, r, tripID, user)
		return
	}
	if format != nil && *format != "json" {
		requestError(w, "format must be json or csv")
		return
	}

	p, err := pagination(r)
	if err != nil {
		requestError(w, err.Error())
		return
	}
	page, err := s.bookings.ListBookingsForTrip(r.Context(), tripID, user, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, pageToResponse(page))
}

// ListMyBookings handles GET /bookings: the caller's own bookings, newest first.
func (s *Server) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	user, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := pagination(r)
	if err != nil {
		requestError(w, err.Error())
		return
	}
	page, err := s.bookings.ListBookingsForUser(r.Context(), user, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, pageToResponse(page))
}

// GetBooking handles GET /bookings/{id}.
func (s *Server) GetBooking(w http.ResponseWriter, r *http.Request) {
	user, id, ok := resolve(w, r)
	if !ok {
		return
	}
	b, err := s.bookings.GetBooking(r.Context(), id, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, bookingToResponse(b))
}

// AcceptBooking handles POST /bookings/{id}/accept.
func (s *Server) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	user, id, ok := resolve(w, r)
	if !ok {
		return
	}
	b, err := s.bookings.AcceptBooking(r.Context(), id, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, bookingToResponse(b))
}

// CancelBooking handles POST /bookings/{id}/cancel.
func (s *Server) CancelBooking(w http.ResponseWriter, r *http.Request) {
	user, id, ok := resolve(w, r)
	if !ok {
		return
	}
	b, err := s.cancels.Cancel(r.Context(), id, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, bookingToResponse(b))
}

// bookingRequest builds a service.BookingRequest from the acting user, the
// {id} path parameter and the JSON body.
func (s *Server) bookingRequest(w http.ResponseWriter, r *http.Request) (service.BookingRequest, bool) {
	user, tripID, ok := resolve(w, r)
	if !ok {
		return service.BookingRequest{}, false
	}
	var body BookingRequestBody
	if !decodeBody(w, r, &body) {
		return service.BookingRequest{}, false
	}
	return newBookingRequest(user, tripID, body), true
}

func newBookingRequest(user, tripID uuid.UUID, body BookingRequestBody) service.BookingRequest {
	return service.BookingRequest{
		UserID:      user,
		TripID:      tripID,
		SeatCount:   body.SeatCount,
		FullRide:    body.FullRide,
		VoucherCode: body.VoucherCode,
	}
}
