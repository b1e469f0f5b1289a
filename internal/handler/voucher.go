package handler

import "net/http"

// ListApplicableVouchers handles GET /trips/{id}/vouchers.
// ?seats= (default 1) and ?full_ride= describe the prospective booking the
// caller's unused grants are evaluated against.
func (s *Server) ListApplicableVouchers(w http.ResponseWriter, r *http.Request) {
	user, tripID, ok := resolve(w, r)
	if !ok {
		return
	}
	var (
		seats    *int
		fullRide *bool
	)
	if err := queryParam(r, "seats", &seats); err != nil {
		requestError(w, err.Error())
		return
	}
	if err := queryParam(r, "full_ride", &fullRide); err != nil {
		requestError(w, err.Error())
		return
	}

	body := BookingRequestBody{SeatCount: 1}
	if seats != nil {
		body.SeatCount = *seats
	}
	if fullRide != nil {
		body.FullRide = *fullRide
	}

	vs, err := s.bookings.GetApplicableVouchers(r.Context(), newBookingRequest(user, tripID, body))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ApplicableVoucher, len(vs))
	for i, v := range vs {
		out[i] = applicableToResponse(v)
	}
	writeData(w, http.StatusOK, out)
}
