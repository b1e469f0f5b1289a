package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// manifestHeaders defines the column names written as the first row of a manifest.
var manifestHeaders = []string{
	"booking_id", "passenger_id", "seat_count", "full_ride",
	"status", "total_price", "voucher_code", "booking_time",
}

// writeManifest serves the passenger manifest of a trip as CSV.
func (s *Server) writeManifest(w http.ResponseWriter, r *http.Request, tripID, user uuid.UUID) {
	rows, err := s.export.Manifest(r.Context(), tripID, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body := buildManifestCSV(rows)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="trip-%s-manifest.csv"`, tripID))
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = body.WriteTo(w)
}

// buildManifestCSV encodes manifest rows as CSV, header first.
func buildManifestCSV(rows []domain.ManifestRow) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	w.Write(manifestHeaders)
	for _, r := range rows {
		//nolint:errcheck
		w.Write(manifestRecord(r))
	}
	w.Flush()
	return &buf
}

// manifestRecord flattens one row. Times are RFC3339 in UTC.
func manifestRecord(r domain.ManifestRow) []string {
	return []string{
		r.BookingID,
		r.PassengerID,
		strconv.Itoa(r.SeatCount),
		strconv.FormatBool(r.FullRide),
		string(r.Status),
		strconv.FormatInt(r.TotalPrice, 10),
		r.VoucherCode,
		r.BookingTime.UTC().Format(time.RFC3339),
	}
}
