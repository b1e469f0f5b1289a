package handler

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// BookingRequestBody is the body of POST /trips/{id}/quote and POST /trips/{id}/bookings.
type BookingRequestBody struct {
	SeatCount   int     `json:"seat_count"`
	FullRide    bool    `json:"full_ride"`
	VoucherCode *string `json:"voucher_code,omitempty"`
}

// Quote is the price breakdown returned by quote and confirm.
type Quote struct {
	TripID           openapi_types.UUID `json:"trip_id"`
	SeatCount        int                `json:"seat_count"`
	FullRide         bool               `json:"full_ride"`
	BasePrice        int64              `json:"base_price"`
	ServiceFee       int64              `json:"service_fee"`
	Subtotal         int64              `json:"subtotal"`
	DiscountAmount   int64              `json:"discount_amount"`
	TotalPrice       int64              `json:"total_price"`
	VoucherCode      *string            `json:"voucher_code"`
	VoucherApplied   bool               `json:"voucher_applied"`
	AppliedVoucher   *string            `json:"applied_voucher_code"`
	IneligibleReason *string            `json:"voucher_ineligible_reason,omitempty"`
}

// Booking is the JSON form of a booking.
type Booking struct {
	ID             openapi_types.UUID `json:"id"`
	TripID         openapi_types.UUID `json:"trip_id"`
	PassengerID    openapi_types.UUID `json:"passenger_id"`
	SeatCount      int                `json:"seat_count"`
	FullRide       bool               `json:"full_ride"`
	BasePrice      int64              `json:"base_price"`
	ServiceFee     int64              `json:"service_fee"`
	DiscountAmount int64              `json:"discount_amount"`
	TotalPrice     int64              `json:"total_price"`
	VoucherCode    *string            `json:"voucher_code"`
	Status         string             `json:"status"`
	BookingTime    time.Time          `json:"booking_time"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Confirmation is the body of a successful POST /trips/{id}/bookings.
type Confirmation struct {
	Booking Booking `json:"booking"`
	Quote   Quote   `json:"quote"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// BookingList is one page of bookings.
type BookingList struct {
	Items      []Booking  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ApplicableVoucher is one of the caller's unused grants evaluated for a trip.
type ApplicableVoucher struct {
	GrantID          openapi_types.UUID  `json:"grant_id"`
	VoucherID        openapi_types.UUID  `json:"voucher_id"`
	Code             string              `json:"code"`
	DiscountType     string              `json:"discount_type"`
	DiscountValue    int64               `json:"discount_value"`
	MinOrderValue    *int64              `json:"min_order_value"`
	ExpiryDate       *openapi_types.Date `json:"expiry_date"`
	RemainingUses    *int                `json:"remaining_uses"`
	Applicable       bool                `json:"applicable"`
	DiscountAmount   int64               `json:"discount_amount"`
	IneligibleReason *string             `json:"ineligible_reason,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// --- mapping helpers --------------------------------------------------------

func quoteToResponse(q domain.Quote) Quote {
	return Quote{
		TripID:           q.TripID,
		SeatCount:        q.SeatCount,
		FullRide:         q.FullRide,
		BasePrice:        q.BasePrice,
		ServiceFee:       q.ServiceFee,
		Subtotal:         q.Subtotal,
		DiscountAmount:   q.DiscountAmount,
		TotalPrice:       q.TotalPrice,
		VoucherCode:      q.VoucherCode,
		VoucherApplied:   q.VoucherApplied,
		AppliedVoucher:   q.AppliedVoucher,
		IneligibleReason: optional(q.IneligibleReason),
	}
}

func bookingToResponse(b domain.Booking) Booking {
	return Booking{
		ID:             b.ID,
		TripID:         b.TripID,
		PassengerID:    b.PassengerID,
		SeatCount:      b.SeatCount,
		FullRide:       b.FullRide,
		BasePrice:      b.BasePrice,
		ServiceFee:     b.ServiceFee,
		DiscountAmount: b.DiscountAmount,
		TotalPrice:     b.TotalPrice,
		VoucherCode:    b.VoucherCode,
		Status:         string(b.Status),
		BookingTime:    b.BookingTime,
		UpdatedAt:      b.UpdatedAt,
	}
}

func pageToResponse(p domain.BookingPage) BookingList {
	items := make([]Booking, len(p.Bookings))
	for i, b := range p.Bookings {
		items[i] = bookingToResponse(b)
	}
	return BookingList{
		Items: items,
		Pagination: Pagination{
			Page:  p.Params.Page,
			Limit: p.Params.Limit,
			Total: int(p.Total),
		},
	}
}

func applicableToResponse(a domain.ApplicableVoucher) ApplicableVoucher {
	v := a.Grant.Voucher
	resp := ApplicableVoucher{
		GrantID:          a.Grant.ID,
		VoucherID:        v.ID,
		Code:             v.Code,
		DiscountType:     string(v.DiscountType),
		DiscountValue:    v.DiscountValue,
		MinOrderValue:    v.MinOrderValue,
		RemainingUses:    v.UsageLimit,
		Applicable:       a.Applicable,
		DiscountAmount:   a.DiscountAmount,
		IneligibleReason: optional(a.IneligibleReason),
	}
	if v.ExpiryDate != nil {
		resp.ExpiryDate = &openapi_types.Date{Time: *v.ExpiryDate}
	}
	return resp
}

// optional returns nil for the empty string.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
