package pricing

import (
	"time"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// Reasons a voucher is not applied. These are informational only; an
// ineligible voucher never fails a quote or a booking.
const (
	ReasonBelowMinimum   = "order value below voucher minimum"
	ReasonExpired        = "voucher expired"
	ReasonQuotaExhausted = "voucher usage limit reached"
	ReasonNoGrant        = "no unused voucher with this code"
)

// Evaluation is the outcome of checking one voucher against a price.
// Discount and Total are meaningful only when Eligible is true; otherwise
// Discount is zero and Total is the undiscounted subtotal.
type Evaluation struct {
	Eligible bool
	Reason   string
	Discount int64
	Total    int64
}

// Evaluate decides whether v may be applied to p on the calendar day of now.
//
// The usage-limit check is a hint taken from the snapshot in v; the actual
// consumption happens later through the quota guard and may still fail.
func Evaluate(p Price, v domain.Voucher, now time.Time) Evaluation {
	subtotal := p.Subtotal()
	reject := func(reason string) Evaluation {
		return Evaluation{Reason: reason, Total: subtotal}
	}

	if v.MinOrderValue != nil && subtotal < *v.MinOrderValue {
		return reject(ReasonBelowMinimum)
	}
	if v.ExpiryDate != nil && dayOf(*v.ExpiryDate).Before(dayOf(now)) {
		return reject(ReasonExpired)
	}
	if v.UsageLimit != nil && *v.UsageLimit <= 0 {
		return reject(ReasonQuotaExhausted)
	}

	discount := Discount(subtotal, v)
	return Evaluation{
		Eligible: true,
		Discount: discount,
		Total:    Total(p, discount),
	}
}

// Discount returns the amount v takes off subtotal, ignoring eligibility.
func Discount(subtotal int64, v domain.Voucher) int64 {
	switch v.DiscountType {
	case domain.DiscountPercent:
		return roundDiv(subtotal*v.DiscountValue, 100)
	case domain.DiscountFixed:
		return min(v.DiscountValue, subtotal)
	default:
		return 0
	}
}

// dayOf truncates t to midnight UTC of its calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
