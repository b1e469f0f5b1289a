package domain

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType selects how a voucher's DiscountValue is interpreted.
type DiscountType string

const (
	// DiscountPercent takes DiscountValue percent off the subtotal.
	DiscountPercent DiscountType = "percent"
	// DiscountFixed takes DiscountValue currency units off the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Voucher is a discount template shared by every grant that references it.
// UsageLimit is the global remaining-uses counter; nil means unlimited.
type Voucher struct {
	ID            uuid.UUID
	Code          string
	DiscountType  DiscountType
	DiscountValue int64
	MinOrderValue *int64
	ExpiryDate    *time.Time // inclusive; compared by calendar day
	UsageLimit    *int
}

// UserVoucher is one user's single right to redeem one Voucher.
// IsUsed moves false -> true at most once.
type UserVoucher struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	VoucherID uuid.UUID
	IsUsed    bool
	UsedAt    *time.Time
	Voucher   Voucher
}
