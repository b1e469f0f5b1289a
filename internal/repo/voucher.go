package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// VoucherRepo defines the persistence operations for vouchers and the
// per-user grants (user_vouchers) that reference them.
type VoucherRepo interface {
	// GetUnusedGrant returns the caller's oldest unused grant for the voucher
	// with the given code, with the voucher joined in.
	// Returns domain.ErrNotFound if the user holds no unused grant for that code.
	GetUnusedGrant(ctx context.Context, userID uuid.UUID, code string) (domain.UserVoucher, error)

	// ListUnusedGrants returns all of the user's unused grants ordered by
	// voucher code.
	ListUnusedGrants(ctx context.Context, userID uuid.UUID) ([]domain.UserVoucher, error)

	// TryConsumeQuota takes one use off the voucher's global usage limit if it
	// is finite and still positive. Unlimited vouchers always succeed without
	// being written. Returns domain.ErrNotFound if the voucher does not exist.
	TryConsumeQuota(ctx context.Context, voucherID uuid.UUID) (bool, error)

	// RestoreQuota gives back one use taken by TryConsumeQuota. It exists only
	// to compensate a confirmation that failed after consuming.
	RestoreQuota(ctx context.Context, voucherID uuid.UUID) error

	// MarkGrantUsed flips is_used to true if it is still false and reports
	// whether this call was the one that flipped it.
	MarkGrantUsed(ctx context.Context, grantID uuid.UUID, usedAt time.Time) (bool, error)
}

// pgVoucherRepo is the Postgres implementation of VoucherRepo.
type pgVoucherRepo struct {
	db db
}

// NewVoucherRepo constructs a VoucherRepo backed by the provided db connection.
func NewVoucherRepo(db db) VoucherRepo {
	return &pgVoucherRepo{db: db}
}

const grantColumns = `
	uv.id, uv.user_id, uv.is_used, uv.used_at,
	v.id, v.code, v.discount_type, v.discount_value, v.min_order_value, v.expiry_date, v.usage_limit`

func (r *pgVoucherRepo) GetUnusedGrant(ctx context.Context, userID uuid.UUID, code string) (domain.UserVoucher, error) {
	q := `
		SELECT ` + grantColumns + `
		FROM user_vouchers uv
		JOIN vouchers v ON v.id = uv.voucher_id
		WHERE uv.user_id = @user_id
		  AND v.code = @code
		  AND NOT uv.is_used
		ORDER BY uv.created_at
		LIMIT 1`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID, "code": code})
	result, err := scanGrant(row)
	if err != nil {
		return domain.UserVoucher{}, fmt.Errorf("repo.VoucherRepo.GetUnusedGrant: %w", err)
	}
	return result, nil
}

func (r *pgVoucherRepo) ListUnusedGrants(ctx context.Context, userID uuid.UUID) ([]domain.UserVoucher, error) {
	q := `
		SELECT ` + grantColumns + `
		FROM user_vouchers uv
		JOIN vouchers v ON v.id = uv.voucher_id
		WHERE uv.user_id = @user_id
		  AND NOT uv.is_used
		ORDER BY v.code, uv.created_at`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.VoucherRepo.ListUnusedGrants: %w", err)
	}
	defer rows.Close()

	grants := []domain.UserVoucher{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.VoucherRepo.ListUnusedGrants: scan: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.VoucherRepo.ListUnusedGrants: rows: %w", err)
	}
	return grants, nil
}

// TryConsumeQuota is the usage limit's compare-and-swap. A NULL limit matches
// the predicate and is left NULL, so unlimited vouchers report success.
func (r *pgVoucherRepo) TryConsumeQuota(ctx context.Context, voucherID uuid.UUID) (bool, error) {
	const q = `
		UPDATE vouchers
		SET usage_limit = usage_limit - 1
		WHERE id = @id
		  AND (usage_limit IS NULL OR usage_limit > 0)`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": voucherID})
	if err != nil {
		return false, fmt.Errorf("repo.VoucherRepo.TryConsumeQuota: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var found bool
	err = r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vouchers WHERE id = @id)`,
		pgx.NamedArgs{"id": voucherID}).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("repo.VoucherRepo.TryConsumeQuota: %w", err)
	}
	if !found {
		return false, fmt.Errorf("repo.VoucherRepo.TryConsumeQuota: %w", domain.ErrNotFound)
	}
	return false, nil
}

func (r *pgVoucherRepo) RestoreQuota(ctx context.Context, voucherID uuid.UUID) error {
	const q = `
		UPDATE vouchers
		SET usage_limit = usage_limit + 1
		WHERE id = @id
		  AND usage_limit IS NOT NULL`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": voucherID}); err != nil {
		return fmt.Errorf("repo.VoucherRepo.RestoreQuota: %w", err)
	}
	return nil
}

func (r *pgVoucherRepo) MarkGrantUsed(ctx context.Context, grantID uuid.UUID, usedAt time.Time) (bool, error) {
	const q = `
		UPDATE user_vouchers
		SET is_used = true,
		    used_at = @used_at
		WHERE id = @id
		  AND NOT is_used`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": grantID, "used_at": usedAt})
	if err != nil {
		return false, fmt.Errorf("repo.VoucherRepo.MarkGrantUsed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// scanGrant maps a user_vouchers row joined with its voucher.
func scanGrant(s scanner) (domain.UserVoucher, error) {
	var (
		g            domain.UserVoucher
		grantID      pgtype.UUID
		userID       pgtype.UUID
		usedAt       pgtype.Timestamptz
		voucherID    pgtype.UUID
		discountType string
		minOrder     pgtype.Int8
		expiry       pgtype.Date
		usageLimit   pgtype.Int4
	)

	err := s.Scan(&grantID, &userID, &g.IsUsed, &usedAt,
		&voucherID, &g.Voucher.Code, &discountType, &g.Voucher.DiscountValue, &minOrder, &expiry, &usageLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserVoucher{}, domain.ErrNotFound
		}
		return domain.UserVoucher{}, err
	}

	g.ID = uuid.UUID(grantID.Bytes)
	g.UserID = uuid.UUID(userID.Bytes)
	g.VoucherID = uuid.UUID(voucherID.Bytes)
	g.Voucher.ID = g.VoucherID
	g.Voucher.DiscountType = domain.DiscountType(discountType)
	if usedAt.Valid {
		t := usedAt.Time
		g.UsedAt = &t
	}
	if minOrder.Valid {
		v := minOrder.Int64
		g.Voucher.MinOrderValue = &v
	}
	if expiry.Valid {
		d := expiry.Time
		g.Voucher.ExpiryDate = &d
	}
	if usageLimit.Valid {
		n := int(usageLimit.Int32)
		g.Voucher.UsageLimit = &n
	}
	return g, nil
}
