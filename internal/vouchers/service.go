package vouchers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/quangtran/dinehub-backend/pkg/db"
	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	pkgerrors "github.com/quangtran/dinehub-backend/pkg/errors"
)

// Sentinel outcomes callers branch on when a commit is refused.
var (
	ErrVoucherNotFound    = pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	ErrVoucherInactive    = pkgerrors.New(pkgerrors.CodeValidation, "voucher is not active")
	ErrVoucherExpired     = pkgerrors.New(pkgerrors.CodeValidation, "voucher has expired")
	ErrVoucherMinNotMet   = pkgerrors.New(pkgerrors.CodeValidation, "order does not meet the voucher minimum")
	ErrVoucherExhausted   = pkgerrors.New(pkgerrors.CodeStateConflict, "voucher has no remaining uses")
	ErrVoucherAlreadyUsed = pkgerrors.New(pkgerrors.CodeConflict, "voucher already applied to this order")
)

// Service is the voucher ledger: validation never consumes a use, commit
// consumes at most one use per order atomically.
type Service interface {
	Validate(ctx context.Context, code string, subtotalVND int64, at time.Time) (*models.Voucher, int64, error)
	ValidateByID(ctx context.Context, voucherID uuid.UUID, subtotalVND int64, at time.Time) (*models.Voucher, int64, error)
	DiscountFor(voucher *models.Voucher, subtotalVND int64) int64
	Commit(ctx context.Context, tx *gorm.DB, voucherID, orderID uuid.UUID, userID *uuid.UUID, at time.Time) error
}

type service struct {
	repo Repository
}

// NewService builds the voucher ledger.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vouchers repository required")
	}
	return &service{repo: repo}, nil
}

// Validate checks the voucher against the order subtotal without consuming a
// use, and returns the discount the voucher would grant.
func (s *service) Validate(ctx context.Context, code string, subtotalVND int64, at time.Time) (*models.Voucher, int64, error) {
	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrVoucherNotFound
		}
		return nil, 0, err
	}
	return s.validateLoaded(voucher, subtotalVND, at)
}

// ValidateByID re-validates a voucher already attached to an order, without
// consuming a use.
func (s *service) ValidateByID(ctx context.Context, voucherID uuid.UUID, subtotalVND int64, at time.Time) (*models.Voucher, int64, error) {
	voucher, err := s.repo.FindByID(ctx, voucherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrVoucherNotFound
		}
		return nil, 0, err
	}
	return s.validateLoaded(voucher, subtotalVND, at)
}

func (s *service) validateLoaded(voucher *models.Voucher, subtotalVND int64, at time.Time) (*models.Voucher, int64, error) {
	if !voucher.Active {
		return nil, 0, ErrVoucherInactive
	}
	if voucher.ExpiryDate != nil && at.After(*voucher.ExpiryDate) {
		return nil, 0, ErrVoucherExpired
	}
	if subtotalVND < voucher.MinOrderVND {
		return nil, 0, ErrVoucherMinNotMet
	}
	if voucher.MaxUses > 0 && voucher.CurrentUses >= voucher.MaxUses {
		return nil, 0, ErrVoucherExhausted
	}
	return voucher, s.DiscountFor(voucher, subtotalVND), nil
}

// DiscountFor computes the VND discount, capped at the subtotal. Percentage
// math runs in decimal and truncates toward zero so no fractional dong is
// ever granted.
func (s *service) DiscountFor(voucher *models.Voucher, subtotalVND int64) int64 {
	if voucher == nil || subtotalVND <= 0 {
		return 0
	}

	var discount int64
	switch voucher.DiscountType {
	case enums.VoucherDiscountPercentage:
		discount = decimal.NewFromInt(subtotalVND).
			Mul(decimal.NewFromInt(voucher.Value)).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
	case enums.VoucherDiscountFixed:
		discount = voucher.Value
	default:
		return 0
	}

	if discount > subtotalVND {
		discount = subtotalVND
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Commit consumes one use for the order inside the caller's transaction.
// The capacity claim and the usage row both have to land; either failing
// rolls the whole settlement back with the transaction.
func (s *service) Commit(ctx context.Context, tx *gorm.DB, voucherID, orderID uuid.UUID, userID *uuid.UUID, at time.Time) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)

	voucher, err := repo.FindByID(ctx, voucherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVoucherNotFound
		}
		return err
	}
	if voucher.ExpiryDate != nil && at.After(*voucher.ExpiryDate) {
		return ErrVoucherExpired
	}

	used, err := repo.HasUsageForOrder(ctx, voucherID, orderID)
	if err != nil {
		return err
	}
	if used {
		return ErrVoucherAlreadyUsed
	}

	claimed, err := repo.ClaimUse(ctx, voucherID)
	if err != nil {
		return err
	}
	if !claimed {
		if !voucher.Active {
			return ErrVoucherInactive
		}
		return ErrVoucherExhausted
	}

	usage := &models.VoucherUsage{
		ID:        uuid.New(),
		VoucherID: voucherID,
		OrderID:   orderID,
		UserID:    userID,
		UsedAt:    at,
	}
	if err := repo.InsertUsage(ctx, usage); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_voucher_usages_voucher_order") {
			return ErrVoucherAlreadyUsed
		}
		return err
	}
	return nil
}
