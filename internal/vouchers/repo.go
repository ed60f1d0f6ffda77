package vouchers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a voucher repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.TrimSpace(code)).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// ClaimUse relies on the guarded UPDATE's row count: zero rows means the
// capacity predicate failed under whatever concurrency got there first.
func (r *repository) ClaimUse(ctx context.Context, voucherID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND active = ? AND (max_uses = 0 OR current_uses < max_uses)", voucherID, true).
		Update("current_uses", gorm.Expr("current_uses + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) InsertUsage(ctx context.Context, usage *models.VoucherUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) HasUsageForOrder(ctx context.Context, voucherID, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.VoucherUsage{}).
		Where("voucher_id = ? AND order_id = ?", voucherID, orderID).
		Count(&count).Error
	return count > 0, err
}
