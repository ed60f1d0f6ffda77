package vouchers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
)

// Repository defines persistence operations for vouchers and their usages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	// ClaimUse increments current_uses only while capacity remains and
	// reports whether the claim won. It runs inside the settlement
	// transaction, so a failed settle rolls the increment back.
	ClaimUse(ctx context.Context, voucherID uuid.UUID) (bool, error)
	InsertUsage(ctx context.Context, usage *models.VoucherUsage) error
	HasUsageForOrder(ctx context.Context, voucherID, orderID uuid.UUID) (bool, error)
}
