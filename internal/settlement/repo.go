package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
)

// activeAttemptStates are the states an attempt can still transition out of.
var activeAttemptStates = []enums.AttemptState{
	enums.AttemptStateCreated,
	enums.AttemptStateAwaitingGateway,
	enums.AttemptStateReturnedProvisional,
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment attempt repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) FindByTxnRef(ctx context.Context, txnRef string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("txn_ref = ?", txnRef).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repository) UpdateStateCAS(ctx context.Context, id uuid.UUID, from []enums.AttemptState, to enums.AttemptState, updates map[string]any) (bool, error) {
	values := map[string]any{"state": to}
	for column, value := range updates {
		values[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND state IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) SupersedeActive(ctx context.Context, kind enums.PaymentKind, targetID uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("kind = ? AND state IN ?", kind, activeAttemptStates)
	if kind == enums.PaymentKindReservationDeposit {
		query = query.Where("reservation_id = ?", targetID)
	} else {
		query = query.Where("order_id = ?", targetID)
	}
	result := query.Update("state", enums.AttemptStateExpired)
	return result.RowsAffected, result.Error
}

func (r *repository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("state IN ? AND expires_at <= ?", activeAttemptStates, asOf).
		Order("expires_at ASC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *repository) HasSettledDeposit(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("reservation_id = ? AND kind = ? AND state = ?",
			reservationID, enums.PaymentKindReservationDeposit, enums.AttemptStateSettled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
