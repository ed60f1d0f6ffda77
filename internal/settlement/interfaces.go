package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
)

// Repository defines persistence operations for payment attempts. It also
// answers reservation deposit queries for the reservation lifecycle.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	FindByTxnRef(ctx context.Context, txnRef string) (*models.PaymentAttempt, error)
	// UpdateStateCAS moves the attempt to the target state only while it is
	// still in one of the allowed source states; extra column updates ride in
	// the same statement so the transition and its metadata land atomically.
	UpdateStateCAS(ctx context.Context, id uuid.UUID, from []enums.AttemptState, to enums.AttemptState, updates map[string]any) (bool, error)
	// SupersedeActive expires every non-terminal attempt for the target so at
	// most one attempt is live per order/reservation. Superseded rows stay for
	// audit.
	SupersedeActive(ctx context.Context, kind enums.PaymentKind, targetID uuid.UUID) (int64, error)
	// FindExpired returns non-terminal attempts whose deadline has passed,
	// oldest first, capped at limit.
	FindExpired(ctx context.Context, asOf time.Time, limit int) ([]models.PaymentAttempt, error)
	// HasSettledDeposit reports whether a settled deposit attempt exists for
	// the reservation. Satisfies the reservation lifecycle's deposit check.
	HasSettledDeposit(ctx context.Context, reservationID uuid.UUID) (bool, error)
}
