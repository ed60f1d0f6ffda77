package reservations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
)

// Repository defines persistence operations for reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// UpdateStatusCAS moves the reservation forward only while it is still in
	// one of the allowed source states.
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from []enums.ReservationStatus, to enums.ReservationStatus) (bool, error)
}

// DepositChecker answers whether a settled deposit attempt exists for the
// reservation. Implemented by the settlement repository.
type DepositChecker interface {
	HasSettledDeposit(ctx context.Context, reservationID uuid.UUID) (bool, error)
}
