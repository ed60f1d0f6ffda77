package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/internal/orders"
	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	pkgerrors "github.com/quangtran/dinehub-backend/pkg/errors"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
	"github.com/quangtran/dinehub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderCreator materializes the table's order at check-in.
type orderCreator interface {
	Create(ctx context.Context, input orders.CreateOrderInput) (*orders.Detail, error)
}

var (
	ErrReservationNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	ErrNotConfirmable      = pkgerrors.New(pkgerrors.CodeStateConflict, "reservation cannot be confirmed in its current state")
	ErrDepositOutstanding  = pkgerrors.New(pkgerrors.CodeStateConflict, "reservation deposit has not settled")
	ErrNotCheckInable      = pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is not confirmed")
	ErrNotCancellable      = pkgerrors.New(pkgerrors.CodeStateConflict, "reservation can no longer be cancelled")
	ErrNotCompletable      = pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is not checked in")
	ErrNotNoShowable       = pkgerrors.New(pkgerrors.CodeStateConflict, "reservation cannot be marked as a no-show")
)

// BookInput carries the booking request.
type BookInput struct {
	UserID          *uuid.UUID
	TableID         *uuid.UUID
	TableGroupID    *uuid.UUID
	EventID         *uuid.UUID
	ReservationTime time.Time
	DurationMinutes int
	NumPeople       int
	DepositVND      int64
	DepositWaived   bool
}

// Service defines the reservation lifecycle operations.
type Service interface {
	Book(ctx context.Context, input BookInput) (*models.Reservation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	// Confirm moves pending -> confirmed. Without a waiver it demands a
	// settled deposit attempt.
	Confirm(ctx context.Context, id uuid.UUID) error
	// ConfirmTx is the settlement-transaction variant used when the deposit
	// settles; the caller has already established the deposit is paid.
	ConfirmTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CheckIn(ctx context.Context, id uuid.UUID) (*models.Reservation, *orders.Detail, error)
	// Complete closes out a checked-in visit once the party has left.
	Complete(ctx context.Context, id uuid.UUID) error
	// MarkNoShow records a party that never arrived; the hold goes terminal
	// without refunding the deposit.
	MarkNoShow(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
	// Release frees the hold inside the caller's transaction (expiry sweep,
	// failed deposit settlement).
	Release(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	deposits DepositChecker
	orders   orderCreator
	now      func() time.Time
}

// ServiceParams collects the dependencies for NewService.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Deposits DepositChecker
	Orders   orderCreator
}

// NewService builds the reservation lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Deposits == nil {
		return nil, fmt.Errorf("deposit checker required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		deposits: params.Deposits,
		orders:   params.Orders,
		now:      time.Now,
	}, nil
}

func (s *service) Book(ctx context.Context, input BookInput) (*models.Reservation, error) {
	if input.TableID == nil && input.TableGroupID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a table or table group is required")
	}
	if input.NumPeople <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party size must be positive")
	}
	if input.ReservationTime.Before(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation time is in the past")
	}
	if input.DepositVND < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit must not be negative")
	}

	duration := input.DurationMinutes
	if duration <= 0 {
		duration = 90
	}
	reservation := &models.Reservation{
		ID:              uuid.New(),
		UserID:          input.UserID,
		TableID:         input.TableID,
		TableGroupID:    input.TableGroupID,
		EventID:         input.EventID,
		ReservationTime: input.ReservationTime,
		DurationMinutes: duration,
		NumPeople:       input.NumPeople,
		DepositVND:      input.DepositVND,
		DepositWaived:   input.DepositWaived,
		Status:          enums.ReservationStatusPending,
	}
	if _, err := s.repo.Create(ctx, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.find(ctx, s.repo, id)
}

func (s *service) Confirm(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := s.find(ctx, repo, id)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusPending {
			return ErrNotConfirmable
		}

		if !reservation.DepositWaived && reservation.DepositVND > 0 {
			settled, err := s.deposits.HasSettledDeposit(ctx, id)
			if err != nil {
				return err
			}
			if !settled {
				return ErrDepositOutstanding
			}
		}
		return s.confirmLocked(ctx, tx, repo, reservation)
	})
}

func (s *service) ConfirmTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	reservation, err := s.find(ctx, repo, id)
	if err != nil {
		return err
	}
	if reservation.Status != enums.ReservationStatusPending {
		// settle replays land here; confirmed already is fine
		if reservation.Status == enums.ReservationStatusConfirmed {
			return nil
		}
		return ErrNotConfirmable
	}
	return s.confirmLocked(ctx, tx, repo, reservation)
}

func (s *service) confirmLocked(ctx context.Context, tx *gorm.DB, repo Repository, reservation *models.Reservation) error {
	moved, err := repo.UpdateStatusCAS(ctx, reservation.ID,
		[]enums.ReservationStatus{enums.ReservationStatusPending}, enums.ReservationStatusConfirmed)
	if err != nil {
		return err
	}
	if !moved {
		return ErrNotConfirmable
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReservationConfirmed,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservation.ID,
		Data: payloads.ReservationConfirmedEvent{
			ReservationID: reservation.ID,
			DepositVND:    reservation.DepositVND,
			Waived:        reservation.DepositWaived,
		},
	})
}

// CheckIn moves confirmed -> checked_in and opens the table's order.
func (s *service) CheckIn(ctx context.Context, id uuid.UUID) (*models.Reservation, *orders.Detail, error) {
	var (
		reservation *models.Reservation
		detail      *orders.Detail
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := s.find(ctx, repo, id)
		if err != nil {
			return err
		}
		if found.Status != enums.ReservationStatusConfirmed {
			return ErrNotCheckInable
		}
		moved, err := repo.UpdateStatusCAS(ctx, id,
			[]enums.ReservationStatus{enums.ReservationStatusConfirmed}, enums.ReservationStatusCheckedIn)
		if err != nil {
			return err
		}
		if !moved {
			return ErrNotCheckInable
		}
		now := s.now()
		if err := repo.Update(ctx, id, map[string]any{"checked_in_at": now}); err != nil {
			return err
		}
		found.Status = enums.ReservationStatusCheckedIn
		found.CheckedInAt = &now
		reservation = found
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// the order carries the settled deposit forward as prepaid credit
	detail, err = s.orders.Create(ctx, orders.CreateOrderInput{
		UserID:        reservation.UserID,
		TableID:       reservation.TableID,
		TableGroupID:  reservation.TableGroupID,
		ReservationID: &reservation.ID,
	})
	if err != nil {
		return nil, nil, err
	}
	return reservation, detail, nil
}

func (s *service) Complete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.UpdateStatusCAS(ctx, id,
			[]enums.ReservationStatus{enums.ReservationStatusCheckedIn}, enums.ReservationStatusCompleted)
		if err != nil {
			return err
		}
		if !moved {
			if _, err := s.find(ctx, repo, id); err != nil {
				return err
			}
			return ErrNotCompletable
		}
		if err := repo.Update(ctx, id, map[string]any{"completed_at": s.now()}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCompleted,
			AggregateType: enums.AggregateReservation,
			AggregateID:   id,
			Data: payloads.ReservationCompletedEvent{
				ReservationID: id,
			},
		})
	})
}

func (s *service) MarkNoShow(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.UpdateStatusCAS(ctx, id,
			[]enums.ReservationStatus{enums.ReservationStatusPending, enums.ReservationStatusConfirmed},
			enums.ReservationStatusNoShow)
		if err != nil {
			return err
		}
		if !moved {
			if _, err := s.find(ctx, repo, id); err != nil {
				return err
			}
			return ErrNotNoShowable
		}
		if err := repo.Update(ctx, id, map[string]any{"no_show_at": s.now()}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationNoShow,
			AggregateType: enums.AggregateReservation,
			AggregateID:   id,
			Data: payloads.ReservationNoShowEvent{
				ReservationID: id,
			},
		})
	})
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.Release(ctx, tx, id, reason)
	})
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	moved, err := repo.UpdateStatusCAS(ctx, id,
		[]enums.ReservationStatus{enums.ReservationStatusPending, enums.ReservationStatusConfirmed},
		enums.ReservationStatusCancelled)
	if err != nil {
		return err
	}
	if !moved {
		return ErrNotCancellable
	}
	if err := repo.Update(ctx, id, map[string]any{"cancelled_at": s.now()}); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReservationReleased,
		AggregateType: enums.AggregateReservation,
		AggregateID:   id,
		Data: payloads.ReservationReleasedEvent{
			ReservationID: id,
			Reason:        reason,
		},
	})
}

func (s *service) find(ctx context.Context, repo Repository, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return reservation, nil
}
