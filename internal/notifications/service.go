package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	pkgerrors "github.com/quangtran/dinehub-backend/pkg/errors"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
	"github.com/quangtran/dinehub-backend/pkg/outbox/payloads"
	"github.com/quangtran/dinehub-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ErrNotRecipient rejects read-state changes on another user's private
// notification or on a broadcast outside the actor's audience.
var ErrNotRecipient = pkgerrors.New(pkgerrors.CodeForbidden, "notification does not belong to this user")

// Service defines notification list/read operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	// MarkRead flips the given notifications from unread to read. Already-read
	// ids are no-ops; unknown ids are ignored. Returns how many rows flipped.
	MarkRead(ctx context.Context, actorID uuid.UUID, role enums.UserRole, ids []uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, actorID uuid.UUID) (int64, error)
}

// ListParams configures pagination for notifications.
type ListParams struct {
	RecipientID uuid.UUID
	Role        enums.UserRole
	Limit       int
	Cursor      string
	UnreadOnly  bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService wires notifications dependencies.
func NewService(repo Repository, tx txRunner, ob outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if ob == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: ob, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	query := listNotificationsParams{
		RecipientID: params.RecipientID,
		Role:        params.Role,
		Limit:       params.Limit,
		UnreadOnly:  params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) MarkRead(ctx context.Context, actorID uuid.UUID, role enums.UserRole, ids []uuid.UUID) (int64, error) {
	if actorID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var flipped int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		allowed := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			if !s.visibleTo(row, actorID, role) {
				return ErrNotRecipient
			}
			allowed = append(allowed, row.ID)
		}
		flipped, err = repo.MarkRead(ctx, allowed, s.now())
		if err != nil {
			return err
		}
		if flipped == 0 {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationMarkedRead,
			AggregateType: enums.AggregateNotification,
			AggregateID:   actorID,
			Data: payloads.NotificationMarkedReadEvent{
				UserID:          actorID,
				NotificationIDs: allowed,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return flipped, nil
}

func (s *service) MarkAllRead(ctx context.Context, actorID uuid.UUID) (int64, error) {
	if actorID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	count, err := s.repo.MarkAllRead(ctx, actorID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) visibleTo(row models.Notification, actorID uuid.UUID, role enums.UserRole) bool {
	if row.RecipientUserID != nil {
		return *row.RecipientUserID == actorID
	}
	if row.AudienceRole != nil {
		if *row.AudienceRole == string(enums.UserRoleStaff) {
			return role.IsStaff()
		}
		return *row.AudienceRole == string(role)
	}
	return true
}
