package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/internal/gateway"
	"github.com/quangtran/dinehub-backend/internal/orders"
	"github.com/quangtran/dinehub-backend/internal/reservations"
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

type redirectBuilder interface {
	BuildRedirectURL(req gateway.RedirectRequest) (string, error)
}

var (
	ErrAttemptNotFound    = pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
	ErrTargetNotFound     = pkgerrors.New(pkgerrors.CodeNotFound, "payment target not found")
	ErrOrderNotPayable    = pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in a payable state")
	ErrDepositNotPayable  = pkgerrors.New(pkgerrors.CodeStateConflict, "reservation deposit is not payable")
	ErrNothingToPay       = pkgerrors.New(pkgerrors.CodeValidation, "nothing left to pay")
	ErrDepositWaived      = pkgerrors.New(pkgerrors.CodeValidation, "reservation deposit is waived")
	ErrInvalidDepositSize = pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
)

// RequestOptions carries per-request redirect parameters from the caller.
type RequestOptions struct {
	IPAddr   string
	BankCode string
	Locale   string
}

// RedirectDetail is the minted attempt plus the URL the customer is sent to.
type RedirectDetail struct {
	Attempt     models.PaymentAttempt `json:"attempt"`
	RedirectURL string                `json:"redirect_url"`
}

// PaymentService mints payment attempts and their gateway redirects.
type PaymentService interface {
	// RequestOrderPayment charges the order's outstanding balance (total minus
	// any settled deposit credit) and moves an open order to payment_requested.
	RequestOrderPayment(ctx context.Context, orderID uuid.UUID, opts RequestOptions) (*RedirectDetail, error)
	// RequestOrderDeposit charges a partial upfront amount against an open order.
	RequestOrderDeposit(ctx context.Context, orderID uuid.UUID, amountVND int64, opts RequestOptions) (*RedirectDetail, error)
	// RequestReservationDeposit charges the booking deposit of a pending reservation.
	RequestReservationDeposit(ctx context.Context, reservationID uuid.UUID, opts RequestOptions) (*RedirectDetail, error)
	FindByTxnRef(ctx context.Context, txnRef string) (*models.PaymentAttempt, error)
}

type paymentService struct {
	repo         Repository
	orders       orders.Repository
	reservations reservations.Repository
	gateway      redirectBuilder
	tx           txRunner
	outbox       outboxPublisher
	attemptTTL   time.Duration
	now          func() time.Time
}

// PaymentServiceParams collects the dependencies for NewPaymentService.
type PaymentServiceParams struct {
	Repo         Repository
	Orders       orders.Repository
	Reservations reservations.Repository
	Gateway      redirectBuilder
	Tx           txRunner
	Outbox       outboxPublisher
	AttemptTTL   time.Duration
}

// NewPaymentService builds the payment request service.
func NewPaymentService(params PaymentServiceParams) (PaymentService, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.AttemptTTL <= 0 {
		return nil, fmt.Errorf("attempt ttl must be positive")
	}
	return &paymentService{
		repo:         params.Repo,
		orders:       params.Orders,
		reservations: params.Reservations,
		gateway:      params.Gateway,
		tx:           params.Tx,
		outbox:       params.Outbox,
		attemptTTL:   params.AttemptTTL,
		now:          time.Now,
	}, nil
}

func (s *paymentService) RequestOrderPayment(ctx context.Context, orderID uuid.UUID, opts RequestOptions) (*RedirectDetail, error) {
	var detail *RedirectDetail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		// a retry while payment_requested mints a fresh attempt; the old one
		// is superseded below
		if order.Status != enums.OrderStatusOpen && order.Status != enums.OrderStatusPaymentRequested {
			return ErrOrderNotPayable
		}
		amount := order.TotalVND - order.DepositVND
		if amount <= 0 {
			return ErrNothingToPay
		}
		if order.Status == enums.OrderStatusOpen {
			moved, err := ordersRepo.UpdateStatusCAS(ctx, orderID,
				[]enums.OrderStatus{enums.OrderStatusOpen}, enums.OrderStatusPaymentRequested)
			if err != nil {
				return err
			}
			if !moved {
				return ErrOrderNotPayable
			}
		}
		detail, err = s.mint(ctx, tx, enums.PaymentKindOrder, &orderID, nil, amount, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *paymentService) RequestOrderDeposit(ctx context.Context, orderID uuid.UUID, amountVND int64, opts RequestOptions) (*RedirectDetail, error) {
	if amountVND <= 0 {
		return nil, ErrInvalidDepositSize
	}
	var detail *RedirectDetail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		if order.Status != enums.OrderStatusOpen {
			return ErrOrderNotPayable
		}
		if amountVND > order.TotalVND {
			return pkgerrors.New(pkgerrors.CodeValidation, "deposit exceeds order total")
		}
		detail, err = s.mint(ctx, tx, enums.PaymentKindOrderDeposit, &orderID, nil, amountVND, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *paymentService) RequestReservationDeposit(ctx context.Context, reservationID uuid.UUID, opts RequestOptions) (*RedirectDetail, error) {
	var detail *RedirectDetail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservationsRepo := s.reservations.WithTx(tx)
		reservation, err := reservationsRepo.FindByID(ctx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		if reservation.Status != enums.ReservationStatusPending {
			return ErrDepositNotPayable
		}
		if reservation.DepositWaived {
			return ErrDepositWaived
		}
		if reservation.DepositVND <= 0 {
			return ErrNothingToPay
		}
		detail, err = s.mint(ctx, tx, enums.PaymentKindReservationDeposit, nil, &reservationID, reservation.DepositVND, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *paymentService) FindByTxnRef(ctx context.Context, txnRef string) (*models.PaymentAttempt, error) {
	attempt, err := s.repo.FindByTxnRef(ctx, txnRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return attempt, nil
}

// mint creates the attempt, builds the signed redirect and records the
// awaiting_gateway transition, all inside the caller's transaction.
func (s *paymentService) mint(ctx context.Context, tx *gorm.DB, kind enums.PaymentKind, orderID, reservationID *uuid.UUID, amountVND int64, opts RequestOptions) (*RedirectDetail, error) {
	repo := s.repo.WithTx(tx)

	targetID := uuid.Nil
	if orderID != nil {
		targetID = *orderID
	} else if reservationID != nil {
		targetID = *reservationID
	}
	if _, err := repo.SupersedeActive(ctx, kind, targetID); err != nil {
		return nil, err
	}

	attemptID := uuid.New()
	txnRef, err := gateway.MakeTxnRef(kind, targetID, nonceFrom(attemptID))
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.attemptTTL)

	attempt := &models.PaymentAttempt{
		ID:            attemptID,
		TxnRef:        txnRef,
		Kind:          kind,
		OrderID:       orderID,
		ReservationID: reservationID,
		AmountVND:     amountVND,
		State:         enums.AttemptStateCreated,
		ExpiresAt:     expiresAt,
	}
	if _, err := repo.Create(ctx, attempt); err != nil {
		return nil, err
	}

	var bankCode *string
	if opts.BankCode != "" {
		bankCode = &opts.BankCode
	}
	url, err := s.gateway.BuildRedirectURL(gateway.RedirectRequest{
		TxnRef:    txnRef,
		AmountVND: amountVND,
		OrderInfo: orderInfoFor(kind, targetID),
		IPAddr:    opts.IPAddr,
		BankCode:  opts.BankCode,
		Locale:    opts.Locale,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, err
	}

	moved, err := repo.UpdateStateCAS(ctx, attemptID,
		[]enums.AttemptState{enums.AttemptStateCreated}, enums.AttemptStateAwaitingGateway,
		map[string]any{"bank_code": bankCode})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "freshly minted attempt already transitioned")
	}
	attempt.State = enums.AttemptStateAwaitingGateway
	attempt.BankCode = bankCode

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRequested,
		AggregateType: enums.AggregatePaymentAttempt,
		AggregateID:   attemptID,
		Data: payloads.PaymentRequestedEvent{
			TxnRef:        txnRef,
			Kind:          kind,
			OrderID:       orderID,
			ReservationID: reservationID,
			AmountVND:     amountVND,
			ExpiresAt:     expiresAt,
		},
	})
	if err != nil {
		return nil, err
	}
	return &RedirectDetail{Attempt: *attempt, RedirectURL: url}, nil
}

// nonceFrom keeps txn refs unique across retries for the same target.
func nonceFrom(attemptID uuid.UUID) string {
	return strings.SplitN(attemptID.String(), "-", 2)[0]
}

func orderInfoFor(kind enums.PaymentKind, targetID uuid.UUID) string {
	switch kind {
	case enums.PaymentKindOrderDeposit:
		return fmt.Sprintf("Deposit for order %s", targetID)
	case enums.PaymentKindReservationDeposit:
		return fmt.Sprintf("Deposit for reservation %s", targetID)
	default:
		return fmt.Sprintf("Payment for order %s", targetID)
	}
}
