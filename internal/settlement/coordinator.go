package settlement

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/internal/gateway"
	"github.com/quangtran/dinehub-backend/internal/orders"
	"github.com/quangtran/dinehub-backend/internal/reservations"
	"github.com/quangtran/dinehub-backend/internal/vouchers"
	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	"github.com/quangtran/dinehub-backend/pkg/logger"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
	"github.com/quangtran/dinehub-backend/pkg/outbox/payloads"
)

// IPNResult is the closed code/message pair the callback endpoint always
// answers with. The gateway stops retrying on any semantic rejection and
// retries only on the retryable unknown-error code.
type IPNResult struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	ipnConfirmed        = IPNResult{Code: "00", Message: "Confirmed"}
	ipnUnknownReference = IPNResult{Code: "01", Message: "UnknownReference"}
	ipnAlreadyConfirmed = IPNResult{Code: "02", Message: "AlreadyConfirmed"}
	ipnAmountMismatch   = IPNResult{Code: "04", Message: "AmountMismatch"}
	ipnInvalidSignature = IPNResult{Code: "97", Message: "InvalidSignature"}
	ipnUnknownError     = IPNResult{Code: "99", Message: "UnknownError"}
)

type callbackParser interface {
	ParseCallback(values url.Values) (*gateway.Callback, error)
}

// reservationSettler is the slice of the reservation lifecycle the
// coordinator drives when a deposit settles or fails.
type reservationSettler interface {
	ConfirmTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error
}

// idempotencyGuard fast-paths replays of an already-applied
// (txn_ref, outcome) pair. The database CAS remains the authority.
type idempotencyGuard interface {
	CheckAndMark(ctx context.Context, txnRef, outcome string) (bool, error)
	Release(ctx context.Context, txnRef, outcome string) error
}

// Coordinator applies verified gateway callbacks to attempts exactly once.
type Coordinator interface {
	// HandleReturn records the browser redirect as a provisional signal. It
	// never settles anything.
	HandleReturn(ctx context.Context, values url.Values) (*models.PaymentAttempt, error)
	// HandleIPN applies the authoritative server-to-server callback. It never
	// returns an error; every outcome maps to a closed response code.
	HandleIPN(ctx context.Context, values url.Values) IPNResult
}

type coordinator struct {
	repo         Repository
	orders       orders.Repository
	vouchers     vouchers.Service
	reservations reservationSettler
	gateway      callbackParser
	tx           txRunner
	outbox       outboxPublisher
	guard        idempotencyGuard
	logg         *logger.Logger
	now          func() time.Time
}

// CoordinatorParams collects the dependencies for NewCoordinator.
type CoordinatorParams struct {
	Repo         Repository
	Orders       orders.Repository
	Vouchers     vouchers.Service
	Reservations reservationSettler
	Gateway      callbackParser
	Tx           txRunner
	Outbox       outboxPublisher
	Guard        idempotencyGuard
	Logger       *logger.Logger
}

// NewCoordinator builds the settlement coordinator.
func NewCoordinator(params CoordinatorParams) (Coordinator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher ledger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation settler required")
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
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &coordinator{
		repo:         params.Repo,
		orders:       params.Orders,
		vouchers:     params.Vouchers,
		reservations: params.Reservations,
		gateway:      params.Gateway,
		tx:           params.Tx,
		outbox:       params.Outbox,
		guard:        params.Guard,
		logg:         params.Logger,
		now:          time.Now,
	}, nil
}

func (c *coordinator) HandleReturn(ctx context.Context, values url.Values) (*models.PaymentAttempt, error) {
	cb, err := c.gateway.ParseCallback(values)
	if err != nil {
		return nil, err
	}
	attempt, err := c.repo.FindByTxnRef(ctx, cb.TxnRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	moved, err := c.repo.UpdateStateCAS(ctx, attempt.ID,
		[]enums.AttemptState{enums.AttemptStateAwaitingGateway},
		enums.AttemptStateReturnedProvisional, nil)
	if err != nil {
		return nil, err
	}
	if moved {
		attempt.State = enums.AttemptStateReturnedProvisional
		c.logg.Info(c.logg.WithTxnRef(ctx, cb.TxnRef), "attempt returned provisional")
	}
	return attempt, nil
}

func (c *coordinator) HandleIPN(ctx context.Context, values url.Values) IPNResult {
	cb, err := c.gateway.ParseCallback(values)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			c.logg.Warn(ctx, "ipn rejected: invalid signature")
			return ipnInvalidSignature
		}
		c.logg.Warn(c.logg.WithField(ctx, "parse_error", err.Error()), "ipn rejected: malformed callback")
		return ipnUnknownError
	}
	ctx = c.logg.WithTxnRef(ctx, cb.TxnRef)

	// refs we never minted are rejected on shape alone, before any lookup
	refKind, _, err := gateway.SplitTxnRef(cb.TxnRef)
	if err != nil {
		c.logg.Warn(ctx, "ipn rejected: malformed txn ref")
		return ipnUnknownReference
	}

	attempt, err := c.repo.FindByTxnRef(ctx, cb.TxnRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(ctx, "ipn rejected: unknown txn ref")
			return ipnUnknownReference
		}
		c.logg.Error(ctx, "ipn attempt lookup failed", err)
		return ipnUnknownError
	}

	if refKind != attempt.Kind {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"ref_kind":      refKind,
			"recorded_kind": attempt.Kind,
		}), "ipn txn ref kind disagrees with attempt")
	}

	if cb.AmountVND != attempt.AmountVND {
		// flagged for manual review; the attempt state is never touched
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"reported_amount_vnd": cb.AmountVND,
			"recorded_amount_vnd": attempt.AmountVND,
		}), "ipn rejected: amount mismatch")
		return ipnAmountMismatch
	}

	outcome := cb.ResponseCode
	if attempt.State.IsTerminal() {
		return c.replayAnswer(ctx, attempt, outcome)
	}

	claimed, err := c.guard.CheckAndMark(ctx, attempt.TxnRef, outcome)
	if err != nil {
		// the guard is a fast path; the attempt CAS still serializes
		c.logg.Warn(c.logg.WithField(ctx, "guard_error", err.Error()), "idempotency guard unavailable")
	} else if claimed {
		fresh, err := c.repo.FindByTxnRef(ctx, attempt.TxnRef)
		if err == nil && fresh.State.IsTerminal() {
			return c.replayAnswer(ctx, fresh, outcome)
		}
		// claim exists but the transition never committed; settle again
	}

	var result IPNResult
	if cb.Success() {
		result, err = c.settle(ctx, attempt, cb)
	} else {
		result, err = c.fail(ctx, attempt, cb)
	}
	if err != nil {
		if releaseErr := c.guard.Release(ctx, attempt.TxnRef, outcome); releaseErr != nil {
			c.logg.Warn(c.logg.WithField(ctx, "guard_error", releaseErr.Error()), "idempotency guard release failed")
		}
		c.logg.Error(ctx, "settlement transition failed", err)
		return ipnUnknownError
	}
	return result
}

// replayAnswer acknowledges a duplicate delivery without side effects. A
// different outcome for a terminal attempt is an anomaly: logged, never
// applied, and the answer echoes the outcome already on record.
func (c *coordinator) replayAnswer(ctx context.Context, attempt *models.PaymentAttempt, outcome string) IPNResult {
	recorded := ""
	if attempt.OutcomeCode != nil {
		recorded = *attempt.OutcomeCode
	}
	if recorded != "" && recorded != outcome {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"recorded_outcome": recorded,
			"reported_outcome": outcome,
			"state":            attempt.State,
		}), "conflicting outcome for terminal attempt")
		return IPNResult{
			Code:    ipnAlreadyConfirmed.Code,
			Message: fmt.Sprintf("AlreadyConfirmed (recorded %s)", recorded),
		}
	}
	c.logg.Info(ctx, "duplicate ipn acknowledged")
	return ipnAlreadyConfirmed
}

// settle applies a successful authoritative callback in one transaction:
// attempt terminal, voucher commit, lifecycle transition, outbox events.
func (c *coordinator) settle(ctx context.Context, attempt *models.PaymentAttempt, cb *gateway.Callback) (IPNResult, error) {
	settledAt := c.now()
	result := ipnConfirmed
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)

		updates := map[string]any{
			"outcome_code": cb.ResponseCode,
			"settled_at":   settledAt,
		}
		if cb.BankCode != "" {
			updates["bank_code"] = cb.BankCode
		}
		moved, err := repo.UpdateStateCAS(ctx, attempt.ID, activeAttemptStates, enums.AttemptStateSettled, updates)
		if err != nil {
			return err
		}
		if !moved {
			// a concurrent delivery won the CAS; benign race
			c.logg.Info(ctx, "settlement race lost, acknowledging replay")
			result = ipnAlreadyConfirmed
			return nil
		}

		switch attempt.Kind {
		case enums.PaymentKindOrder:
			if err := c.settleOrder(ctx, tx, attempt, settledAt); err != nil {
				return err
			}
		case enums.PaymentKindOrderDeposit:
			if err := c.settleOrderDeposit(ctx, tx, attempt); err != nil {
				return err
			}
		case enums.PaymentKindReservationDeposit:
			if err := c.reservations.ConfirmTx(ctx, tx, *attempt.ReservationID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown payment kind %q", attempt.Kind)
		}

		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregatePaymentAttempt,
			AggregateID:   attempt.ID,
			Data: payloads.PaymentCompletedEvent{
				TxnRef:        attempt.TxnRef,
				Kind:          attempt.Kind,
				OrderID:       attempt.OrderID,
				ReservationID: attempt.ReservationID,
				AmountVND:     attempt.AmountVND,
				BankCode:      cb.BankCode,
				SettledAt:     settledAt,
			},
		})
	})
	if err != nil {
		return ipnUnknownError, err
	}
	if result.Code == ipnConfirmed.Code {
		c.logg.Info(ctx, "attempt settled")
	}
	return result, nil
}

func (c *coordinator) settleOrder(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, settledAt time.Time) error {
	ordersRepo := c.orders.WithTx(tx)
	order, err := ordersRepo.FindByID(ctx, *attempt.OrderID)
	if err != nil {
		return err
	}

	if order.VoucherID != nil {
		err := c.vouchers.Commit(ctx, tx, *order.VoucherID, order.ID, order.UserID, settledAt)
		switch {
		case err == nil:
		case isVoucherRefusal(err):
			// the payment side still completes; the discount is downgraded
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"order_id":   order.ID,
				"voucher_id": *order.VoucherID,
				"refusal":    err.Error(),
			}), "voucher commit refused, discount downgraded")
			if err := ordersRepo.UpdateOrder(ctx, order.ID, map[string]any{
				"discount_vnd": 0,
				"total_vnd":    order.SubtotalVND + order.TaxVND,
				"voucher_id":   nil,
			}); err != nil {
				return err
			}
		default:
			return err
		}
	}

	moved, err := ordersRepo.UpdateStatusCAS(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPaymentRequested, enums.OrderStatusOpen},
		enums.OrderStatusPaid)
	if err != nil {
		return err
	}
	if !moved {
		// the money is taken either way; staff reconcile the order manually
		c.logg.Warn(c.logg.WithField(ctx, "order_id", order.ID), "settled order could not move to paid")
	} else {
		err = c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				From:    order.Status,
				To:      enums.OrderStatusPaid,
			},
		})
		if err != nil {
			return err
		}
	}

	if order.UserID != nil {
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoyaltyAwardRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.LoyaltyAwardRequestedEvent{
				UserID:    *order.UserID,
				OrderID:   order.ID,
				AmountVND: attempt.AmountVND,
			},
		})
	}
	return nil
}

// settleOrderDeposit books the settled amount as prepaid credit on the order.
func (c *coordinator) settleOrderDeposit(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt) error {
	ordersRepo := c.orders.WithTx(tx)
	return ordersRepo.UpdateOrder(ctx, *attempt.OrderID, map[string]any{
		"deposit_vnd": gorm.Expr("deposit_vnd + ?", attempt.AmountVND),
	})
}

// fail records a gateway-reported failure. A failed reservation deposit
// releases the hold unless another attempt already settled it.
func (c *coordinator) fail(ctx context.Context, attempt *models.PaymentAttempt, cb *gateway.Callback) (IPNResult, error) {
	result := ipnConfirmed
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)

		moved, err := repo.UpdateStateCAS(ctx, attempt.ID, activeAttemptStates, enums.AttemptStateFailed,
			map[string]any{"outcome_code": cb.ResponseCode})
		if err != nil {
			return err
		}
		if !moved {
			c.logg.Info(ctx, "failure race lost, acknowledging replay")
			result = ipnAlreadyConfirmed
			return nil
		}

		if attempt.Kind == enums.PaymentKindReservationDeposit {
			settled, err := repo.HasSettledDeposit(ctx, *attempt.ReservationID)
			if err != nil {
				return err
			}
			if !settled {
				err := c.reservations.Release(ctx, tx, *attempt.ReservationID, "deposit payment failed")
				if err != nil && !errors.Is(err, reservations.ErrNotCancellable) {
					return err
				}
			}
		}

		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentAttempt,
			AggregateID:   attempt.ID,
			Data: payloads.PaymentFailedEvent{
				TxnRef:        attempt.TxnRef,
				Kind:          attempt.Kind,
				OrderID:       attempt.OrderID,
				ReservationID: attempt.ReservationID,
				OutcomeCode:   cb.ResponseCode,
			},
		})
	})
	if err != nil {
		return ipnUnknownError, err
	}
	if result.Code == ipnConfirmed.Code {
		c.logg.Info(c.logg.WithField(ctx, "outcome_code", cb.ResponseCode), "attempt failed at gateway")
	}
	return result, nil
}

// isVoucherRefusal separates capacity/eligibility refusals, which downgrade
// the discount, from infrastructure errors, which roll the settlement back.
func isVoucherRefusal(err error) bool {
	return errors.Is(err, vouchers.ErrVoucherExhausted) ||
		errors.Is(err, vouchers.ErrVoucherAlreadyUsed) ||
		errors.Is(err, vouchers.ErrVoucherExpired) ||
		errors.Is(err, vouchers.ErrVoucherInactive) ||
		errors.Is(err, vouchers.ErrVoucherNotFound)
}
