package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/internal/vouchers"
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

var (
	ErrOrderNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	ErrItemNotFound  = pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
	// ErrOrderNotOpen rejects item and voucher mutations once payment begins.
	ErrOrderNotOpen  = pkgerrors.New(pkgerrors.CodeStateConflict, "order is not open for changes")
	ErrOrderTerminal = pkgerrors.New(pkgerrors.CodeStateConflict, "order is already in a terminal state")
	ErrItemNotActive = pkgerrors.New(pkgerrors.CodeStateConflict, "order item is removed")
	ErrNoActiveItems = pkgerrors.New(pkgerrors.CodeValidation, "order has no active items")
)

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*Detail, error)
	Get(ctx context.Context, orderID uuid.UUID) (*Detail, error)
	AddItem(ctx context.Context, orderID uuid.UUID, input NewItemInput) (*Detail, error)
	RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*Detail, error)
	UpdateItemStatus(ctx context.Context, orderID, itemID uuid.UUID, status enums.OrderItemStatus) error
	ApplyVoucher(ctx context.Context, orderID uuid.UUID, code string) (*Detail, error)
	Cancel(ctx context.Context, orderID uuid.UUID) error
	Close(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	vouchers vouchers.Service
	taxRate  int64
	now      func() time.Time
}

// ServiceParams collects the dependencies for NewService.
type ServiceParams struct {
	Repo           Repository
	Tx             txRunner
	Outbox         outboxPublisher
	Vouchers       vouchers.Service
	TaxRatePercent int64
}

// NewService builds the order lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher ledger required")
	}
	if params.TaxRatePercent < 0 || params.TaxRatePercent > 100 {
		return nil, fmt.Errorf("tax rate must be between 0 and 100")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		vouchers: params.Vouchers,
		taxRate:  params.TaxRatePercent,
		now:      time.Now,
	}, nil
}

// Create opens an order. Zero items is allowed so reservation check-in can
// materialize an empty order for the table; the HTTP surface requires items.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*Detail, error) {
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        input.UserID,
		TableID:       input.TableID,
		TableGroupID:  input.TableGroupID,
		ReservationID: input.ReservationID,
		Status:        enums.OrderStatusOpen,
		Notes:         input.Notes,
	}
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, in := range input.Items {
		item, err := buildItem(order.ID, in)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	subtotal := sumActive(items)
	order.SubtotalVND = subtotal
	order.TaxVND = s.taxFor(subtotal)
	order.TotalVND = subtotal + order.TaxVND

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				TableID:       order.TableID,
				ReservationID: order.ReservationID,
				TotalVND:      order.TotalVND,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &Detail{Order: *order, Items: items}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*Detail, error) {
	order, err := s.findOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.FindItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Detail{Order: *order, Items: items}, nil
}

func (s *service) AddItem(ctx context.Context, orderID uuid.UUID, input NewItemInput) (*Detail, error) {
	item, err := buildItem(orderID, input)
	if err != nil {
		return nil, err
	}

	var detail *Detail
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusOpen {
			return ErrOrderNotOpen
		}
		if err := repo.CreateItems(ctx, []models.OrderItem{*item}); err != nil {
			return err
		}
		detail, err = s.recomputeTotals(ctx, repo, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *service) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*Detail, error) {
	var detail *Detail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusOpen {
			return ErrOrderNotOpen
		}
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		if item.OrderID != orderID {
			return ErrItemNotFound
		}
		if !item.Status.IsActive() {
			return ErrItemNotActive
		}
		if err := repo.UpdateItem(ctx, itemID, map[string]any{
			"status": enums.OrderItemStatusRemoved,
		}); err != nil {
			return err
		}
		detail, err = s.recomputeTotals(ctx, repo, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *service) UpdateItemStatus(ctx context.Context, orderID, itemID uuid.UUID, status enums.OrderItemStatus) error {
	if !status.IsValid() || status == enums.OrderItemStatusRemoved {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid item status")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return ErrOrderTerminal
		}
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		if item.OrderID != orderID {
			return ErrItemNotFound
		}
		if !item.Status.IsActive() {
			return ErrItemNotActive
		}
		if err := repo.UpdateItem(ctx, itemID, map[string]any{"status": status}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderItemStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderItemStatusChangedEvent{
				OrderID: orderID,
				ItemID:  itemID,
				Status:  status,
			},
		})
	})
}

// ApplyVoucher stores the voucher reference and recomputes the discount. It
// never consumes a use; consumption happens when the payment settles.
func (s *service) ApplyVoucher(ctx context.Context, orderID uuid.UUID, code string) (*Detail, error) {
	var detail *Detail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusOpen {
			return ErrOrderNotOpen
		}
		voucher, _, err := s.vouchers.Validate(ctx, code, order.SubtotalVND, s.now())
		if err != nil {
			return err
		}
		order.VoucherID = &voucher.ID
		if err := repo.UpdateOrder(ctx, orderID, map[string]any{
			"voucher_id": voucher.ID,
		}); err != nil {
			return err
		}
		detail, err = s.recomputeTotals(ctx, repo, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.findOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return ErrOrderTerminal
		}

		// paid orders need the compensating refund flow, not a plain cancel
		target := enums.OrderStatusCancelled
		if order.Status == enums.OrderStatusPaid {
			target = enums.OrderStatusRefundPending
		}
		moved, err := repo.UpdateStatusCAS(ctx, orderID, []enums.OrderStatus{order.Status}, target)
		if err != nil {
			return err
		}
		if !moved {
			return ErrOrderTerminal
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID: orderID,
				From:    order.Status,
				To:      target,
			},
		})
	})
}

func (s *service) Close(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.UpdateStatusCAS(ctx, orderID,
			[]enums.OrderStatus{enums.OrderStatusPaid}, enums.OrderStatusClosed)
		if err != nil {
			return err
		}
		if !moved {
			return ErrOrderTerminal
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID: orderID,
				From:    enums.OrderStatusPaid,
				To:      enums.OrderStatusClosed,
			},
		})
	})
}

func (s *service) findOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// recomputeTotals rewrites subtotal, discount, tax and total as one update.
// Tax is computed on the subtotal, never on the discount-adjusted value.
func (s *service) recomputeTotals(ctx context.Context, repo Repository, order *models.Order) (*Detail, error) {
	items, err := repo.FindItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	subtotal := sumActive(items)
	var discount int64
	if order.VoucherID != nil {
		voucher, granted, err := s.voucherForOrder(ctx, *order.VoucherID, subtotal)
		if err != nil {
			return nil, err
		}
		if voucher != nil {
			discount = granted
		}
	}
	tax := s.taxFor(subtotal)
	total := subtotal - discount + tax

	updates := map[string]any{
		"subtotal_vnd": subtotal,
		"discount_vnd": discount,
		"tax_vnd":      tax,
		"total_vnd":    total,
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return nil, err
	}

	order.SubtotalVND = subtotal
	order.DiscountVND = discount
	order.TaxVND = tax
	order.TotalVND = total
	return &Detail{Order: *order, Items: items}, nil
}

// voucherForOrder re-validates the stored voucher against the new subtotal.
// A voucher that no longer qualifies drops the discount instead of blocking
// the item change.
func (s *service) voucherForOrder(ctx context.Context, voucherID uuid.UUID, subtotal int64) (*models.Voucher, int64, error) {
	voucher, discount, err := s.vouchers.ValidateByID(ctx, voucherID, subtotal, s.now())
	if err != nil {
		var typed *pkgerrors.Error
		if errors.As(err, &typed) && typed.Code() != pkgerrors.CodeInternal && typed.Code() != pkgerrors.CodeDependency {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return voucher, discount, nil
}

func (s *service) taxFor(subtotal int64) int64 {
	if subtotal <= 0 || s.taxRate == 0 {
		return 0
	}
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(s.taxRate)).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}

func buildItem(orderID uuid.UUID, input NewItemInput) (*models.OrderItem, error) {
	if input.DishID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish id is required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if input.UnitPriceVND < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return &models.OrderItem{
		ID:           uuid.New(),
		OrderID:      orderID,
		DishID:       input.DishID,
		Name:         input.Name,
		UnitPriceVND: input.UnitPriceVND,
		Qty:          input.Qty,
		LineTotalVND: input.UnitPriceVND * int64(input.Qty),
		Status:       enums.OrderItemStatusPending,
		Notes:        input.Notes,
	}, nil
}

func sumActive(items []models.OrderItem) int64 {
	var subtotal int64
	for _, item := range items {
		if item.Status.IsActive() {
			subtotal += item.LineTotalVND
		}
	}
	return subtotal
}
