package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/internal/vouchers"
	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  reservation_id TEXT,
  table_id TEXT,
  table_group_id TEXT,
  voucher_id TEXT,
  status TEXT NOT NULL DEFAULT 'open',
  subtotal_vnd INTEGER NOT NULL DEFAULT 0,
  discount_vnd INTEGER NOT NULL DEFAULT 0,
  tax_vnd INTEGER NOT NULL DEFAULT 0,
  total_vnd INTEGER NOT NULL DEFAULT 0,
  deposit_vnd INTEGER NOT NULL DEFAULT 0,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	items := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  dish_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price_vnd INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  line_total_vnd INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	voucherTables := `
CREATE TABLE IF NOT EXISTS vouchers (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  discount_type TEXT NOT NULL,
  value INTEGER NOT NULL,
  min_order_vnd INTEGER NOT NULL DEFAULT 0,
  max_uses INTEGER NOT NULL DEFAULT 0,
  current_uses INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1,
  expiry_date DATETIME,
  created_at DATETIME
);`
	usages := `
CREATE TABLE IF NOT EXISTS voucher_usages (
  id TEXT PRIMARY KEY,
  voucher_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  user_id TEXT,
  used_at DATETIME NOT NULL
);`

	for _, stmt := range []string{orders, items, voucherTables, usages} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		panic("outbox emit outside transaction")
	}
	r.events = append(r.events, event)
	return nil
}

func newOrdersService(t *testing.T, db *gorm.DB) (Service, *recordingOutbox) {
	t.Helper()
	ledger, err := vouchers.NewService(vouchers.NewRepository(db))
	require.NoError(t, err)

	sink := &recordingOutbox{}
	svc, err := NewService(ServiceParams{
		Repo:           NewRepository(db),
		Tx:             gormTxRunner{db: db},
		Outbox:         sink,
		Vouchers:       ledger,
		TaxRatePercent: 10,
	})
	require.NoError(t, err)
	return svc, sink
}

func twoItemInput() CreateOrderInput {
	tableID := uuid.New()
	return CreateOrderInput{
		TableID: &tableID,
		Items: []NewItemInput{
			{DishID: uuid.New(), Name: "Bo luc lac", UnitPriceVND: 350_000, Qty: 2},
			{DishID: uuid.New(), Name: "Goi cuon", UnitPriceVND: 120_000, Qty: 1},
		},
	}
}

func TestCreate_ComputesTotals(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, sink := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)

	// 350000*2 + 120000 = 820000; 10% tax on subtotal
	assert.Equal(t, int64(820_000), detail.Order.SubtotalVND)
	assert.Equal(t, int64(0), detail.Order.DiscountVND)
	assert.Equal(t, int64(82_000), detail.Order.TaxVND)
	assert.Equal(t, int64(902_000), detail.Order.TotalVND)
	assert.Equal(t, enums.OrderStatusOpen, detail.Order.Status)
	assert.Len(t, detail.Items, 2)

	require.Len(t, sink.events, 1)
	assert.Equal(t, enums.EventOrderCreated, sink.events[0].EventType)
}

func TestCreate_EmptyOrderHasZeroTotals(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), CreateOrderInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), detail.Order.SubtotalVND)
	assert.Equal(t, int64(0), detail.Order.TotalVND)
	assert.Empty(t, detail.Items)
}

func TestAddItem_RecomputesTogether(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)

	updated, err := svc.AddItem(context.Background(), detail.Order.ID, NewItemInput{
		DishID: uuid.New(), Name: "Tra da", UnitPriceVND: 150_000, Qty: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(970_000), updated.Order.SubtotalVND)
	assert.Equal(t, int64(97_000), updated.Order.TaxVND)
	assert.Equal(t, int64(1_067_000), updated.Order.TotalVND)

	var stored models.Order
	require.NoError(t, db.Where("id = ?", detail.Order.ID).First(&stored).Error)
	assert.Equal(t, stored.SubtotalVND-stored.DiscountVND+stored.TaxVND, stored.TotalVND)
}

func TestRemoveItem_ExcludedFromTotals(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)
	target := detail.Items[1] // 120000 line

	updated, err := svc.RemoveItem(context.Background(), detail.Order.ID, target.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(700_000), updated.Order.SubtotalVND)
	assert.Equal(t, int64(70_000), updated.Order.TaxVND)
	assert.Equal(t, int64(770_000), updated.Order.TotalVND)

	// the line survives for audit, flagged removed
	var stored models.OrderItem
	require.NoError(t, db.Where("id = ?", target.ID).First(&stored).Error)
	assert.Equal(t, enums.OrderItemStatusRemoved, stored.Status)
}

func TestRemoveItem_TwiceRejected(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)

	_, err = svc.RemoveItem(context.Background(), detail.Order.ID, detail.Items[0].ID)
	require.NoError(t, err)
	_, err = svc.RemoveItem(context.Background(), detail.Order.ID, detail.Items[0].ID)
	assert.ErrorIs(t, err, ErrItemNotActive)
}

func TestApplyVoucher_DiscountWithTaxOnSubtotal(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersService(t, db)

	voucher := &models.Voucher{
		ID:           uuid.New(),
		Code:         "WELCOME10-" + uuid.NewString()[:8],
		DiscountType: enums.VoucherDiscountPercentage,
		Value:        10,
		Active:       true,
	}
	require.NoError(t, db.Create(voucher).Error)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)

	updated, err := svc.ApplyVoucher(context.Background(), detail.Order.ID, voucher.Code)
	require.NoError(t, err)

	// 820000 subtotal, 82000 discount, tax still 10% of subtotal
	assert.Equal(t, int64(820_000), updated.Order.SubtotalVND)
	assert.Equal(t, int64(82_000), updated.Order.DiscountVND)
	assert.Equal(t, int64(82_000), updated.Order.TaxVND)
	assert.Equal(t, int64(820_000), updated.Order.TotalVND)

	// no usage is consumed at apply time
	var usageCount int64
	require.NoError(t, db.Model(&models.VoucherUsage{}).Count(&usageCount).Error)
	assert.Equal(t, int64(0), usageCount)
}

func TestMutationsRejectedOutsideOpen(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", detail.Order.ID).
		Update("status", enums.OrderStatusPaymentRequested).Error)

	_, err = svc.AddItem(context.Background(), detail.Order.ID, NewItemInput{
		DishID: uuid.New(), Name: "Extra", UnitPriceVND: 10_000, Qty: 1,
	})
	assert.ErrorIs(t, err, ErrOrderNotOpen)

	_, err = svc.RemoveItem(context.Background(), detail.Order.ID, detail.Items[0].ID)
	assert.ErrorIs(t, err, ErrOrderNotOpen)

	_, err = svc.ApplyVoucher(context.Background(), detail.Order.ID, "ANY")
	assert.ErrorIs(t, err, ErrOrderNotOpen)
}

func TestCancel_PaidGoesToRefundPending(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, sink := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", detail.Order.ID).
		Update("status", enums.OrderStatusPaid).Error)

	require.NoError(t, svc.Cancel(context.Background(), detail.Order.ID))

	var stored models.Order
	require.NoError(t, db.Where("id = ?", detail.Order.ID).First(&stored).Error)
	assert.Equal(t, enums.OrderStatusRefundPending, stored.Status)

	last := sink.events[len(sink.events)-1]
	assert.Equal(t, enums.EventOrderStatusChanged, last.EventType)
}

func TestCancel_TerminalRejected(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), detail.Order.ID))
	assert.ErrorIs(t, svc.Cancel(context.Background(), detail.Order.ID), ErrOrderTerminal)
}

func TestClose_OnlyFromPaid(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Close(context.Background(), detail.Order.ID), ErrOrderTerminal)

	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", detail.Order.ID).
		Update("status", enums.OrderStatusPaid).Error)
	require.NoError(t, svc.Close(context.Background(), detail.Order.ID))

	var stored models.Order
	require.NoError(t, db.Where("id = ?", detail.Order.ID).First(&stored).Error)
	assert.Equal(t, enums.OrderStatusClosed, stored.Status)
}

func TestUpdateItemStatus_EmitsEvent(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, sink := newOrdersService(t, db)

	detail, err := svc.Create(context.Background(), twoItemInput())
	require.NoError(t, err)

	err = svc.UpdateItemStatus(context.Background(), detail.Order.ID, detail.Items[0].ID, enums.OrderItemStatusPreparing)
	require.NoError(t, err)

	last := sink.events[len(sink.events)-1]
	assert.Equal(t, enums.EventOrderItemStatusChanged, last.EventType)

	err = svc.UpdateItemStatus(context.Background(), detail.Order.ID, detail.Items[0].ID, enums.OrderItemStatusRemoved)
	require.Error(t, err, "removed is not reachable through status updates")
}

func TestUpdateStatusCAS_LoserNoOps(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPaymentRequested}
	require.NoError(t, db.Create(order).Error)

	moved, err := repo.UpdateStatusCAS(context.Background(), order.ID,
		[]enums.OrderStatus{enums.OrderStatusPaymentRequested}, enums.OrderStatusPaid)
	require.NoError(t, err)
	assert.True(t, moved)

	// the losing transition sees zero rows
	moved, err = repo.UpdateStatusCAS(context.Background(), order.ID,
		[]enums.OrderStatus{enums.OrderStatusPaymentRequested}, enums.OrderStatusOpen)
	require.NoError(t, err)
	assert.False(t, moved)

	var stored models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&stored).Error)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
}
