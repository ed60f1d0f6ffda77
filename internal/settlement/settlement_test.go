package settlement

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/internal/gateway"
	"github.com/quangtran/dinehub-backend/internal/orders"
	"github.com/quangtran/dinehub-backend/internal/reservations"
	"github.com/quangtran/dinehub-backend/internal/vouchers"
	"github.com/quangtran/dinehub-backend/pkg/config"
	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	"github.com/quangtran/dinehub-backend/pkg/logger"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS payment_attempts (
  id TEXT PRIMARY KEY,
  txn_ref TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  order_id TEXT,
  reservation_id TEXT,
  amount_vnd INTEGER NOT NULL,
  state TEXT NOT NULL DEFAULT 'created',
  outcome_code TEXT,
  bank_code TEXT,
  expires_at DATETIME NOT NULL,
  settled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
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
);`, `
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
);`, `
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
);`, `
CREATE TABLE IF NOT EXISTS voucher_usages (
  id TEXT PRIMARY KEY,
  voucher_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  user_id TEXT,
  used_at DATETIME NOT NULL
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS ux_voucher_usages_voucher_order
  ON voucher_usages (voucher_id, order_id);`, `
CREATE TABLE IF NOT EXISTS reservations (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  table_id TEXT,
  table_group_id TEXT,
  event_id TEXT,
  reservation_time DATETIME NOT NULL,
  duration_minutes INTEGER NOT NULL DEFAULT 90,
  num_people INTEGER NOT NULL,
  deposit_vnd INTEGER NOT NULL DEFAULT 0,
  deposit_waived INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  checked_in_at DATETIME,
  cancelled_at DATETIME,
  completed_at DATETIME,
  no_show_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`}

	for _, stmt := range statements {
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

func (r *recordingOutbox) countByType(eventType enums.OutboxEventType) int {
	count := 0
	for _, event := range r.events {
		if event.EventType == eventType {
			count++
		}
	}
	return count
}

type fakeGuard struct {
	claims map[string]bool
	err    error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{claims: map[string]bool{}}
}

func (f *fakeGuard) CheckAndMark(_ context.Context, txnRef, outcome string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := txnRef + ":" + outcome
	if f.claims[key] {
		return true, nil
	}
	f.claims[key] = true
	return false, nil
}

func (f *fakeGuard) Release(_ context.Context, txnRef, outcome string) error {
	delete(f.claims, txnRef+":"+outcome)
	return nil
}

func settlementGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		MerchantCode: "DINEHUB1",
		HashSecret:   "testhashsecret",
		PayURL:       "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:    "https://dinehub.example/payments/vnpay/return",
		Currency:     "VND",
		Locale:       "vn",
		AttemptTTL:   30 * time.Minute,
	}
}

// env bundles the fully wired settlement stack over a shared sqlite DB.
type env struct {
	db           *gorm.DB
	sink         *recordingOutbox
	guard        *fakeGuard
	gateway      *gateway.Client
	repo         Repository
	orders       orders.Service
	reservations reservations.Service
	vouchers     vouchers.Service
	payments     PaymentService
	coordinator  Coordinator
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := setupSettlementTestDB(t)
	sink := &recordingOutbox{}
	guard := newFakeGuard()
	runner := gormTxRunner{db: db}
	logg := logger.New(logger.Options{ServiceName: "settlement-test", Output: io.Discard})

	client, err := gateway.NewClient(settlementGatewayConfig())
	require.NoError(t, err)

	vouchersSvc, err := vouchers.NewService(vouchers.NewRepository(db))
	require.NoError(t, err)

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:           orders.NewRepository(db),
		Tx:             runner,
		Outbox:         sink,
		Vouchers:       vouchersSvc,
		TaxRatePercent: 10,
	})
	require.NoError(t, err)

	repo := NewRepository(db)

	reservationsSvc, err := reservations.NewService(reservations.ServiceParams{
		Repo:     reservations.NewRepository(db),
		Tx:       runner,
		Outbox:   sink,
		Deposits: repo,
		Orders:   ordersSvc,
	})
	require.NoError(t, err)

	payments, err := NewPaymentService(PaymentServiceParams{
		Repo:         repo,
		Orders:       orders.NewRepository(db),
		Reservations: reservations.NewRepository(db),
		Gateway:      client,
		Tx:           runner,
		Outbox:       sink,
		AttemptTTL:   30 * time.Minute,
	})
	require.NoError(t, err)

	coordinator, err := NewCoordinator(CoordinatorParams{
		Repo:         repo,
		Orders:       orders.NewRepository(db),
		Vouchers:     vouchersSvc,
		Reservations: reservationsSvc,
		Gateway:      client,
		Tx:           runner,
		Outbox:       sink,
		Guard:        guard,
		Logger:       logg,
	})
	require.NoError(t, err)

	return &env{
		db:           db,
		sink:         sink,
		guard:        guard,
		gateway:      client,
		repo:         repo,
		orders:       ordersSvc,
		reservations: reservationsSvc,
		vouchers:     vouchersSvc,
		payments:     payments,
		coordinator:  coordinator,
	}
}

func (e *env) seedOpenOrder(t *testing.T, subtotal, discount, tax int64, userID *uuid.UUID) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      enums.OrderStatusOpen,
		SubtotalVND: subtotal,
		DiscountVND: discount,
		TaxVND:      tax,
		TotalVND:    subtotal - discount + tax,
	}
	require.NoError(t, e.db.Create(order).Error)
	return order
}

func (e *env) attemptByTxnRef(t *testing.T, txnRef string) *models.PaymentAttempt {
	t.Helper()
	var attempt models.PaymentAttempt
	require.NoError(t, e.db.Where("txn_ref = ?", txnRef).First(&attempt).Error)
	return &attempt
}

func (e *env) orderByID(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, e.db.Where("id = ?", id).First(&order).Error)
	return &order
}

func (e *env) reservationByID(t *testing.T, id uuid.UUID) *models.Reservation {
	t.Helper()
	var reservation models.Reservation
	require.NoError(t, e.db.Where("id = ?", id).First(&reservation).Error)
	return &reservation
}
