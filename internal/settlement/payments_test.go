package settlement

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtran/dinehub-backend/internal/gateway"
	"github.com/quangtran/dinehub-backend/internal/reservations"
	"github.com/quangtran/dinehub-backend/pkg/enums"
)

func TestRequestOrderPayment_MintsAttemptAndRedirect(t *testing.T) {
	e := newEnv(t)
	order := e.seedOpenOrder(t, 820_000, 82_000, 82_000, nil)

	detail, err := e.payments.RequestOrderPayment(context.Background(), order.ID, RequestOptions{
		IPAddr:   "203.0.113.7",
		BankCode: "NCB",
	})
	require.NoError(t, err)

	assert.Equal(t, enums.AttemptStateAwaitingGateway, detail.Attempt.State)
	assert.Equal(t, int64(820_000), detail.Attempt.AmountVND)
	assert.True(t, strings.HasPrefix(detail.Attempt.TxnRef, "ORDER_"))

	parsed, err := url.Parse(detail.RedirectURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "82000000", query.Get("vnp_Amount"), "wire amount is in minor units")
	assert.Equal(t, detail.Attempt.TxnRef, query.Get("vnp_TxnRef"))
	assert.Equal(t, "NCB", query.Get("vnp_BankCode"))

	params := make(map[string]string, len(query))
	for key := range query {
		params[key] = query.Get(key)
	}
	assert.True(t, gateway.Verify(settlementGatewayConfig().HashSecret, params, query.Get("vnp_SecureHash")),
		"redirect must carry a valid signature")

	assert.Equal(t, enums.OrderStatusPaymentRequested, e.orderByID(t, order.ID).Status)
	assert.Equal(t, 1, e.sink.countByType(enums.EventPaymentRequested))
}

func TestRequestOrderPayment_RejectsNonPayableOrder(t *testing.T) {
	e := newEnv(t)
	order := e.seedOpenOrder(t, 100_000, 0, 10_000, nil)
	require.NoError(t, e.db.Model(order).Update("status", enums.OrderStatusPaid).Error)

	_, err := e.payments.RequestOrderPayment(context.Background(), order.ID, RequestOptions{})
	assert.ErrorIs(t, err, ErrOrderNotPayable)

	_, err = e.payments.RequestOrderPayment(context.Background(), uuid.New(), RequestOptions{})
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestRequestOrderPayment_SupersedesPriorAttempt(t *testing.T) {
	e := newEnv(t)
	order := e.seedOpenOrder(t, 500_000, 0, 50_000, nil)

	first, err := e.payments.RequestOrderPayment(context.Background(), order.ID, RequestOptions{})
	require.NoError(t, err)
	second, err := e.payments.RequestOrderPayment(context.Background(), order.ID, RequestOptions{})
	require.NoError(t, err)
	require.NotEqual(t, first.Attempt.TxnRef, second.Attempt.TxnRef)

	assert.Equal(t, enums.AttemptStateExpired, e.attemptByTxnRef(t, first.Attempt.TxnRef).State)
	assert.Equal(t, enums.AttemptStateAwaitingGateway, e.attemptByTxnRef(t, second.Attempt.TxnRef).State)
}

func TestRequestOrderPayment_DepositCreditReducesCharge(t *testing.T) {
	e := newEnv(t)
	order := e.seedOpenOrder(t, 800_000, 0, 20_000, nil)
	require.NoError(t, e.db.Model(order).Update("deposit_vnd", int64(200_000)).Error)

	detail, err := e.payments.RequestOrderPayment(context.Background(), order.ID, RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(620_000), detail.Attempt.AmountVND)

	require.NoError(t, e.db.Model(order).Update("deposit_vnd", int64(900_000)).Error)
	require.NoError(t, e.db.Model(order).Update("status", enums.OrderStatusOpen).Error)
	_, err = e.payments.RequestOrderPayment(context.Background(), order.ID, RequestOptions{})
	assert.ErrorIs(t, err, ErrNothingToPay)
}

func TestRequestOrderDeposit(t *testing.T) {
	e := newEnv(t)
	order := e.seedOpenOrder(t, 1_000_000, 0, 100_000, nil)

	_, err := e.payments.RequestOrderDeposit(context.Background(), order.ID, 0, RequestOptions{})
	assert.ErrorIs(t, err, ErrInvalidDepositSize)

	_, err = e.payments.RequestOrderDeposit(context.Background(), order.ID, 2_000_000, RequestOptions{})
	require.Error(t, err)

	detail, err := e.payments.RequestOrderDeposit(context.Background(), order.ID, 300_000, RequestOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(detail.Attempt.TxnRef, "DEPOSIT_ORDER_"))
	assert.Equal(t, int64(300_000), detail.Attempt.AmountVND)
	// a partial deposit does not lock the order
	assert.Equal(t, enums.OrderStatusOpen, e.orderByID(t, order.ID).Status)
}

func TestRequestReservationDeposit(t *testing.T) {
	e := newEnv(t)
	userID := uuid.New()
	tableID := uuid.New()

	reservation, err := e.reservations.Book(context.Background(), reservations.BookInput{
		UserID:          &userID,
		TableID:         &tableID,
		ReservationTime: time.Now().Add(24 * time.Hour),
		NumPeople:       2,
		DepositVND:      200_000,
	})
	require.NoError(t, err)

	detail, err := e.payments.RequestReservationDeposit(context.Background(), reservation.ID, RequestOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(detail.Attempt.TxnRef, "DEPOSIT_RES_"))
	assert.Equal(t, int64(200_000), detail.Attempt.AmountVND)
	require.NotNil(t, detail.Attempt.ReservationID)
	assert.Equal(t, reservation.ID, *detail.Attempt.ReservationID)
}

func TestRequestReservationDeposit_Rejections(t *testing.T) {
	e := newEnv(t)
	userID := uuid.New()
	tableID := uuid.New()

	waived, err := e.reservations.Book(context.Background(), reservations.BookInput{
		UserID:          &userID,
		TableID:         &tableID,
		ReservationTime: time.Now().Add(24 * time.Hour),
		NumPeople:       2,
		DepositVND:      200_000,
		DepositWaived:   true,
	})
	require.NoError(t, err)
	_, err = e.payments.RequestReservationDeposit(context.Background(), waived.ID, RequestOptions{})
	assert.ErrorIs(t, err, ErrDepositWaived)

	confirmed, err := e.reservations.Book(context.Background(), reservations.BookInput{
		UserID:          &userID,
		TableID:         &tableID,
		ReservationTime: time.Now().Add(24 * time.Hour),
		NumPeople:       2,
		DepositVND:      100_000,
	})
	require.NoError(t, err)
	require.NoError(t, e.db.Model(confirmed).Update("status", enums.ReservationStatusConfirmed).Error)
	_, err = e.payments.RequestReservationDeposit(context.Background(), confirmed.ID, RequestOptions{})
	assert.ErrorIs(t, err, ErrDepositNotPayable)
}

func TestFindByTxnRef(t *testing.T) {
	e := newEnv(t)
	order := e.seedOpenOrder(t, 100_000, 0, 10_000, nil)

	detail, err := e.payments.RequestOrderPayment(context.Background(), order.ID, RequestOptions{})
	require.NoError(t, err)

	found, err := e.payments.FindByTxnRef(context.Background(), detail.Attempt.TxnRef)
	require.NoError(t, err)
	assert.Equal(t, detail.Attempt.ID, found.ID)

	_, err = e.payments.FindByTxnRef(context.Background(), "ORDER_unknown")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}
