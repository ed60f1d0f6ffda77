package settlement

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtran/dinehub-backend/internal/reservations"
	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	"github.com/quangtran/dinehub-backend/pkg/logger"
)

func newSweepJob(t *testing.T, e *env, batchSize int) *expirySweepJob {
	t.Helper()
	job, err := NewExpirySweepJob(ExpirySweepJobParams{
		Logger:       logger.New(logger.Options{ServiceName: "sweep-test", Output: io.Discard}),
		DB:           gormTxRunner{db: e.db},
		Repo:         e.repo,
		Reservations: e.reservations,
		Outbox:       e.sink,
		BatchSize:    batchSize,
	})
	require.NoError(t, err)
	return job.(*expirySweepJob)
}

func seedAttempt(t *testing.T, e *env, mutate func(*models.PaymentAttempt)) *models.PaymentAttempt {
	t.Helper()
	attempt := &models.PaymentAttempt{
		ID:        uuid.New(),
		TxnRef:    "ORDER_" + uuid.NewString(),
		Kind:      enums.PaymentKindOrder,
		AmountVND: 100_000,
		State:     enums.AttemptStateAwaitingGateway,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if mutate != nil {
		mutate(attempt)
	}
	require.NoError(t, e.db.Create(attempt).Error)
	return attempt
}

func TestSweep_ExpiresStaleAttempts(t *testing.T) {
	e := newEnv(t)
	job := newSweepJob(t, e, 10)

	stale := seedAttempt(t, e, nil)
	fresh := seedAttempt(t, e, func(a *models.PaymentAttempt) {
		a.ExpiresAt = time.Now().Add(time.Hour)
	})

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, enums.AttemptStateExpired, e.attemptByTxnRef(t, stale.TxnRef).State)
	assert.Equal(t, enums.AttemptStateAwaitingGateway, e.attemptByTxnRef(t, fresh.TxnRef).State)
	assert.Equal(t, 1, e.sink.countByType(enums.EventPaymentExpired))
}

func TestSweep_LeavesTerminalAttemptsAlone(t *testing.T) {
	e := newEnv(t)
	job := newSweepJob(t, e, 10)

	settled := seedAttempt(t, e, func(a *models.PaymentAttempt) {
		a.State = enums.AttemptStateSettled
	})
	failed := seedAttempt(t, e, func(a *models.PaymentAttempt) {
		a.State = enums.AttemptStateFailed
	})

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, enums.AttemptStateSettled, e.attemptByTxnRef(t, settled.TxnRef).State)
	assert.Equal(t, enums.AttemptStateFailed, e.attemptByTxnRef(t, failed.TxnRef).State)
	assert.Equal(t, 0, e.sink.countByType(enums.EventPaymentExpired))
}

func TestSweep_ReleasesReservationHold(t *testing.T) {
	e := newEnv(t)
	job := newSweepJob(t, e, 10)
	userID := uuid.New()
	tableID := uuid.New()

	reservation, err := e.reservations.Book(context.Background(), reservations.BookInput{
		UserID:          &userID,
		TableID:         &tableID,
		ReservationTime: time.Now().Add(24 * time.Hour),
		NumPeople:       2,
		DepositVND:      150_000,
	})
	require.NoError(t, err)

	seedAttempt(t, e, func(a *models.PaymentAttempt) {
		a.TxnRef = "DEPOSIT_RES_" + uuid.NewString()
		a.Kind = enums.PaymentKindReservationDeposit
		a.ReservationID = &reservation.ID
		a.AmountVND = 150_000
	})

	require.NoError(t, job.Run(context.Background()))

	released := e.reservationByID(t, reservation.ID)
	assert.Equal(t, enums.ReservationStatusCancelled, released.Status)
	assert.Equal(t, 1, e.sink.countByType(enums.EventReservationReleased))
}

func TestSweep_RaceWithSettlementIsBenign(t *testing.T) {
	e := newEnv(t)
	job := newSweepJob(t, e, 10)

	attempt := seedAttempt(t, e, nil)

	// a late authoritative callback wins between the fetch and the CAS
	snapshot := *attempt
	moved, err := e.repo.UpdateStateCAS(context.Background(), attempt.ID,
		activeAttemptStates, enums.AttemptStateSettled, nil)
	require.NoError(t, err)
	require.True(t, moved)

	expired, err := job.expireOne(context.Background(), snapshot)
	require.NoError(t, err)
	assert.False(t, expired, "expiry loses the race and no-ops")
	assert.Equal(t, enums.AttemptStateSettled, e.attemptByTxnRef(t, attempt.TxnRef).State)
	assert.Equal(t, 0, e.sink.countByType(enums.EventPaymentExpired))
}

func TestSweep_PaginatesBatches(t *testing.T) {
	e := newEnv(t)
	job := newSweepJob(t, e, 2)

	for i := 0; i < 5; i++ {
		seedAttempt(t, e, nil)
	}

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 5, e.sink.countByType(enums.EventPaymentExpired))
}
