package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/internal/jobs"
	"github.com/quangtran/dinehub-backend/internal/reservations"
	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	"github.com/quangtran/dinehub-backend/pkg/logger"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
	"github.com/quangtran/dinehub-backend/pkg/outbox/payloads"
)

const expirySweepJobName = "payment_attempt_expiry_sweep"

const defaultSweepBatchSize = 100

// ExpirySweepJobParams configure the attempt expiry sweep.
type ExpirySweepJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Repo         Repository
	Reservations reservationSettler
	Outbox       outboxPublisher
	BatchSize    int
}

type expirySweepJob struct {
	logg         *logger.Logger
	db           txRunner
	repo         Repository
	reservations reservationSettler
	outbox       outboxPublisher
	batchSize    int
	now          func() time.Time
}

// NewExpirySweepJob builds the background sweep that expires attempts stuck
// past their deadline and releases any reservation holds they carried.
func NewExpirySweepJob(params ExpirySweepJobParams) (jobs.Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation settler required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &expirySweepJob{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repo,
		reservations: params.Reservations,
		outbox:       params.Outbox,
		batchSize:    batchSize,
		now:          time.Now,
	}, nil
}

func (j *expirySweepJob) Name() string {
	return expirySweepJobName
}

func (j *expirySweepJob) Run(ctx context.Context) error {
	expired, err := j.sweep(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired_count", expired), "expiry sweep completed")
	}
	return nil
}

func (j *expirySweepJob) sweep(ctx context.Context) (int, error) {
	var (
		total  int
		errAcc error
	)
	for {
		if err := ctx.Err(); err != nil {
			return total, multierr.Append(errAcc, err)
		}
		batch, err := j.repo.FindExpired(ctx, j.now(), j.batchSize)
		if err != nil {
			return total, multierr.Append(errAcc, err)
		}
		if len(batch) == 0 {
			return total, errAcc
		}
		for _, attempt := range batch {
			expired, err := j.expireOne(ctx, attempt)
			if err != nil {
				errAcc = multierr.Append(errAcc, fmt.Errorf("expire %s: %w", attempt.TxnRef, err))
				continue
			}
			if expired {
				total++
			}
		}
		if len(batch) < j.batchSize {
			return total, errAcc
		}
	}
}

// expireOne moves one attempt to expired. Losing the CAS to a late
// authoritative callback is a benign race, not an error.
func (j *expirySweepJob) expireOne(ctx context.Context, attempt models.PaymentAttempt) (bool, error) {
	ctx = j.logg.WithTxnRef(ctx, attempt.TxnRef)
	var expired bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		moved, err := repo.UpdateStateCAS(ctx, attempt.ID, activeAttemptStates, enums.AttemptStateExpired, nil)
		if err != nil {
			return err
		}
		if !moved {
			j.logg.Debug(ctx, "expiry race lost to settlement, skipping")
			return nil
		}
		expired = true

		if attempt.Kind == enums.PaymentKindReservationDeposit && attempt.ReservationID != nil {
			settled, err := repo.HasSettledDeposit(ctx, *attempt.ReservationID)
			if err != nil {
				return err
			}
			if !settled {
				err := j.reservations.Release(ctx, tx, *attempt.ReservationID, "deposit attempt expired")
				if err != nil && !errors.Is(err, reservations.ErrNotCancellable) {
					return err
				}
			}
		}

		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentExpired,
			AggregateType: enums.AggregatePaymentAttempt,
			AggregateID:   attempt.ID,
			Data: payloads.PaymentExpiredEvent{
				TxnRef:    attempt.TxnRef,
				ExpiredAt: j.now(),
			},
		})
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}
