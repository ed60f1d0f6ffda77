package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
	pkgerrors "github.com/quangtran/dinehub-backend/pkg/errors"
	"github.com/quangtran/dinehub-backend/pkg/logger"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
)

const (
	defaultFanoutBatchSize   = 50
	defaultFanoutPoll        = 500 * time.Millisecond
	defaultFanoutMaxAttempts = 10
)

type outboxSource interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

// DispatcherParams wires the fanout loop.
type DispatcherParams struct {
	Logger       *logger.Logger
	Source       outboxSource
	Repo         Repository
	Hub          *Hub
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// Dispatcher drains unpublished outbox events into notification rows and
// socket pushes. The row is written before any push goes out, so a crash
// between the two leaves the event unpublished and the next cycle retries;
// subscribers may see the same push twice and deduplicate by notification id.
type Dispatcher struct {
	logg         *logger.Logger
	source       outboxSource
	repo         Repository
	hub          *Hub
	batchSize    int
	pollInterval time.Duration
	maxAttempts  int
	now          func() time.Time
}

// NewDispatcher validates dependencies and applies defaults.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Source == nil {
		return nil, fmt.Errorf("outbox source required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultFanoutBatchSize
	}
	if params.PollInterval <= 0 {
		params.PollInterval = defaultFanoutPoll
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = defaultFanoutMaxAttempts
	}
	return &Dispatcher{
		logg:         params.Logger,
		source:       params.Source,
		repo:         params.Repo,
		hub:          params.Hub,
		batchSize:    params.BatchSize,
		pollInterval: params.PollInterval,
		maxAttempts:  params.MaxAttempts,
		now:          time.Now,
	}, nil
}

// Run polls the outbox until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logg.Info(d.logg.WithField(ctx, "poll_interval", d.pollInterval.String()), "notification fanout started")
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logg.Info(ctx, "notification fanout stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.drainOnce(ctx); err != nil {
				d.logg.Error(ctx, "notification fanout cycle failed", err)
			}
		}
	}
}

// drainOnce processes a single batch and reports how many events published.
// One bad event never blocks the rest of the batch.
func (d *Dispatcher) drainOnce(ctx context.Context) (int, error) {
	events, err := d.source.FetchUnpublished(d.batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch unpublished events")
	}

	published := 0
	var errs error
	for _, event := range events {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID.String(),
			"event_type": string(event.EventType),
		})

		if event.AttemptCount >= d.maxAttempts {
			d.logg.Warn(logCtx, "event exceeded delivery attempts, dead-lettering")
			if markErr := d.source.MarkPublished(event.ID); markErr != nil {
				errs = multierr.Append(errs, markErr)
			}
			continue
		}

		if deliverErr := d.deliver(ctx, event); deliverErr != nil {
			d.logg.Error(logCtx, "event delivery failed", deliverErr)
			if markErr := d.source.MarkFailed(event.ID, deliverErr); markErr != nil {
				errs = multierr.Append(errs, markErr)
			}
			continue
		}

		if markErr := d.source.MarkPublished(event.ID); markErr != nil {
			errs = multierr.Append(errs, markErr)
			continue
		}
		published++
	}
	return published, errs
}

func (d *Dispatcher) deliver(ctx context.Context, event models.OutboxEvent) error {
	route, ok := dispatchTable[event.EventType]
	if !ok {
		// consumed by another processor (loyalty); nothing to fan out
		return nil
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return fmt.Errorf("decode payload envelope: %w", err)
	}

	del, err := route(envelope.Data)
	if err != nil {
		return fmt.Errorf("route %s: %w", event.EventType, err)
	}
	if del == nil {
		return nil
	}

	var data any = json.RawMessage(envelope.Data)
	if del.notification != nil {
		row := del.notification
		// the row id is the outbox event id, so a redelivery after a crash
		// between Create and MarkPublished lands on the same row instead of
		// minting a duplicate
		row.ID = event.ID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = d.now()
		}
		row.Payload = json.RawMessage(envelope.Data)
		if err := d.repo.Create(ctx, row); err != nil {
			return fmt.Errorf("persist notification: %w", err)
		}
		data = row
	}

	for _, room := range del.rooms {
		d.hub.Publish(ctx, room, Envelope{Event: del.wire, Data: data})
	}
	return nil
}
