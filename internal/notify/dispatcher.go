package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mazaj-interiors/payments-backend/pkg/config"
	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
	"github.com/mazaj-interiors/payments-backend/pkg/outbox"
)

var (
	errRepoRequired   = errors.New("notify dispatcher: outbox repository is required")
	errSenderRequired = errors.New("notify dispatcher: sender is required")
	errLoggerRequired = errors.New("notify dispatcher: logger is required")
)

type DispatcherParams struct {
	Repo   *outbox.Repository
	Sender Sender
	Logger *logger.Logger
	Config config.OutboxConfig
	Notify config.NotifyConfig
}

// Dispatcher drains the outbox and hands each event to the email sender.
// Delivery is at-least-once: a crash after send but before the published
// mark re-sends on restart, which the collaborator's own dedup tolerates.
type Dispatcher struct {
	repo        *outbox.Repository
	sender      Sender
	logger      *logger.Logger
	batchSize   int
	poll        time.Duration
	maxAttempts int
	concurrency int
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, errRepoRequired
	}
	if params.Sender == nil {
		return nil, errSenderRequired
	}
	if params.Logger == nil {
		return nil, errLoggerRequired
	}
	concurrency := params.Notify.SendConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		repo:        params.Repo,
		sender:      params.Sender,
		logger:      params.Logger,
		batchSize:   params.Config.BatchSize,
		poll:        params.Config.PollInterval,
		maxAttempts: params.Config.MaxAttempts,
		concurrency: concurrency,
	}, nil
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				d.logger.Error(ctx, "outbox drain failed", err)
			}
		}
	}
}

// DrainOnce delivers at most one batch and reports how many events it sent.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	rows, err := d.repo.FetchUnpublished(d.batchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)

	var sent atomic.Int64
	for _, row := range rows {
		row := row
		if d.maxAttempts > 0 && row.AttemptCount >= d.maxAttempts {
			// Poisoned event: leave it for an operator, stop burning sends.
			continue
		}
		group.Go(func() error {
			if err := d.deliver(groupCtx, row); err != nil {
				logCtx := d.logger.WithField(groupCtx, "outbox_event_id", row.ID.String())
				d.logger.Error(logCtx, "outbox delivery failed", err)
				if markErr := d.repo.MarkFailed(row.ID, err); markErr != nil {
					d.logger.Error(logCtx, "recording delivery failure", markErr)
				}
				return nil
			}
			sent.Add(1)
			return d.repo.MarkPublished(row.ID)
		})
	}

	if err := group.Wait(); err != nil {
		return int(sent.Load()), err
	}
	return int(sent.Load()), nil
}

func (d *Dispatcher) deliver(ctx context.Context, row models.OutboxEvent) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return err
	}
	var email outbox.EmailPayload
	if err := json.Unmarshal(envelope.Data, &email); err != nil {
		return err
	}
	return d.sender.SendTemplatedEmail(ctx, email.Trigger, email.Recipient, email.Variables)
}
