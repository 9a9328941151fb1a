package cron

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mazaj-interiors/payments-backend/internal/capture"
	"github.com/mazaj-interiors/payments-backend/internal/reconcile"
	dbpkg "github.com/mazaj-interiors/payments-backend/pkg/db"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
	"github.com/mazaj-interiors/payments-backend/pkg/outbox"
)

const (
	captureRetryBatch = 50
	// captureGracePeriod keeps the job off attempts the webhook path is
	// still actively retrying.
	captureGracePeriod = 10 * time.Minute
)

type CaptureRetryJobParams struct {
	DB             *dbpkg.Client
	Attempts       *reconcile.AttemptRepository
	Coordinator    *capture.Coordinator
	Outbox         *outbox.Service
	Logger         *logger.Logger
	StaffRecipient string
	MaxAttempts    int
}

// CaptureRetryJob sweeps Tabby authorizations the webhook path failed to
// capture. Exhausted ones are escalated to staff instead of retried forever;
// an uncaptured authorization silently expiring is lost revenue.
type CaptureRetryJob struct {
	db             *dbpkg.Client
	attempts       *reconcile.AttemptRepository
	coordinator    *capture.Coordinator
	outbox         *outbox.Service
	logg           *logger.Logger
	staffRecipient string
	maxAttempts    int
}

func NewCaptureRetryJob(params CaptureRetryJobParams) (*CaptureRetryJob, error) {
	if params.DB == nil {
		return nil, errors.New("capture retry job: db client required")
	}
	if params.Attempts == nil {
		return nil, errors.New("capture retry job: attempts repository required")
	}
	if params.Coordinator == nil {
		return nil, errors.New("capture retry job: coordinator required")
	}
	if params.Outbox == nil {
		return nil, errors.New("capture retry job: outbox service required")
	}
	if params.Logger == nil {
		return nil, errors.New("capture retry job: logger required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &CaptureRetryJob{
		db:             params.DB,
		attempts:       params.Attempts,
		coordinator:    params.Coordinator,
		outbox:         params.Outbox,
		logg:           params.Logger,
		staffRecipient: params.StaffRecipient,
		maxAttempts:    maxAttempts,
	}, nil
}

func (j *CaptureRetryJob) Name() string {
	return "capture_retry"
}

func (j *CaptureRetryJob) Run(ctx context.Context) error {
	var errs error

	stuck, err := j.attempts.FindStuckAuthorized(ctx, time.Now().Add(-captureGracePeriod), j.maxAttempts, captureRetryBatch)
	if err != nil {
		return err
	}
	for _, attempt := range stuck {
		if _, recErr := j.coordinator.Recover(ctx, attempt); recErr != nil {
			logCtx := j.logg.WithOrderID(ctx, attempt.OrderID)
			j.logg.Error(logCtx, "capture recovery failed", recErr)
			errs = multierr.Append(errs, recErr)
		}
	}

	exhausted, err := j.attempts.FindExhaustedAuthorized(ctx, j.maxAttempts, captureRetryBatch)
	if err != nil {
		return multierr.Append(errs, err)
	}
	for _, attempt := range exhausted {
		if alertErr := j.alertStuck(ctx, attempt.OrderID, attempt.ProviderPaymentID); alertErr != nil {
			errs = multierr.Append(errs, alertErr)
		}
	}

	return errs
}

func (j *CaptureRetryJob) alertStuck(ctx context.Context, orderID, paymentID string) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:   enums.OutboxEventCaptureStuckWarning,
			AggregateID: orderID,
			Data: outbox.EmailPayload{
				Trigger:   "capture_stuck_warning",
				Recipient: j.staffRecipient,
				Variables: map[string]any{
					"orderId":   orderID,
					"paymentId": paymentID,
				},
			},
		})
	})
}
