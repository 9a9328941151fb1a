package capture

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/tabby"
	"github.com/mazaj-interiors/payments-backend/internal/reconcile"
	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

var (
	errClientRequired   = errors.New("capture coordinator: tabby client is required")
	errEngineRequired   = errors.New("capture coordinator: reconcile engine is required")
	errAttemptsRequired = errors.New("capture coordinator: attempts repository is required")
	errLogRequired      = errors.New("capture coordinator: logger is required")
)

type CoordinatorParams struct {
	Tabby    *tabby.Client
	Engine   *reconcile.Engine
	Attempts *reconcile.AttemptRepository
	Logger   *logger.Logger
	// MaxRetries bounds the in-request capture backoff. The cron retry job
	// picks up whatever is still uncaptured afterwards.
	MaxRetries uint64
}

// Coordinator drives Tabby's two-phase settlement. A webhook saying
// "authorized" is never acted on directly: the payment is re-fetched, and
// only the retrieved AUTHORIZED status opens the capture path. Orders touched
// here sit in the authorized sub-state until the capture call succeeds, so a
// crash between authorize and capture is visible and recoverable.
type Coordinator struct {
	tabby      *tabby.Client
	engine     *reconcile.Engine
	attempts   *reconcile.AttemptRepository
	logger     *logger.Logger
	maxRetries uint64
}

func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Tabby == nil {
		return nil, errClientRequired
	}
	if params.Engine == nil {
		return nil, errEngineRequired
	}
	if params.Attempts == nil {
		return nil, errAttemptsRequired
	}
	if params.Logger == nil {
		return nil, errLogRequired
	}
	maxRetries := params.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	return &Coordinator{
		tabby:      params.Tabby,
		engine:     params.Engine,
		attempts:   params.Attempts,
		logger:     params.Logger,
		maxRetries: maxRetries,
	}, nil
}

// HandleAuthorizedHint processes a webhook claiming an authorization. The
// claim is verified against the retrieved payment before anything changes.
func (c *Coordinator) HandleAuthorizedHint(ctx context.Context, paymentID string) (reconcile.Outcome, error) {
	payment, err := c.tabby.GetPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}

	logCtx := c.logger.WithProvider(c.logger.WithOrderID(ctx, payment.Order.ReferenceID), enums.ProviderTabby.String())

	switch payment.Status {
	case tabby.RetrievedClosed:
		// Captured already, possibly by an earlier delivery of this event.
		return c.engine.Apply(logCtx, tabby.NormalizeRetrieved(payment))

	case tabby.RetrievedAuthorized:
		attempt, err := c.engine.Authorize(logCtx, authorizedResult(payment))
		if err != nil {
			return "", err
		}
		return c.capture(logCtx, payment, attempt)

	default:
		// Rejected, expired, or still created: fold the retrieved state in
		// as-is. A failed state comes out of normalization, not the hint.
		return c.engine.Apply(logCtx, tabby.NormalizeRetrieved(payment))
	}
}

// Recover retries the capture for an attempt the webhook path left behind.
// Called by the reconciler job with rows from the authorized work queue.
func (c *Coordinator) Recover(ctx context.Context, attempt models.PaymentAttempt) (reconcile.Outcome, error) {
	payment, err := c.tabby.GetPayment(ctx, attempt.ProviderPaymentID)
	if err != nil {
		return "", err
	}

	logCtx := c.logger.WithProvider(c.logger.WithOrderID(ctx, attempt.OrderID), enums.ProviderTabby.String())

	switch payment.Status {
	case tabby.RetrievedClosed:
		if err := c.attempts.SetCaptureState(ctx, attempt.ID, enums.CaptureStateCaptured); err != nil {
			return "", err
		}
		return c.engine.Apply(logCtx, tabby.NormalizeRetrieved(payment))

	case tabby.RetrievedAuthorized:
		return c.capture(logCtx, payment, &attempt)

	default:
		// Authorization died at the provider. Close the queue entry and let
		// normalization record the failure against the order.
		if err := c.attempts.SetCaptureState(ctx, attempt.ID, enums.CaptureStateFailed); err != nil {
			return "", err
		}
		return c.engine.Apply(logCtx, tabby.NormalizeRetrieved(payment))
	}
}

func (c *Coordinator) capture(ctx context.Context, payment *tabby.Payment, attempt *models.PaymentAttempt) (reconcile.Outcome, error) {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		captureErr := c.tabby.CapturePayment(ctx, payment.ID, payment.Amount)
		if captureErr == nil {
			return nil
		}
		if pkgerrors.IsRetryable(captureErr) {
			return retry.RetryableError(captureErr)
		}
		return captureErr
	})
	if err != nil {
		// Leave the attempt authorized: the retry job or a later webhook
		// delivery picks it up. The order must not read as paid.
		if recordErr := c.attempts.RecordCaptureFailure(ctx, attempt.ID, err); recordErr != nil {
			c.logger.Error(ctx, "recording capture failure", recordErr)
		}
		c.logger.Error(ctx, "capture failed, authorization left open", err)
		return "", err
	}

	if err := c.attempts.SetCaptureState(ctx, attempt.ID, enums.CaptureStateCaptured); err != nil {
		return "", err
	}

	c.logger.Info(ctx, "capture succeeded")
	return c.engine.Apply(ctx, capturedResult(payment))
}

func authorizedResult(payment *tabby.Payment) gateway.Result {
	result := tabby.NormalizeRetrieved(payment)
	result.Normalized = enums.NormalizedPending
	return result
}

func capturedResult(payment *tabby.Payment) gateway.Result {
	result := tabby.NormalizeRetrieved(payment)
	result.RawStatus = tabby.RetrievedClosed
	result.Normalized = enums.NormalizedSuccess
	return result
}
