package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/internal/orders"
	dbpkg "github.com/mazaj-interiors/payments-backend/pkg/db"
	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
	"github.com/mazaj-interiors/payments-backend/pkg/metrics"
	"github.com/mazaj-interiors/payments-backend/pkg/outbox"
)

// Outcome names what applying a gateway result did to the order.
type Outcome string

const (
	// OutcomeApplied means the order transitioned.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the order was already in (or past) the target
	// state; the delivery was absorbed without changes.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeRejected means the result failed verification and was discarded
	// before touching any state.
	OutcomeRejected Outcome = "rejected"
	// OutcomeUnknownOrder means the result referenced no known order.
	OutcomeUnknownOrder Outcome = "unknown_order"
	// OutcomePending means the provider has not decided yet; nothing moved.
	OutcomePending Outcome = "pending"
	// OutcomeAmountMismatch means a success result carried an amount that
	// disagrees with the order total. The order stays unpaid and staff are
	// alerted; settling it is a human decision.
	OutcomeAmountMismatch Outcome = "amount_mismatch"
)

var (
	errEngineDBRequired     = errors.New("reconcile engine: db client is required")
	errEngineOrdersRequired = errors.New("reconcile engine: orders repository is required")
	errEngineAttRequired    = errors.New("reconcile engine: attempts repository is required")
	errEngineOutboxRequired = errors.New("reconcile engine: outbox service is required")
	errEngineLoggerRequired = errors.New("reconcile engine: logger is required")
)

type EngineParams struct {
	DB             *dbpkg.Client
	Orders         *orders.Repository
	Attempts       *AttemptRepository
	Outbox         *outbox.Service
	Logger         *logger.Logger
	Metrics        *metrics.WebhookMetrics
	StaffRecipient string
}

// Engine applies normalized gateway results to orders. All three providers
// converge here; it is the only writer of payment status transitions, and
// every transition it makes is idempotent.
type Engine struct {
	db             *dbpkg.Client
	orders         *orders.Repository
	attempts       *AttemptRepository
	outbox         *outbox.Service
	logger         *logger.Logger
	metrics        *metrics.WebhookMetrics
	staffRecipient string
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.DB == nil {
		return nil, errEngineDBRequired
	}
	if params.Orders == nil {
		return nil, errEngineOrdersRequired
	}
	if params.Attempts == nil {
		return nil, errEngineAttRequired
	}
	if params.Outbox == nil {
		return nil, errEngineOutboxRequired
	}
	if params.Logger == nil {
		return nil, errEngineLoggerRequired
	}
	return &Engine{
		db:             params.DB,
		orders:         params.Orders,
		attempts:       params.Attempts,
		outbox:         params.Outbox,
		logger:         params.Logger,
		metrics:        params.Metrics,
		staffRecipient: params.StaffRecipient,
	}, nil
}

// Apply folds one gateway result into the order it references. Safe to call
// any number of times with the same result; replays surface as
// OutcomeDuplicate and leave the row untouched.
func (e *Engine) Apply(ctx context.Context, result gateway.Result) (Outcome, error) {
	logCtx := e.logger.WithProvider(e.logger.WithOrderID(ctx, result.OrderID), result.Provider.String())
	e.metrics.IncReceived(result.Provider.String())

	if !result.SignatureValid {
		e.metrics.IncRejected(result.Provider.String(), "bad_signature")
		e.logger.Warn(logCtx, "gateway result discarded: signature invalid")
		return OutcomeRejected, nil
	}

	order, err := e.orders.FindByID(ctx, result.OrderID)
	if err != nil {
		e.metrics.IncRejected(result.Provider.String(), "unknown_order")
		e.logger.Warn(logCtx, "gateway result discarded: unknown order")
		return OutcomeUnknownOrder, nil
	}

	if result.Normalized == enums.NormalizedSuccess &&
		!result.Amount.IsZero() &&
		!result.Amount.Equal(order.Total) {
		return e.recordMismatch(logCtx, order, result)
	}

	var outcome Outcome
	err = e.db.WithTx(ctx, func(tx *gorm.DB) error {
		attempt := attemptFromResult(result)
		if err := e.attempts.WithTx(tx).Insert(ctx, attempt); err != nil {
			return err
		}

		switch result.Normalized {
		case enums.NormalizedSuccess:
			moved, err := e.orders.WithTx(tx).MarkPaidIfUnpaid(ctx, order.ID, result.Provider, result.ProviderPaymentID)
			if err != nil {
				return err
			}
			if !moved {
				outcome = OutcomeDuplicate
				return nil
			}
			outcome = OutcomeApplied
			return e.queuePaidEmails(ctx, tx, order, result)

		case enums.NormalizedFailed:
			moved, err := e.orders.WithTx(tx).MarkFailedIfPending(ctx, order.ID, result.Provider, result.ProviderPaymentID)
			if err != nil {
				return err
			}
			if !moved {
				outcome = OutcomeDuplicate
				return nil
			}
			outcome = OutcomeApplied
			return e.queueFailedEmail(ctx, tx, order, result)

		default:
			outcome = OutcomePending
			return nil
		}
	})
	if err != nil {
		return "", err
	}

	switch outcome {
	case OutcomeApplied:
		e.metrics.IncApplied(result.Provider.String(), string(result.Normalized))
		e.logger.Info(logCtx, "gateway result applied")
	case OutcomeDuplicate:
		e.metrics.IncDuplicate(result.Provider.String())
		e.logger.Info(logCtx, "gateway result absorbed as duplicate")
	case OutcomePending:
		e.logger.Info(logCtx, "gateway result still pending, no transition")
	}
	return outcome, nil
}

// Authorize parks a Tabby order in the authorized sub-state and records the
// attempt. The capture coordinator later promotes it through Apply.
func (e *Engine) Authorize(ctx context.Context, result gateway.Result) (*models.PaymentAttempt, error) {
	attempt := attemptFromResult(result)
	attempt.CaptureState = enums.CaptureStateAuthorized

	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := e.orders.WithTx(tx).MarkAuthorized(ctx, result.OrderID, result.Provider, result.ProviderPaymentID); err != nil {
			return err
		}
		return e.attempts.WithTx(tx).Insert(ctx, attempt)
	})
	if err != nil {
		return nil, err
	}

	logCtx := e.logger.WithProvider(e.logger.WithOrderID(ctx, result.OrderID), result.Provider.String())
	e.logger.Info(logCtx, "payment authorized, capture pending")
	return attempt, nil
}

func (e *Engine) recordMismatch(ctx context.Context, order *models.Order, result gateway.Result) (Outcome, error) {
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		attempt := attemptFromResult(result)
		mismatch := "amount mismatch: gateway reported " + result.Amount.StringFixed(2) +
			", order total is " + order.Total.StringFixed(2)
		attempt.LastError = &mismatch
		if err := e.attempts.WithTx(tx).Insert(ctx, attempt); err != nil {
			return err
		}
		return e.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:   enums.OutboxEventOrderStaffAlert,
			AggregateID: order.ID,
			Data: outbox.EmailPayload{
				Trigger:   "order_amount_mismatch",
				Recipient: e.staffRecipient,
				Variables: map[string]any{
					"orderId":        order.ID,
					"provider":       result.Provider.String(),
					"orderTotal":     order.Total.StringFixed(2),
					"reportedAmount": result.Amount.StringFixed(2),
				},
			},
		})
	})
	if err != nil {
		return "", err
	}
	e.metrics.IncRejected(result.Provider.String(), "amount_mismatch")
	e.logger.Warn(ctx, "gateway amount disagrees with order total, order left unpaid")
	return OutcomeAmountMismatch, nil
}

func (e *Engine) queuePaidEmails(ctx context.Context, tx *gorm.DB, order *models.Order, result gateway.Result) error {
	confirmation := outbox.DomainEvent{
		EventType:   enums.OutboxEventOrderConfirmation,
		AggregateID: order.ID,
		Data: outbox.EmailPayload{
			Trigger:   "order_confirmation",
			Recipient: order.CustomerEmail,
			Variables: map[string]any{
				"orderId":       order.ID,
				"customerName":  order.CustomerName,
				"total":         order.Total.StringFixed(2),
				"currency":      order.Currency,
				"paymentMethod": enums.MethodForProvider(result.Provider).String(),
			},
		},
	}
	if err := e.outbox.EmitIfNotExists(ctx, tx, confirmation); err != nil {
		return err
	}
	staff := outbox.DomainEvent{
		EventType:   enums.OutboxEventOrderStaffAlert,
		AggregateID: order.ID,
		Data: outbox.EmailPayload{
			Trigger:   "order_paid_staff",
			Recipient: e.staffRecipient,
			Variables: map[string]any{
				"orderId":  order.ID,
				"total":    order.Total.StringFixed(2),
				"currency": order.Currency,
				"provider": result.Provider.String(),
			},
		},
	}
	return e.outbox.EmitIfNotExists(ctx, tx, staff)
}

func (e *Engine) queueFailedEmail(ctx context.Context, tx *gorm.DB, order *models.Order, result gateway.Result) error {
	return e.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:   enums.OutboxEventOrderPaymentFailed,
		AggregateID: order.ID,
		Data: outbox.EmailPayload{
			Trigger:   "order_payment_failed",
			Recipient: order.CustomerEmail,
			Variables: map[string]any{
				"orderId":      order.ID,
				"customerName": order.CustomerName,
				"provider":     result.Provider.String(),
				"rawStatus":    result.RawStatus,
			},
		},
	})
}

func attemptFromResult(result gateway.Result) *models.PaymentAttempt {
	return &models.PaymentAttempt{
		ID:                uuid.New(),
		OrderID:           result.OrderID,
		Provider:          result.Provider,
		ProviderPaymentID: result.ProviderPaymentID,
		RawStatus:         result.RawStatus,
		NormalizedStatus:  result.Normalized,
		Amount:            result.Amount,
		CaptureState:      enums.CaptureStateNone,
	}
}
