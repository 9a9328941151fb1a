package cron

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/mazaj-interiors/payments-backend/internal/gateway/paytabs"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/tabby"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/tamara"
	"github.com/mazaj-interiors/payments-backend/internal/orders"
	"github.com/mazaj-interiors/payments-backend/internal/reconcile"
	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

const stalePendingBatch = 100

type StalePendingJobParams struct {
	Orders   *orders.Repository
	Attempts *reconcile.AttemptRepository
	Engine   *reconcile.Engine
	PayTabs  *paytabs.Client
	Tabby    *tabby.Client
	Tamara   *tamara.Client
	Logger   *logger.Logger
	// Cutoff is how long an order may sit pending before the provider gets
	// asked directly.
	Cutoff time.Duration
}

// StalePendingJob closes the gap left by lost callbacks: orders that started
// a checkout but never heard back are reconciled against the provider's
// authoritative state instead of staying pending forever.
type StalePendingJob struct {
	orders   *orders.Repository
	attempts *reconcile.AttemptRepository
	engine   *reconcile.Engine
	paytabs  *paytabs.Client
	tabby    *tabby.Client
	tamara   *tamara.Client
	logg     *logger.Logger
	cutoff   time.Duration
}

func NewStalePendingJob(params StalePendingJobParams) (*StalePendingJob, error) {
	if params.Orders == nil {
		return nil, errors.New("stale pending job: orders repository required")
	}
	if params.Attempts == nil {
		return nil, errors.New("stale pending job: attempts repository required")
	}
	if params.Engine == nil {
		return nil, errors.New("stale pending job: engine required")
	}
	if params.Logger == nil {
		return nil, errors.New("stale pending job: logger required")
	}
	cutoff := params.Cutoff
	if cutoff <= 0 {
		cutoff = 30 * time.Minute
	}
	return &StalePendingJob{
		orders:   params.Orders,
		attempts: params.Attempts,
		engine:   params.Engine,
		paytabs:  params.PayTabs,
		tabby:    params.Tabby,
		tamara:   params.Tamara,
		logg:     params.Logger,
		cutoff:   cutoff,
	}, nil
}

func (j *StalePendingJob) Name() string {
	return "stale_pending"
}

func (j *StalePendingJob) Run(ctx context.Context) error {
	rows, err := j.orders.FindStalePending(ctx, time.Now().Add(-j.cutoff), stalePendingBatch)
	if err != nil {
		return err
	}

	var errs error
	for _, order := range rows {
		if reconcileErr := j.reconcileOrder(ctx, order); reconcileErr != nil {
			logCtx := j.logg.WithOrderID(ctx, order.ID)
			j.logg.Error(logCtx, "stale order reconciliation failed", reconcileErr)
			errs = multierr.Append(errs, reconcileErr)
		}
	}
	return errs
}

func (j *StalePendingJob) reconcileOrder(ctx context.Context, order models.Order) error {
	switch order.PaymentMethod {
	case enums.PaymentMethodPayTabs:
		if j.paytabs == nil {
			return nil
		}
		query, err := j.paytabs.QueryByCartID(ctx, order.ID)
		if err != nil {
			return err
		}
		_, err = j.engine.Apply(ctx, paytabs.NormalizeQuery(query))
		return err

	case enums.PaymentMethodTabby:
		if j.tabby == nil {
			return nil
		}
		// Tabby payments are addressed by their own id; without a recorded
		// attempt there is nothing to query and the order stays pending.
		attempt, err := j.attempts.LatestByOrder(ctx, order.ID)
		if err != nil || attempt == nil {
			return err
		}
		payment, err := j.tabby.GetPayment(ctx, attempt.ProviderPaymentID)
		if err != nil {
			return err
		}
		_, err = j.engine.Apply(ctx, tabby.NormalizeRetrieved(payment))
		return err

	case enums.PaymentMethodTamara:
		if j.tamara == nil {
			return nil
		}
		remote, err := j.tamara.GetOrderByReference(ctx, order.ID)
		if err != nil {
			return err
		}
		_, err = j.engine.Apply(ctx, tamara.NormalizeRetrieved(remote))
		return err

	default:
		// Bank transfers settle manually; nothing to reconcile.
		return nil
	}
}
