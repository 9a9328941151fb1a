package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/mazaj-interiors/payments-backend/api/responses"
	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/paytabs"
	"github.com/mazaj-interiors/payments-backend/internal/reconcile"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

// ResultApplier folds a normalized gateway result into order state.
type ResultApplier interface {
	Apply(ctx context.Context, result gateway.Result) (reconcile.Outcome, error)
}

// DeliveryGuard dedups webhook deliveries before they hit storage.
type DeliveryGuard interface {
	CheckAndMark(ctx context.Context, provider, eventID string) bool
	Release(ctx context.Context, provider, eventID string)
}

type paytabsKeyHolder interface {
	ServerKey() string
}

// PayTabsCallback ingests the server-to-server callback. PayTabs retries
// aggressively on non-200 responses, so every verification failure is
// acknowledged with 200 after being discarded; only our own infrastructure
// failing returns an error status, which is the one case a retry can help.
func PayTabsCallback(engine ResultApplier, client paytabsKeyHolder, guard DeliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read callback body"))
			return
		}

		callback, err := paytabs.ParseCallback(body, r.Header.Get("Content-Type"))
		if err != nil {
			if logg != nil {
				logg.Warn(ctx, "unparseable paytabs callback acknowledged")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if callback.TranRef != "" && !guard.CheckAndMark(ctx, "paytabs", callback.TranRef) {
			responses.WriteSuccess(w, nil)
			return
		}

		result := callback.Normalize(client.ServerKey())
		if _, err := engine.Apply(ctx, result); err != nil {
			guard.Release(ctx, "paytabs", callback.TranRef)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
