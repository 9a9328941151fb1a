package webhooks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mazaj-interiors/payments-backend/api/responses"
	"github.com/mazaj-interiors/payments-backend/internal/reconcile"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

// CaptureDriver re-reads the payment and runs authorize-then-capture.
type CaptureDriver interface {
	HandleAuthorizedHint(ctx context.Context, paymentID string) (reconcile.Outcome, error)
}

// TabbyWebhook ingests Tabby payment events. The event body is never trusted:
// whatever it claims, the coordinator re-fetches the payment and acts only on
// the retrieved state.
func TabbyWebhook(coordinator CaptureDriver, guard DeliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var event struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode tabby event"))
			return
		}
		if event.ID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tabby event missing payment id"))
			return
		}

		// Dedup on payment id + claimed status: Tabby redelivers the same
		// transition, but a later different status must still be processed.
		eventKey := event.ID + ":" + event.Status
		if !guard.CheckAndMark(ctx, "tabby", eventKey) {
			responses.WriteSuccess(w, nil)
			return
		}

		if _, err := coordinator.HandleAuthorizedHint(ctx, event.ID); err != nil {
			guard.Release(ctx, "tabby", eventKey)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
