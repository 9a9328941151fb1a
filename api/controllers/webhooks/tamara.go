package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mazaj-interiors/payments-backend/api/responses"
	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/tamara"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

// TamaraOrderFetcher re-reads the authoritative order state from Tamara.
type TamaraOrderFetcher interface {
	GetOrder(ctx context.Context, tamaraOrderID string) (*tamara.RemoteOrder, error)
	GetOrderByReference(ctx context.Context, orderID string) (*tamara.RemoteOrder, error)
}

// TamaraWebhook ingests Tamara's notification pushes. Tamara sends no
// verifiable signature, so the push is treated purely as a prompt to fetch
// the order back over the authenticated API.
func TamaraWebhook(engine ResultApplier, client TamaraOrderFetcher, guard DeliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var event tamara.WebhookEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode tamara event"))
			return
		}
		if event.OrderID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tamara event missing order id"))
			return
		}

		eventKey := event.OrderID + ":" + event.OrderStatus
		if !guard.CheckAndMark(ctx, "tamara", eventKey) {
			responses.WriteSuccess(w, nil)
			return
		}

		remote, err := client.GetOrder(ctx, event.OrderID)
		if err != nil {
			guard.Release(ctx, "tamara", eventKey)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if _, err := engine.Apply(ctx, tamara.NormalizeRetrieved(remote)); err != nil {
			guard.Release(ctx, "tamara", eventKey)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

// TamaraConfirm handles the browser redirect after a Tamara checkout. The
// paymentStatus query parameter is attacker-controlled; an approved claim is
// confirmed against the API before anything moves, and anything else is
// folded in as a failure attempt (which only a pending order reacts to).
func TamaraConfirm(engine ResultApplier, client TamaraOrderFetcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID := strings.TrimSpace(r.URL.Query().Get("orderId"))
		if orderID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "orderId query parameter required"))
			return
		}
		claimed := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("paymentStatus")))

		if claimed == "approved" {
			remote, err := client.GetOrderByReference(ctx, orderID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			outcome, err := engine.Apply(ctx, tamara.NormalizeRetrieved(remote))
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
			return
		}

		outcome, err := engine.Apply(ctx, gateway.Result{
			Provider:       enums.ProviderTamara,
			OrderID:        orderID,
			RawStatus:      claimed,
			Normalized:     enums.NormalizedFailed,
			SignatureValid: true,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
