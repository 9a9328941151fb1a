package paytabs

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
)

// Adapter opens PayTabs hosted-page sessions for orders.
type Adapter struct {
	client   *Client
	baseURL  string
	currency string
}

// NewAdapter wires the PayTabs client to the checkout flow. appBaseURL is
// the public origin callbacks and returns are routed to.
func NewAdapter(client *Client, appBaseURL, currency string) (*Adapter, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "paytabs client required")
	}
	if strings.TrimSpace(appBaseURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "app base url required")
	}
	if currency == "" {
		currency = "SAR"
	}
	return &Adapter{
		client:   client,
		baseURL:  strings.TrimRight(appBaseURL, "/"),
		currency: currency,
	}, nil
}

// Provider identifies the gateway.
func (a *Adapter) Provider() enums.PaymentProvider {
	return enums.ProviderPayTabs
}

// CreateCheckoutSession requests a hosted payment page for the order. The
// callback and return URLs carry the order id so the redirect leg can be
// correlated even when PayTabs omits cart_id.
func (a *Adapter) CreateCheckoutSession(ctx context.Context, order *models.Order, _ gateway.CheckoutOptions) (*gateway.CheckoutSession, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	callbackURL := fmt.Sprintf("%s/api/v1/webhooks/paytabs?orderId=%s", a.baseURL, url.QueryEscape(order.ID))
	returnURL := fmt.Sprintf("%s/order-result?orderId=%s", a.baseURL, url.QueryEscape(order.ID))

	req := paymentRequest{
		ProfileID:       a.client.profileID,
		TranType:        "sale",
		TranClass:       "ecom",
		CartID:          order.ID,
		CartCurrency:    a.currency,
		CartAmount:      order.Total.StringFixed(2),
		CartDescription: fmt.Sprintf("%s order %s", order.OrderType, order.ID),
		CustomerDetails: customerDetails{
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
			Phone: order.CustomerPhone,
		},
		Callback: callbackURL,
		Return:   returnURL,
	}

	var resp paymentResponse
	if err := a.client.post(ctx, "/payment/request", req, &resp); err != nil {
		return nil, err
	}
	if resp.RedirectURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paytabs returned no redirect url").
			WithDetails(map[string]any{"code": resp.Code, "message": resp.Message})
	}

	return &gateway.CheckoutSession{
		Provider:    enums.ProviderPayTabs,
		SessionID:   resp.TranRef,
		RedirectURL: resp.RedirectURL,
	}, nil
}
