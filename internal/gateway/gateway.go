package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
)

// Result is the provider-agnostic shape every adapter distills an inbound
// callback, webhook, or redirect into. It is consumed once by the
// reconciliation engine and then discarded.
type Result struct {
	Provider          enums.PaymentProvider
	OrderID           string
	ProviderPaymentID string
	RawStatus         string
	Normalized        enums.NormalizedStatus
	Amount            decimal.Decimal
	SignatureValid    bool
}

// CheckoutSession is the outcome of a provider checkout-session request.
type CheckoutSession struct {
	Provider    enums.PaymentProvider
	SessionID   string
	RedirectURL string
}

// CheckoutOptions carries order-adjacent data some providers want beyond the
// order row itself.
type CheckoutOptions struct {
	// PriorPaidOrders feeds Tabby's buyer_history loyalty level: the count
	// of this customer's previously paid orders.
	PriorPaidOrders int
}

// Adapter is the per-provider surface for opening a payment session.
// Callback normalization is provider-shaped and lives on each concrete
// adapter rather than here.
type Adapter interface {
	Provider() enums.PaymentProvider
	CreateCheckoutSession(ctx context.Context, order *models.Order, opts CheckoutOptions) (*CheckoutSession, error)
}
