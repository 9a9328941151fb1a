package tabby

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
)

const statusRejected = "rejected"

type checkoutRequest struct {
	Payment      checkoutPayment `json:"payment"`
	Lang         string          `json:"lang"`
	MerchantCode string          `json:"merchant_code"`
	MerchantURLs merchantURLs    `json:"merchant_urls"`
}

type checkoutPayment struct {
	Amount       string        `json:"amount"`
	Currency     string        `json:"currency"`
	Description  string        `json:"description,omitempty"`
	Buyer        buyer         `json:"buyer"`
	BuyerHistory buyerHistory  `json:"buyer_history"`
	Order        checkoutOrder `json:"order"`
}

type buyer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type buyerHistory struct {
	RegisteredSince string `json:"registered_since"`
	LoyaltyLevel    int    `json:"loyalty_level"`
}

type checkoutOrder struct {
	ReferenceID string         `json:"reference_id"`
	Items       []checkoutItem `json:"items"`
}

type checkoutItem struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Category  string `json:"category"`
}

type merchantURLs struct {
	Success string `json:"success"`
	Cancel  string `json:"cancel"`
	Failure string `json:"failure"`
}

type checkoutResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Configuration struct {
		AvailableProducts struct {
			Installments []struct {
				WebURL string `json:"web_url"`
			} `json:"installments"`
		} `json:"available_products"`
	} `json:"configuration"`
}

// Adapter opens Tabby installment checkout sessions.
type Adapter struct {
	client     *Client
	appBaseURL string
}

func NewAdapter(client *Client, appBaseURL string) *Adapter {
	return &Adapter{
		client:     client,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

func (a *Adapter) Provider() enums.PaymentProvider {
	return enums.ProviderTabby
}

// CreateCheckoutSession opens a session and resolves the installments web
// URL. A "rejected" session is not an outage: the buyer failed Tabby's risk
// screen, and the caller surfaces it as a retriable-with-another-method
// condition rather than an error page.
func (a *Adapter) CreateCheckoutSession(ctx context.Context, order *models.Order, opts gateway.CheckoutOptions) (*gateway.CheckoutSession, error) {
	items := make([]checkoutItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, checkoutItem{
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Category:  taxonomyCategory(item.Category),
		})
	}

	registeredSince := order.CustomerSince
	if registeredSince.IsZero() {
		registeredSince = order.CreatedAt
	}

	resultURL := a.appBaseURL + "/order-result?orderId=" + order.ID
	payload := checkoutRequest{
		Payment: checkoutPayment{
			Amount:      order.Total.StringFixed(2),
			Currency:    order.Currency,
			Description: "Mazaj Interiors order " + order.ID,
			Buyer: buyer{
				Name:  order.CustomerName,
				Email: order.CustomerEmail,
				Phone: order.CustomerPhone,
			},
			BuyerHistory: buyerHistory{
				RegisteredSince: registeredSince.UTC().Format(time.RFC3339),
				LoyaltyLevel:    opts.PriorPaidOrders,
			},
			Order: checkoutOrder{
				ReferenceID: order.ID,
				Items:       items,
			},
		},
		Lang:         "ar",
		MerchantCode: a.client.merchantCode,
		MerchantURLs: merchantURLs{
			Success: resultURL,
			Cancel:  resultURL + "&cancelled=1",
			Failure: resultURL,
		},
	}

	var resp checkoutResponse
	if err := a.client.createSession(ctx, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Status == statusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeRejected, "tabby rejected checkout for order "+order.ID)
	}
	if len(resp.Configuration.AvailableProducts.Installments) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tabby session "+resp.ID+" has no installments product")
	}

	return &gateway.CheckoutSession{
		Provider:    enums.ProviderTabby,
		SessionID:   resp.ID,
		RedirectURL: resp.Configuration.AvailableProducts.Installments[0].WebURL,
	}, nil
}

// WebhookEvent is the push notification body. Its status field is lowercase
// and advisory only; handlers re-fetch the payment before acting.
type WebhookEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount string `json:"amount"`
	Order  struct {
		ReferenceID string `json:"reference_id"`
	} `json:"order"`
}

// IsAuthorizedHint reports whether the push claims an authorization. The
// claim alone never drives a capture.
func (e WebhookEvent) IsAuthorizedHint() bool {
	return strings.EqualFold(e.Status, "authorized")
}

// NormalizeRetrieved maps a retrieved payment onto the shared result shape.
func NormalizeRetrieved(p *Payment) gateway.Result {
	normalized := enums.NormalizedPending
	switch p.Status {
	case RetrievedClosed:
		normalized = enums.NormalizedSuccess
	case "REJECTED", "EXPIRED":
		normalized = enums.NormalizedFailed
	}
	return gateway.Result{
		Provider:          enums.ProviderTabby,
		OrderID:           p.Order.ReferenceID,
		ProviderPaymentID: p.ID,
		RawStatus:         p.Status,
		Normalized:        normalized,
		Amount:            parseAmount(p.Amount),
		SignatureValid:    true,
	}
}

func parseAmount(raw string) decimal.Decimal {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return amount
}
