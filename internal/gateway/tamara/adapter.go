package tamara

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
)

// Statuses on a retrieved Tamara order that settle the payment.
const (
	StatusApproved      = "approved"
	StatusAuthorised    = "authorised"
	StatusFullyCaptured = "fully_captured"
)

type checkoutRequest struct {
	OrderReferenceID string         `json:"order_reference_id"`
	TotalAmount      Money          `json:"total_amount"`
	Description      string         `json:"description"`
	CountryCode      string         `json:"country_code"`
	PaymentType      string         `json:"payment_type"`
	Locale           string         `json:"locale"`
	Items            []checkoutItem `json:"items"`
	Consumer         consumer       `json:"consumer"`
	ShippingAddress  address        `json:"shipping_address"`
	MerchantURL      merchantURL    `json:"merchant_url"`
}

type checkoutItem struct {
	ReferenceID string `json:"reference_id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	TotalAmount Money  `json:"total_amount"`
}

type consumer struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

type address struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Line1       string `json:"line1"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	PhoneNumber string `json:"phone_number"`
}

type merchantURL struct {
	Success      string `json:"success"`
	Failure      string `json:"failure"`
	Cancel       string `json:"cancel"`
	Notification string `json:"notification"`
}

type checkoutResponse struct {
	OrderID     string `json:"order_id"`
	CheckoutID  string `json:"checkout_id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

// Adapter opens Tamara pay-later checkout sessions.
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
	return enums.ProviderTamara
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, order *models.Order, _ gateway.CheckoutOptions) (*gateway.CheckoutSession, error) {
	items := make([]checkoutItem, 0, len(order.Items))
	for _, item := range order.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items = append(items, checkoutItem{
			ReferenceID: item.ID.String(),
			Type:        "Physical",
			Name:        item.Title,
			Quantity:    item.Quantity,
			TotalAmount: Money{Amount: lineTotal.StringFixed(2), Currency: order.Currency},
		})
	}

	firstName, lastName := splitName(order.CustomerName)
	resultURL := a.appBaseURL + "/order-result?orderId=" + order.ID
	payload := checkoutRequest{
		OrderReferenceID: order.ID,
		TotalAmount:      Money{Amount: order.Total.StringFixed(2), Currency: order.Currency},
		Description:      "Mazaj Interiors order " + order.ID,
		CountryCode:      "SA",
		PaymentType:      "PAY_BY_INSTALMENTS",
		Locale:           "ar_SA",
		Items:            items,
		Consumer: consumer{
			FirstName:   firstName,
			LastName:    lastName,
			PhoneNumber: order.CustomerPhone,
			Email:       order.CustomerEmail,
		},
		ShippingAddress: address{
			FirstName:   firstName,
			LastName:    lastName,
			Line1:       "N/A",
			City:        "Riyadh",
			CountryCode: "SA",
			PhoneNumber: order.CustomerPhone,
		},
		MerchantURL: merchantURL{
			Success:      resultURL + "&paymentStatus=approved",
			Failure:      resultURL + "&paymentStatus=declined",
			Cancel:       resultURL + "&cancelled=1",
			Notification: a.appBaseURL + "/api/v1/webhooks/tamara",
		},
	}

	var resp checkoutResponse
	if err := a.client.createSession(ctx, payload, &resp); err != nil {
		return nil, err
	}
	if resp.CheckoutURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tamara checkout "+resp.CheckoutID+" returned no redirect url")
	}

	return &gateway.CheckoutSession{
		Provider:    enums.ProviderTamara,
		SessionID:   resp.OrderID,
		RedirectURL: resp.CheckoutURL,
	}, nil
}

// WebhookEvent is Tamara's push notification. Like the redirect, it is only
// a hint to go read the order back.
type WebhookEvent struct {
	OrderID          string `json:"order_id"`
	OrderReferenceID string `json:"order_reference_id"`
	EventType        string `json:"event_type"`
	OrderStatus      string `json:"order_status"`
}

// NormalizeRetrieved maps a retrieved Tamara order onto the shared result
// shape. Anything not clearly settled or dead stays pending.
func NormalizeRetrieved(remote *RemoteOrder) gateway.Result {
	normalized := enums.NormalizedPending
	switch strings.ToLower(remote.Status) {
	case StatusApproved, StatusAuthorised, StatusFullyCaptured:
		normalized = enums.NormalizedSuccess
	case "declined", "expired", "canceled", "cancelled":
		normalized = enums.NormalizedFailed
	}
	return gateway.Result{
		Provider:          enums.ProviderTamara,
		OrderID:           remote.OrderReferenceID,
		ProviderPaymentID: remote.OrderID,
		RawStatus:         remote.Status,
		Normalized:        normalized,
		Amount:            parseAmount(remote.TotalAmount.Amount),
		SignatureValid:    true,
	}
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "Customer", "Customer"
	}
	if len(parts) == 1 {
		return parts[0], parts[0]
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func parseAmount(raw string) decimal.Decimal {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return amount
}
