package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
)

type CreateOrderInput struct {
	OrderType     string          `json:"orderType" validate:"omitempty,oneof=shop package"`
	CustomerName  string          `json:"customerName" validate:"required,min=2,max=120"`
	CustomerEmail string          `json:"customerEmail" validate:"required,email"`
	CustomerPhone string          `json:"customerPhone" validate:"omitempty,e164"`
	CustomerSince time.Time       `json:"customerSince"`
	CouponCode    string          `json:"couponCode" validate:"omitempty,min=2,max=40"`
	Shipping      decimal.Decimal `json:"shipping"`
	Items         []LineItemInput `json:"items" validate:"required,min=1,dive"`
}

type LineItemInput struct {
	Title     string          `json:"title" validate:"required,min=1,max=200"`
	Category  string          `json:"category" validate:"omitempty,max=60"`
	Quantity  int             `json:"quantity" validate:"required,min=1,max=100"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"required"`
}

type ListInput struct {
	Status string
	Limit  int
	Cursor string
}

type ListOutput struct {
	Orders     []OrderOutput `json:"orders"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

type CheckoutInput struct {
	Provider string `json:"provider" validate:"required,oneof=paytabs tabby tamara"`
}

type CheckoutOutput struct {
	OrderID     string `json:"orderId"`
	Provider    string `json:"provider"`
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

type StatusOutput struct {
	OrderID       string     `json:"orderId"`
	PaymentStatus string     `json:"paymentStatus"`
	PaymentMethod string     `json:"paymentMethod"`
	OrderStatus   string     `json:"orderStatus"`
	Total         string     `json:"total"`
	Currency      string     `json:"currency"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

func statusOutputFromModel(order *models.Order) *StatusOutput {
	return &StatusOutput{
		OrderID:       order.ID,
		PaymentStatus: order.PaymentStatus.String(),
		PaymentMethod: order.PaymentMethod.String(),
		OrderStatus:   order.OrderStatus.String(),
		Total:         order.Total.StringFixed(2),
		Currency:      order.Currency,
		PaidAt:        order.PaidAt,
	}
}

type OrderOutput struct {
	OrderID       string           `json:"orderId"`
	OrderType     string           `json:"orderType"`
	CustomerName  string           `json:"customerName"`
	CustomerEmail string           `json:"customerEmail"`
	Subtotal      string           `json:"subtotal"`
	DiscountTotal string           `json:"discountTotal"`
	VAT           string           `json:"vat"`
	Shipping      string           `json:"shipping"`
	Total         string           `json:"total"`
	Currency      string           `json:"currency"`
	PaymentStatus string           `json:"paymentStatus"`
	Items         []LineItemOutput `json:"items"`
	CreatedAt     time.Time        `json:"createdAt"`
}

type LineItemOutput struct {
	Title     string `json:"title"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

func orderOutputFromModel(order *models.Order) *OrderOutput {
	items := make([]LineItemOutput, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, LineItemOutput{
			Title:     item.Title,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}
	return &OrderOutput{
		OrderID:       order.ID,
		OrderType:     order.OrderType.String(),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Subtotal:      order.Subtotal.StringFixed(2),
		DiscountTotal: order.DiscountTotal.StringFixed(2),
		VAT:           order.VAT.StringFixed(2),
		Shipping:      order.Shipping.StringFixed(2),
		Total:         order.Total.StringFixed(2),
		Currency:      order.Currency,
		PaymentStatus: order.PaymentStatus.String(),
		Items:         items,
		CreatedAt:     order.CreatedAt,
	}
}

func (in CreateOrderInput) orderType() enums.OrderType {
	if in.OrderType == "" {
		return enums.OrderTypeShop
	}
	parsed, err := enums.ParseOrderType(in.OrderType)
	if err != nil {
		return enums.OrderTypeShop
	}
	return parsed
}
