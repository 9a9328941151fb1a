package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mazaj-interiors/payments-backend/pkg/enums"
)

// Order is the shared entity every payment provider converges on. The ID is
// an opaque string minted at creation and immutable afterwards.
type Order struct {
	ID               string              `gorm:"column:id;primaryKey"`
	OrderType        enums.OrderType     `gorm:"column:order_type;type:text;not null;default:'shop'"`
	CustomerName     string              `gorm:"column:customer_name;not null"`
	CustomerEmail    string              `gorm:"column:customer_email;not null"`
	CustomerPhone    string              `gorm:"column:customer_phone"`
	CustomerSince    time.Time           `gorm:"column:customer_since"`
	Subtotal         decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	VAT              decimal.Decimal     `gorm:"column:vat;type:numeric(12,2);not null;default:0"`
	Shipping         decimal.Decimal     `gorm:"column:shipping;type:numeric(12,2);not null;default:0"`
	DiscountTotal    decimal.Decimal     `gorm:"column:discount_total;type:numeric(12,2);not null;default:0"`
	Total            decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	RemainingBalance decimal.Decimal     `gorm:"column:remaining_balance;type:numeric(12,2);not null;default:0"`
	Currency         string              `gorm:"column:currency;not null;default:'SAR'"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'unset'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentID        *string             `gorm:"column:payment_id"`
	OrderStatus      enums.OrderStatus   `gorm:"column:order_status;type:text;not null;default:'pending'"`
	CouponID         *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	Items            []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// NewOrderID mints an opaque order identifier.
func NewOrderID() string {
	return "ord_" + uuid.NewString()
}
