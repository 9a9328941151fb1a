package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mazaj-interiors/payments-backend/pkg/enums"
)

// PaymentAttempt records every gateway result applied (or refused) against
// an order. It is the audit trail operators read when a provider and the
// local order disagree, and the work queue the capture-retry job drains for
// Tabby authorizations that have not been captured yet.
type PaymentAttempt struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           string                 `gorm:"column:order_id;not null;index"`
	Provider          enums.PaymentProvider  `gorm:"column:provider;type:text;not null"`
	ProviderPaymentID string                 `gorm:"column:provider_payment_id;not null"`
	RawStatus         string                 `gorm:"column:raw_status;not null"`
	NormalizedStatus  enums.NormalizedStatus `gorm:"column:normalized_status;type:text;not null"`
	Amount            decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null;default:0"`
	CaptureState      enums.CaptureState     `gorm:"column:capture_state;type:text;not null;default:'none'"`
	CaptureAttempts   int                    `gorm:"column:capture_attempts;not null;default:0"`
	LastError         *string                `gorm:"column:last_error"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
