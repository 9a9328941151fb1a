package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Coupon is a discount code whose usage counter must move atomically with
// order creation.
type Coupon struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string          `gorm:"column:code;not null;unique"`
	DiscountValue decimal.Decimal `gorm:"column:discount_value;type:numeric(12,2);not null"`
	Percentage    bool            `gorm:"column:percentage;not null;default:false"`
	UsageCount    int             `gorm:"column:usage_count;not null;default:0"`
	MaxUses       int             `gorm:"column:max_uses;not null;default:0"`
	ExpiresAt     *time.Time      `gorm:"column:expires_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
