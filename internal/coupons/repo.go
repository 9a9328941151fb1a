package coupons

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
)

// Repository reads and consumes coupon codes. Usage accounting happens inside
// the order-creation transaction so a coupon can never be over-redeemed.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// ConsumeUsage increments the usage counter guarded by the max-uses limit
// and expiry. Zero rows means the coupon was exhausted or expired between
// validation and redemption, and the caller must fail the order creation.
func (r *Repository) ConsumeUsage(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ?", id).
		Where("max_uses = 0 OR usage_count < max_uses").
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "coupon exhausted or expired")
	}
	return nil
}
