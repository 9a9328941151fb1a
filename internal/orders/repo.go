package orders

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/pagination"
)

// Repository owns order persistence. Every state transition goes through a
// conditional UPDATE so that duplicate or out-of-order gateway deliveries
// collapse into no-ops at the storage layer, whatever the callers raced on.
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

func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *Repository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaidIfUnpaid settles the order. The guard clause makes the operation
// idempotent and forbids regression: a paid order absorbs any later result
// silently, including a late FAILED from a retried provider.
func (r *Repository) MarkPaidIfUnpaid(ctx context.Context, orderID string, provider enums.PaymentProvider, providerPaymentID string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("payment_status <> ?", enums.PaymentStatusPaid).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"payment_method": enums.MethodForProvider(provider),
			"payment_id":     providerPaymentID,
			"order_status":   enums.OrderStatusProcessing,
			"paid_at":        now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailedIfPending records a failed attempt. Pending orders move, as do
// authorized ones whose authorization died before capture; paid stays paid
// and an already-failed order is left alone so the first failure timestamp
// survives.
func (r *Repository) MarkFailedIfPending(ctx context.Context, orderID string, provider enums.PaymentProvider, providerPaymentID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("payment_status IN ?", []enums.PaymentStatus{
			enums.PaymentStatusPending,
			enums.PaymentStatusAuthorized,
		}).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusFailed,
			"payment_method": enums.MethodForProvider(provider),
			"payment_id":     providerPaymentID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkAuthorized parks the order in the authorized sub-state while a capture
// is in flight. Pending and failed orders may enter it; paid never re-enters.
func (r *Repository) MarkAuthorized(ctx context.Context, orderID string, provider enums.PaymentProvider, providerPaymentID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("payment_status IN ?", []enums.PaymentStatus{
			enums.PaymentStatusPending,
			enums.PaymentStatusFailed,
		}).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusAuthorized,
			"payment_method": enums.MethodForProvider(provider),
			"payment_id":     providerPaymentID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetPaymentMethodIfUnpaid records the method the customer chose at checkout
// time. Unpaid orders may switch methods between attempts.
func (r *Repository) SetPaymentMethodIfUnpaid(ctx context.Context, orderID string, method enums.PaymentMethod) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("payment_status <> ?", enums.PaymentStatusPaid).
		Update("payment_method", method).Error
}

// CountPriorPaidOrders counts this customer's previously settled orders,
// excluding the one currently being checked out.
func (r *Repository) CountPriorPaidOrders(ctx context.Context, customerEmail, excludeOrderID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("customer_email = ?", customerEmail).
		Where("payment_status = ?", enums.PaymentStatusPaid).
		Where("id <> ?", excludeOrderID).
		Count(&count).Error
	return int(count), err
}

// ListRecent pages orders newest first. A cursor narrows the scan to rows
// strictly before the cursor position; an empty status lists everything.
func (r *Repository) ListRecent(ctx context.Context, status enums.PaymentStatus, cursor *pagination.Cursor, fetchSize int) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items")
	if status != "" {
		q = q.Where("payment_status = ?", status)
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Order
	err := q.Order("created_at DESC, id DESC").
		Limit(fetchSize).
		Find(&rows).Error
	return rows, err
}

// FindStalePending lists orders that have sat unpaid past the cutoff. The
// reconciler queries the provider for each instead of guessing.
func (r *Repository) FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ?", enums.PaymentStatusPending).
		Where("payment_method <> ?", enums.PaymentMethodUnset).
		Where("created_at < ?", olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
