package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
)

// AttemptRepository persists the gateway audit trail and serves as the work
// queue for uncaptured Tabby authorizations.
type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// WithTx rebinds the repository to a transaction.
func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: tx}
}

func (r *AttemptRepository) Insert(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

// FindStuckAuthorized lists attempts whose capture never completed, oldest
// first, bounded so one bad batch cannot starve the job.
func (r *AttemptRepository) FindStuckAuthorized(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.PaymentAttempt, error) {
	var rows []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("capture_state = ?", enums.CaptureStateAuthorized).
		Where("capture_attempts < ?", maxAttempts).
		Where("updated_at < ?", olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindExhaustedAuthorized lists authorizations that burned through every
// retry without capturing. These need a human.
func (r *AttemptRepository) FindExhaustedAuthorized(ctx context.Context, maxAttempts, limit int) ([]models.PaymentAttempt, error) {
	var rows []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("capture_state = ?", enums.CaptureStateAuthorized).
		Where("capture_attempts >= ?", maxAttempts).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// LatestByOrder returns the most recent attempt for an order, or nil when
// no gateway result was ever recorded against it.
func (r *AttemptRepository) LatestByOrder(ctx context.Context, orderID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) SetCaptureState(ctx context.Context, id uuid.UUID, state enums.CaptureState) error {
	return r.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("id = ?", id).
		Update("capture_state", state).Error
}

func (r *AttemptRepository) RecordCaptureFailure(ctx context.Context, id uuid.UUID, captureErr error) error {
	updates := map[string]any{
		"capture_attempts": gorm.Expr("capture_attempts + 1"),
	}
	if captureErr != nil {
		msg := captureErr.Error()
		updates["last_error"] = msg
	}
	return r.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("id = ?", id).
		Updates(updates).Error
}
