package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	"github.com/mazaj-interiors/payments-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_type TEXT NOT NULL DEFAULT 'shop',
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT,
  customer_since DATETIME,
  subtotal NUMERIC NOT NULL,
  vat NUMERIC NOT NULL DEFAULT 0,
  shipping NUMERIC NOT NULL DEFAULT 0,
  discount_total NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL,
  remaining_balance NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'SAR',
  payment_method TEXT NOT NULL DEFAULT 'unset',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_id TEXT,
  order_status TEXT NOT NULL DEFAULT 'pending',
  coupon_id TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  title TEXT NOT NULL,
  category TEXT,
  quantity INTEGER NOT NULL DEFAULT 1,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(lineItems).Error)
	return db
}

func newOrder(t *testing.T, db *gorm.DB, email string, total decimal.Decimal, status enums.PaymentStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:               models.NewOrderID(),
		OrderType:        enums.OrderTypeShop,
		CustomerName:     "Noura Alharbi",
		CustomerEmail:    email,
		Subtotal:         total,
		Total:            total,
		RemainingBalance: total,
		Currency:         "SAR",
		PaymentMethod:    enums.PaymentMethodUnset,
		PaymentStatus:    status,
		OrderStatus:      enums.OrderStatusPending,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestMarkPaidIfUnpaid_idempotent(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(115), enums.PaymentStatusPending)

	moved, err := repo.MarkPaidIfUnpaid(ctx, order.ID, enums.ProviderPayTabs, "TST2201")
	require.NoError(t, err)
	assert.True(t, moved)

	// Replayed delivery: same call collapses into a no-op.
	moved, err = repo.MarkPaidIfUnpaid(ctx, order.ID, enums.ProviderPayTabs, "TST2201")
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, got.OrderStatus)
	require.NotNil(t, got.PaymentID)
	assert.Equal(t, "TST2201", *got.PaymentID)
	assert.NotNil(t, got.PaidAt)
}

func TestMarkFailedIfPending_neverRegressesPaid(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(200), enums.PaymentStatusPending)

	moved, err := repo.MarkPaidIfUnpaid(ctx, order.ID, enums.ProviderTamara, "tam-1")
	require.NoError(t, err)
	require.True(t, moved)

	// A late failure from a retried provider must bounce off.
	moved, err = repo.MarkFailedIfPending(ctx, order.ID, enums.ProviderTamara, "tam-1")
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, got.PaymentStatus)
}

func TestMarkPaidIfUnpaid_allowsRetryAfterFailure(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(80), enums.PaymentStatusPending)

	moved, err := repo.MarkFailedIfPending(ctx, order.ID, enums.ProviderPayTabs, "TST1")
	require.NoError(t, err)
	require.True(t, moved)

	// Customer retries with a fresh session and succeeds.
	moved, err = repo.MarkPaidIfUnpaid(ctx, order.ID, enums.ProviderPayTabs, "TST2")
	require.NoError(t, err)
	assert.True(t, moved)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, "TST2", *got.PaymentID)
}

func TestMarkFailedIfPending_firstFailureWins(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(80), enums.PaymentStatusPending)

	moved, err := repo.MarkFailedIfPending(ctx, order.ID, enums.ProviderPayTabs, "TST1")
	require.NoError(t, err)
	require.True(t, moved)

	moved, err = repo.MarkFailedIfPending(ctx, order.ID, enums.ProviderPayTabs, "TST2")
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "TST1", *got.PaymentID)
}

func TestMarkFailedIfPending_authorizedMayFail(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(300), enums.PaymentStatusAuthorized)

	// An authorization that dies before capture fails the order.
	moved, err := repo.MarkFailedIfPending(ctx, order.ID, enums.ProviderTabby, "pay-7")
	require.NoError(t, err)
	assert.True(t, moved)
}

func TestMarkAuthorized_paidNeverReenters(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	pending := newOrder(t, db, "a@example.sa", decimal.NewFromInt(50), enums.PaymentStatusPending)
	moved, err := repo.MarkAuthorized(ctx, pending.ID, enums.ProviderTabby, "pay-1")
	require.NoError(t, err)
	assert.True(t, moved)

	failed := newOrder(t, db, "b@example.sa", decimal.NewFromInt(50), enums.PaymentStatusFailed)
	moved, err = repo.MarkAuthorized(ctx, failed.ID, enums.ProviderTabby, "pay-2")
	require.NoError(t, err)
	assert.True(t, moved)

	paid := newOrder(t, db, "c@example.sa", decimal.NewFromInt(50), enums.PaymentStatusPaid)
	moved, err = repo.MarkAuthorized(ctx, paid.ID, enums.ProviderTabby, "pay-3")
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestCountPriorPaidOrders(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	newOrder(t, db, "loyal@example.sa", decimal.NewFromInt(100), enums.PaymentStatusPaid)
	newOrder(t, db, "loyal@example.sa", decimal.NewFromInt(100), enums.PaymentStatusPaid)
	newOrder(t, db, "loyal@example.sa", decimal.NewFromInt(100), enums.PaymentStatusFailed)
	newOrder(t, db, "other@example.sa", decimal.NewFromInt(100), enums.PaymentStatusPaid)
	current := newOrder(t, db, "loyal@example.sa", decimal.NewFromInt(100), enums.PaymentStatusPending)

	count, err := repo.CountPriorPaidOrders(ctx, "loyal@example.sa", current.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestFindStalePending(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	old := newOrder(t, db, "stale@example.sa", decimal.NewFromInt(90), enums.PaymentStatusPending)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", old.ID).Updates(map[string]any{
		"payment_method": enums.PaymentMethodPayTabs,
		"created_at":     time.Now().Add(-2 * time.Hour),
	}).Error)

	// Fresh order and one with no method chosen must both stay out.
	newOrder(t, db, "fresh@example.sa", decimal.NewFromInt(90), enums.PaymentStatusPending)
	untouched := newOrder(t, db, "idle@example.sa", decimal.NewFromInt(90), enums.PaymentStatusPending)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", untouched.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	rows, err := repo.FindStalePending(ctx, time.Now().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].ID)
}

func TestSetPaymentMethodIfUnpaid(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, "switch@example.sa", decimal.NewFromInt(60), enums.PaymentStatusPending)
	require.NoError(t, repo.SetPaymentMethodIfUnpaid(ctx, order.ID, enums.PaymentMethodTabby))
	require.NoError(t, repo.SetPaymentMethodIfUnpaid(ctx, order.ID, enums.PaymentMethodTamara))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentMethodTamara, got.PaymentMethod)

	_, err = repo.MarkPaidIfUnpaid(ctx, order.ID, enums.ProviderTamara, "tam-9")
	require.NoError(t, err)

	require.NoError(t, repo.SetPaymentMethodIfUnpaid(ctx, order.ID, enums.PaymentMethodBank))
	got, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentMethodTamara, got.PaymentMethod)
}

func TestListRecent_cursorPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(100), enums.PaymentStatusPending)
		require.NoError(t, db.Model(&models.Order{}).
			Where("id = ?", order.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
		ids = append(ids, order.ID)
	}

	first, err := repo.ListRecent(ctx, "", nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	// Newest first.
	assert.Equal(t, ids[4], first[0].ID)
	assert.Equal(t, ids[2], first[2].ID)

	cursor := &pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	rest, err := repo.ListRecent(ctx, "", cursor, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, ids[1], rest[0].ID)
	assert.Equal(t, ids[0], rest[1].ID)
}

func TestListRecent_statusFilter(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	newOrder(t, db, "noura@example.sa", decimal.NewFromInt(100), enums.PaymentStatusPending)
	paid := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(200), enums.PaymentStatusPaid)

	rows, err := repo.ListRecent(ctx, enums.PaymentStatusPaid, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, paid.ID, rows[0].ID)
}
