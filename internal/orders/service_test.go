package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mazaj-interiors/payments-backend/internal/coupons"
	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	dbpkg "github.com/mazaj-interiors/payments-backend/pkg/db"
	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

type stubAdapter struct {
	provider enums.PaymentProvider
	session  *gateway.CheckoutSession
	err      error
	lastOpts gateway.CheckoutOptions
}

func (s *stubAdapter) Provider() enums.PaymentProvider {
	return s.provider
}

func (s *stubAdapter) CreateCheckoutSession(ctx context.Context, order *models.Order, opts gateway.CheckoutOptions) (*gateway.CheckoutSession, error) {
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func setupServiceTest(t *testing.T) (*Service, *gorm.DB, *stubAdapter) {
	t.Helper()

	db := setupOrdersTestDB(t)
	couponsDDL := `
CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  discount_value NUMERIC NOT NULL,
  percentage INTEGER NOT NULL DEFAULT 0,
  usage_count INTEGER NOT NULL DEFAULT 0,
  max_uses INTEGER NOT NULL DEFAULT 0,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(couponsDDL).Error)

	adapter := &stubAdapter{
		provider: enums.ProviderTabby,
		session:  &gateway.CheckoutSession{Provider: enums.ProviderTabby, SessionID: "sess-1", RedirectURL: "https://checkout.example/redirect"},
	}
	svc, err := NewService(ServiceParams{
		DB:       dbpkg.NewFromGorm(db),
		Orders:   NewRepository(db),
		Coupons:  coupons.NewRepository(db),
		Adapters: []gateway.Adapter{adapter},
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, db, adapter
}

func TestServiceCreate_computesTotals(t *testing.T) {
	svc, _, _ := setupServiceTest(t)

	out, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerName:  "Noura Alharbi",
		CustomerEmail: "noura@example.sa",
		Shipping:      decimal.NewFromInt(20),
		Items: []LineItemInput{
			{Title: "Velvet Cushion", Category: "decor", Quantity: 2, UnitPrice: decimal.RequireFromString("35.00")},
			{Title: "Brass Lamp", Category: "lighting", Quantity: 1, UnitPrice: decimal.RequireFromString("30.00")},
		},
	})
	require.NoError(t, err)

	// 100 subtotal, 15% VAT on it, plus shipping.
	assert.Equal(t, "100.00", out.Subtotal)
	assert.Equal(t, "15.00", out.VAT)
	assert.Equal(t, "135.00", out.Total)
	assert.Equal(t, "SAR", out.Currency)
	assert.Equal(t, string(enums.PaymentStatusPending), out.PaymentStatus)
}

func TestServiceCreate_percentageCoupon(t *testing.T) {
	svc, db, _ := setupServiceTest(t)

	coupon := &models.Coupon{
		ID:            uuid.New(),
		Code:          "RAMADAN10",
		DiscountValue: decimal.NewFromInt(10),
		Percentage:    true,
		MaxUses:       5,
	}
	require.NoError(t, db.Create(coupon).Error)

	out, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerName:  "Noura Alharbi",
		CustomerEmail: "noura@example.sa",
		CouponCode:    "ramadan10",
		Items: []LineItemInput{
			{Title: "Console Table", Quantity: 1, UnitPrice: decimal.NewFromInt(200)},
		},
	})
	require.NoError(t, err)

	// 200 - 10% = 180 taxable, VAT 27.
	assert.Equal(t, "20.00", out.DiscountTotal)
	assert.Equal(t, "27.00", out.VAT)
	assert.Equal(t, "207.00", out.Total)

	var updated models.Coupon
	require.NoError(t, db.Where("id = ?", coupon.ID).First(&updated).Error)
	assert.Equal(t, 1, updated.UsageCount)
}

func TestServiceCreate_flatCouponCappedAtSubtotal(t *testing.T) {
	svc, db, _ := setupServiceTest(t)

	coupon := &models.Coupon{
		ID:            uuid.New(),
		Code:          "BIGFLAT",
		DiscountValue: decimal.NewFromInt(500),
	}
	require.NoError(t, db.Create(coupon).Error)

	out, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerName:  "Noura Alharbi",
		CustomerEmail: "noura@example.sa",
		CouponCode:    "BIGFLAT",
		Items: []LineItemInput{
			{Title: "Wall Art", Quantity: 1, UnitPrice: decimal.NewFromInt(120)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "120.00", out.DiscountTotal)
	assert.Equal(t, "0.00", out.VAT)
	assert.Equal(t, "0.00", out.Total)
}

func TestServiceCreate_exhaustedCouponRollsBack(t *testing.T) {
	svc, db, _ := setupServiceTest(t)

	coupon := &models.Coupon{
		ID:            uuid.New(),
		Code:          "SPENT",
		DiscountValue: decimal.NewFromInt(10),
		UsageCount:    3,
		MaxUses:       3,
	}
	require.NoError(t, db.Create(coupon).Error)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerName:  "Noura Alharbi",
		CustomerEmail: "noura@example.sa",
		CouponCode:    "SPENT",
		Items: []LineItemInput{
			{Title: "Rug", Quantity: 1, UnitPrice: decimal.NewFromInt(90)},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServiceCreate_negativeUnitPrice(t *testing.T) {
	svc, _, _ := setupServiceTest(t)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerName:  "Noura Alharbi",
		CustomerEmail: "noura@example.sa",
		Items: []LineItemInput{
			{Title: "Rug", Quantity: 1, UnitPrice: decimal.NewFromInt(-5)},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestServiceCheckout_recordsMethodAndLoyalty(t *testing.T) {
	svc, db, adapter := setupServiceTest(t)
	ctx := context.Background()

	newOrder(t, db, "noura@example.sa", decimal.NewFromInt(100), enums.PaymentStatusPaid)
	order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(150), enums.PaymentStatusPending)

	out, err := svc.Checkout(ctx, order.ID, CheckoutInput{Provider: "tabby"})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", out.SessionID)
	assert.Equal(t, "https://checkout.example/redirect", out.RedirectURL)
	assert.Equal(t, 1, adapter.lastOpts.PriorPaidOrders)

	got, err := NewRepository(db).FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentMethodTabby, got.PaymentMethod)
}

func TestServiceCheckout_settledOrderRefused(t *testing.T) {
	svc, db, _ := setupServiceTest(t)

	order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(150), enums.PaymentStatusPaid)

	_, err := svc.Checkout(context.Background(), order.ID, CheckoutInput{Provider: "tabby"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestServiceCheckout_unknownProvider(t *testing.T) {
	svc, db, _ := setupServiceTest(t)

	order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(150), enums.PaymentStatusPending)

	_, err := svc.Checkout(context.Background(), order.ID, CheckoutInput{Provider: "cash"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	// Enabled adapters only: tamara parses but no adapter is registered.
	_, err = svc.Checkout(context.Background(), order.ID, CheckoutInput{Provider: "tamara"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestServiceStatus(t *testing.T) {
	svc, db, _ := setupServiceTest(t)
	ctx := context.Background()

	order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(75), enums.PaymentStatusPending)
	_, err := NewRepository(db).MarkPaidIfUnpaid(ctx, order.ID, enums.ProviderPayTabs, "TST88")
	require.NoError(t, err)

	status, err := svc.Status(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(enums.PaymentStatusPaid), status.PaymentStatus)
	assert.Equal(t, string(enums.PaymentMethodPayTabs), status.PaymentMethod)

	_, err = svc.Status(ctx, "ord_"+time.Now().Format("20060102150405"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestServiceList_pagesNewestFirst(t *testing.T) {
	svc, db, _ := setupServiceTest(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		order := newOrder(t, db, "noura@example.sa", decimal.NewFromInt(100), enums.PaymentStatusPending)
		require.NoError(t, db.Model(&models.Order{}).
			Where("id = ?", order.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
		ids = append(ids, order.ID)
	}

	first, err := svc.List(ctx, ListInput{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, ids[2], first.Orders[0].OrderID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, ListInput{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, ids[0], second.Orders[0].OrderID)
	assert.Empty(t, second.NextCursor)
}

func TestServiceList_badInputs(t *testing.T) {
	svc, _, _ := setupServiceTest(t)
	ctx := context.Background()

	_, err := svc.List(ctx, ListInput{Status: "sort-of-paid"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.List(ctx, ListInput{Cursor: "@@not-a-cursor@@"})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
