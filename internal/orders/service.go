package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mazaj-interiors/payments-backend/internal/coupons"
	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	dbpkg "github.com/mazaj-interiors/payments-backend/pkg/db"
	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
	"github.com/mazaj-interiors/payments-backend/pkg/pagination"
)

// Saudi VAT applied on the discounted subtotal.
var vatRate = decimal.NewFromFloat(0.15)

var (
	errDBRequired      = errors.New("orders service: db client is required")
	errRepoRequired    = errors.New("orders service: repository is required")
	errCouponsRequired = errors.New("orders service: coupons repository is required")
	errLoggerRequired  = errors.New("orders service: logger is required")
)

type ServiceParams struct {
	DB       *dbpkg.Client
	Orders   *Repository
	Coupons  *coupons.Repository
	Adapters []gateway.Adapter
	Logger   *logger.Logger
}

// Service owns order creation, checkout-session dispatch, and status reads.
type Service struct {
	db       *dbpkg.Client
	orders   *Repository
	coupons  *coupons.Repository
	adapters map[enums.PaymentProvider]gateway.Adapter
	logger   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errDBRequired
	}
	if params.Orders == nil {
		return nil, errRepoRequired
	}
	if params.Coupons == nil {
		return nil, errCouponsRequired
	}
	if params.Logger == nil {
		return nil, errLoggerRequired
	}

	adapters := make(map[enums.PaymentProvider]gateway.Adapter, len(params.Adapters))
	for _, adapter := range params.Adapters {
		adapters[adapter.Provider()] = adapter
	}

	return &Service{
		db:       params.DB,
		orders:   params.Orders,
		coupons:  params.Coupons,
		adapters: adapters,
		logger:   params.Logger,
	}, nil
}

// Create persists the order, its line items, and the coupon redemption in one
// transaction. Totals are computed here; client-sent amounts are ignored.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*OrderOutput, error) {
	subtotal := decimal.Zero
	items := make([]models.OrderLineItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
		}
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
		items = append(items, models.OrderLineItem{
			ID:        uuid.New(),
			Title:     item.Title,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	shipping := input.Shipping
	if shipping.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping must not be negative")
	}

	order := &models.Order{
		ID:            models.NewOrderID(),
		OrderType:     input.orderType(),
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		CustomerPhone: input.CustomerPhone,
		CustomerSince: input.CustomerSince,
		Subtotal:      subtotal,
		Shipping:      shipping,
		Currency:      "SAR",
		PaymentStatus: enums.PaymentStatusPending,
		OrderStatus:   enums.OrderStatusPending,
		Items:         items,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		discount := decimal.Zero
		if input.CouponCode != "" {
			coupon, err := s.coupons.WithTx(tx).FindByCode(ctx, input.CouponCode)
			if err != nil {
				return err
			}
			if err := s.coupons.WithTx(tx).ConsumeUsage(ctx, coupon.ID); err != nil {
				return err
			}
			discount = couponDiscount(coupon, subtotal)
			order.CouponID = &coupon.ID
		}

		taxable := subtotal.Sub(discount)
		if taxable.IsNegative() {
			taxable = decimal.Zero
			discount = subtotal
		}
		order.DiscountTotal = discount
		order.VAT = taxable.Mul(vatRate).Round(2)
		order.Total = taxable.Add(order.VAT).Add(shipping)
		order.RemainingBalance = order.Total

		return s.orders.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithOrderID(ctx, order.ID)
	s.logger.Info(logCtx, "order created")
	return orderOutputFromModel(order), nil
}

// Checkout opens a provider session for an unpaid order. The chosen method is
// recorded so the reconciler knows which gateway to query if the customer
// disappears mid-checkout.
func (s *Service) Checkout(ctx context.Context, orderID string, input CheckoutInput) (*CheckoutOutput, error) {
	provider, err := enums.ParsePaymentProvider(input.Provider)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	adapter, ok := s.adapters[provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider "+provider.String()+" is not enabled")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus.IsSettled() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order "+orderID+" is already settled")
	}

	opts := gateway.CheckoutOptions{}
	if provider == enums.ProviderTabby {
		priorPaid, err := s.orders.CountPriorPaidOrders(ctx, order.CustomerEmail, order.ID)
		if err != nil {
			return nil, err
		}
		opts.PriorPaidOrders = priorPaid
	}

	logCtx := s.logger.WithProvider(s.logger.WithOrderID(ctx, order.ID), provider.String())
	session, err := adapter.CreateCheckoutSession(logCtx, order, opts)
	if err != nil {
		s.logger.Error(logCtx, "checkout session failed", err)
		return nil, err
	}

	if err := s.orders.SetPaymentMethodIfUnpaid(ctx, order.ID, enums.MethodForProvider(provider)); err != nil {
		return nil, err
	}

	s.logger.Info(logCtx, "checkout session created")
	return &CheckoutOutput{
		OrderID:     order.ID,
		Provider:    provider.String(),
		SessionID:   session.SessionID,
		RedirectURL: session.RedirectURL,
	}, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*OrderOutput, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return orderOutputFromModel(order), nil
}

// List pages recent orders for the ops dashboard, newest first. The cursor
// comes back opaque; passing it unchanged fetches the next page.
func (s *Service) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	var status enums.PaymentStatus
	if input.Status != "" {
		parsed, err := enums.ParsePaymentStatus(input.Status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		status = parsed
	}

	cursor, err := pagination.Decode(input.Cursor)
	if err != nil {
		return nil, err
	}

	rows, err := s.orders.ListRecent(ctx, status, cursor, pagination.FetchSize(input.Limit))
	if err != nil {
		return nil, err
	}

	page := pagination.BuildPage(rows, input.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})

	out := &ListOutput{
		Orders:     make([]OrderOutput, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Items {
		out.Orders = append(out.Orders, *orderOutputFromModel(&page.Items[i]))
	}
	return out, nil
}

// Status is the polling surface the order-result page hits after a redirect.
func (s *Service) Status(ctx context.Context, orderID string) (*StatusOutput, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return statusOutputFromModel(order), nil
}

func couponDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if coupon.Percentage {
		return subtotal.Mul(coupon.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	}
	if coupon.DiscountValue.GreaterThan(subtotal) {
		return subtotal
	}
	return coupon.DiscountValue
}
