package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mazaj-interiors/payments-backend/api/responses"
	"github.com/mazaj-interiors/payments-backend/api/validators"
	"github.com/mazaj-interiors/payments-backend/internal/orders"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

// OrdersService is the surface the order endpoints need.
type OrdersService interface {
	Create(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderOutput, error)
	Checkout(ctx context.Context, orderID string, input orders.CheckoutInput) (*orders.CheckoutOutput, error)
	Get(ctx context.Context, orderID string) (*orders.OrderOutput, error)
	List(ctx context.Context, input orders.ListInput) (*orders.ListOutput, error)
	Status(ctx context.Context, orderID string) (*orders.StatusOutput, error)
}

func CreateOrder(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var input orders.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

func CheckoutOrder(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		var input orders.CheckoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out, err := svc.Checkout(ctx, orderID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func GetOrder(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		out, err := svc.Get(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// ListOrders is the ops listing: recent orders newest first, cursor paginated,
// optionally filtered to one payment status.
func ListOrders(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		query := r.URL.Query()
		limit := 0
		if raw := query.Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be an integer"))
				return
			}
			limit = parsed
		}

		out, err := svc.List(ctx, orders.ListInput{
			Status: query.Get("status"),
			Limit:  limit,
			Cursor: query.Get("cursor"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderStatus is the polling endpoint the order-result page hits after a
// provider redirect.
func OrderStatus(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		out, err := svc.Status(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
