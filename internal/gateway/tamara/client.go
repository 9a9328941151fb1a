package tamara

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/pkg/config"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

var (
	errAPIURLRequired   = errors.New("tamara api url is required")
	errAPITokenRequired = errors.New("tamara api token is required")
	errLoggerRequired   = errors.New("tamara logger is required")
)

// Client talks to the Tamara merchant API.
type Client struct {
	http     *http.Client
	baseURL  string
	apiToken string
	logger   *logger.Logger
}

func NewClient(ctx context.Context, cfg config.TamaraConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if baseURL == "" {
		return nil, errAPIURLRequired
	}
	apiToken := strings.TrimSpace(cfg.APIToken)
	if apiToken == "" {
		return nil, errAPITokenRequired
	}

	c := &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		baseURL:  baseURL,
		apiToken: apiToken,
		logger:   logg,
	}

	logg.Info(ctx, "tamara client initialized")
	return c, nil
}

// Money is Tamara's amount object.
type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// RemoteOrder is the authoritative order state from Tamara. Redirect query
// parameters claiming approval are only a hint; every decision re-reads this.
type RemoteOrder struct {
	OrderID          string `json:"order_id"`
	OrderReferenceID string `json:"order_reference_id"`
	Status           string `json:"status"`
	TotalAmount      Money  `json:"total_amount"`
}

// GetOrder fetches the current order state by Tamara's own order id.
func (c *Client) GetOrder(ctx context.Context, tamaraOrderID string) (*RemoteOrder, error) {
	if strings.TrimSpace(tamaraOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tamara order id required")
	}
	var remote RemoteOrder
	if err := c.do(ctx, http.MethodGet, "/orders/"+tamaraOrderID, nil, &remote); err != nil {
		return nil, err
	}
	return &remote, nil
}

// GetOrderByReference fetches by the merchant-side order id, for callers that
// only hold our reference.
func (c *Client) GetOrderByReference(ctx context.Context, orderID string) (*RemoteOrder, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference required")
	}
	var remote RemoteOrder
	if err := c.do(ctx, http.MethodGet, "/merchants/orders/reference-id/"+orderID, nil, &remote); err != nil {
		return nil, err
	}
	return &remote, nil
}

func (c *Client) createSession(ctx context.Context, payload checkoutRequest, out *checkoutResponse) error {
	return c.do(ctx, http.MethodPost, "/checkout", payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode tamara request")
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build tamara request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call tamara")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read tamara response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := gateway.CodeForHTTPStatus(resp.StatusCode)
		return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw)), "tamara request failed")
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode tamara response")
		}
	}
	return nil
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
