package paytabs

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
	errServerKeyRequired = errors.New("paytabs server key is required")
	errProfileIDRequired = errors.New("paytabs profile id is required")
	errLoggerRequired    = errors.New("paytabs logger is required")
)

// Client talks to the PayTabs hosted-payment-page API with centralized auth,
// timeouts, and error mapping.
type Client struct {
	http      *http.Client
	baseURL   string
	serverKey string
	profileID string
	logger    *logger.Logger
}

// NewClient initializes the PayTabs wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PayTabsConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	serverKey := strings.TrimSpace(cfg.ServerKey)
	if serverKey == "" {
		return nil, errServerKeyRequired
	}
	profileID := strings.TrimSpace(cfg.ProfileID)
	if profileID == "" {
		return nil, errProfileIDRequired
	}

	c := &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		serverKey: serverKey,
		profileID: profileID,
		logger:    logg,
	}

	logg.Info(ctx, "paytabs client initialized")
	return c, nil
}

// ServerKey returns the key used for callback signature verification.
func (c *Client) ServerKey() string {
	if c == nil {
		return ""
	}
	return c.serverKey
}

type paymentRequest struct {
	ProfileID       string          `json:"profile_id"`
	TranType        string          `json:"tran_type"`
	TranClass       string          `json:"tran_class"`
	CartID          string          `json:"cart_id"`
	CartCurrency    string          `json:"cart_currency"`
	CartAmount      string          `json:"cart_amount"`
	CartDescription string          `json:"cart_description"`
	CustomerDetails customerDetails `json:"customer_details"`
	Callback        string          `json:"callback"`
	Return          string          `json:"return"`
}

type customerDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type paymentResponse struct {
	TranRef     string `json:"tran_ref"`
	RedirectURL string `json:"redirect_url"`
	Code        int    `json:"code"`
	Message     string `json:"message"`
}

// queryRequest asks PayTabs for the authoritative state of a transaction,
// addressed either by its reference or by our cart id.
type queryRequest struct {
	ProfileID string `json:"profile_id"`
	TranRef   string `json:"tran_ref,omitempty"`
	CartID    string `json:"cart_id,omitempty"`
}

// QueryResult is the retrieved transaction state used by the reconciler.
type QueryResult struct {
	TranRef       string `json:"tran_ref"`
	CartID        string `json:"cart_id"`
	CartAmount    string `json:"cart_amount"`
	PaymentResult struct {
		ResponseStatus  string `json:"response_status"`
		ResponseMessage string `json:"response_message"`
	} `json:"payment_result"`
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paytabs request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paytabs request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.serverKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call paytabs")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paytabs response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := gateway.CodeForHTTPStatus(resp.StatusCode)
		return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw)), "paytabs request failed")
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paytabs response")
		}
	}
	return nil
}

// QueryTransaction retrieves the current state of a transaction by its
// reference. Used by the stale-pending reconciler, never by the hot path.
func (c *Client) QueryTransaction(ctx context.Context, tranRef string) (*QueryResult, error) {
	if strings.TrimSpace(tranRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}
	var result QueryResult
	if err := c.post(ctx, "/payment/query", queryRequest{ProfileID: c.profileID, TranRef: tranRef}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// QueryByCartID retrieves the latest transaction for one of our orders. Lets
// the reconciler ask about orders whose callback never arrived, where no
// transaction reference was ever recorded locally.
func (c *Client) QueryByCartID(ctx context.Context, cartID string) (*QueryResult, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	var result QueryResult
	if err := c.post(ctx, "/payment/query", queryRequest{ProfileID: c.profileID, CartID: cartID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
