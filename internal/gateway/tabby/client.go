package tabby

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

// RetrievedAuthorized is the canonical status spelling on a *retrieved*
// payment. It is uppercase, unlike the lowercase `status` field Tabby puts
// in webhook bodies; the two must never be conflated.
const RetrievedAuthorized = "AUTHORIZED"

// RetrievedClosed marks a retrieved payment whose capture has completed.
const RetrievedClosed = "CLOSED"

var (
	errSecretKeyRequired    = errors.New("tabby secret key is required")
	errMerchantCodeRequired = errors.New("tabby merchant code is required")
	errLoggerRequired       = errors.New("tabby logger is required")
)

// Client talks to the Tabby checkout and payments API.
type Client struct {
	http         *http.Client
	baseURL      string
	secretKey    string
	merchantCode string
	logger       *logger.Logger
}

// NewClient initializes the Tabby wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.TabbyConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	merchantCode := strings.TrimSpace(cfg.MerchantCode)
	if merchantCode == "" {
		return nil, errMerchantCodeRequired
	}

	c := &Client{
		http:         &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:    secretKey,
		merchantCode: merchantCode,
		logger:       logg,
	}

	logg.Info(ctx, "tabby client initialized")
	return c, nil
}

// Payment is the retrieved payment state, the only view trusted for
// reconciliation decisions.
type Payment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount string `json:"amount"`
	Order  struct {
		ReferenceID string `json:"reference_id"`
	} `json:"order"`
}

// GetPayment pulls the authoritative payment state. Webhook bodies are
// treated as a hint only; every decision re-reads through here.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/api/v2/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

type captureRequest struct {
	Amount string `json:"amount"`
}

// CapturePayment claims the authorized funds. Only a 2xx response means the
// money moved; anything else leaves the authorization uncaptured.
func (c *Client) CapturePayment(ctx context.Context, paymentID, amount string) error {
	if strings.TrimSpace(paymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	return c.do(ctx, http.MethodPost, "/api/v2/payments/"+paymentID+"/captures", captureRequest{Amount: amount}, nil)
}

func (c *Client) createSession(ctx context.Context, payload checkoutRequest, out *checkoutResponse) error {
	return c.do(ctx, http.MethodPost, "/api/v2/checkout", payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode tabby request")
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build tabby request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call tabby")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read tabby response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := gateway.CodeForHTTPStatus(resp.StatusCode)
		return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw)), "tabby request failed")
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode tabby response")
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
