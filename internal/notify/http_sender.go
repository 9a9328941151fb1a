package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mazaj-interiors/payments-backend/pkg/config"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
)

// HTTPSender forwards emails to the templated-email collaborator service.
type HTTPSender struct {
	http      *http.Client
	baseURL   string
	authToken string
	from      string
}

func NewHTTPSender(cfg config.NotifyConfig) (*HTTPSender, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.EmailServiceURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("email service url is required")
	}
	return &HTTPSender{
		http:      &http.Client{Timeout: cfg.EmailTimeout},
		baseURL:   baseURL,
		authToken: cfg.EmailAuthToken,
		from:      cfg.FromAddress,
	}, nil
}

type sendRequest struct {
	Trigger   string         `json:"trigger"`
	From      string         `json:"from"`
	Recipient string         `json:"recipient"`
	Variables map[string]any `json:"variables"`
}

func (s *HTTPSender) SendTemplatedEmail(ctx context.Context, trigger, recipient string, variables map[string]any) error {
	payload, err := json.Marshal(sendRequest{
		Trigger:   trigger,
		From:      s.from,
		Recipient: recipient,
		Variables: variables,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode email request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/emails/send", bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build email request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call email service")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)), "email service rejected send")
	}
	return nil
}
