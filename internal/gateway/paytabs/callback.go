package paytabs

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
)

// authorizedStatus is PayTabs' "A" response code, reported either as a
// top-level respStatus (redirect form posts) or nested under
// payment_result.response_status (server callbacks). Integration modes vary,
// so both locations are checked.
const authorizedStatus = "A"

// Callback is a parsed PayTabs callback with the flat field view the
// signature is computed over.
type Callback struct {
	Fields  map[string]string
	CartID  string
	TranRef string
	Amount  decimal.Decimal
	status  string
}

// ParseCallback decodes a callback body, which PayTabs delivers either
// form-encoded or as JSON depending on integration mode.
func ParseCallback(body []byte, contentType string) (*Callback, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	fields := map[string]string{}
	switch {
	case strings.Contains(mediaType, "json"):
		var raw map[string]any
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode paytabs callback")
		}
		flatten("", raw, fields)
	default:
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse paytabs callback form")
		}
		for k := range values {
			fields[k] = values.Get(k)
		}
	}

	cb := &Callback{
		Fields:  fields,
		CartID:  fields["cart_id"],
		TranRef: fields["tran_ref"],
	}
	if raw := fields["cart_amount"]; raw != "" {
		if amount, err := decimal.NewFromString(raw); err == nil {
			cb.Amount = amount
		}
	}

	cb.status = fields["respStatus"]
	if cb.status == "" {
		cb.status = fields["payment_result.response_status"]
	}
	return cb, nil
}

// Normalize verifies the signature and produces the provider-agnostic
// result. An invalid signature still yields a Result (with SignatureValid
// false) so the handler can log and acknowledge without acting on it.
func (c *Callback) Normalize(serverKey string) gateway.Result {
	normalized := enums.NormalizedFailed
	if c.status == authorizedStatus {
		normalized = enums.NormalizedSuccess
	}
	return gateway.Result{
		Provider:          enums.ProviderPayTabs,
		OrderID:           c.CartID,
		ProviderPaymentID: c.TranRef,
		RawStatus:         c.status,
		Normalized:        normalized,
		Amount:            c.Amount,
		SignatureValid:    VerifySignature(c.Fields, serverKey),
	}
}

// NormalizeQuery maps a retrieved transaction onto the shared result shape.
// Query results come over the authenticated API, so no signature applies.
func NormalizeQuery(q *QueryResult) gateway.Result {
	status := q.PaymentResult.ResponseStatus
	var normalized enums.NormalizedStatus
	switch status {
	case authorizedStatus:
		normalized = enums.NormalizedSuccess
	case "P", "H":
		// still pending or on hold at the processor
		normalized = enums.NormalizedPending
	default:
		normalized = enums.NormalizedFailed
	}
	amount := decimal.Zero
	if q.CartAmount != "" {
		if parsed, err := decimal.NewFromString(q.CartAmount); err == nil {
			amount = parsed
		}
	}
	return gateway.Result{
		Provider:          enums.ProviderPayTabs,
		OrderID:           q.CartID,
		ProviderPaymentID: q.TranRef,
		RawStatus:         status,
		Normalized:        normalized,
		Amount:            amount,
		SignatureValid:    true,
	}
}

// flatten collapses nested JSON objects to dotted keys so the signature
// view matches the flat form-encoded variant.
func flatten(prefix string, value map[string]any, out map[string]string) {
	for k, v := range value {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch typed := v.(type) {
		case map[string]any:
			flatten(key, typed, out)
		case string:
			out[key] = typed
		case float64:
			out[key] = trimFloat(typed)
		case bool:
			out[key] = fmt.Sprintf("%t", typed)
		case nil:
			// omitted from the signature view
		default:
			out[key] = fmt.Sprintf("%v", typed)
		}
	}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	if strings.HasSuffix(s, ".00") {
		return strings.TrimSuffix(s, ".00")
	}
	return s
}
