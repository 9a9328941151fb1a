package types

// SuccessEnvelope wraps every successful response body. Webhook endpoints use
// it too, with a nil Data, so providers always see a consistent 200 shape.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. Message is safe for end users; Details
// carries field-level validation output when the error code allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
