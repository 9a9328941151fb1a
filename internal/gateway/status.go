package gateway

import (
	"net/http"

	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
)

// CodeForHTTPStatus maps a provider HTTP status onto the domain error code
// used for logging and (where relevant) client responses.
func CodeForHTTPStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
