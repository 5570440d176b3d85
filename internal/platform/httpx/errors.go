// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/tierquote/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var domainErr *shared.Error
	field := ""
	detail := ""
	if errors.As(err, &domainErr) {
		field = domainErr.Field
		detail = domainErr.Detail
	} else if err != nil {
		detail = err.Error()
	}

	switch shared.KindOf(err) {
	case shared.KindValidation:
		problem(w, http.StatusBadRequest, "Validation Failed", shared.KindValidation, field, detail)
	case shared.KindAuthorization:
		problem(w, http.StatusForbidden, "Forbidden", shared.KindAuthorization, field, detail)
	case shared.KindNotFound:
		problem(w, http.StatusNotFound, "Not Found", shared.KindNotFound, field, detail)
	case shared.KindConflict:
		problem(w, http.StatusConflict, "Conflict", shared.KindConflict, field, detail)
	case shared.KindInvalidState:
		problem(w, http.StatusConflict, "Invalid State", shared.KindInvalidState, field, detail)
	case shared.KindPriceUnavailable:
		problem(w, http.StatusUnprocessableEntity, "Price Unavailable", shared.KindPriceUnavailable, field, detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Unauthorized writes a 401 problem with a bearer challenge.
func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tierquote"`)
	Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
}
