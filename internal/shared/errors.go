package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error for callers and transports.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindAuthorization    Kind = "authorization"
	KindConflict         Kind = "conflict"
	KindInvalidState     Kind = "invalid_state"
	KindNotFound         Kind = "not_found"
	KindPriceUnavailable Kind = "price_unavailable"
	KindInternal         Kind = "internal"
)

var (
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrAuthorization indicates the acting role lacks the capability.
	ErrAuthorization = errors.New("not authorized")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState indicates a lifecycle transition not permitted from the current state.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPriceUnavailable indicates no tier price applies at any fallback tier.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// Error carries a kind plus a human readable detail. It unwraps to the
// sentinel of its kind so errors.Is keeps working through wrapping.
type Error struct {
	Kind   Kind
	Field  string
	Detail string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.sentinel(), e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.sentinel(), e.Detail)
}

func (e *Error) Unwrap() error {
	return e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindValidation:
		return ErrValidation
	case KindAuthorization:
		return ErrAuthorization
	case KindConflict:
		return ErrConflict
	case KindInvalidState:
		return ErrInvalidState
	case KindNotFound:
		return ErrNotFound
	case KindPriceUnavailable:
		return ErrPriceUnavailable
	}
	return errors.New(string(e.Kind))
}

// Validation builds a validation error for the given field.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// Forbidden builds an authorization error.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Detail: fmt.Sprintf(format, args...)}
}

// Conflict builds a conflict error for the given field.
func Conflict(field, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// InvalidState builds a lifecycle error.
func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Detail: fmt.Sprintf(format, args...)}
}

// NotFound builds a not found error naming the missing entity.
func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf("%s %v not found", entity, id)}
}

// PriceUnavailable builds a pricing error for a product.
func PriceUnavailable(productID int64, tier string) *Error {
	return &Error{Kind: KindPriceUnavailable, Field: "unit_price", Detail: fmt.Sprintf("no price for product %d at tier %s or any fallback tier", productID, tier)}
}

// KindOf reports the kind of err, KindInternal when it is not a domain error.
func KindOf(err error) Kind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrAuthorization):
		return KindAuthorization
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPriceUnavailable):
		return KindPriceUnavailable
	}
	return KindInternal
}
