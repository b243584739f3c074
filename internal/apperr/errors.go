package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP layer.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindAuthentication  Kind = "AuthenticationError"
	KindInvalidToken    Kind = "InvalidTokenError"
	KindSessionExpired  Kind = "SessionExpiredError"
	KindAccountInactive Kind = "AccountInactiveError"
	KindForbidden       Kind = "ForbiddenError"
	KindNoData          Kind = "NoDataError"
	KindNotFound        Kind = "NotFoundError"
	KindConflict        Kind = "ConflictError"
	KindRateLimit       Kind = "RateLimitError"
	KindDatabase        Kind = "DatabaseError"
	KindUpstream        Kind = "UpstreamError"
	KindInternal        Kind = "InternalError"
)

var statusByKind = map[Kind]int{
	KindValidation:      http.StatusBadRequest,
	KindAuthentication:  http.StatusUnauthorized,
	KindInvalidToken:    http.StatusUnauthorized,
	KindSessionExpired:  http.StatusUnauthorized,
	KindAccountInactive: http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNoData:          http.StatusNotFound,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindRateLimit:       http.StatusTooManyRequests,
	KindDatabase:        http.StatusInternalServerError,
	KindUpstream:        http.StatusBadGateway,
	KindInternal:        http.StatusInternalServerError,
}

// Status returns the HTTP status code for the kind. Unknown kinds map to 500.
func (k Kind) Status() int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the typed error returned across service boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether any error in the chain is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

func Validation(format string, args ...any) *Error { return New(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error   { return New(KindNotFound, format, args...) }
func NoData(format string, args ...any) *Error     { return New(KindNoData, format, args...) }
func Conflict(format string, args ...any) *Error   { return New(KindConflict, format, args...) }
func InvalidToken(msg string) *Error               { return New(KindInvalidToken, "%s", msg) }

func Upstream(cause error, format string, args ...any) *Error {
	return Wrap(KindUpstream, cause, format, args...)
}

func Database(cause error, format string, args ...any) *Error {
	return Wrap(KindDatabase, cause, format, args...)
}

func Internal(cause error, format string, args ...any) *Error {
	return Wrap(KindInternal, cause, format, args...)
}
