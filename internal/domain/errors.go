package domain

import "errors"

// ErrorKind is the stable, machine-readable kind of a pipeline error.
type ErrorKind string

const (
	KindRoutingFailed            ErrorKind = "routing_failed"
	KindHandlerUnavailable       ErrorKind = "handler_unavailable"
	KindServiceDegraded          ErrorKind = "service_degraded"
	KindPolicyViolationPrevented ErrorKind = "policy_violation_prevented"
	KindConsolidationConflict    ErrorKind = "consolidation_conflict"
	KindPersistenceFailure       ErrorKind = "persistence_failure"
	KindInvalidRequest           ErrorKind = "invalid_request"
	KindCancelled                ErrorKind = "cancelled"
)

// Sentinel errors for errors.Is checks.
var (
	ErrRoutingFailed      = errors.New("routing failed")
	ErrHandlerUnavailable = errors.New("handler unavailable")
	ErrServiceDegraded    = errors.New("service degraded")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrCancelled          = errors.New("request cancelled")
)

// userMessages are the only texts a caller ever sees for a failure.
var userMessages = map[ErrorKind]string{
	KindRoutingFailed:      "Sorry, I could not understand that request. Try rephrasing it.",
	KindServiceDegraded:    "The assistant is temporarily unable to answer. Please retry shortly.",
	KindPersistenceFailure: "Your message could not be saved. Please retry.",
	KindInvalidRequest:     "The request was invalid.",
	KindCancelled:          "The request was cancelled.",
}

// Error is a pipeline error with a stable kind.
type Error struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Err       error
}

// NewError builds an Error with the fixed user message for its kind.
func NewError(kind ErrorKind, err error) *Error {
	e := &Error{Kind: kind, Message: userMessages[kind], Err: err}
	switch kind {
	case KindServiceDegraded, KindPersistenceFailure:
		e.Retryable = true
	}
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ErrorResponse is the JSON error model returned to callers.
// It never carries raw error text.
type ErrorResponse struct {
	Code      ErrorKind `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// ToResponse converts any error into a safe response.
func ToResponse(err error) ErrorResponse {
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if msg == "" {
			msg = userMessages[e.Kind]
		}
		return ErrorResponse{Code: e.Kind, Message: msg, Retryable: e.Retryable}
	}
	return ErrorResponse{Code: "internal_error", Message: "An internal error occurred."}
}
