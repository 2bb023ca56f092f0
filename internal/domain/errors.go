package domain

// ErrorKind classifies an engine error for transport mapping.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "INVALID_INPUT"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindStateMismatch      ErrorKind = "STATE_MISMATCH"
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"
	KindConfigMissing      ErrorKind = "CONFIG_MISSING"
	KindInternal           ErrorKind = "INTERNAL"
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the engine error type. Message is surfaced verbatim to clients;
// Fields is populated for INVALID_INPUT only.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// Is reports kind equality so errors.Is(err, domain.ErrNotFound) matches
// message-carrying errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrStateMismatch      = &Error{Kind: KindStateMismatch}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrConfigMissing      = &Error{Kind: KindConfigMissing}
	ErrInternal           = &Error{Kind: KindInternal}
)

// NewInvalidInput builds an INVALID_INPUT error with per-field detail.
func NewInvalidInput(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Fields: fields}
}

// NewForbidden builds a FORBIDDEN error.
func NewForbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NewNotFound builds a NOT_FOUND error.
func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewStateMismatch builds a STATE_MISMATCH error.
func NewStateMismatch(message string) *Error {
	return &Error{Kind: KindStateMismatch, Message: message}
}

// NewInvariantViolation builds an INVARIANT_VIOLATION error.
func NewInvariantViolation(message string) *Error {
	return &Error{Kind: KindInvariantViolation, Message: message}
}

// NewConfigMissing builds a CONFIG_MISSING error.
func NewConfigMissing(message string) *Error {
	return &Error{Kind: KindConfigMissing, Message: message}
}

// KindOf extracts the kind from any error, defaulting to INTERNAL.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}
