package apperr

import "errors"

// Kind classifies a failure so the transport layer can map it to a status
// code without inspecting message text.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Conflict
	Forbidden
	Invalid
)

// Error is a typed failure returned by the domain layer.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or Internal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is a typed error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
