package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrFileTooLarge     = errors.New("file too large")
	ErrNoDocumentSource = errors.New("no document source")
	ErrQueryInFlight    = errors.New("query already in flight")
	ErrDocumentNotFound = errors.New("document not found")
	ErrTemporary        = errors.New("temporary failure")
	ErrNetwork          = errors.New("network failure")
	ErrBackend          = errors.New("backend error")
	ErrCancelled        = errors.New("cancelled")
	ErrSessionClosed    = errors.New("session closed")
	ErrStateMismatch    = errors.New("authorization state mismatch")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// BackendError carries an `{"error": ...}` payload returned inside an
// otherwise successful response. Message is shown to the user verbatim.
type BackendError struct {
	Operation string
	Message   string
}

func (e *BackendError) Error() string {
	return e.Message
}

func (e *BackendError) Unwrap() error {
	return ErrBackend
}
