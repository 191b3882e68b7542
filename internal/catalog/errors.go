package catalog

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("product not found")
	ErrTransport    = errors.New("remote store unreachable")
	ErrStorageQuota = errors.New("local storage quota exceeded")
	ErrIntegrity    = errors.New("malformed local data")
)

// ValidationError carries the message shown to the admin caller
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func validationErr(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// FetchError describes a failed call to a product source. It matches ErrTransport.
type FetchError struct {
	Source string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: http status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrTransport }
