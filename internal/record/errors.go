package record

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by DecodeError.
var (
	// ErrMissingField indicates a required field is absent from an item.
	ErrMissingField = errors.New("missing field")

	// ErrTypeMismatch indicates a field holds a value of the wrong kind.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidTensor indicates a tensor payload inconsistent with its dtype and shape.
	ErrInvalidTensor = errors.New("invalid tensor")
)

// DecodeError reports a structural problem with one field of an item.
type DecodeError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("record: field %q: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// At prefixes the field path with a parent name, for errors surfacing from child items.
func At(parent string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return &DecodeError{Field: parent + "." + de.Field, Err: de.Err}
	}
	return err
}

func missing(field string) error {
	return &DecodeError{Field: field, Err: ErrMissingField}
}

func mismatch(field, want string, got any) error {
	return &DecodeError{Field: field, Err: fmt.Errorf("%w: want %s, got %T", ErrTypeMismatch, want, got)}
}
