package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrForbidden is returned when the acting user may not perform an operation.
var ErrForbidden = errors.New("permission denied")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// StorageError wraps any failure of the key-value store (serialization, quota, connection).
// The operation that hit it is aborted; nothing is partially written.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func NewStorageError(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Err: err}
}

func (err *StorageError) Error() string {
	if err.Key == "" {
		return fmt.Sprintf("storage %s: %v", err.Op, err.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", err.Op, err.Key, err.Err)
}

func (err *StorageError) Unwrap() error { return err.Err }

type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (err *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", err.Entity, err.ID)
}

type DuplicateIDError struct {
	Entity string
	ID     string
}

func NewDuplicateIDError(entity, id string) error {
	return &DuplicateIDError{Entity: entity, ID: id}
}

func (err *DuplicateIDError) Error() string {
	return fmt.Sprintf("a %s with id %q already exists", err.Entity, err.ID)
}

// benign errors are informational: the state is consistent and nothing needs refreshing.
type benign struct {
	message string
}

func NewBenignError(msg string) error {
	return &benign{message: msg}
}

func (b benign) Error() string {
	return b.message
}

func IsBenign(err error) bool {
	_, ok := errors.Cause(err).(*benign)
	return ok
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsDuplicateID(err error) bool {
	_, ok := errors.Cause(err).(*DuplicateIDError)
	return ok
}

func IsStorage(err error) bool {
	_, ok := errors.Cause(err).(*StorageError)
	return ok
}
