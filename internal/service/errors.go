package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrReference  = errors.New("unresolved reference")
	ErrValidation = errors.New("invalid input")
	ErrStore      = errors.New("store failure")
)

// NotFoundError reports a missing primary entity.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ReferenceError reports a foreign id that does not resolve. ID is zero
// when the store rejected the write without naming the offending row.
type ReferenceError struct {
	Entity string
	ID     uint
	Err    error
}

func (e *ReferenceError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("unresolved %s reference", e.Entity)
	}
	return fmt.Sprintf("%s %d does not exist", e.Entity, e.ID)
}

func (e *ReferenceError) Is(target error) bool {
	return target == ErrReference
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Err.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Classify turns an error coming out of the store into one of the kinds
// above. Errors that already carry a kind pass through unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrReference),
		errors.Is(err, ErrValidation), errors.Is(err, ErrStore):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &ReferenceError{Entity: "foreign key", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &ValidationError{Err: err}
	default:
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
}
