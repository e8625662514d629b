package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur while computing reliability metrics.
var (
	// ErrInvalidCategory indicates that a grade label is not part of the
	// fixed category set of the GradeScale in use.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrDimensionMismatch indicates that raters or trials have unequal item
	// counts where a rectangular rating matrix is required.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInsufficientData indicates that too few raters, trials, or items were
	// supplied for a statistic to be defined.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// InvalidCategoryError reports a grade label outside the fixed category set.
// Item and Rater locate the offending rating when it came from a rating
// matrix; Item is -1 when the label was looked up directly.
type InvalidCategoryError struct {
	// Label is the rejected grade label.
	Label string

	// Item is the zero-based item index of the rating, or -1.
	Item int

	// Rater names the rater or trial that produced the rating.
	Rater string

	// Suggestion is the closest known label, if one is near enough.
	Suggestion string
}

// Error implements the error interface for InvalidCategoryError.
func (e *InvalidCategoryError) Error() string {
	msg := fmt.Sprintf("invalid category: label=%q", e.Label)
	if e.Item >= 0 {
		msg += fmt.Sprintf(", item=%d", e.Item)
	}
	if e.Rater != "" {
		msg += fmt.Sprintf(", rater=%s", e.Rater)
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Unwrap returns ErrInvalidCategory so callers can match with errors.Is.
func (e *InvalidCategoryError) Unwrap() error { return ErrInvalidCategory }

// DimensionMismatchError reports a rater or trial whose item count differs
// from the rest of the matrix.
type DimensionMismatchError struct {
	// Operation names the statistic that required a rectangular matrix.
	Operation string

	// Rater names the series with the unexpected length.
	Rater string

	// Expected is the item count established by the first series.
	Expected int

	// Got is the item count of the offending series.
	Got int
}

// Error implements the error interface for DimensionMismatchError.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: operation=%s, rater=%s, expected=%d items, got=%d",
		e.Operation, e.Rater, e.Expected, e.Got)
}

// Unwrap returns ErrDimensionMismatch.
func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// InsufficientDataError reports that a statistic received fewer raters,
// trials, or items than it needs.
type InsufficientDataError struct {
	Operation string
	What      string
	Need      int
	Got       int
}

// Error implements the error interface for InsufficientDataError.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: operation=%s, need at least %d %s, got %d",
		e.Operation, e.Need, e.What, e.Got)
}

// Unwrap returns ErrInsufficientData.
func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(operation, what string, need, got int) *InsufficientDataError {
	return &InsufficientDataError{
		Operation: operation,
		What:      what,
		Need:      need,
		Got:       got,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap returns ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
