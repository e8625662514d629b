package testutils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-concord/internal/domain"
)

// NewTestValidator creates a new validator instance for testing.
// This provides a consistent validator configuration across all tests.
func NewTestValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// ValidateDatasetConfig checks a generator config against its struct tags,
// reporting every failing field in one domain.ValidationError.
func ValidateDatasetConfig(cfg DatasetConfig) error {
	err := NewTestValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: dataset config: %w", domain.ErrInvalidConfiguration, err)
	}

	verr := domain.NewValidationError("DatasetConfig")
	for _, fe := range fieldErrs {
		verr.AddError(fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return verr
}
