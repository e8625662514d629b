package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-concord/infrastructure/engines"
	"github.com/ahrav/go-concord/internal/domain"
)

// RegisterAnalysisValidators registers the custom validation functions used
// by AnalysisConfig and the engine configurations it embeds.
// RegisterAnalysisValidators adds the iccform field validator and a
// struct-level check of the grade scale.
// RegisterAnalysisValidators returns an error if any validator registration
// fails.
func RegisterAnalysisValidators(v *validator.Validate) error {
	// ICC forms contain commas, which the oneof tag cannot express.
	if err := v.RegisterValidation("iccform", validateICCForm); err != nil {
		return fmt.Errorf("failed to register iccform validator: %w", err)
	}

	v.RegisterStructValidation(validateAnalysisScale, AnalysisConfig{})

	return nil
}

// validateICCForm accepts the six Shrout & Fleiss forms, e.g. "2,1" or "3,k".
func validateICCForm(fl validator.FieldLevel) bool {
	return engines.IsICCForm(domain.ICCForm(fl.Field().String()))
}

// validateAnalysisScale checks the grade scale as a whole.
// Values must be strictly monotonic in declaration order so that category
// index distance agrees with numeric distance, and a ratio level needs
// strictly positive values.
func validateAnalysisScale(sl validator.StructLevel) {
	config, ok := sl.Current().Interface().(AnalysisConfig)
	if !ok || len(config.Scale) < 2 {
		return
	}

	descending := config.Scale[0].Value > config.Scale[1].Value
	for i := 1; i < len(config.Scale); i++ {
		prev, cur := config.Scale[i-1].Value, config.Scale[i].Value
		if (descending && cur >= prev) || (!descending && cur <= prev) {
			sl.ReportError(config.Scale, "Scale", "Scale", "gradeorder", "")
			break
		}
	}

	if config.Agreement.Level == domain.LevelRatio {
		for _, g := range config.Scale {
			if g.Value <= 0 {
				sl.ReportError(config.Agreement.Level, "Agreement.Level", "Level", "ratioscale", "")
				return
			}
		}
	}
}

// validateSemver checks for a X.Y.Z version string.
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3
}

// registerCustomValidators registers every validator the config loader
// needs.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	if err := RegisterAnalysisValidators(v); err != nil {
		return fmt.Errorf("failed to register analysis validators: %w", err)
	}

	return nil
}
