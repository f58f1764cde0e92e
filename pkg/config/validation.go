package config

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/strata/pkg/storage"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Mounts) == 0 {
		return fmt.Errorf("mounts: at least one mount must be configured")
	}

	names := make(map[string]bool)
	for i, mount := range cfg.Mounts {
		if names[mount.Name] {
			return fmt.Errorf("mounts[%d]: duplicate mount name %q", i, mount.Name)
		}
		names[mount.Name] = true
	}

	if !slices.Contains(storage.ChecksumAlgos(), cfg.Defaults.ChecksumAlgo) {
		return fmt.Errorf("defaults.checksum_algo: unsupported algorithm %q (supported: %v)",
			cfg.Defaults.ChecksumAlgo, storage.ChecksumAlgos())
	}

	return nil
}

// validateOptions validates a decoded adapter configuration.
func validateOptions(mountType string, options any) error {
	if err := validate.Struct(options); err != nil {
		return fmt.Errorf("%s options: %w", mountType, formatValidationError(err))
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
