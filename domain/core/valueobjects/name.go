package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"valuetree/domain/config"
	pkgerrors "valuetree/pkg/errors"
)

// NormalizeName trims a node name and checks it against the default limits
func NormalizeName(name string) (string, error) {
	return NormalizeNameWithConfig(name, config.DefaultDomainConfig())
}

// NormalizeNameWithConfig trims a node name and checks it against cfg
func NormalizeNameWithConfig(name string, cfg *config.DomainConfig) (string, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", pkgerrors.NewValidationError("name cannot be empty")
	}

	if utf8.RuneCountInString(name) > cfg.MaxNameLength {
		return "", pkgerrors.NewValidationError(
			fmt.Sprintf("name exceeds maximum length of %d characters", cfg.MaxNameLength))
	}

	return name, nil
}

// ValidateRating checks an importance or connection value against the configured range
func ValidateRating(field string, value int, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if value < cfg.MinRating || value > cfg.MaxRating {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("%s must be between %d and %d, got %d", field, cfg.MinRating, cfg.MaxRating, value)).
			WithDetails(map[string]interface{}{"field": field, "value": value})
	}
	return nil
}
