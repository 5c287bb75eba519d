package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here. Validation
// accepts both uppercase and lowercase log levels.
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
	if cfg.Storage.MediaContainer == cfg.Storage.ArchiveContainer {
		return fmt.Errorf("storage: media_container and archive_container must differ (both %q)",
			cfg.Storage.MediaContainer)
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.API.Enabled &&
		cfg.Server.Metrics.Port == cfg.Server.API.Port {
		return fmt.Errorf("server: metrics and api cannot share port %d", cfg.Server.API.Port)
	}

	if cfg.Stats.Backend == "redis" && cfg.Stats.Redis.Addr == "" {
		return fmt.Errorf("stats.redis.addr is required when stats.backend is redis")
	}

	if cfg.Cleanup.Enabled && !cfg.retention().Enabled() {
		return fmt.Errorf("cleanup: enabled but snapshot.max_versions and snapshot.max_age_days are both 0")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
