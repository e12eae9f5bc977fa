package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateDatabase("source", &c.Source)...)
	errors = append(errors, c.validateDatabase("destination", &c.Destination)...)

	if c.Model.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "model.path",
			Message: "path is required",
		})
	}

	if c.Extraction.Verbosity < 0 {
		errors = append(errors, ValidationError{
			Field:   "extraction.verbosity",
			Message: "verbosity cannot be negative",
		})
	}

	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[db.Driver] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".driver",
			Message: "driver must be 'postgres' or 'sqlite'",
		})
	}

	switch db.Driver {
	case "sqlite":
		if db.Path == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".path",
				Message: "path is required for sqlite",
			})
		}
	case "postgres":
		if db.Host == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".host",
				Message: "host is required",
			})
		}
		if db.Port <= 0 || db.Port > 65535 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".port",
				Message: "port must be between 1 and 65535",
			})
		}
		if db.User == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".user",
				Message: "user is required",
			})
		}
		if db.Database == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".database",
				Message: "database name is required",
			})
		}
		validSSLModes := map[string]bool{"disable": true, "prefer": true, "require": true, "": true}
		if !validSSLModes[db.SSLMode] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".sslmode",
				Message: "sslmode must be 'disable', 'prefer', or 'require'",
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
