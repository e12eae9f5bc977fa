package config

import (
	"strings"
	"testing"
)

func TestValidConfig(t *testing.T) {
	cfg := &Config{
		Source: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "abridge",
			Password: "pass",
			Database: "testdb",
			SSLMode:  "disable",
		},
		Destination: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5433,
			User:     "abridge",
			Password: "pass",
			Database: "archivedb",
			SSLMode:  "disable",
		},
		Model: ModelConfig{Path: "./model.yaml"},
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestMissingSourceHost(t *testing.T) {
	cfg := &Config{
		Source: DatabaseConfig{
			Driver:   "postgres",
			Port:     5432,
			User:     "abridge",
			Database: "testdb",
		},
		Destination: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "abridge",
			Database: "archivedb",
		},
		Model: ModelConfig{Path: "./model.yaml"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("expected validation error for missing source host")
	}
	if !strings.Contains(err.Error(), "source.host") {
		t.Errorf("expected error to mention 'source.host', got: %v", err)
	}
}

func TestInvalidPort(t *testing.T) {
	cfg := &Config{
		Source: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     99999, // Invalid port
			User:     "abridge",
			Database: "testdb",
		},
		Destination: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "abridge",
			Database: "archivedb",
		},
		Model: ModelConfig{Path: "./model.yaml"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("expected validation error for invalid port")
	}
	if !strings.Contains(err.Error(), "source.port") {
		t.Errorf("expected error to mention 'source.port', got: %v", err)
	}
}

func TestMissingModelPath(t *testing.T) {
	cfg := &Config{
		Source: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "abridge",
			Database: "testdb",
		},
		Destination: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "abridge",
			Database: "archivedb",
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("expected validation error for missing model path")
	}
	if !strings.Contains(err.Error(), "model.path") {
		t.Errorf("expected error about model.path, got: %v", err)
	}
}

func TestInvalidSSLMode(t *testing.T) {
	cfg := &Config{
		Source: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "abridge",
			Database: "testdb",
			SSLMode:  "invalid_mode",
		},
		Destination: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "abridge",
			Database: "archivedb",
		},
		Model: ModelConfig{Path: "./model.yaml"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("expected validation error for invalid sslmode")
	}
	if !strings.Contains(err.Error(), "sslmode") {
		t.Errorf("expected error about sslmode, got: %v", err)
	}
}

func TestSqliteRequiresPath(t *testing.T) {
	cfg := &Config{
		Source:      DatabaseConfig{Driver: "sqlite"},
		Destination: DatabaseConfig{Driver: "sqlite", Path: "/tmp/dest.db"},
		Model:       ModelConfig{Path: "./model.yaml"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("expected validation error for sqlite source missing path")
	}
	if !strings.Contains(err.Error(), "source.path") {
		t.Errorf("expected error about source.path, got: %v", err)
	}
}

func TestInvalidDriver(t *testing.T) {
	cfg := &Config{
		Source:      DatabaseConfig{Driver: "mysql", Path: "x"},
		Destination: DatabaseConfig{Driver: "sqlite", Path: "/tmp/dest.db"},
		Model:       ModelConfig{Path: "./model.yaml"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("expected validation error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "source.driver") {
		t.Errorf("expected error about source.driver, got: %v", err)
	}
}

func TestInvalidLoggingLevel(t *testing.T) {
	cfg := &Config{
		Source:      DatabaseConfig{Driver: "sqlite", Path: "/tmp/src.db"},
		Destination: DatabaseConfig{Driver: "sqlite", Path: "/tmp/dest.db"},
		Model:       ModelConfig{Path: "./model.yaml"},
		Logging:     LoggingConfig{Level: "loud"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("expected validation error for invalid logging level")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("expected error about logging.level, got: %v", err)
	}
}

func TestMultipleErrors(t *testing.T) {
	cfg := &Config{
		Source:      DatabaseConfig{},
		Destination: DatabaseConfig{},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("expected multiple validation errors")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "source.driver") {
		t.Error("expected error about source.driver")
	}
	if !strings.Contains(errStr, "destination.driver") {
		t.Error("expected error about destination.driver")
	}
	if !strings.Contains(errStr, "model.path") {
		t.Error("expected error about model.path")
	}
}
