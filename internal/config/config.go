// Package config provides configuration structures and loading for abridge.
package config

// Config represents the complete application configuration.
type Config struct {
	Source      DatabaseConfig   `yaml:"source" mapstructure:"source"`
	Destination DatabaseConfig   `yaml:"destination" mapstructure:"destination"`
	Schema      SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	Model       ModelConfig      `yaml:"model" mapstructure:"model"`
	Extraction  ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Logging     LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// SchemaConfig lists the tables the schema discovery step reads from
// the source database before the extraction model is resolved against
// it (internal/model.Load needs a *schema.Schema up front, so the set
// of tables it can reference has to be named somewhere outside the
// model file itself).
type SchemaConfig struct {
	Tables []string `yaml:"tables" mapstructure:"tables"`
}

// DatabaseConfig represents a connection to one of the supported
// adapters (sqlite, postgresql).
type DatabaseConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"` // disable, prefer, require (postgres only)
	Path     string `yaml:"path" mapstructure:"path"`       // file path (sqlite only)
}

// ModelConfig points at the extraction-model YAML file consumed by
// internal/model.
type ModelConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ExtractionConfig carries the engine's diagnostic knobs (spec.md §6's
// exposed Engine surface).
type ExtractionConfig struct {
	Explain   bool `yaml:"explain" mapstructure:"explain"`
	Verbosity int  `yaml:"verbosity" mapstructure:"verbosity"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Driver:  "postgres",
			Port:    5432,
			SSLMode: "prefer",
		},
		Destination: DatabaseConfig{
			Driver:  "postgres",
			Port:    5432,
			SSLMode: "prefer",
		},
		Extraction: ExtractionConfig{
			Verbosity: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
