package config

import (
	"fmt"
	"os"

	"quote-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills in the documented defaults for fields left unset
func (c *Config) ApplyDefaults() {
	if c.Engine.WindowSize == 0 {
		c.Engine.WindowSize = 20
	}
	if c.Engine.CadenceSeconds == 0 {
		c.Engine.CadenceSeconds = 3600 // hourly snapshots
	}
	if c.Engine.MinPeriods == 0 {
		c.Engine.MinPeriods = 1
	}
	if c.Engine.MissingValuePolicy == "" {
		c.Engine.MissingValuePolicy = models.MissingValueCarry
	}
	if c.Engine.LookbackHours == 0 {
		c.Engine.LookbackHours = 168 // 7 days of hourly warm-up
	}
	if c.Storage.DataRetentionDays == 0 {
		c.Storage.DataRetentionDays = 90
	}
	if c.Calendar.Enabled && c.Calendar.MIC == "" {
		c.Calendar.MIC = "xnys"
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	// Port is only used in serve mode, so zero is allowed
	if c.Port != 0 && (c.Port <= 1024 || c.Port > 65535) {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType != "sqlite" && c.Storage.DBType != "postgres" {
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}
	if c.Storage.DataRetentionDays <= 0 {
		return fmt.Errorf("data retention days must be greater than 0")
	}

	// Validate Engine configuration
	if c.Engine.WindowSize <= 0 {
		return fmt.Errorf("window size must be greater than 0")
	}
	if c.Engine.CadenceSeconds <= 0 {
		return fmt.Errorf("cadence must be greater than 0")
	}
	if c.Engine.GapToleranceSeconds < 0 {
		return fmt.Errorf("gap tolerance cannot be negative")
	}
	if c.Engine.MinPeriods < 1 || c.Engine.MinPeriods > c.Engine.WindowSize {
		return fmt.Errorf("min periods must be between 1 and the window size (%d)", c.Engine.WindowSize)
	}
	if c.Engine.MissingValuePolicy != models.MissingValueCarry && c.Engine.MissingValuePolicy != models.MissingValueOmit {
		return fmt.Errorf("invalid missing value policy: %s (must be '%s' or '%s')",
			c.Engine.MissingValuePolicy, models.MissingValueCarry, models.MissingValueOmit)
	}
	if c.Engine.LookbackHours < 0 {
		return fmt.Errorf("lookback hours cannot be negative")
	}
	if c.Engine.StatePath == "" {
		return fmt.Errorf("state path cannot be empty")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
