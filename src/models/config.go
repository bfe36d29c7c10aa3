package models

// Missing value policies for fields absent from a snapshot
const (
	MissingValueCarry = "carry" // report the unchanged window's stdev
	MissingValueOmit  = "omit"  // report no value for the field
)

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	Storage  MStorageConfig  `yaml:"storage"`
	Engine   MEngineConfig   `yaml:"engine"`
	Calendar MCalendarConfig `yaml:"calendar"`
	Export   MExportConfig   `yaml:"export"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	DataRetentionDays  int    `yaml:"data_retention_days"`
}

type MEngineConfig struct {
	WindowSize          int    `yaml:"window_size"`
	CadenceSeconds      int64  `yaml:"cadence_seconds"`
	GapToleranceSeconds int64  `yaml:"gap_tolerance_seconds"`
	MinPeriods          int    `yaml:"min_periods"`
	MissingValuePolicy  string `yaml:"missing_value_policy"` // "carry" or "omit"
	LookbackHours       int    `yaml:"lookback_hours"`
	StatePath           string `yaml:"state_path"`
}

type MCalendarConfig struct {
	Enabled bool   `yaml:"enabled"`
	MIC     string `yaml:"mic"` // ISO 10383 market identifier, e.g. "xnys"
}

type MExportConfig struct {
	CSVPath string `yaml:"csv_path"`
}
