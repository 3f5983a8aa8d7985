package config

import "time"

// Config holds all alchscan configuration. Treat it as read-only once
// Validate has run.
type Config struct {
	APIKey          string        `mapstructure:"api_key"`
	Address         string        `mapstructure:"address"`
	Network         string        `mapstructure:"network"`
	BaseURL         string        `mapstructure:"base_url"`
	Concurrency     int           `mapstructure:"concurrency"`
	MaxRecords      int           `mapstructure:"max_records"`
	PageSize        int           `mapstructure:"page_size"`
	Output          string        `mapstructure:"output"`
	Direction       string        `mapstructure:"direction"` // "from" | "to" | "both"
	Categories      []string      `mapstructure:"categories"`
	SplitCategories bool          `mapstructure:"split_categories"`
	WithMetadata    bool          `mapstructure:"with_metadata"`
	Strict          bool          `mapstructure:"strict"`
	MaxPages        int           `mapstructure:"max_pages"` // per stream, 0 = unlimited
	Timeout         time.Duration `mapstructure:"timeout"`
	Cache           string        `mapstructure:"cache"`        // bbolt page cache path, "" = off
	MetricsFile     string        `mapstructure:"metrics_file"` // Prometheus textfile, "" = off
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`

	// internal: directory the config file was looked up in
	configDir string
	// internal: config file actually read, "" if none
	configFile string
}
