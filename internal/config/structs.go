//nolint:lll
package config

// Config represents the complete configuration for qrengine.
// It includes settings for all commands (generate, scan, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Generation defaults
	Generate GenerateConfig `mapstructure:"generate" yaml:"generate" json:"generate"`

	// Scan defaults
	Scan ScanConfig `mapstructure:"scan" yaml:"scan" json:"scan"`

	// Resource limits
	Limits LimitsConfig `mapstructure:"limits" yaml:"limits" json:"limits"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// GenerateConfig contains symbol generation defaults.
type GenerateConfig struct {
	ErrorCorrection string `mapstructure:"error_correction" yaml:"error_correction" json:"error_correction"`
	BoxSize         int    `mapstructure:"box_size" yaml:"box_size" json:"box_size"`
	Border          int    `mapstructure:"border" yaml:"border" json:"border"`
	Format          string `mapstructure:"format" yaml:"format" json:"format"`
	FillColor       string `mapstructure:"fill_color" yaml:"fill_color" json:"fill_color"`
	BackColor       string `mapstructure:"back_color" yaml:"back_color" json:"back_color"`
	Verify          bool   `mapstructure:"verify" yaml:"verify" json:"verify"`
	VerifyBackend   string `mapstructure:"verify_backend" yaml:"verify_backend" json:"verify_backend"`
}

// ScanConfig contains scan defaults.
type ScanConfig struct {
	AutoResize   bool    `mapstructure:"auto_resize" yaml:"auto_resize" json:"auto_resize"`
	Exhaustive   bool    `mapstructure:"exhaustive" yaml:"exhaustive" json:"exhaustive"`
	TryHarder    bool    `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	DedupIoU     float64 `mapstructure:"dedup_iou" yaml:"dedup_iou" json:"dedup_iou"`
	OutputFormat string  `mapstructure:"output_format" yaml:"output_format" json:"output_format"`
	OverlayDir   string  `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayColor string  `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
	PDFPassword  string  `mapstructure:"pdf_password" yaml:"pdf_password" json:"pdf_password"`
	PDFMaxImages int     `mapstructure:"pdf_max_images" yaml:"pdf_max_images" json:"pdf_max_images"`
}

// LimitsConfig bounds the work a single call may cause.
type LimitsConfig struct {
	MaxDimension int `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`
	MaxWorkers   int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
	MaxFileMB    int `mapstructure:"max_file_mb" yaml:"max_file_mb" json:"max_file_mb"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}
