package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/qrengine/internal/barcode"
	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/render"
)

const infoLevel = "info"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: infoLevel,
		Generate: GenerateConfig{
			ErrorCorrection: qr.LevelM.String(),
			BoxSize:         pipeline.DefaultBoxSize,
			Border:          pipeline.DefaultBorder,
			Format:          string(render.FormatPNG),
			FillColor:       "#000000",
			BackColor:       "#ffffff",
			VerifyBackend:   barcode.BackendNative,
		},
		Scan: ScanConfig{
			AutoResize:   true,
			DedupIoU:     pipeline.DefaultDedupIoU,
			OutputFormat: pipeline.OutputText,
			OverlayColor: "#00c800",
		},
		Limits: LimitsConfig{
			MaxDimension: preprocess.DefaultMaxDimension,
			MaxWorkers:   runtime.NumCPU(),
			MaxFileMB:    50,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
			},
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", infoLevel, "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if _, err := qr.ParseECLevel(c.Generate.ErrorCorrection); err != nil {
		return fmt.Errorf("invalid generate.error_correction: %w", err)
	}
	if _, err := render.ParseFormat(c.Generate.Format); err != nil {
		return fmt.Errorf("invalid generate.format: %w", err)
	}
	if c.Generate.BoxSize < 1 || c.Generate.BoxSize > pipeline.MaxBoxSize {
		return fmt.Errorf("invalid generate.box_size: %d (must be between 1 and %d)", c.Generate.BoxSize, pipeline.MaxBoxSize)
	}
	if c.Generate.Border < 0 || c.Generate.Border > pipeline.MaxBorder {
		return fmt.Errorf("invalid generate.border: %d (must be between 0 and %d)", c.Generate.Border, pipeline.MaxBorder)
	}
	for name, col := range map[string]string{"fill_color": c.Generate.FillColor, "back_color": c.Generate.BackColor} {
		if _, err := render.ParseHexColor(col); err != nil {
			return fmt.Errorf("invalid generate.%s: %w", name, err)
		}
	}
	if _, err := barcode.New(c.Generate.VerifyBackend); err != nil {
		return fmt.Errorf("invalid generate.verify_backend: %w", err)
	}

	if err := validateThreshold(c.Scan.DedupIoU, "scan.dedup_iou"); err != nil {
		return err
	}
	if c.Scan.OutputFormat != "" && !slices.Contains(pipeline.OutputFormats, c.Scan.OutputFormat) {
		return fmt.Errorf("invalid scan.output_format: %s (must be one of: %s)",
			c.Scan.OutputFormat, strings.Join(pipeline.OutputFormats, ", "))
	}
	if c.Scan.OverlayColor != "" {
		if _, err := render.ParseHexColor(c.Scan.OverlayColor); err != nil {
			return fmt.Errorf("invalid scan.overlay_color: %w", err)
		}
	}
	if c.Scan.PDFMaxImages < 0 {
		return fmt.Errorf("invalid scan.pdf_max_images: %d (must not be negative)", c.Scan.PDFMaxImages)
	}

	if c.Limits.MaxDimension <= 0 {
		return fmt.Errorf("invalid limits.max_dimension: %d (must be positive)", c.Limits.MaxDimension)
	}
	if c.Limits.MaxWorkers <= 0 {
		return fmt.Errorf("invalid limits.max_workers: %d (must be positive)", c.Limits.MaxWorkers)
	}
	if c.Limits.MaxFileMB <= 0 {
		return fmt.Errorf("invalid limits.max_file_mb: %d (must be positive)", c.Limits.MaxFileMB)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return errors.New("invalid server.rate_limit: limits must not be negative")
	}
	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Scan = pipeline.ScanConfig{
		AutoResize:   c.Scan.AutoResize,
		Exhaustive:   c.Scan.Exhaustive,
		TryHarder:    c.Scan.TryHarder,
		MaxDimension: c.Limits.MaxDimension,
		DedupIoU:     c.Scan.DedupIoU,
	}
	cfg.Verify = pipeline.VerifyConfig{Enabled: c.Generate.Verify, Backend: c.Generate.VerifyBackend}
	cfg.Parallel.MaxWorkers = c.Limits.MaxWorkers
	return cfg
}

// ECLevel returns the parsed default error correction level.
func (c *Config) ECLevel() qr.ECLevel {
	l, err := qr.ParseECLevel(c.Generate.ErrorCorrection)
	if err != nil {
		return qr.LevelM
	}
	return l
}

func validateThreshold(value float64, name string) error {
	if value <= 0 || value > 1 {
		return fmt.Errorf("invalid %s: %v (must be in (0, 1])", name, value)
	}
	return nil
}
