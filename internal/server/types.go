package server

import (
	"context"
	"net/http"
	"time"

	"github.com/MeKo-Tech/qrengine/internal/config"
	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/qr"
)

// engine defines the methods needed by the server from a pipeline.
type engine interface {
	Generate(ctx context.Context, req pipeline.GenerateRequest) (*pipeline.GeneratedImage, error)
	Scan(ctx context.Context, raw []byte, opts pipeline.ScanOptions) (*pipeline.ScanResult, error)
	ScanPDF(ctx context.Context, filename string, opts pipeline.PDFOptions) (*pipeline.PDFScanResult, error)
	ScanOptions() pipeline.ScanOptions
	Stats() map[string]any
	Load() pipeline.Load
}

// GenerateDefaults are applied to generate requests that omit a field.
type GenerateDefaults struct {
	Level     qr.ECLevel
	BoxSize   int
	Border    int
	Format    string
	FillColor string
	BackColor string
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	engine      engine
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter
	defaults    GenerateDefaults
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	Pipeline    pipeline.Config
	RateLimit   config.RateLimitConfig
	Defaults    GenerateDefaults
}

// ConfigFrom maps the loaded application configuration to a server Config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		Pipeline:    cfg.ToPipelineConfig(),
		RateLimit:   cfg.Server.RateLimit,
		Defaults: GenerateDefaults{
			Level:     cfg.ECLevel(),
			BoxSize:   cfg.Generate.BoxSize,
			Border:    cfg.Generate.Border,
			Format:    cfg.Generate.Format,
			FillColor: cfg.Generate.FillColor,
			BackColor: cfg.Generate.BackColor,
		},
	}
}

// NewServer builds the pipeline and returns a server ready for SetupRoutes.
func NewServer(cfg Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().WithConfig(cfg.Pipeline).Build()
	if err != nil {
		return nil, err
	}
	return newServerWithEngine(pl, cfg), nil
}

func newServerWithEngine(e engine, cfg Config) *Server {
	s := &Server{
		engine:      e,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		defaults:    cfg.Defaults,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.defaults.BoxSize == 0 {
		s.defaults.BoxSize = pipeline.DefaultBoxSize
		s.defaults.Border = pipeline.DefaultBorder
	}
	if rl := cfg.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDayMB*1024*1024)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.Handle("GET /metrics", metricsHandler())
	mux.HandleFunc("/health", s.chain(s.healthHandler, false))
	mux.HandleFunc("/qr/module-drawers", s.chain(s.moduleDrawersHandler, false))
	mux.HandleFunc("/qr/eye-drawers", s.chain(s.eyeDrawersHandler, false))
	mux.HandleFunc("/qr/color-masks", s.chain(s.colorMasksHandler, false))
	mux.HandleFunc("/qr/error-correction-levels", s.chain(s.levelsHandler, false))
	mux.HandleFunc("/qr/generate", s.chain(s.generateHandler, true))
	mux.HandleFunc("/qr/scan", s.chain(s.scanHandler, true))
	mux.HandleFunc("/qr/scan/pdf", s.chain(s.scanPDFHandler, true))
	mux.HandleFunc("/ws/scan", s.scanWebSocketHandler)
}

// chain wraps h with request IDs, CORS and metrics, and rate limiting for
// the work endpoints.
func (s *Server) chain(h http.HandlerFunc, limited bool) http.HandlerFunc {
	if limited {
		h = s.rateLimitMiddleware(h)
	}
	return requestIDMiddleware(s.corsMiddleware(h))
}

// StartPruner periodically forgets idle rate limit clients until ctx ends.
func (s *Server) StartPruner(ctx context.Context, every time.Duration) {
	if s.rateLimiter == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.rateLimiter.Prune(24 * time.Hour)
			}
		}
	}()
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Time    string            `json:"time"`
	Memory  pipeline.MemStats `json:"memory"`
	Load    pipeline.Load     `json:"load"`
	Stats   map[string]any    `json:"stats,omitempty"`
}

// ModuleDrawerConfig is the JSON form of a module drawer.
type ModuleDrawerConfig struct {
	Type        string   `json:"type"`
	SizeRatio   *float64 `json:"size_ratio,omitempty"`
	RadiusRatio *float64 `json:"radius_ratio,omitempty"`
}

// EyeDrawerConfig is the JSON form of an eye drawer.
type EyeDrawerConfig struct {
	Type        string   `json:"type"`
	RadiusRatio *float64 `json:"radius_ratio,omitempty"`
}

// ColorMaskConfig is the JSON form of a colour mask. Colours are #RGB or
// #RRGGBB; ColorMaskImage is base64 or a data URL.
type ColorMaskConfig struct {
	Type           string `json:"type"`
	FrontColor     string `json:"front_color,omitempty"`
	BackColor      string `json:"back_color,omitempty"`
	CenterColor    string `json:"center_color,omitempty"`
	EdgeColor      string `json:"edge_color,omitempty"`
	LeftColor      string `json:"left_color,omitempty"`
	RightColor     string `json:"right_color,omitempty"`
	TopColor       string `json:"top_color,omitempty"`
	BottomColor    string `json:"bottom_color,omitempty"`
	ColorMaskImage string `json:"color_mask_image,omitempty"`
}

// GenerateRequest is the body of POST /qr/generate.
type GenerateRequest struct {
	Data            string              `json:"data"`
	Version         *int                `json:"version,omitempty"`
	ErrorCorrection string              `json:"error_correction,omitempty"`
	BoxSize         *int                `json:"box_size,omitempty"`
	Border          *int                `json:"border,omitempty"`
	OutputFormat    string              `json:"output_format,omitempty"`
	FinalSize       *int                `json:"final_size,omitempty"`
	FillColor       string              `json:"fill_color,omitempty"`
	BackColor       string              `json:"back_color,omitempty"`
	UseStyledImage  bool                `json:"use_styled_image,omitempty"`
	ModuleDrawer    *ModuleDrawerConfig `json:"module_drawer,omitempty"`
	EyeDrawer       *EyeDrawerConfig    `json:"eye_drawer,omitempty"`
	ColorMask       *ColorMaskConfig    `json:"color_mask,omitempty"`
	EmbeddedImage   string              `json:"embedded_image,omitempty"`
	Verify          *bool               `json:"verify,omitempty"`
}

// ImageSize is the pixel size of a generated image (modules and text rows
// for ASCII output).
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GenerateResponse carries base64 PNG data or raw SVG/ASCII text.
type GenerateResponse struct {
	Image  string    `json:"image"`
	Format string    `json:"format"`
	Size   ImageSize `json:"size"`
}

// ScanRequest is the body of POST /qr/scan.
type ScanRequest struct {
	Image      string `json:"image"`
	AutoResize *bool  `json:"auto_resize,omitempty"`
	Exhaustive *bool  `json:"exhaustive,omitempty"`
}

// ScanResponse lists the decoded payloads in result order.
type ScanResponse struct {
	Codes           []string          `json:"codes"`
	Count           int               `json:"count"`
	Success         bool              `json:"success"`
	Symbols         []pipeline.Symbol `json:"symbols"`
	PartialFailures int               `json:"partial_failures,omitempty"`
}

// PDFScanResponse is the response of POST /qr/scan/pdf.
type PDFScanResponse struct {
	Codes   []string                `json:"codes"`
	Count   int                     `json:"count"`
	Success bool                    `json:"success"`
	Result  *pipeline.PDFScanResult `json:"result"`
}

// scanResponse builds the response of one image scan.
func scanResponse(res *pipeline.ScanResult) ScanResponse {
	return ScanResponse{
		Codes:           res.Codes(),
		Count:           len(res.Symbols),
		Success:         true,
		Symbols:         res.Symbols,
		PartialFailures: res.PartialFailures,
	}
}
