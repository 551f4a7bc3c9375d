package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/render"
	"github.com/MeKo-Tech/qrengine/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Memory:  pipeline.GetMemStats(),
		Load:    s.engine.Load(),
		Stats:   s.engine.Stats(),
	})
}

func (s *Server) moduleDrawersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"module_drawers": render.ModuleDrawerCatalog()})
}

func (s *Server) eyeDrawersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eye_drawers": render.EyeDrawerCatalog()})
}

func (s *Server) colorMasksHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"color_masks": render.ColorMaskCatalog()})
}

// LevelInfo describes one error correction level.
type LevelInfo struct {
	Level           string `json:"level"`
	Name            string `json:"name"`
	RecoveryPercent int    `json:"recovery_percent"`
	Description     string `json:"description"`
}

// LevelCatalog lists the error correction levels from weakest to strongest.
func LevelCatalog() []LevelInfo {
	out := make([]LevelInfo, 0, len(qr.Levels))
	for _, l := range qr.Levels {
		out = append(out, LevelInfo{
			Level:           l.String(),
			Name:            l.Name(),
			RecoveryPercent: l.RecoveryPercent(),
			Description:     l.Description(),
		})
	}
	return out
}

func (s *Server) levelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"error_correction_levels": LevelCatalog()})
}

// maxUploadBytes is the request body limit.
func (s *Server) maxUploadBytes() int64 { return s.maxUploadMB * 1024 * 1024 }

// readJSON decodes a size limited JSON body into v.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body exceeds %d MB", preprocess.ErrInputTooLarge, s.maxUploadMB)
		case errors.Is(err, io.EOF):
			return invalid(CodeValidation, "", "request body is empty")
		default:
			return invalid(CodeValidation, "", "malformed JSON body: %v", err)
		}
	}
	return nil
}

// withTimeout bounds a request by the configured timeout.
func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}
