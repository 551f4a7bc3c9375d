package batch

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// defaultOverlayColor outlines symbols when no colour is configured.
var defaultOverlayColor = color.NRGBA{R: 0, G: 200, B: 0, A: 255}

// scanFile dispatches on the file type.
func scanFile(ctx context.Context, s Scanner, path string, cfg *Config) []pipeline.FileResult {
	if utils.IsPDF(path) {
		return scanPDFFile(ctx, s, path, cfg)
	}
	return []pipeline.FileResult{scanImageFile(ctx, s, path, cfg)}
}

// scanImageFile scans one image file and writes its overlay on request.
func scanImageFile(ctx context.Context, s Scanner, path string, cfg *Config) pipeline.FileResult {
	fr := pipeline.FileResult{File: path}
	raw, err := utils.ReadFileLimited(path, cfg.MaxFileBytes)
	if err != nil {
		fr.Error = err.Error()
		return fr
	}

	opts := cfg.Scan
	opts.Progress = nil
	res, err := s.Scan(ctx, raw, opts)
	if err != nil {
		slog.Warn("Scan failed", "file", path, "error", err)
		fr.Error = err.Error()
		return fr
	}
	fr.Result = res
	slog.Debug("Scanned image", "file", path, "symbols", len(res.Symbols),
		"candidates", res.CandidatesScanned, "duration", res.Duration)

	if cfg.OverlayDir != "" {
		if err := writeOverlay(cfg, path, raw, res); err != nil {
			slog.Warn("Failed to write overlay", "file", path, "error", err)
		}
	}
	return fr
}

// scanPDFFile returns one result per embedded image, named
// file#p<page>i<index>. A PDF without images is a valid document with
// nothing to find.
func scanPDFFile(ctx context.Context, s Scanner, path string, cfg *Config) []pipeline.FileResult {
	opts := cfg.Scan
	opts.Progress = nil
	res, err := s.ScanPDF(ctx, path, pipeline.PDFOptions{
		Pages:     cfg.Pages,
		Password:  cfg.PDFPassword,
		MaxImages: cfg.PDFMaxImages,
		Scan:      opts,
	})
	if err != nil {
		slog.Warn("PDF scan failed", "file", path, "error", err)
		return []pipeline.FileResult{{File: path, Error: err.Error()}}
	}

	var out []pipeline.FileResult
	for _, pg := range res.Pages {
		for _, img := range pg.Images {
			fr := pipeline.FileResult{File: fmt.Sprintf("%s#p%di%d", path, pg.Page, img.Index)}
			if img.Error != "" {
				fr.Error = img.Error
			} else {
				fr.Result = &pipeline.ScanResult{
					Symbols: img.Symbols,
					Format:  "pdf",
					Width:   img.Width,
					Height:  img.Height,
				}
			}
			out = append(out, fr)
		}
	}
	if len(out) == 0 {
		out = append(out, pipeline.FileResult{File: path, Result: &pipeline.ScanResult{Symbols: []pipeline.Symbol{}, Format: "pdf"}})
	}
	return out
}

// writeOverlay saves the image with every symbol outlined into the overlay
// directory as <name>_overlay.png.
func writeOverlay(cfg *Config, path string, raw []byte, res *pipeline.ScanResult) error {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return err
	}
	outline := cfg.OverlayColor
	if outline == nil {
		outline = defaultOverlayColor
	}
	if err := os.MkdirAll(cfg.OverlayDir, 0o750); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dst := filepath.Join(cfg.OverlayDir, base+"_overlay.png")
	if err := imaging.Save(pipeline.RenderOverlay(img, res, outline, pipeline.OverlayCorner), dst); err != nil {
		return err
	}
	slog.Debug("Wrote overlay", "file", dst)
	return nil
}
