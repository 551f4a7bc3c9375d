package server

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/render"
)

// MaxDataLength is the longest accepted payload in characters.
const MaxDataLength = 3000

// generateHandler encodes and renders one symbol.
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var body GenerateRequest
	if err := s.readJSON(w, r, &body); err != nil {
		writeError(w, r, err, "generate")
		return
	}
	req, err := s.toPipelineRequest(body)
	if err != nil {
		generateRequestsTotal.WithLabelValues(string(req.Format), "invalid").Inc()
		writeError(w, r, err, "generate")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	start := time.Now()
	out, err := s.engine.Generate(ctx, req)
	generateRequestsTotal.WithLabelValues(string(req.Format), statusLabel(err)).Inc()
	if err != nil {
		writeError(w, r, err, "generate")
		return
	}
	generateDuration.Observe(time.Since(start).Seconds())

	resp := GenerateResponse{
		Format: string(out.Format),
		Size:   ImageSize{Width: out.Width, Height: out.Height},
	}
	if out.Format == render.FormatPNG {
		resp.Image = base64.StdEncoding.EncodeToString(out.Data)
	} else {
		resp.Image = string(out.Data)
	}
	writeJSON(w, http.StatusOK, resp)
}

// toPipelineRequest validates the request shape and resolves defaults. The
// returned request carries the resolved format even on error.
func (s *Server) toPipelineRequest(body GenerateRequest) (pipeline.GenerateRequest, error) {
	border := s.defaults.Border
	req := pipeline.GenerateRequest{
		Data:    []byte(body.Data),
		Level:   s.defaults.Level,
		BoxSize: s.defaults.BoxSize,
		Border:  &border,
		Format:  render.FormatPNG,
		Verify:  body.Verify,
	}

	if s.defaults.Format != "" {
		if f, err := render.ParseFormat(s.defaults.Format); err == nil {
			req.Format = f
		}
	}
	if body.OutputFormat != "" {
		f, err := render.ParseFormat(body.OutputFormat)
		if err != nil {
			return req, invalid(CodeValidation, "output_format", "unknown output format %q", body.OutputFormat)
		}
		req.Format = f
	}

	if body.Data == "" {
		return req, invalid(CodeValidation, "data", "data must not be empty")
	}
	if n := utf8.RuneCountInString(body.Data); n > MaxDataLength {
		return req, invalid(CodeValidation, "data", "data has %d characters, at most %d are allowed", n, MaxDataLength)
	}
	if body.ErrorCorrection != "" {
		level, err := qr.ParseECLevel(body.ErrorCorrection)
		if err != nil {
			return req, invalid(CodeValidation, "error_correction", "unknown error correction level %q", body.ErrorCorrection)
		}
		req.Level = level
	}
	if body.Version != nil {
		if *body.Version < 1 || *body.Version > 40 {
			return req, invalid(CodeValidation, "version", "version must be between 1 and 40")
		}
		req.MinVersion = *body.Version
	}
	if body.BoxSize != nil {
		if *body.BoxSize < 1 || *body.BoxSize > pipeline.MaxBoxSize {
			return req, invalid(CodeValidation, "box_size", "box_size must be between 1 and %d", pipeline.MaxBoxSize)
		}
		req.BoxSize = *body.BoxSize
	}
	if body.Border != nil {
		if *body.Border < 0 || *body.Border > pipeline.MaxBorder {
			return req, invalid(CodeValidation, "border", "border must be between 0 and %d", pipeline.MaxBorder)
		}
		req.Border = body.Border
	}
	if body.FinalSize != nil {
		if req.Format != render.FormatPNG {
			return req, invalid(CodeFinalSizePNGOnly, "final_size", "final_size is only supported for PNG output")
		}
		if *body.FinalSize < pipeline.MinFinalSize || *body.FinalSize > pipeline.MaxFinalSize {
			return req, invalid(CodeValidation, "final_size", "final_size must be between %d and %d",
				pipeline.MinFinalSize, pipeline.MaxFinalSize)
		}
		req.FinalSize = *body.FinalSize
	}

	styled := body.ModuleDrawer != nil || body.EyeDrawer != nil || body.ColorMask != nil || body.EmbeddedImage != ""
	if styled && !body.UseStyledImage {
		return req, invalid(CodeStyledImageRequired, "use_styled_image", "styled image options require use_styled_image=true")
	}
	if body.UseStyledImage && req.Format != render.FormatPNG {
		return req, invalid(CodeValidation, "use_styled_image", "styled images are only supported for PNG output")
	}

	if !body.UseStyledImage {
		var err error
		if req.FrontColor, err = parseColor("fill_color", firstNonEmpty(body.FillColor, s.defaults.FillColor)); err != nil {
			return req, err
		}
		if req.BackColor, err = parseColor("back_color", firstNonEmpty(body.BackColor, s.defaults.BackColor)); err != nil {
			return req, err
		}
		return req, nil
	}

	style, err := buildStyle(body)
	if err != nil {
		return req, err
	}
	req.Style = &style
	if body.EmbeddedImage != "" {
		if req.Logo, err = decodeLogo(body.EmbeddedImage); err != nil {
			return req, err
		}
	}
	return req, nil
}

// buildStyle maps the styled options. Unknown tags pass through and are
// rejected by the renderer as unsupported styles.
func buildStyle(body GenerateRequest) (render.StyleSpec, error) {
	style := render.DefaultStyle()
	if md := body.ModuleDrawer; md != nil {
		style.Module.Type = render.ModuleDrawerType(md.Type)
		if md.SizeRatio != nil {
			if *md.SizeRatio < 0.1 || *md.SizeRatio > 1 {
				return style, invalid(CodeValidation, "module_drawer.size_ratio", "size_ratio must be between 0.1 and 1.0")
			}
			style.Module.SizeRatio = *md.SizeRatio
		}
		if md.RadiusRatio != nil {
			style.Module.RadiusRatio = *md.RadiusRatio
		}
	}
	if ed := body.EyeDrawer; ed != nil {
		style.Eye.Type = render.EyeDrawerType(ed.Type)
		if ed.RadiusRatio != nil {
			style.Eye.RadiusRatio = *ed.RadiusRatio
		}
	}

	cm := body.ColorMask
	if cm == nil {
		return style, nil
	}
	style.Mask.Type = render.ColorMaskType(cm.Type)
	if style.Mask.Type == "" {
		style.Mask.Type = render.MaskSolid
	}
	colors := []struct {
		field string
		value string
		dst   *color.Color
	}{
		{"color_mask.back_color", cm.BackColor, &style.Mask.BackColor},
		{"color_mask.front_color", cm.FrontColor, &style.Mask.FrontColor},
		{"color_mask.center_color", cm.CenterColor, &style.Mask.CenterColor},
		{"color_mask.edge_color", cm.EdgeColor, &style.Mask.EdgeColor},
		{"color_mask.left_color", cm.LeftColor, &style.Mask.LeftColor},
		{"color_mask.right_color", cm.RightColor, &style.Mask.RightColor},
		{"color_mask.top_color", cm.TopColor, &style.Mask.TopColor},
		{"color_mask.bottom_color", cm.BottomColor, &style.Mask.BottomColor},
	}
	for _, c := range colors {
		parsed, err := parseColor(c.field, c.value)
		if err != nil {
			return style, err
		}
		*c.dst = parsed
	}

	if style.Mask.Type == render.MaskImage {
		if back, ok := style.Mask.BackColor.(color.NRGBA); ok && back.R == 0 && back.G == 0 && back.B == 0 {
			return style, invalid(CodeInvalidColorCombination, "color_mask.back_color",
				"pure black background (#000000) cannot be used with the image color mask, use a lighter color")
		}
		if cm.ColorMaskImage == "" {
			return style, invalid(CodeInvalidColorMaskImage, "color_mask.color_mask_image", "image color mask requires color_mask_image")
		}
		img, err := decodeImage(cm.ColorMaskImage)
		if err != nil {
			return style, invalid(CodeInvalidColorMaskImage, "color_mask.color_mask_image", "invalid color_mask_image data")
		}
		style.Mask.Image = img
	}
	return style, nil
}

// parseColor returns nil for an empty value so the renderer default applies.
func parseColor(field, value string) (color.Color, error) {
	if value == "" {
		return nil, nil
	}
	c, err := render.ParseHexColor(value)
	if err != nil {
		return nil, invalid(CodeInvalidColor, field, "%q is not a #RGB or #RRGGBB color", value)
	}
	return c, nil
}

func decodeImage(s string) (image.Image, error) {
	data, err := preprocess.DecodeBase64(s)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func decodeLogo(s string) (image.Image, error) {
	data, err := preprocess.DecodeBase64(s)
	if err != nil {
		return nil, invalid(CodeInvalidEmbeddedImage, "embedded_image", "invalid embedded_image data")
	}
	logo, err := render.DecodeLogo(data)
	if err != nil {
		return nil, invalid(CodeInvalidEmbeddedImage, "embedded_image", "invalid embedded_image data")
	}
	return logo, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
