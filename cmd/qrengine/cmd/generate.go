package cmd

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrengine/internal/config"
	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/render"
)

// defaultPNGOutput is written when PNG output has no --output path.
const defaultPNGOutput = "qrcode.png"

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate [data]",
	Short: "Generate a QR code",
	Long: `Encode data into a QR symbol and write it as PNG, SVG or terminal text.

The data is taken from the argument, from --input, or from stdin when the
argument is "-". PNG output can be styled with module and eye shapes, colour
masks and an embedded logo.

Examples:
  qrengine generate "hello world" -o hello.png
  qrengine generate "https://example.com" --format svg -o code.svg
  qrengine generate "hello" --format ascii
  qrengine generate --input payload.txt -e H --module-drawer circle --logo logo.png -o code.png
  qrengine generate "hi" --color-mask radial_gradient --center-color "#ff0000" --edge-color "#0000ff"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	data, err := readGenerateData(cmd, args)
	if err != nil {
		return err
	}
	req, err := buildGenerateRequest(cmd, cfg, data)
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	out, err := p.Generate(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	slog.Debug("Generated symbol", "version", out.Symbol.Version.Number, "level", out.Symbol.Level.String(),
		"format", out.Format, "width", out.Width, "height", out.Height)

	outputFile, _ := cmd.Flags().GetString("output")
	if outputFile == "" && out.Format == render.FormatPNG {
		outputFile = defaultPNGOutput
	}
	if outputFile == "" {
		_, err := cmd.OutOrStdout().Write(out.Data)
		return err
	}
	if err := os.WriteFile(outputFile, out.Data, 0o644); err != nil { //nolint:gosec // G306: output is user content
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d, version %d-%s)\n",
		outputFile, out.Width, out.Height, out.Symbol.Version.Number, out.Symbol.Level)
	return nil
}

// readGenerateData returns the payload from the argument, --input or stdin.
func readGenerateData(cmd *cobra.Command, args []string) ([]byte, error) {
	input, _ := cmd.Flags().GetString("input")
	switch {
	case input != "" && len(args) > 0:
		return nil, errors.New("pass either a data argument or --input, not both")
	case input != "":
		data, err := os.ReadFile(input) //nolint:gosec // G304: reading a user-supplied input path is the point
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return data, nil
	case len(args) == 0:
		return nil, errors.New("no data given: pass it as an argument, with --input, or as - for stdin")
	case args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return []byte(strings.TrimRight(string(data), "\r\n")), nil
	default:
		return []byte(args[0]), nil
	}
}

func buildGenerateRequest(cmd *cobra.Command, cfg *config.Config, data []byte) (pipeline.GenerateRequest, error) {
	f := cmd.Flags()
	if len(data) == 0 {
		return pipeline.GenerateRequest{}, errors.New("data must not be empty")
	}

	level, err := qr.ParseECLevel(cfg.Generate.ErrorCorrection)
	if err != nil {
		return pipeline.GenerateRequest{}, err
	}
	format, err := render.ParseFormat(cfg.Generate.Format)
	if err != nil {
		return pipeline.GenerateRequest{}, err
	}
	fill, err := render.ParseHexColor(cfg.Generate.FillColor)
	if err != nil {
		return pipeline.GenerateRequest{}, fmt.Errorf("invalid fill color: %w", err)
	}
	back, err := render.ParseHexColor(cfg.Generate.BackColor)
	if err != nil {
		return pipeline.GenerateRequest{}, fmt.Errorf("invalid back color: %w", err)
	}

	minVersion, _ := f.GetInt("symbol-version")
	finalSize, _ := f.GetInt("final-size")
	req := pipeline.GenerateRequest{
		Data:       data,
		Level:      level,
		MinVersion: minVersion,
		BoxSize:    cfg.Generate.BoxSize,
		Border:     &cfg.Generate.Border,
		Format:     format,
		FinalSize:  finalSize,
		FrontColor: fill,
		BackColor:  back,
	}
	if f.Changed("verify") || f.Changed("verify-backend") {
		verify := cfg.Generate.Verify
		req.Verify = &verify
	}

	style, err := buildStyleFromFlags(cmd, fill, back)
	if err != nil {
		return pipeline.GenerateRequest{}, err
	}
	req.Style = style

	if logoPath, _ := f.GetString("logo"); logoPath != "" {
		raw, err := os.ReadFile(logoPath) //nolint:gosec // G304: user-supplied logo path
		if err != nil {
			return pipeline.GenerateRequest{}, fmt.Errorf("failed to read logo: %w", err)
		}
		if req.Logo, err = render.DecodeLogo(raw); err != nil {
			return pipeline.GenerateRequest{}, err
		}
	}
	return req, nil
}

// styleFlags are the flags that switch generation to styled rendering.
var styleFlags = []string{
	"module-drawer", "size-ratio", "module-radius", "eye-drawer", "eye-radius",
	"color-mask", "center-color", "edge-color", "left-color", "right-color",
	"top-color", "bottom-color", "mask-image",
}

// buildStyleFromFlags returns nil unless a style flag was set. The plain
// fill and back colours seed the solid mask and the background.
func buildStyleFromFlags(cmd *cobra.Command, fill, back color.Color) (*render.StyleSpec, error) {
	f := cmd.Flags()
	styled := false
	for _, name := range styleFlags {
		if f.Changed(name) {
			styled = true
			break
		}
	}
	if !styled {
		return nil, nil //nolint:nilnil // nil style means plain rendering
	}

	moduleType, _ := f.GetString("module-drawer")
	sizeRatio, _ := f.GetFloat64("size-ratio")
	moduleRadius, _ := f.GetFloat64("module-radius")
	eyeType, _ := f.GetString("eye-drawer")
	eyeRadius, _ := f.GetFloat64("eye-radius")
	maskType, _ := f.GetString("color-mask")

	if f.Changed("size-ratio") && (sizeRatio < 0.1 || sizeRatio > 1) {
		return nil, fmt.Errorf("size ratio %v outside 0.1..1", sizeRatio)
	}

	style := render.StyleSpec{
		Module: render.ModuleDrawer{
			Type:        render.ModuleDrawerType(moduleType),
			SizeRatio:   sizeRatio,
			RadiusRatio: moduleRadius,
		},
		Eye: render.EyeDrawer{Type: render.EyeDrawerType(eyeType), RadiusRatio: eyeRadius},
		Mask: render.ColorMask{
			Type:       render.ColorMaskType(maskType),
			BackColor:  back,
			FrontColor: fill,
		},
	}

	colors := []struct {
		flag string
		dst  *color.Color
	}{
		{"center-color", &style.Mask.CenterColor},
		{"edge-color", &style.Mask.EdgeColor},
		{"left-color", &style.Mask.LeftColor},
		{"right-color", &style.Mask.RightColor},
		{"top-color", &style.Mask.TopColor},
		{"bottom-color", &style.Mask.BottomColor},
	}
	for _, c := range colors {
		s, _ := f.GetString(c.flag)
		if s == "" {
			continue
		}
		parsed, err := render.ParseHexColor(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", c.flag, err)
		}
		*c.dst = parsed
	}

	if path, _ := f.GetString("mask-image"); path != "" {
		img, err := imaging.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read mask image: %w", err)
		}
		style.Mask.Image = img
	}
	if err := style.Validate(); err != nil {
		return nil, err
	}
	return &style, nil
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addGenerateFlags(generateCmd)
	bindGenerateFlags(generateCmd)
}

func addGenerateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("input", "i", "", "read the data from this file")
	f.StringP("output", "o", "", "output file (PNG defaults to "+defaultPNGOutput+", text formats to stdout)")
	f.StringP("error-correction", "e", "M", "error correction level (L, M, Q, H)")
	f.Int("symbol-version", 0, "minimum symbol version 1..40 (0 = smallest that fits)")
	f.Int("box-size", pipeline.DefaultBoxSize, "pixels per module")
	f.Int("border", pipeline.DefaultBorder, "quiet zone width in modules")
	f.StringP("format", "f", string(render.FormatPNG), "output format (png, svg, svg-path, svg-fragment, ascii)")
	f.Int("final-size", 0, "resample PNG output to this square side in pixels (0 = natural size)")
	f.String("fill-color", "#000000", "module colour (hex)")
	f.String("back-color", "#ffffff", "background colour (hex)")

	f.String("module-drawer", string(render.ModuleSquare),
		"module shape (square, gapped_square, circle, rounded, vertical_bars, horizontal_bars)")
	f.Float64("size-ratio", 0, "module size ratio for gapped_square and circle (0.1..1)")
	f.Float64("module-radius", 0, "corner radius ratio for rounded modules")
	f.String("eye-drawer", string(render.EyeSquare), "finder pattern shape (square, rounded, circle)")
	f.Float64("eye-radius", 0, "corner radius ratio for rounded eyes")
	f.String("color-mask", string(render.MaskSolid),
		"colour mask (solid, radial_gradient, square_gradient, horizontal_gradient, vertical_gradient, image)")
	f.String("center-color", "", "gradient centre colour (hex)")
	f.String("edge-color", "", "gradient edge colour (hex)")
	f.String("left-color", "", "gradient left colour (hex)")
	f.String("right-color", "", "gradient right colour (hex)")
	f.String("top-color", "", "gradient top colour (hex)")
	f.String("bottom-color", "", "gradient bottom colour (hex)")
	f.String("mask-image", "", "image the image colour mask samples from")
	f.String("logo", "", "image (PNG, JPEG, GIF or SVG) to embed in the centre")

	f.Bool("verify", false, "decode the generated symbol and fail unless it reads back")
	f.String("verify-backend", "native", "decoder used by --verify (native, zxing)")
}

func bindGenerateFlags(cmd *cobra.Command) {
	bindFlags(cmd, []flagBinding{
		{"generate.error_correction", "error-correction"},
		{"generate.box_size", "box-size"},
		{"generate.border", "border"},
		{"generate.format", "format"},
		{"generate.fill_color", "fill-color"},
		{"generate.back_color", "back-color"},
		{"generate.verify", "verify"},
		{"generate.verify_backend", "verify-backend"},
	})
}

// GetGenerateCommand returns the generate command for testing.
func GetGenerateCommand() *cobra.Command {
	return generateCmd
}
