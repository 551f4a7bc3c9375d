package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrengine/internal/batch"
	"github.com/MeKo-Tech/qrengine/internal/config"
	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/render"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [files/dirs...]",
	Short: "Find and decode every QR code in images and PDFs",
	Long: `Scan images and PDF documents for QR codes and print every decoded symbol.

Images are scanned at their original size and, with --auto-resize, at a ladder
of resampled sizes; detections of the same symbol are merged. PDFs are scanned
image by image. Directories are expanded to the images and PDFs they contain,
and files are scanned in parallel; results keep the input order.

Examples:
  qrengine scan photo.jpg
  qrengine scan photo.jpg --format json
  qrengine scan scans/ --recursive --format csv -o codes.csv
  qrengine scan scans/ --include '*.png' --exclude 'draft_*' --stats
  qrengine scan invoice.pdf --pages 1-3 --password secret
  qrengine scan poster.png --exhaustive --overlay-dir out/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	f := cmd.Flags()

	format := strings.ToLower(cfg.Scan.OutputFormat)
	if !slices.Contains(pipeline.OutputFormats, format) {
		return fmt.Errorf("unsupported output format %q (use %s)", format, strings.Join(pipeline.OutputFormats, ", "))
	}

	batchCfg, err := batchConfigFromFlags(cmd, cfg)
	if err != nil {
		return err
	}
	files, err := batch.DiscoverFiles(args, batchCfg.Recursive, batchCfg.IncludePatterns, batchCfg.ExcludePatterns)
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	batchCfg.Scan = p.ScanOptions()

	res, err := batch.ScanFiles(cmd.Context(), p, files, batchCfg)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	outputFile, _ := f.GetString("output")
	if err := res.SaveResults(cmd.OutOrStdout(), format, outputFile); err != nil {
		return err
	}
	if showStats, _ := f.GetBool("stats"); showStats {
		res.PrintStats(cmd.ErrOrStderr())
	}

	if res.AllFailed() {
		return fmt.Errorf("all %d input(s) failed", len(res.Results))
	}
	return nil
}

// batchConfigFromFlags maps the effective configuration and the batch-only
// flags to a batch.Config.
func batchConfigFromFlags(cmd *cobra.Command, cfg *config.Config) (batch.Config, error) {
	f := cmd.Flags()
	recursive, _ := f.GetBool("recursive")
	include, _ := f.GetStringSlice("include")
	exclude, _ := f.GetStringSlice("exclude")
	pages, _ := f.GetString("pages")

	bc := batch.Config{
		Workers:         cfg.Limits.MaxWorkers,
		Recursive:       recursive,
		IncludePatterns: include,
		ExcludePatterns: exclude,
		MaxFileBytes:    int64(cfg.Limits.MaxFileMB) << 20,
		Pages:           pages,
		PDFPassword:     cfg.Scan.PDFPassword,
		PDFMaxImages:    cfg.Scan.PDFMaxImages,
		OverlayDir:      cfg.Scan.OverlayDir,
	}
	if bc.OverlayDir != "" {
		outline, err := render.ParseHexColor(cfg.Scan.OverlayColor)
		if err != nil {
			return bc, fmt.Errorf("invalid overlay color: %w", err)
		}
		bc.OverlayColor = outline
	}
	if showProgress, _ := f.GetBool("progress"); showProgress {
		bc.Progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "scan ")
	}
	return bc, nil
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addScanFlags(scanCmd)
	bindScanFlags(scanCmd)
}

func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("format", "f", pipeline.OutputText, "output format (text, json, yaml, csv)")
	f.StringP("output", "o", "", "write results to this file instead of stdout")
	f.BoolP("recursive", "r", false, "descend into sub-directories")
	f.Bool("auto-resize", true, "also scan resampled copies of each image")
	f.Bool("exhaustive", false, "scan every candidate instead of stopping at the first that finds symbols")
	f.Bool("try-harder", false, "spend more effort on hard images")
	f.Float64("dedup-iou", pipeline.DefaultDedupIoU, "overlap above which two detections are the same symbol")
	f.Int("max-dimension", 0, "reject images wider or taller than this (pixels)")
	f.String("overlay-dir", "", "write images with decoded symbols outlined to this directory")
	f.String("overlay-color", "#00c800", "outline colour for --overlay-dir (hex)")
	f.String("pages", "", "PDF page selection, e.g. 1-3,5")
	f.String("password", "", "PDF password")
	f.Int("max-images", 0, "maximum images scanned per PDF (0 = all)")
	f.StringSlice("include", nil, "only scan files whose name matches one of these patterns")
	f.StringSlice("exclude", nil, "skip files whose name matches one of these patterns")
	f.Bool("progress", false, "show a per-file progress bar on stderr")
	f.Bool("stats", false, "print scan statistics to stderr")
}

func bindScanFlags(cmd *cobra.Command) {
	bindFlags(cmd, []flagBinding{
		{"scan.output_format", "format"},
		{"scan.auto_resize", "auto-resize"},
		{"scan.exhaustive", "exhaustive"},
		{"scan.try_harder", "try-harder"},
		{"scan.dedup_iou", "dedup-iou"},
		{"scan.overlay_dir", "overlay-dir"},
		{"scan.overlay_color", "overlay-color"},
		{"scan.pdf_password", "password"},
		{"scan.pdf_max_images", "max-images"},
		{"limits.max_dimension", "max-dimension"},
	})
}

// GetScanCommand returns the scan command for testing.
func GetScanCommand() *cobra.Command {
	return scanCmd
}
