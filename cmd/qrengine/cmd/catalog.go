package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrengine/internal/render"
	"github.com/MeKo-Tech/qrengine/internal/server"
)

// catalogCmd represents the catalog command.
var catalogCmd = &cobra.Command{
	Use:   "catalog [module-drawers|eye-drawers|color-masks|levels]",
	Short: "List the available styles and error correction levels",
	Long: `List the module drawers, eye drawers, colour masks and error correction
levels accepted by generate and the HTTP API. Without an argument every
catalog is printed.

Examples:
  qrengine catalog
  qrengine catalog color-masks
  qrengine catalog levels --json`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"module-drawers", "eye-drawers", "color-masks", "levels"},
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		which := ""
		if len(args) == 1 {
			which = args[0]
		}

		catalogs := map[string]any{
			"module_drawers":          render.ModuleDrawerCatalog(),
			"eye_drawers":             render.EyeDrawerCatalog(),
			"color_masks":             render.ColorMaskCatalog(),
			"error_correction_levels": server.LevelCatalog(),
		}
		key := strings.ReplaceAll(which, "-", "_")
		if key == "levels" {
			key = "error_correction_levels"
		}
		if key != "" {
			v, ok := catalogs[key]
			if !ok {
				return fmt.Errorf("unknown catalog %q", which)
			}
			catalogs = map[string]any{key: v}
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(catalogs)
		}
		return printCatalogs(out, key)
	},
}

func printCatalogs(out io.Writer, key string) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	show := func(k string) bool { return key == "" || key == k }

	if show("module_drawers") {
		_, _ = fmt.Fprintln(tw, "MODULE DRAWER\tSIZE RATIO\tRADIUS RATIO\tDESCRIPTION")
		for _, d := range render.ModuleDrawerCatalog() {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, yesNo(d.SupportsSizeRatio), yesNo(d.SupportsRadiusRatio), d.Description)
		}
		_, _ = fmt.Fprintln(tw)
	}
	if show("eye_drawers") {
		_, _ = fmt.Fprintln(tw, "EYE DRAWER\tRADIUS RATIO\tDESCRIPTION")
		for _, d := range render.EyeDrawerCatalog() {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, yesNo(d.SupportsRadiusRatio), d.Description)
		}
		_, _ = fmt.Fprintln(tw)
	}
	if show("color_masks") {
		_, _ = fmt.Fprintln(tw, "COLOR MASK\tPARAMETERS\tDESCRIPTION")
		for _, m := range render.ColorMaskCatalog() {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, strings.Join(m.Parameters, ","), m.Description)
		}
		_, _ = fmt.Fprintln(tw)
	}
	if show("error_correction_levels") {
		_, _ = fmt.Fprintln(tw, "LEVEL\tNAME\tRECOVERY\tDESCRIPTION")
		for _, l := range server.LevelCatalog() {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t~%d%%\t%s\n", l.Level, l.Name, l.RecoveryPercent, l.Description)
		}
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().Bool("json", false, "print the catalogs as JSON")
}
