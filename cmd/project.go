package main

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/statmap/internal/geo"
	"github.com/sells-group/statmap/internal/mapview"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project the boundary dataset and print its regions",
	Long:  "Fetches the configured boundary dataset, projects every feature, and prints the regions as JSON, YAML, or a standalone SVG document.",
	RunE:  runProject,
}

func init() {
	projectCmd.Flags().StringP("format", "f", "json", "output format: json, yaml, svg")
	projectCmd.Flags().StringP("out", "o", "", "write to file instead of stdout")
	projectCmd.Flags().Bool("strict", false, "fail instead of printing the fallback region when the dataset cannot be loaded")
	rootCmd.AddCommand(projectCmd)
}

// regionOutput is the rendering-facing view of a region.
type regionOutput struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

type projectOutput struct {
	ViewBox  string         `json:"view_box" yaml:"view_box"`
	Fallback bool           `json:"fallback" yaml:"fallback"`
	Regions  []regionOutput `json:"regions" yaml:"regions"`
}

func runProject(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")
	strict, _ := cmd.Flags().GetBool("strict")

	if err := cfg.Validate("project"); err != nil {
		return err
	}

	src, cleanup, err := newSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	pr := newProjector(cfg.Map)
	res, loadErr := mapview.NewLoader(src, pr, cfg.Map.GridSize, nil).Reload(ctx)
	if loadErr != nil {
		if strict {
			return loadErr
		}
		zap.L().Warn("printing fallback region", zap.Error(loadErr))
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return eris.Wrapf(err, "project: create %s", outPath)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	return writeRegions(w, format, pr.ViewBox(), res.Set)
}

func writeRegions(w io.Writer, format, viewBox string, set *mapview.RegionSet) error {
	out := projectOutput{ViewBox: viewBox, Fallback: set.Fallback}
	for _, r := range set.Regions {
		out.Regions = append(out.Regions, regionOutput{ID: r.ID, Name: r.Name, Path: r.Path})
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(out), "project: encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return eris.Wrap(enc.Encode(out), "project: encode yaml")
	case "svg":
		return writeSVG(w, viewBox, set.Regions)
	default:
		return eris.Errorf("project: unknown format %q (want json, yaml, or svg)", format)
	}
}

func writeSVG(w io.Writer, viewBox string, regions []geo.Region) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=%q>\n", viewBox)
	for _, r := range regions {
		b.WriteString(`  <path id="`)
		_ = xml.EscapeText(&b, []byte(r.ID))
		b.WriteString(`" data-name="`)
		_ = xml.EscapeText(&b, []byte(r.Name))
		b.WriteString(`" d="`)
		b.WriteString(r.Path)
		b.WriteString("\"/>\n")
	}
	b.WriteString("</svg>\n")

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "project: write svg")
}
