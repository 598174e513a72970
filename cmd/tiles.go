package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/statmap/internal/mapview"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Print tile grid occupancy",
	Long:  "Loads the boundary dataset, builds the tile grid, and prints how many regions each tile holds.",
	RunE:  runTiles,
}

func init() {
	tilesCmd.Flags().Int("grid", 0, "grid size (default from config)")
	tilesCmd.Flags().Bool("list", false, "list region ids per non-empty tile")
	rootCmd.AddCommand(tilesCmd)
}

func runTiles(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if grid, _ := cmd.Flags().GetInt("grid"); grid > 0 {
		cfg.Map.GridSize = grid
	}
	list, _ := cmd.Flags().GetBool("list")

	if err := cfg.Validate("tiles"); err != nil {
		return err
	}

	src, cleanup, err := newSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := mapview.NewLoader(src, newProjector(cfg.Map), cfg.Map.GridSize, nil).Reload(ctx)
	if err != nil {
		return err
	}

	return printTiles(cmd.OutOrStdout(), res.Set, list)
}

func printTiles(w io.Writer, set *mapview.RegionSet, list bool) error {
	ix := set.Index
	fmt.Fprintf(w, "grid %dx%d, %d regions\n", ix.GridSize(), ix.GridSize(), len(set.Regions))

	for _, row := range ix.Occupancy() {
		cells := make([]string, len(row))
		for i, n := range row {
			cells[i] = fmt.Sprintf("%3d", n)
		}
		fmt.Fprintln(w, strings.Join(cells, " "))
	}

	if !list {
		return nil
	}
	for _, t := range ix.Tiles() {
		if len(t.RegionIDs) == 0 {
			continue
		}
		fmt.Fprintf(w, "(%d,%d) %s\n", t.GridX, t.GridY, strings.Join(t.RegionIDs, ","))
	}
	return nil
}
