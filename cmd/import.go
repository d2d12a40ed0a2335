package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/rucksack/internal/batch"
	"github.com/agentic-research/rucksack/internal/host/krita"
	"github.com/agentic-research/rucksack/internal/rucksack"
)

var (
	importDPI       float64
	importOnExists  string
	importFileLayer bool
)

var importCmd = &cobra.Command{
	Use:   "import <image...>",
	Short: "Turn plain images into .kra documents in the working directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := batch.ParseExistsPolicy(importOnExists)
		if err != nil {
			return err
		}
		dir, err := absWorkDir()
		if err != nil {
			return err
		}
		docs, err := krita.NewStore(cfg.KritaBinary)
		if err != nil {
			return err
		}

		sources := make([]string, len(args))
		for i, a := range args {
			if sources[i], err = filepath.Abs(a); err != nil {
				return fmt.Errorf("resolve %s: %w", a, err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		im := batch.NewImporter(docs, rucksack.OSRoot())
		report, err := im.Import(ctx, dir, sources, batch.ImportOptions{
			DPI:        importDPI,
			OnExisting: policy,
			FileLayer:  importFileLayer,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s %d imported, %d skipped\n", okStyle.Render("done:"), report.Imported, report.Skipped)
		return nil
	},
}

func init() {
	importCmd.Flags().Float64Var(&importDPI, "dpi", 0, "set the document resolution (0 keeps the image's)")
	importCmd.Flags().StringVar(&importOnExists, "on-existing", "skip", "what to do when the target exists: skip, overwrite or add-as-layer")
	importCmd.Flags().BoolVar(&importFileLayer, "file-layer", false, "link the image as a file layer instead of copying pixels")
	rootCmd.AddCommand(importCmd)
}
