package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"

	"github.com/agentic-research/rucksack/internal/batch"
	"github.com/agentic-research/rucksack/internal/host"
	"github.com/agentic-research/rucksack/internal/host/krita"
	"github.com/agentic-research/rucksack/internal/journal"
	"github.com/agentic-research/rucksack/internal/rucksack"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the export settings of the working directory",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the export settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := absWorkDir()
		if err != nil {
			return err
		}
		s := batch.LoadExportSettings(rucksack.OSRoot(), dir)
		path := s.ExportPath
		if path == "" {
			path = mutedStyle.Render("(unset)")
		}
		fmt.Println(titleStyle.Render("export settings"), mutedStyle.Render(dir))
		fmt.Println("  export_path      " + path)
		fmt.Println("  format           " + s.Format.DisplayName())
		fmt.Printf("  png_compression  %d\n", s.PNGCompression)
		fmt.Printf("  oxipng           %t\n", s.Oxipng)
		fmt.Printf("  webp_method      %d\n", s.WebPMethod)
		return nil
	},
}

var (
	setPath   string
	setFormat string
	setPNG    int
	setOxipng bool
	setWebP   int
)

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change export settings",
	Long: `Set updates only the settings whose flags were given and writes the
directory's settings file. The export path is stored absolute, so the
file keeps working when the directory is entered from elsewhere.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := absWorkDir()
		if err != nil {
			return err
		}
		fsys := rucksack.OSRoot()
		s := batch.LoadExportSettings(fsys, dir)

		flags := cmd.Flags()
		if flags.Changed("path") {
			abs, err := filepath.Abs(setPath)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", setPath, err)
			}
			s.ExportPath = abs
		}
		if flags.Changed("format") {
			if s.Format, err = batch.ParseFormat(setFormat); err != nil {
				return err
			}
		}
		if flags.Changed("png-compression") {
			if setPNG < 1 || setPNG > 9 {
				return fmt.Errorf("png compression %d out of range 1..9", setPNG)
			}
			s.PNGCompression = setPNG
		}
		if flags.Changed("oxipng") {
			s.Oxipng = setOxipng
		}
		if flags.Changed("webp-method") {
			if setWebP < 0 || setWebP > 6 {
				return fmt.Errorf("webp method %d out of range 0..6", setWebP)
			}
			s.WebPMethod = setWebP
		}
		if s.ExportPath == "" {
			return fmt.Errorf("no export path configured, give one with --path")
		}

		if err := batch.SaveExportSettings(fsys, dir, s); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("saved"), fsys.Join(dir, batch.SettingsName))
		return nil
	},
}

var (
	exportForce  bool
	exportDryRun bool
)

var exportCmd = &cobra.Command{
	Use:   "export [sources...]",
	Short: "Export documents to the configured distribution format",
	Long: `Export renders the working directory's documents into the directory
named by the export settings. Without arguments every image in the
directory is considered; sources whose exported file is already up to
date are skipped unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := absWorkDir()
		if err != nil {
			return err
		}
		fsys := rucksack.OSRoot()
		settings := batch.LoadExportSettings(fsys, dir)
		if settings.ExportPath == "" {
			return fmt.Errorf("no export path configured for %s, set one with: rucksack settings set --path <dir>", dir)
		}

		sources := args
		if len(sources) == 0 {
			if sources, err = batch.ListImages(fsys, dir); err != nil {
				return err
			}
		}
		if len(sources) == 0 {
			fmt.Println(mutedStyle.Render("nothing to export"))
			return nil
		}

		exp, cleanup, err := newExporter(fsys)
		if err != nil {
			return err
		}
		defer cleanup()

		tasks, skipped, err := exp.Plan(dir, sources, settings, exportForce)
		if err != nil {
			return err
		}
		if exportDryRun {
			for _, task := range tasks {
				fmt.Println(okStyle.Render("would export"), task.Source, mutedStyle.Render("to"), task.Destination)
			}
			fmt.Println(mutedStyle.Render(fmt.Sprintf("%d to export, %d up to date", len(tasks), skipped)))
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		updated, err := exp.Run(ctx, tasks, settings)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d exported, %d up to date\n", okStyle.Render("done:"), updated, skipped)
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent exports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()

		entries, err := j.Recent(historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println(mutedStyle.Render("no exports recorded yet"))
			return nil
		}
		t := newTable("WHEN", "SOURCE", "DESTINATION", "FORMAT", "TOOK")
		for _, e := range entries {
			t.Row(
				e.ExportedAt.Local().Format("2006-01-02 15:04"),
				filepath.Base(e.Source),
				e.Destination,
				e.Format,
				e.Duration.Round(time.Millisecond).String(),
			)
		}
		fmt.Println(t)
		return nil
	},
}

func init() {
	settingsSetCmd.Flags().StringVar(&setPath, "path", "", "directory exports are written to")
	settingsSetCmd.Flags().StringVar(&setFormat, "format", "", "export format: PNG, WEBP_LOSSLESS or WEBP_LOSSY")
	settingsSetCmd.Flags().IntVar(&setPNG, "png-compression", 0, "png compression level, 1..9")
	settingsSetCmd.Flags().BoolVar(&setOxipng, "oxipng", false, "recompress exported pngs with oxipng")
	settingsSetCmd.Flags().IntVar(&setWebP, "webp-method", 0, "webp encoder effort, 0..6")
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)

	exportCmd.Flags().BoolVarP(&exportForce, "force", "f", false, "export even when the destination is up to date")
	exportCmd.Flags().BoolVarP(&exportDryRun, "dry-run", "n", false, "show what would be exported without doing it")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of entries to show")

	rootCmd.AddCommand(settingsCmd, exportCmd, historyCmd)
}

// newExporter wires the exporter against the configured krita binary,
// the oxipng optimizer and the export journal. A journal that cannot
// be opened is logged and left out; exports still run.
func newExporter(fsys billy.Filesystem) (*batch.Exporter, func(), error) {
	docs, err := krita.NewStore(cfg.KritaBinary)
	if err != nil {
		return nil, nil, err
	}
	oxipng := func(ctx context.Context, level int, path string) error {
		return krita.RunOxipng(ctx, cfg.OxipngBinary, level, path)
	}

	var rec batch.Recorder
	cleanup := func() {}
	if j, err := openJournal(); err != nil {
		slog.Warn("could not open export journal", "err", err)
	} else {
		rec = j
		cleanup = func() { _ = j.Close() }
	}

	exp := batch.NewExporter(docs, fsys, host.NewLogNotifier(slog.Default()),
		batch.ExporterConfig{Oxipng: oxipng, Recorder: rec})
	return exp, cleanup, nil
}

func openJournal() (*journal.Journal, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	return journal.Open(cfg.JournalPath)
}
