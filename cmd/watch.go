package cmd

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/rucksack/internal/batch"
	"github.com/agentic-research/rucksack/internal/rucksack"
	"github.com/agentic-research/rucksack/internal/watch"
)

// Image events are collected for this long before exporting, so a
// burst of saves turns into one export run.
const debounceDelay = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the working directory and re-export documents as they change",
	Long: `Watch keeps running, re-exporting a document shortly after it is
saved. Store directories that exist are watched too; their indexes are
refreshed when another process changes them. Stop with ctrl-c.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := absWorkDir()
		if err != nil {
			return err
		}
		fsys := rucksack.OSRoot()
		global, local, err := openStores(fsys)
		if err != nil {
			return err
		}
		exp, cleanup, err := newExporter(fsys)
		if err != nil {
			return err
		}
		defer cleanup()

		w, err := watch.New()
		if err != nil {
			return err
		}
		dirs := []string{dir}
		for _, s := range []*rucksack.Store{global, local} {
			if _, err := fsys.Stat(s.Dir()); err == nil {
				dirs = append(dirs, s.Dir())
			}
		}
		if err := w.Start(dirs...); err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println(titleStyle.Render("watching"), dir)
		pending := make(map[string]struct{})
		debounce := time.NewTimer(debounceDelay)

		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-w.Events():
				if !ok {
					return nil
				}
				switch ev.Kind {
				case watch.KindImage:
					// Auxiliary documents inside the store
					// directories look like images too; only the
					// working directory's files are exported.
					if filepath.Dir(ev.Path) != dir {
						continue
					}
					name := filepath.Base(ev.Path)
					if ev.Op == watch.OpDelete {
						delete(pending, name)
						continue
					}
					pending[name] = struct{}{}
					debounce.Reset(debounceDelay)

				case watch.KindIndex:
					for _, s := range []*rucksack.Store{global, local} {
						if filepath.Dir(ev.Path) != s.Dir() {
							continue
						}
						if err := s.Refresh(); err != nil {
							slog.Warn("could not refresh store", "scope", s.Scope(), "err", err)
						} else {
							slog.Info("store index changed", "scope", s.Scope(), "items", s.Len())
						}
					}

				case watch.KindSettings:
					slog.Info("export settings changed", "path", ev.Path)
				}

			case err, ok := <-w.Errors():
				if !ok {
					return nil
				}
				slog.Warn("watcher error", "err", err)

			case <-debounce.C:
				if len(pending) == 0 {
					continue
				}
				names := slices.Sorted(maps.Keys(pending))
				clear(pending)

				settings := batch.LoadExportSettings(fsys, dir)
				if settings.ExportPath == "" {
					slog.Warn("no export path configured, not exporting", "dir", dir)
					continue
				}
				tasks, _, err := exp.Plan(dir, names, settings, false)
				if err != nil {
					slog.Error("could not plan export", "err", err)
					continue
				}
				updated, err := exp.Run(ctx, tasks, settings)
				if err != nil {
					slog.Error("export failed", "err", err)
				}
				if updated > 0 {
					fmt.Println(okStyle.Render("exported"), fmt.Sprintf("%d document(s)", updated))
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
