// Package cmd implements the rucksack command line interface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"

	"github.com/agentic-research/rucksack/internal/config"
	"github.com/agentic-research/rucksack/internal/rucksack"
)

const version = "0.1.0"

var (
	cfgPath  string
	workDir  string
	useLocal bool

	cfg config.Config
)

// Styles shared by the table-producing commands.
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
)

// newTable builds the table chrome every listing command shares.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return titleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

var rootCmd = &cobra.Command{
	Use:   "rucksack",
	Short: "Versioned clip-item store and batch exporter for Krita documents",
	Long: `Rucksack keeps reusable Krita clip items (layers, masks, vector
shapes, layer styles) in two scopes: a global store shared across all
work, and a local store found next to the working directory. It also
batch-exports and batch-imports the images in that directory.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg.SetupLogging()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $XDG_CONFIG_HOME/rucksack/config.hcl)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "working directory holding the images")
	rootCmd.PersistentFlags().BoolVarP(&useLocal, "local", "l", false, "operate on the local scope instead of the global one")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error:"), err)
		os.Exit(1)
	}
}

// absWorkDir resolves --dir against the current directory.
func absWorkDir() (string, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", workDir, err)
	}
	return abs, nil
}

// openScope opens the store behind one scope: the configured global
// directory, or the local directory found near --dir.
func openScope(fsys billy.Filesystem, scope rucksack.Scope) (*rucksack.Store, error) {
	switch scope {
	case rucksack.ScopeGlobal:
		return rucksack.Open(fsys, cfg.GlobalDir, rucksack.ScopeGlobal)
	case rucksack.ScopeLocal:
		dir, err := absWorkDir()
		if err != nil {
			return nil, err
		}
		return rucksack.Open(fsys, rucksack.FindLocalDir(fsys, dir, cfg.StoreDirname), rucksack.ScopeLocal)
	}
	return nil, fmt.Errorf("unknown scope %q (expected global or local)", scope)
}

// openStores opens both scopes.
func openStores(fsys billy.Filesystem) (global, local *rucksack.Store, err error) {
	if global, err = openScope(fsys, rucksack.ScopeGlobal); err != nil {
		return nil, nil, err
	}
	if local, err = openScope(fsys, rucksack.ScopeLocal); err != nil {
		return nil, nil, err
	}
	return global, local, nil
}

// targetStore opens the store selected by --local.
func targetStore(fsys billy.Filesystem) (*rucksack.Store, error) {
	if useLocal {
		return openScope(fsys, rucksack.ScopeLocal)
	}
	return openScope(fsys, rucksack.ScopeGlobal)
}

// itemAt parses and bounds-checks an item index argument.
func itemAt(s *rucksack.Store, arg string) (int, rucksack.Item, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return 0, rucksack.Item{}, fmt.Errorf("not an item index: %q", arg)
	}
	if i < 0 || i >= s.Len() {
		return 0, rucksack.Item{}, fmt.Errorf("no item at index %d in the %s scope", i, s.Scope())
	}
	return i, s.Item(i), nil
}
