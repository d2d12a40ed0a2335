package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/rucksack/internal/rucksack"
)

var doctorGC bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check both stores for stray auxiliary files",
	Long: `Doctor compares each store's index against the auxiliary documents in
its directory. Orphans are files no item references; dangling entries
are items whose file is missing. With --gc the orphans are removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		global, local, err := openStores(rucksack.OSRoot())
		if err != nil {
			return err
		}
		clean := true
		for _, s := range []*rucksack.Store{global, local} {
			rep, err := s.Doctor()
			if err != nil {
				return err
			}
			if rep.Clean() {
				continue
			}
			clean = false
			for _, n := range rep.Orphans {
				fmt.Println(errStyle.Render("orphan"), s.NodePath(n), mutedStyle.Render("(no item references it)"))
			}
			for _, n := range rep.Dangling {
				fmt.Println(errStyle.Render("dangling"), s.NodePath(n), mutedStyle.Render("(referenced but missing)"))
			}
			if doctorGC && len(rep.Orphans) > 0 {
				removed, err := s.GC()
				for _, n := range removed {
					fmt.Println(okStyle.Render("removed"), s.NodePath(n))
				}
				if err != nil {
					return err
				}
			}
		}
		if clean {
			fmt.Println(okStyle.Render("both stores are clean"))
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorGC, "gc", false, "remove orphaned auxiliary files")
	rootCmd.AddCommand(doctorCmd)
}
