package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"github.com/agentic-research/rucksack/internal/rucksack"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the items in both scopes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		global, local, err := openStores(rucksack.OSRoot())
		if err != nil {
			return err
		}
		if global.Len()+local.Len() == 0 {
			fmt.Println(mutedStyle.Render("no items in either scope"))
			return nil
		}
		t := newTable("SCOPE", "#", "NAME", "KIND")
		for _, s := range []*rucksack.Store{global, local} {
			for i, item := range s.Items() {
				t.Row(string(s.Scope()), fmt.Sprint(i), item.Name, rucksack.Describe(item.Data))
			}
		}
		fmt.Println(t)
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a new item into the selected scope",
}

var saveKind string

var saveNodeCmd = &cobra.Command{
	Use:   "node <name> [file.kra]",
	Short: "Save a Krita document as a node item",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := rucksack.ParseNodeKind(saveKind)
		if err != nil {
			return err
		}
		contents, err := readPayload(cmd, args)
		if err != nil {
			return err
		}
		s, err := targetStore(rucksack.OSRoot())
		if err != nil {
			return err
		}
		if err := saveNode(s, args[0], kind, contents); err != nil {
			return err
		}
		reportSaved(s, args[0])
		return nil
	},
}

var saveVectorCmd = &cobra.Command{
	Use:   "vector <name> [file.svg]",
	Short: "Save an SVG vector shape",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveInline(cmd, args, func(payload string) rucksack.ItemData {
			return rucksack.Vector{SVG: payload}
		})
	},
}

var saveTextCmd = &cobra.Command{
	Use:   "text <name> [file.svg]",
	Short: "Save an SVG text shape",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveInline(cmd, args, func(payload string) rucksack.ItemData {
			return rucksack.Vector{SVG: payload, IsText: true}
		})
	},
}

var saveStyleCmd = &cobra.Command{
	Use:   "style <name> [file.asl]",
	Short: "Save a layer style",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveInline(cmd, args, func(payload string) rucksack.ItemData {
			return rucksack.LayerStyle{ASL: payload}
		})
	},
}

var rmYes bool

var rmCmd = &cobra.Command{
	Use:   "rm <index>",
	Short: "Delete an item from the selected scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := targetStore(rucksack.OSRoot())
		if err != nil {
			return err
		}
		i, item, err := itemAt(s, args[0])
		if err != nil {
			return err
		}
		if !rmYes {
			var ok bool
			confirm := huh.NewConfirm().
				Title(fmt.Sprintf("Delete %s %q from the %s scope?",
					rucksack.Describe(item.Data), item.Name, s.Scope())).
				Affirmative("Delete").
				Negative("Keep").
				Value(&ok)
			if err := confirm.Run(); err != nil {
				return err
			}
			if !ok {
				fmt.Println(mutedStyle.Render("kept"), item.Name)
				return nil
			}
		}
		if err := s.Delete(i); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("deleted"), item.Name)
		return nil
	},
}

var mvTo string

var mvCmd = &cobra.Command{
	Use:   "mv <index> [new-name]",
	Short: "Rename an item, or move it to the other scope with --to",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		global, local, err := openStores(rucksack.OSRoot())
		if err != nil {
			return err
		}
		src := global
		if useLocal {
			src = local
		}
		i, item, err := itemAt(src, args[0])
		if err != nil {
			return err
		}
		name := item.Name
		if len(args) == 2 {
			name = args[1]
		}

		if mvTo == "" {
			if len(args) < 2 {
				return fmt.Errorf("nothing to do: give a new name or --to")
			}
			if err := src.Rename(i, name); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("renamed"), item.Name, mutedStyle.Render("to"), name)
			return nil
		}

		var dst *rucksack.Store
		switch rucksack.Scope(mvTo) {
		case rucksack.ScopeGlobal:
			dst = global
		case rucksack.ScopeLocal:
			dst = local
		default:
			return fmt.Errorf("unknown scope %q (expected global or local)", mvTo)
		}
		if dst == src {
			return fmt.Errorf("item %q is already in the %s scope", item.Name, src.Scope())
		}
		if err := src.MoveTo(dst, i, name); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("moved"), name, mutedStyle.Render("to the "+string(dst.Scope())+" scope"))
		return nil
	},
}

var replaceCmd = &cobra.Command{
	Use:   "replace <index> <file>",
	Short: "Swap an item's payload, keeping its name",
	Long: `Replace swaps the payload of the item at the given index with the
contents of a file, keeping the item's name. The file extension picks
the payload type: .kra stays a node item, .svg a vector shape, .asl a
layer style. The replaced item moves to the end of the list.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := targetStore(rucksack.OSRoot())
		if err != nil {
			return err
		}
		i, old, err := itemAt(s, args[0])
		if err != nil {
			return err
		}
		contents, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}

		switch ext := filepath.Ext(args[1]); ext {
		case ".kra":
			kind := rucksack.KindLayer
			if ref, ok := old.Data.(rucksack.NodeRef); ok {
				kind = ref.Kind
			}
			n, path, err := s.AllocateNodePath()
			if err != nil {
				return err
			}
			if err := util.WriteFile(s.FS(), path, contents, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			if err := s.Replace(i, rucksack.NodeRef{Filename: n, Kind: kind}); err != nil {
				_ = s.FS().Remove(path)
				return err
			}
		case ".svg":
			isText := false
			if v, ok := old.Data.(rucksack.Vector); ok {
				isText = v.IsText
			}
			if err := s.Replace(i, rucksack.Vector{SVG: string(contents), IsText: isText}); err != nil {
				return err
			}
		case ".asl":
			if err := s.Replace(i, rucksack.LayerStyle{ASL: string(contents)}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("cannot tell the item type from %q (expected .kra, .svg or .asl)", ext)
		}
		fmt.Println(okStyle.Render("replaced"), old.Name)
		return nil
	},
}

var useOut string

var useCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Write an item's payload to a file or stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := targetStore(rucksack.OSRoot())
		if err != nil {
			return err
		}
		var payload []byte
		found := false
		for _, item := range s.Items() {
			if item.Name != args[0] {
				continue
			}
			found = true
			switch data := item.Data.(type) {
			case rucksack.NodeRef:
				if payload, err = s.ReadNode(data.Filename); err != nil {
					return err
				}
			case rucksack.Vector:
				payload = []byte(data.SVG)
			case rucksack.LayerStyle:
				payload = []byte(data.ASL)
			}
			break
		}
		if !found {
			return fmt.Errorf("no item named %q in the %s scope", args[0], s.Scope())
		}
		if useOut == "" {
			_, err := os.Stdout.Write(payload)
			return err
		}
		if err := os.WriteFile(useOut, payload, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", useOut, err)
		}
		fmt.Println(okStyle.Render("wrote"), useOut)
		return nil
	},
}

func init() {
	saveNodeCmd.Flags().StringVar(&saveKind, "kind", "LAYER", "node kind stored with the item")
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "delete without asking")
	mvCmd.Flags().StringVar(&mvTo, "to", "", "move to this scope (global or local) instead of renaming")
	useCmd.Flags().StringVarP(&useOut, "out", "o", "", "write the payload to this file instead of stdout")

	saveCmd.AddCommand(saveNodeCmd, saveVectorCmd, saveTextCmd, saveStyleCmd)
	rootCmd.AddCommand(listCmd, saveCmd, rmCmd, mvCmd, replaceCmd, useCmd)
}

// readPayload reads the item contents from the optional file argument,
// falling back to stdin.
func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) > 1 {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", args[1], err)
		}
		return data, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}

// saveNode writes the document into a freshly allocated auxiliary slot
// and then adds the item referencing it. The aux file is removed again
// if the index commit fails.
func saveNode(s *rucksack.Store, name string, kind rucksack.NodeKind, contents []byte) error {
	n, path, err := s.AllocateNodePath()
	if err != nil {
		return err
	}
	if err := util.WriteFile(s.FS(), path, contents, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := s.Add(name, rucksack.NodeRef{Filename: n, Kind: kind}); err != nil {
		_ = s.FS().Remove(path)
		return err
	}
	return nil
}

func saveInline(cmd *cobra.Command, args []string, wrap func(payload string) rucksack.ItemData) error {
	contents, err := readPayload(cmd, args)
	if err != nil {
		return err
	}
	s, err := targetStore(rucksack.OSRoot())
	if err != nil {
		return err
	}
	if err := s.Add(args[0], wrap(string(contents))); err != nil {
		return err
	}
	reportSaved(s, args[0])
	return nil
}

func reportSaved(s *rucksack.Store, name string) {
	fmt.Println(okStyle.Render("saved"), name, mutedStyle.Render("("+string(s.Scope())+" scope)"))
}
