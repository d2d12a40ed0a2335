package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/rucksack/internal/itemfs"
	"github.com/agentic-research/rucksack/internal/rucksack"
)

var (
	serveAddr  string
	serveMount string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve both stores read-only over NFS",
	Long: `Serve projects the stores as a read-only filesystem: one directory
per scope, one file per item, named after the item. With --mount the
share is also mounted at the given path (the mount call runs under
sudo) and unmounted again on shutdown. Stop with ctrl-c.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		global, local, err := openStores(rucksack.OSRoot())
		if err != nil {
			return err
		}
		srv, err := itemfs.Serve(itemfs.New(global, local), serveAddr)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		fmt.Println(titleStyle.Render("serving"), fmt.Sprintf("nfs on port %d", srv.Port()))

		if serveMount != "" {
			if err := itemfs.Mount(srv.Port(), serveMount); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("mounted"), serveMount)
			defer func() {
				if err := itemfs.Unmount(serveMount); err != nil {
					slog.Warn("could not unmount", "path", serveMount, "err", err)
				}
			}()
		} else {
			fmt.Println(mutedStyle.Render(fmt.Sprintf(
				"mount with: sudo mount -t nfs -o port=%d,mountport=%d,vers=3,tcp,nolock,ro localhost:/ <dir>",
				srv.Port(), srv.Port())))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		fmt.Println(mutedStyle.Render("shutting down"))
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:0", "address to serve NFS on")
	serveCmd.Flags().StringVar(&serveMount, "mount", "", "also mount the share at this path")
	rootCmd.AddCommand(serveCmd)
}
