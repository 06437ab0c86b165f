package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var (
		groupsOnly bool
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "sync [connection-id]",
		Short: "Synchronize a connection's chat list",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				fatal(err)
			}
			defer a.close()

			sync := a.syncer.Synchronize
			if groupsOnly {
				sync = a.syncer.SynchronizeGroups
			}

			res, err := sync(ctx, args[0])
			if err != nil {
				fatal(err)
			}

			if jsonOutput {
				printJSON(res)
				return
			}
			fmt.Printf("Synced %s: %d total, %d skipped, %d resolved, %d dropped, %d inserted\n",
				args[0], res.Total, res.Skipped, res.Resolved, res.Dropped, res.Inserted)
		},
	}
	cmd.Flags().BoolVar(&groupsOnly, "groups", false, "bulk-sync groups only (one provider call)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
