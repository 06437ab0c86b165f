package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/waplink/waplink/internal/store"
)

func connectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "View and manage connections",
	}
	cmd.AddCommand(connectionsListCmd())
	cmd.AddCommand(connectionsCountCmd())
	cmd.AddCommand(connectionsDeleteCmd())
	cmd.AddCommand(connectionsChatsCmd())
	return cmd
}

func connectionsListCmd() *cobra.Command {
	var (
		owner      string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's connections",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				fatal(err)
			}
			defer a.close()

			conns, err := a.manager.ListConnections(ctx, owner)
			if err != nil {
				fatal(err)
			}
			printConnections(conns, jsonOutput)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func connectionsCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count active connections",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				fatal(err)
			}
			defer a.close()

			n, err := a.manager.CountActive(ctx)
			if err != nil {
				fatal(err)
			}
			fmt.Printf("%d active connection(s)\n", n)
		},
	}
}

func connectionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [connection-id]",
		Short: "Tear down a connection and its chats",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				fatal(err)
			}
			defer a.close()

			if err := a.manager.Delete(ctx, args[0]); err != nil {
				fatal(err)
			}
			fmt.Printf("Deleted connection: %s\n", args[0])
		},
	}
}

func connectionsChatsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "chats [connection-id]",
		Short: "List a connection's synced chats",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				fatal(err)
			}
			defer a.close()

			chats, err := a.chats.ListByConnection(ctx, args[0])
			if err != nil {
				fatal(err)
			}
			printChats(chats, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printConnections(conns []store.Connection, jsonOutput bool) {
	if jsonOutput {
		printJSON(conns)
		return
	}

	if len(conns) == 0 {
		fmt.Println("No connections found.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tSTATUS\tRETRIES\tCREATED\n")
	for _, c := range conns {
		status := string(c.Status)
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			c.ID,
			truncateStr(c.Name, 30),
			status,
			c.RetryCount,
			c.CreatedAt.Format(time.DateTime),
		)
	}
	tw.Flush()
}

func printChats(chats []store.Chat, jsonOutput bool) {
	if jsonOutput {
		printJSON(chats)
		return
	}

	if len(chats) == 0 {
		fmt.Println("No chats found.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "EXTERNAL ID\tNAME\tTYPE\n")
	for _, c := range chats {
		kind := "contact"
		if c.IsGroup {
			kind = "group"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			truncateStr(c.ExternalID, 40),
			truncateStr(c.DisplayName, 30),
			kind,
		)
	}
	tw.Flush()
}
