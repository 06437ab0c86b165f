package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func connectCmd() *cobra.Command {
	var (
		owner       string
		name        string
		description string
		jsonOutput  bool
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Create a connection and start pairing",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				fatal(err)
			}
			defer a.close()

			c, err := a.manager.Connect(ctx, owner, name, description)
			if err != nil {
				fatal(err)
			}

			if jsonOutput {
				printJSON(c)
				return
			}

			fmt.Printf("Connection created: %s (status %s)\n", c.ID, c.Status)
			payload, err := a.manager.PairingPayload(ctx, c.ID)
			if err != nil {
				fmt.Printf("Pairing payload not available yet: %v\n", err)
				return
			}
			if payload.PairingCode != "" {
				fmt.Printf("Pairing code: %s\n", payload.PairingCode)
			}
			fmt.Printf("Run 'waplink qr %s' to render the QR image.\n", c.ID)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	cmd.Flags().StringVar(&name, "name", "", "connection name")
	cmd.Flags().StringVar(&description, "description", "", "connection description")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.MarkFlagRequired("owner")
	return cmd
}
