package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waplink/waplink/internal/session"
)

func qrCmd() *cobra.Command {
	var (
		outPath string
		size    int
	)
	cmd := &cobra.Command{
		Use:   "qr [connection-id]",
		Short: "Fetch fresh pairing material and render the QR as PNG",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				fatal(err)
			}
			defer a.close()

			payload, err := a.manager.PairingPayload(ctx, args[0])
			if err != nil {
				fatal(err)
			}

			png, err := session.PairingQR(payload, size)
			if err != nil {
				fatal(err)
			}

			if err := os.WriteFile(outPath, png, 0o644); err != nil {
				fatal(err)
			}
			fmt.Printf("QR written to %s\n", outPath)
			if payload.PairingCode != "" {
				fmt.Printf("Pairing code: %s\n", payload.PairingCode)
			}
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "pairing-qr.png", "output PNG path")
	cmd.Flags().IntVar(&size, "size", 256, "image size in pixels")
	return cmd
}
