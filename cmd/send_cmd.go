package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waplink/waplink/internal/provider"
)

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send messages through a connection",
	}
	cmd.AddCommand(sendTextCmd())
	cmd.AddCommand(sendMediaCmd())
	return cmd
}

func sendTextCmd() *cobra.Command {
	var (
		number string
		text   string
	)
	cmd := &cobra.Command{
		Use:   "text [connection-id]",
		Short: "Send a text message",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				fatal(err)
			}
			defer a.close()

			err = a.manager.SendText(ctx, args[0], provider.TextMessage{
				Number: number,
				Text:   text,
			})
			if err != nil {
				fatal(err)
			}
			fmt.Printf("Sent to %s\n", number)
		},
	}
	cmd.Flags().StringVar(&number, "to", "", "recipient number or JID (required)")
	cmd.Flags().StringVar(&text, "text", "", "message text (required)")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("text")
	return cmd
}

func sendMediaCmd() *cobra.Command {
	var (
		number    string
		mediaType string
		media     string
		caption   string
		fileName  string
	)
	cmd := &cobra.Command{
		Use:   "media [connection-id]",
		Short: "Send a media message (URL or base64 payload)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				fatal(err)
			}
			defer a.close()

			err = a.manager.SendMedia(ctx, args[0], provider.MediaMessage{
				Number:    number,
				MediaType: mediaType,
				Media:     media,
				Caption:   caption,
				FileName:  fileName,
			})
			if err != nil {
				fatal(err)
			}
			fmt.Printf("Sent %s to %s\n", mediaType, number)
		},
	}
	cmd.Flags().StringVar(&number, "to", "", "recipient number or JID (required)")
	cmd.Flags().StringVar(&mediaType, "type", "image", "media type: image, video, audio, document")
	cmd.Flags().StringVar(&media, "media", "", "media URL or base64 payload (required)")
	cmd.Flags().StringVar(&caption, "caption", "", "caption")
	cmd.Flags().StringVar(&fileName, "filename", "", "file name shown to the recipient")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("media")
	return cmd
}
