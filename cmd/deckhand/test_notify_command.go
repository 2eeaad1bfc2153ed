package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"deckhand/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				resp, err := client.TestNotification()
				if err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				switch {
				case resp.Sent:
					fmt.Fprintln(out, "Test notification sent")
				case resp.Message != "":
					fmt.Fprintln(out, resp.Message)
					fmt.Fprintln(out, "Set notifications.ntfy_topic in the config to enable push notifications.")
				default:
					fmt.Fprintln(out, "Notification not sent")
				}
				return nil
			})
		},
	}
}
