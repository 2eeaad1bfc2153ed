package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"deckhand/internal/ipc"
)

func newDeviceCommands(ctx *commandContext) []*cobra.Command {
	connectCmd := &cobra.Command{
		Use:   "connect",
		Short: "Open the recorder connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Connect()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorder %s: %s\n", resp.Status, resp.Message)
				return nil
			})
		},
	}

	disconnectCmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Drop the recorder connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Disconnect(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Recorder disconnected")
				return nil
			})
		},
	}

	var clipsSlot int
	var clipsJSON bool
	clipsCmd := &cobra.Command{
		Use:   "clips",
		Short: "List the cached clips of a slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Clips(clipsSlot)
				if err != nil {
					return err
				}
				if clipsJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Clips) == 0 {
					fmt.Fprintf(stdout, "No clips on slot %d\n", resp.Slot)
					return nil
				}
				rows := make([][]string, 0, len(resp.Clips))
				for _, clip := range resp.Clips {
					rows = append(rows, []string{strconv.Itoa(clip.ID), clip.Name, clip.StartTime, clip.Duration})
				}
				fmt.Fprintln(stdout, renderTable([]string{"ID", "Name", "Start", "Duration"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
				return nil
			})
		},
	}
	clipsCmd.Flags().IntVar(&clipsSlot, "slot", 0, "Slot to list (0 for the active slot)")
	clipsCmd.Flags().BoolVar(&clipsJSON, "json", false, "Output clips as JSON")

	var varsJSON bool
	variablesCmd := &cobra.Command{
		Use:   "variables [name...]",
		Short: "Show display variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Variables()
				if err != nil {
					return err
				}
				vars := resp.Variables
				if len(args) > 0 {
					picked := make(map[string]string, len(args))
					for _, name := range args {
						value, ok := vars[name]
						if !ok {
							return fmt.Errorf("unknown variable %q", name)
						}
						picked[name] = value
					}
					vars = picked
				}
				if varsJSON {
					return writeJSON(cmd, vars)
				}
				names := make([]string, 0, len(vars))
				for name := range vars {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					rows = append(rows, []string{name, vars[name]})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Variable", "Value"}, rows, nil))
				return nil
			})
		},
	}
	variablesCmd.Flags().BoolVar(&varsJSON, "json", false, "Output variables as JSON")

	var intervalMS int
	modeCmd := &cobra.Command{
		Use:   "mode <disabled|notifications|polling>",
		Short: "Switch how display timecode reaches the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetTimecodeMode(ipc.ModeRequest{
					Mode:           strings.TrimSpace(args[0]),
					PollIntervalMS: intervalMS,
				})
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Timecode mode: %s\n", resp.Mode)
				if resp.PollerRunning {
					fmt.Fprintf(stdout, "Polling every %s\n", resp.PollInterval)
				}
				return nil
			})
		},
	}
	modeCmd.Flags().IntVar(&intervalMS, "interval", 0, "Poll interval in milliseconds (clamped to 15..10000)")

	return []*cobra.Command{connectCmd, disconnectCmd, clipsCmd, variablesCmd, modeCmd}
}
