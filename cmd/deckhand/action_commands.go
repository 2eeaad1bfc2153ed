package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"deckhand/internal/ipc"
	"deckhand/internal/session"
)

func runAction(cmd *cobra.Command, ctx *commandContext, action session.Action) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Action(ipc.ActionRequest{Action: action})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), describeResult(resp.Result))
		return nil
	})
}

func describeResult(res session.Result) string {
	switch {
	case res.Skipped:
		detail := res.Detail
		if detail == "" {
			detail = "nothing to do"
		}
		return fmt.Sprintf("%s skipped: %s", res.Kind, detail)
	case res.Token != "":
		return fmt.Sprintf("%s: token %s", res.Kind, res.Token)
	case res.Detail != "":
		return fmt.Sprintf("%s: %s", res.Kind, res.Detail)
	case res.Command != "":
		return fmt.Sprintf("%s: %s", res.Kind, res.Command)
	default:
		return fmt.Sprintf("%s: ok", res.Kind)
	}
}

func optionalBool(cmd *cobra.Command, name string, value bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func newTransportCommand(ctx *commandContext) *cobra.Command {
	transportCmd := &cobra.Command{
		Use:     "transport",
		Aliases: []string{"t"},
		Short:   "Drive the recorder transport",
	}

	var playSpeed int
	var playLoop, playSingle bool
	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Start playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			action := session.Action{
				Kind:       session.KindPlay,
				Loop:       optionalBool(cmd, "loop", playLoop),
				SingleClip: optionalBool(cmd, "single-clip", playSingle),
			}
			if cmd.Flags().Changed("speed") {
				action.Speed = &playSpeed
			}
			return runAction(cmd, ctx, action)
		},
	}
	playCmd.Flags().IntVar(&playSpeed, "speed", 100, "Playback speed in percent (-5000..5000)")
	playCmd.Flags().BoolVar(&playLoop, "loop", false, "Loop playback")
	playCmd.Flags().BoolVar(&playSingle, "single-clip", false, "Stay within the current clip")

	haltCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, ctx, session.Action{Kind: session.KindStop})
		},
	}

	var recName string
	var recAppend, recStamp, recReel bool
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Start recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			action := session.Action{Kind: session.KindRecord}
			switch {
			case recAppend:
				action.Kind = session.KindRecordAppend
			case recStamp:
				action.Kind = session.KindRecordStamp
				action.Name = recName
			case recReel:
				action.Kind = session.KindRecordCustom
				action.Name = recName
			case strings.TrimSpace(recName) != "":
				action.Kind = session.KindRecordName
				action.Name = recName
			}
			return runAction(cmd, ctx, action)
		},
	}
	recordCmd.Flags().StringVar(&recName, "name", "", "Clip name, timestamp prefix or reel, depending on the mode")
	recordCmd.Flags().BoolVar(&recAppend, "append", false, "Append to the last clip")
	recordCmd.Flags().BoolVar(&recStamp, "timestamp", false, "Name the clip with a timestamp")
	recordCmd.Flags().BoolVar(&recReel, "reel", false, "Name the clip with the reel and a running counter")
	recordCmd.MarkFlagsMutuallyExclusive("append", "timestamp", "reel")

	var gotoClip int
	var gotoName, gotoEdge string
	gotoCmd := &cobra.Command{
		Use:   "goto [timecode]",
		Short: "Move the playhead to a timecode, clip or clip edge",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var action session.Action
			switch {
			case gotoClip > 0:
				action = session.Action{Kind: session.KindGotoClip, Number: gotoClip}
			case strings.TrimSpace(gotoName) != "":
				action = session.Action{Kind: session.KindGotoName, Name: gotoName}
			case gotoEdge != "":
				action = session.Action{Kind: session.KindGoStartEnd, Value: gotoEdge}
			case len(args) == 1:
				action = session.Action{Kind: session.KindGoto, Timecode: args[0]}
			default:
				return fmt.Errorf("goto needs a timecode, --clip, --name or --edge")
			}
			return runAction(cmd, ctx, action)
		},
	}
	gotoCmd.Flags().IntVar(&gotoClip, "clip", 0, "Clip id")
	gotoCmd.Flags().StringVar(&gotoName, "name", "", "Clip name")
	gotoCmd.Flags().StringVar(&gotoEdge, "edge", "", "Clip edge (start or end)")
	gotoCmd.MarkFlagsMutuallyExclusive("clip", "name", "edge")

	shuttleCmd := &cobra.Command{
		Use:   "shuttle <speed>",
		Short: "Shuttle at a speed in percent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			speed, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid speed %q", args[0])
			}
			return runAction(cmd, ctx, session.Action{Kind: session.KindShuttle, Number: speed})
		},
	}

	selectCmd := &cobra.Command{
		Use:   "select <slot>",
		Short: "Select the active slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid slot %q", args[0])
			}
			return runAction(cmd, ctx, session.Action{Kind: session.KindSelectSlot, Number: slot})
		},
	}

	formatCmd := &cobra.Command{
		Use:   "format",
		Short: "Format the active slot in two steps",
	}
	formatCmd.AddCommand(&cobra.Command{
		Use:   "prepare [filesystem]",
		Short: "Request a format token (exFAT unless given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := session.Action{Kind: session.KindFormatPrepare}
			if len(args) == 1 {
				action.Value = args[0]
			}
			return runAction(cmd, ctx, action)
		},
	})
	formatCmd.AddCommand(&cobra.Command{
		Use:   "confirm",
		Short: "Confirm the prepared format; this erases the slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, ctx, session.Action{Kind: session.KindFormatConfirm})
		},
	})

	transportCmd.AddCommand(playCmd, haltCmd, recordCmd, gotoCmd, shuttleCmd, selectCmd, formatCmd)
	return transportCmd
}

func newCueCommand(ctx *commandContext) *cobra.Command {
	cueCmd := &cobra.Command{
		Use:   "cue",
		Short: "Arm and set the fade cue",
	}

	simple := func(use, short string, kind session.Kind) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAction(cmd, ctx, session.Action{Kind: kind})
			},
		}
	}
	point := func(use, short string, kind session.Kind) *cobra.Command {
		return &cobra.Command{
			Use:   use + " [timecode]",
			Short: short,
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				action := session.Action{Kind: kind}
				if len(args) == 1 {
					action.Timecode = args[0]
				}
				return runAction(cmd, ctx, action)
			},
		}
	}

	cueCmd.AddCommand(
		simple("arm", "Arm the fade cue", session.KindArmCue),
		simple("arm-stop", "Arm the automatic stop at the out point", session.KindArmStop),
		simple("reset", "Disarm the cue", session.KindResetCue),
		point("in", "Set the in point (current position when omitted)", session.KindSetInPoint),
		point("out", "Set the out point (current position when omitted)", session.KindSetOutPoint),
	)
	return cueCmd
}
