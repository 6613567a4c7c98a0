package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:     "events <id>",
	Aliases: []string{"history"},
	Short:   "Show an issue's audit trail, newest first",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := store.GetEvents(cmd.Context(), args[0], eventsLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(events)
			return nil
		}
		if len(events) == 0 {
			fmt.Println(dimStyle.Render("no events"))
			return nil
		}
		for _, ev := range events {
			line := fmt.Sprintf("%s  %-20s %s",
				dimStyle.Render(ev.CreatedAt.Format("2006-01-02 15:04:05")),
				ev.EventType, ev.Actor)
			if ev.OldValue != nil || ev.NewValue != nil {
				oldV, newV := "", ""
				if ev.OldValue != nil {
					oldV = *ev.OldValue
				}
				if ev.NewValue != nil {
					newV = *ev.NewValue
				}
				line += dimStyle.Render(fmt.Sprintf("  %q -> %q", oldV, newV))
			}
			fmt.Println(line)
			if ev.Comment != nil {
				fmt.Println(dimStyle.Render("    " + *ev.Comment))
			}
		}
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:     "undo <id>",
	Short:   "Revert the most recent reversible change to an issue",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := store.UndoLast(cmd.Context(), args[0], currentActor())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(result)
			return nil
		}
		if !result.Undone {
			fmt.Println(warnStyle.Render("nothing undone: ") + result.Reason)
			return nil
		}
		fmt.Printf("%s reverted %s\n", okStyle.Render("✓"), result.EventType)
		return nil
	},
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 0, "maximum events")
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(undoCmd)
}
