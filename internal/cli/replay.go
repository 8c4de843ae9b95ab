package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	replayRunID string
	replayTicks int
)

func init() {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Resume a run from its latest snapshots",
		Long:  "Restores every character from its latest snapshot in the run and continues the run from that plot boundary.",
		Args:  cobra.NoArgs,
		Run:   runReplay,
	}
	cmd.Flags().StringVar(&replayRunID, "run-id", "", "Run id to resume (required)")
	cmd.Flags().IntVarP(&replayTicks, "ticks", "n", 0, "Number of further ticks (default: the profile's ticks)")
	_ = cmd.MarkFlagRequired("run-id")

	RootCmd.AddCommand(cmd)
}

func runReplay(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	society, err := openSociety(ctx, replayTicks)
	if err != nil {
		exitErr("create society", err)
	}
	defer society.Close()

	if err := society.Replay(ctx, replayRunID); err != nil {
		exitErr("replay", err)
	}
	for _, c := range society.Characters() {
		fmt.Fprintf(os.Stderr, "%s resumes after plot %d\n", c.Name(), c.PlotID())
	}
	if err := stream(ctx, society); err != nil {
		exitErr("run", err)
	}
}
