package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/oceanbase/sociomind-go/pkg/sociomind"
)

var (
	runTicks int
	runID    string
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a new society",
		Long:  "Runs the society described by the simulation profile, printing every character reaction.",
		Args:  cobra.NoArgs,
		Run:   runRun,
	}
	cmd.Flags().IntVarP(&runTicks, "ticks", "n", 0, "Number of ticks (default: the profile's ticks)")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id to save snapshots under (default: generated)")

	RootCmd.AddCommand(cmd)
}

func runRun(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	society, err := openSociety(ctx, runTicks, sociomind.WithRunID(runID))
	if err != nil {
		exitErr("create society", err)
	}
	defer society.Close()

	fmt.Fprintf(os.Stderr, "run %s\n", society.RunID())
	if err := stream(ctx, society); err != nil {
		exitErr("run", err)
	}
}

// openSociety builds the configured society, overriding the tick count when
// ticks is positive.
func openSociety(ctx context.Context, ticks int, opts ...sociomind.Option) (*sociomind.Society, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if ticks > 0 {
		cfg.Simulation.Ticks = ticks
	}
	opts = append(opts, sociomind.WithLogger(newLogger()))
	return sociomind.NewSociety(ctx, cfg, opts...)
}

type tickView struct {
	Tick      int    `json:"tick"`
	Character string `json:"character"`
	PlotID    int    `json:"plot_id"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

// stream runs the society and prints each reaction as it happens.
func stream(ctx context.Context, society *sociomind.Society) error {
	enc := json.NewEncoder(os.Stdout)
	var last error
	for r := range society.RunStream(ctx) {
		v := tickView{Tick: r.Tick, Character: r.Character, PlotID: r.PlotID, State: string(r.State)}
		if r.Error != nil {
			v.Error = r.Error.Error()
			last = r.Error
		}
		if formatFlag == "json" {
			_ = enc.Encode(v)
			continue
		}
		fmt.Printf("tick %-3d %-12s plot %-3d %s\n", v.Tick, v.Character, v.PlotID, v.State)
	}
	if last != nil {
		return last
	}
	return ctx.Err()
}
