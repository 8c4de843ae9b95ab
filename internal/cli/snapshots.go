package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/sociomind"
	"github.com/oceanbase/sociomind-go/pkg/storage"
)

var (
	snapshotsRunID     string
	snapshotsCharacter string
	snapshotsLimit     int
)

func init() {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List the snapshots of a run",
		Args:  cobra.NoArgs,
		Run:   runSnapshots,
	}
	cmd.Flags().StringVar(&snapshotsRunID, "run-id", "", "Run id (default: all runs)")
	cmd.Flags().StringVar(&snapshotsCharacter, "character", "", "Only this character")
	cmd.Flags().IntVarP(&snapshotsLimit, "limit", "l", 0, "Maximum number of snapshots")

	RootCmd.AddCommand(cmd)
}

type snapshotView struct {
	ID        int64  `json:"id"`
	RunID     string `json:"run_id"`
	Character string `json:"character"`
	PlotID    int    `json:"plot_id"`
	Hash      string `json:"hash"`
	CreatedAt string `json:"created_at"`
}

func runSnapshots(cmd *cobra.Command, args []string) {
	var (
		cfg *core.Config
		err error
	)
	if envFile != "" {
		cfg, err = core.LoadConfigFromEnvFile(envFile)
	} else {
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		exitErr("load config", err)
	}

	store, err := sociomind.OpenStore(cfg.Store)
	if err != nil {
		exitErr("open store", err)
	}
	defer store.Close()

	snaps, err := store.List(cmd.Context(), &storage.ListOptions{
		RunID:     snapshotsRunID,
		Character: snapshotsCharacter,
		Limit:     snapshotsLimit,
	})
	if err != nil {
		exitErr("list", err)
	}

	views := make([]snapshotView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, snapshotView{
			ID:        s.ID,
			RunID:     s.RunID,
			Character: s.Character,
			PlotID:    s.PlotID,
			Hash:      s.Hash,
			CreatedAt: s.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	if formatFlag == "json" {
		b, _ := json.MarshalIndent(views, "", "  ")
		fmt.Println(string(b))
		return
	}
	for _, v := range views {
		fmt.Printf("%d\t%s\t%s\tplot %d\t%s\t%s\n", v.ID, v.RunID, v.Character, v.PlotID, v.Hash, v.CreatedAt)
	}
}
