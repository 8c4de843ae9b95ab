package sociomind

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/memory"
	"github.com/oceanbase/sociomind-go/pkg/psycho"
	"github.com/oceanbase/sociomind-go/pkg/storage"
)

// snapshotPayload is the JSON document a snapshot stores.
type snapshotPayload struct {
	Memory json.RawMessage  `json:"memory"`
	State  *psycho.Snapshot `json:"state"`
}

// save persists the character at a plot boundary. Without a store nothing
// is saved.
func (c *Character) save(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	mem, err := json.Marshal(c.memory.Export())
	if err != nil {
		return core.NewSimError("save", err)
	}
	payload, err := json.Marshal(snapshotPayload{Memory: mem, State: c.state.Snapshot()})
	if err != nil {
		return core.NewSimError("save", err)
	}

	snap := &storage.Snapshot{
		ID:        c.ids.Generate().Int64(),
		RunID:     c.runID,
		Character: c.name,
		PlotID:    c.state.CurrentPlotID,
		Payload:   payload,
	}
	if err := c.store.Save(ctx, snap); err != nil {
		return core.NewSimError("save", err)
	}
	c.logger.Info("snapshot saved", "plot_id", snap.PlotID, "snapshot_id", snap.ID, "bytes", len(payload))
	return nil
}

// writeLog dumps the whole memory as text and CSV under the save directory.
func (c *Character) writeLog() error {
	if c.sim.SaveDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.sim.SaveDir, 0o755); err != nil {
		return err
	}
	txt, err := os.Create(filepath.Join(c.sim.SaveDir, c.name+"_logs.txt"))
	if err != nil {
		return err
	}
	defer txt.Close()
	f, err := os.Create(filepath.Join(c.sim.SaveDir, c.name+"_logs.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := c.memory.WriteLog(txt, cw, true); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Restore replaces the memory and state of the character with its latest
// snapshot in runID. Later snapshots are saved under runID too. The restored
// character resumes at the plot boundary the snapshot was taken at.
func (c *Character) Restore(ctx context.Context, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return core.NewSimError("Restore", fmt.Errorf("%w: no snapshot store", core.ErrInvalidConfig))
	}
	snap, err := c.store.Latest(ctx, runID, c.name)
	if err != nil {
		return err
	}
	var payload snapshotPayload
	if err := json.Unmarshal(snap.Payload, &payload); err != nil {
		return core.NewSimError("Restore", err)
	}
	mem, err := memory.Restore(payload.Memory, c.oracle.EmbedFunc(), memory.WithClock(c.now))
	if err != nil {
		return err
	}
	if err := c.state.Restore(payload.State); err != nil {
		return err
	}
	c.memory = mem
	c.working = workingMemory{}
	c.runID = runID
	c.logger.Info("snapshot restored",
		"run_id", runID,
		"snapshot_id", snap.ID,
		"plot_id", c.state.CurrentPlotID,
		"state", c.state.PlotState,
	)
	return nil
}
