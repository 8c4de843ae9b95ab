// Package sociomind runs the plot lifecycle of autonomous characters: each
// tick a character senses its partner, talks, reflects on finished plots,
// and negotiates the next plot.
package sociomind

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/oceanbase/sociomind-go/pkg/cognition"
	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/memory"
	"github.com/oceanbase/sociomind-go/pkg/oracle"
	"github.com/oceanbase/sociomind-go/pkg/psycho"
	"github.com/oceanbase/sociomind-go/pkg/storage"
)

// Character is one autonomous character: its memory graph, psychological
// state and the oracle it thinks with.
//
// At most one reaction of a character is in flight at a time. A character
// may be observed by its partner while it reacts.
type Character struct {
	mu sync.Mutex

	name    string
	partner *Character

	sim     *core.SimulationConfig
	oracle  *oracle.Oracle
	persona *psycho.PersonaDB
	places  *cognition.Map
	state   *psycho.State
	memory  *memory.Memory
	working workingMemory

	store  storage.SnapshotStore
	ids    *snowflake.Node
	runID  string
	logger *slog.Logger
	now    func() time.Time
}

// NewCharacter builds the named character of sim, paired with partner. The
// profile must exist in sim; a profile without a relationship toward partner
// starts from an unknown relationship.
func NewCharacter(ctx context.Context, name, partner string, sim *core.SimulationConfig, o *oracle.Oracle, opts ...Option) (*Character, error) {
	if sim == nil || o == nil {
		return nil, core.NewSimError("NewCharacter", core.ErrInvalidInput)
	}
	profile, ok := sim.Characters[name]
	if !ok {
		return nil, core.NewSimError("NewCharacter", fmt.Errorf("%w: unknown character %q", core.ErrInvalidInput, name))
	}
	if partner == "" || partner == name {
		return nil, core.NewSimError("NewCharacter", fmt.Errorf("%w: bad partner %q for %q", core.ErrInvalidInput, partner, name))
	}
	cfg := applyOptions(opts)

	rels := make(map[string]core.RelationshipProfile, len(profile.Relationships)+1)
	for k, v := range profile.Relationships {
		rels[k] = v
	}
	if _, ok := rels[partner]; !ok {
		rels[partner] = core.RelationshipProfile{}
	}

	mem, err := memory.New(ctx, name, rels, o.EmbedFunc(), memory.WithClock(cfg.now))
	if err != nil {
		return nil, core.NewSimError("NewCharacter", err)
	}
	state := psycho.New(ctx, name, partner, profile, o,
		psycho.WithClock(cfg.now),
		psycho.WithTopicLimits(sim.MaxTopicCache, sim.MaxUsedTopicRetrieval),
	)

	ids := cfg.ids
	if ids == nil {
		if ids, err = snowflake.NewNode(1); err != nil {
			return nil, core.NewSimError("NewCharacter", err)
		}
	}
	runID := cfg.runID
	if runID == "" {
		runID = ids.Generate().String()
	}

	return &Character{
		name:    name,
		sim:     sim,
		oracle:  o,
		persona: cfg.persona,
		places:  cognition.New(sim.Places),
		state:   state,
		memory:  mem,
		store:   cfg.store,
		ids:     ids,
		runID:   runID,
		logger:  cfg.logger.With("character", name),
		now:     cfg.now,
	}, nil
}

// SetPartner links the partner this character senses. Its name must be the
// partner the character was built with.
func (c *Character) SetPartner(p *Character) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == nil || p.name != c.state.Partner() {
		return core.NewSimError("SetPartner", fmt.Errorf("%w: %s expects partner %q", core.ErrInvalidInput, c.name, c.state.Partner()))
	}
	c.partner = p
	return nil
}

// Name returns the character name.
func (c *Character) Name() string { return c.name }

// RunID returns the run id snapshots are saved under.
func (c *Character) RunID() string { return c.runID }

// PlotState returns the lifecycle state.
func (c *Character) PlotState() psycho.PlotState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.PlotState
}

// PlotID returns the current plot id, -1 before the first plot.
func (c *Character) PlotID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentPlotID
}

// Memory returns the memory graph. It must not be used while the character
// reacts.
func (c *Character) Memory() *memory.Memory { return c.memory }

// State returns the psychological state. It must not be used while the
// character reacts.
func (c *Character) State() *psycho.State { return c.state }

// ObservedInfo returns a deep copy of what viewer can see of this character.
// Only the partner may observe.
func (c *Character) ObservedInfo(viewer string) (psycho.ObservedInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if viewer != c.state.Partner() {
		return psycho.ObservedInfo{}, core.NewSimError("ObservedInfo", fmt.Errorf("%w: %q is not the partner of %q", core.ErrInvalidInput, viewer, c.name))
	}
	return c.state.Observed(), nil
}

// sense reads the partner. On failure it returns an empty observation and
// false.
func (c *Character) sense() (psycho.ObservedInfo, bool) {
	if c.partner == nil {
		return psycho.ObservedInfo{}, false
	}
	info, err := c.partner.ObservedInfo(c.name)
	if err != nil {
		c.logger.Debug("sensing failed", "error", err)
		return psycho.ObservedInfo{}, false
	}
	return info, true
}

func (c *Character) setState(s psycho.PlotState) {
	if c.state.PlotState == s {
		return
	}
	c.logger.Info("plot state changed",
		"plot_id", c.state.CurrentPlotID,
		"round", c.state.CurrentRound,
		"from", c.state.PlotState,
		"state", s,
	)
	c.state.PlotState = s
}

// Reaction runs one step of the plot lifecycle. Each call handles exactly
// one state: a working plot advances by one dialog turn, a finished plot is
// closed and the next one planned, and pending proposals are negotiated into
// a new plot. It returns an error only when persistence fails or ctx is done.
func (c *Character) Reaction(ctx context.Context) error {
	// The partner is sensed before our own lock is taken so two characters
	// reacting at once never wait on each other.
	observed, sensed := c.sense()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.PlotState == psycho.StateEnd {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// A failed sensing keeps the last observation, proposals included.
	partner := c.state.Partner()
	if prev, ok := c.state.PreservedObserved[partner]; sensed && (!ok || !prev.Equal(observed)) {
		c.state.PreservedObserved[partner] = observed.Clone()
	}

	switch c.state.PlotState {
	case psycho.StateWorking:
		if observed.PlotState == psycho.StateWorking {
			c.perception(ctx)
			c.memoryQuery()
			c.decision(ctx)
		} else {
			c.setState(psycho.StatePlotFinished)
		}
		c.reflection(ctx)

	case psycho.StatePlotFinished:
		c.endPlot()
		if err := c.save(ctx); err != nil {
			return err
		}
		if err := c.writeLog(); err != nil {
			c.logger.Warn("memory log not written", "plot_id", c.state.CurrentPlotID, "error", err)
		}
		c.planPlotProposals(ctx)

	case psycho.StatePlanProposals:
		c.planStartNewPlot(ctx)
	}
	return nil
}

// StartPlot starts plot as the next plot of this character. It is the
// entry point of interactive mode, where a character waits in the plan state
// until a driver supplies a plot. plot must hold a setup for this character.
func (c *Character) StartPlot(ctx context.Context, plot core.PlotConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.PlotState {
	case psycho.StatePlan, psycho.StatePlanProposals:
	default:
		return core.NewSimError("StartPlot", fmt.Errorf("%w: %s is %s", core.ErrInvalidInput, c.name, c.state.PlotState))
	}
	if _, ok := plot[c.name]; !ok {
		return core.NewSimError("StartPlot", fmt.Errorf("%w: no setup for %q", core.ErrInvalidInput, c.name))
	}
	if err := c.startNewPlot(ctx, plot.Clone()); err != nil {
		return err
	}
	c.setState(psycho.StateWorking)
	return nil
}
