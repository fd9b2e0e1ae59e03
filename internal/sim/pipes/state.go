package pipes

import (
	"fmt"

	"pipescreen.ai/internal/sim/lattice"
)

type PipeState struct {
	ID     lattice.PipeID `json:"id"`
	Style  Style          `json:"style"`
	Path   []lattice.Cell `json:"path"`
	Joints []JointMark    `json:"joints,omitempty"`
}

// State is the resumable part of a Field. The random source is captured by the caller.
type State struct {
	Bounds     lattice.Bounds `json:"bounds"`
	Batch      BatchConfig    `json:"batch"`
	Pipes      []PipeState    `json:"pipes"`
	Occupancy  string         `json:"occupancy"`
	NextID     lattice.PipeID `json:"next_id"`
	CycleIndex int            `json:"cycle_index"`
	StuckTicks int            `json:"stuck_ticks"`
	Stats      Stats          `json:"stats"`
}

func (f *Field) Export() State {
	slots := make(map[lattice.PipeID]uint16, len(f.pipes))
	ps := make([]PipeState, 0, len(f.pipes))
	for i, p := range f.pipes {
		slots[p.id] = uint16(i + 1)
		ps = append(ps, PipeState{ID: p.id, Style: p.style, Path: p.Path(), Joints: p.Joints()})
	}
	return State{
		Bounds:     f.opts.Bounds,
		Batch:      f.batch,
		Pipes:      ps,
		Occupancy:  f.grid.EncodeRLE(f.opts.Bounds, func(id lattice.PipeID) uint16 { return slots[id] }),
		NextID:     f.nextID,
		CycleIndex: f.cycleIdx,
		StuckTicks: f.stuckTicks,
		Stats:      f.stats,
	}
}

// Restore replaces the field contents with s. The bounds recorded in s win over the
// configured ones until the next batch. On error the field is left untouched.
func (f *Field) Restore(s State) error {
	if err := s.Bounds.Validate(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if len(s.Pipes) > 0xFFFF {
		return fmt.Errorf("restore: too many pipes (%d)", len(s.Pipes))
	}
	pipes := make([]*Pipe, 0, len(s.Pipes))
	owners := make(map[uint16]lattice.PipeID, len(s.Pipes))
	for i, ps := range s.Pipes {
		if len(ps.Path) == 0 {
			return fmt.Errorf("restore: pipe %d has an empty path", ps.ID)
		}
		if ps.ID == 0 || ps.ID > s.NextID {
			return fmt.Errorf("restore: pipe id %d out of range (next %d)", ps.ID, s.NextID)
		}
		pipes = append(pipes, &Pipe{
			id:     ps.ID,
			style:  ps.Style,
			path:   append([]lattice.Cell(nil), ps.Path...),
			joints: append([]JointMark(nil), ps.Joints...),
		})
		owners[uint16(i+1)] = ps.ID
	}
	grid := lattice.NewGrid()
	if err := grid.DecodeRLE(s.Bounds, s.Occupancy, func(slot uint16) (lattice.PipeID, bool) {
		id, ok := owners[slot]
		return id, ok
	}); err != nil {
		return fmt.Errorf("restore occupancy: %w", err)
	}

	opts := f.opts
	opts.Bounds = s.Bounds
	staged := &Field{opts: opts, grid: grid, pipes: pipes}
	if err := staged.Verify(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	f.opts.Bounds = s.Bounds
	f.grid = grid
	f.pipes = pipes
	f.batch = s.Batch
	f.nextID = s.NextID
	f.cycleIdx = s.CycleIndex
	f.stuckTicks = s.StuckTicks
	f.stats = s.Stats
	return nil
}
