package world

import (
	"fmt"

	"pipescreen.ai/internal/persistence/snapshot"
	"pipescreen.ai/internal/sim/lattice"
	"pipescreen.ai/internal/sim/pipes"
)

// ExportSnapshot captures the state after nowTick.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	st := w.field.Export()
	rng, err := w.src.MarshalBinary()
	if err != nil {
		// PCG.MarshalBinary cannot fail.
		panic(err)
	}
	f := snapshot.FieldV1{
		Min: st.Bounds.Min.ToArray(),
		Max: st.Bounds.Max.ToArray(),
		Batch: snapshot.BatchV1{
			Seq:             st.Batch.Seq,
			Joints:          string(st.Batch.Joints),
			BallJointChance: st.Batch.BallJointChance,
			TeapotChance:    st.Batch.TeapotChance,
			Texture:         st.Batch.Texture,
			Festive:         st.Batch.Festive,
			Pipes:           st.Batch.Pipes,
		},
		Pipes:      make([]snapshot.PipeV1, 0, len(st.Pipes)),
		Occupancy:  st.Occupancy,
		NextID:     uint32(st.NextID),
		CycleIndex: st.CycleIndex,
		StuckTicks: st.StuckTicks,
		Stats:      snapshot.StatsV1(st.Stats),
	}
	for _, p := range st.Pipes {
		pv := snapshot.PipeV1{
			ID:      uint32(p.ID),
			Texture: p.Style.Texture,
			Color:   p.Style.Color,
			Path:    cellArrays(p.Path),
		}
		for _, j := range p.Joints {
			pv.Joints = append(pv.Joints, snapshot.JointV1{Step: j.Step, Kind: j.Kind.String()})
		}
		f.Pipes = append(f.Pipes, pv)
	}
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
			Batch:   st.Batch.Seq,
		},
		RunID:    w.runID,
		Seed:     w.cfg.Seed,
		TickRate: w.cfg.TickRateHz,
		RNG:      rng,
		Field:    f,
	}
}

// ImportSnapshot replaces the field and random state. It must be called before Run.
// The next step runs tick s.Header.Tick+1.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	st := pipes.State{
		Bounds: lattice.Bounds{Min: lattice.CellFromArray(s.Field.Min), Max: lattice.CellFromArray(s.Field.Max)},
		Batch: pipes.BatchConfig{
			Seq:             s.Field.Batch.Seq,
			Joints:          pipes.JointMode(s.Field.Batch.Joints),
			BallJointChance: s.Field.Batch.BallJointChance,
			TeapotChance:    s.Field.Batch.TeapotChance,
			Texture:         s.Field.Batch.Texture,
			Festive:         s.Field.Batch.Festive,
			Pipes:           s.Field.Batch.Pipes,
		},
		Pipes:      make([]pipes.PipeState, 0, len(s.Field.Pipes)),
		Occupancy:  s.Field.Occupancy,
		NextID:     lattice.PipeID(s.Field.NextID),
		CycleIndex: s.Field.CycleIndex,
		StuckTicks: s.Field.StuckTicks,
		Stats:      pipes.Stats(s.Field.Stats),
	}
	for _, p := range s.Field.Pipes {
		path := make([]lattice.Cell, len(p.Path))
		for i, c := range p.Path {
			path[i] = lattice.CellFromArray(c)
		}
		var joints []pipes.JointMark
		for _, j := range p.Joints {
			kind, err := pipes.ParseJointKind(j.Kind)
			if err != nil {
				return fmt.Errorf("pipe %d: %w", p.ID, err)
			}
			joints = append(joints, pipes.JointMark{Step: j.Step, Kind: kind})
		}
		st.Pipes = append(st.Pipes, pipes.PipeState{
			ID:     lattice.PipeID(p.ID),
			Style:  pipes.Style{Texture: p.Texture, Color: p.Color},
			Path:   path,
			Joints: joints,
		})
	}
	src := *w.src
	if len(s.RNG) > 0 {
		if err := src.UnmarshalBinary(s.RNG); err != nil {
			return fmt.Errorf("rng state: %w", err)
		}
	}
	if err := w.field.Restore(st); err != nil {
		return err
	}
	*w.src = src
	w.cfg.Seed = s.Seed
	w.tick.Store(s.Header.Tick + 1)
	w.publishMetrics(0)
	return nil
}
