package pipes

import (
	"time"

	"pipescreen.ai/internal/sim/lattice"
)

// Stats are cumulative counters since the field was created (or restored).
type Stats struct {
	Ticks      uint64 `json:"ticks"`
	Batches    uint64 `json:"batches"`
	Spawned    uint64 `json:"spawned"`
	Segments   uint64 `json:"segments"`
	StuckSteps uint64 `json:"stuck_steps"`
	Balls      uint64 `json:"balls"`
	Elbows     uint64 `json:"elbows"`
	Teapots    uint64 `json:"teapots"`
}

// TickResult summarizes one Field.Tick.
type TickResult struct {
	Moved   int
	Stuck   int
	Reset   bool
	Spawned int
}

// Field owns the lattice, the live pipes and the active batch. It is not safe for
// concurrent use; one goroutine drives Tick.
type Field struct {
	opts    Options
	pending *Options

	rand   Rand
	policy Policy
	joints JointClassifier
	out    Renderer

	grid  *lattice.Grid
	pipes []*Pipe
	batch BatchConfig

	nextID     lattice.PipeID
	cycleIdx   int
	stuckTicks int
	stats      Stats
}

// NewField builds an empty field. The first Tick spawns the first batch.
func NewField(opts Options, r Rand, out Renderer) (*Field, error) {
	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		out = nopRenderer{}
	}
	return &Field{
		opts:   opts,
		rand:   r,
		policy: NewRandomPolicy(r, opts.StraightChance),
		joints: WeightedJoints{Rand: r},
		out:    out,
		grid:   lattice.NewGrid(),
	}, nil
}

func (f *Field) SetPolicy(p Policy)          { f.policy = p }
func (f *Field) SetJoints(j JointClassifier) { f.joints = j }
func (f *Field) SetRenderer(r Renderer) {
	if r == nil {
		r = nopRenderer{}
	}
	f.out = r
}

// SetOptions stages new options. They apply at the next batch boundary so the active
// batch keeps its configuration.
func (f *Field) SetOptions(opts Options) error {
	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}
	f.pending = &opts
	return nil
}

func (f *Field) Options() Options       { return f.opts }
func (f *Field) Bounds() lattice.Bounds { return f.opts.Bounds }
func (f *Field) Batch() BatchConfig     { return f.batch }
func (f *Field) Stats() Stats           { return f.stats }

// Pipes returns the live pipes in spawn order.
func (f *Field) Pipes() []*Pipe { return append([]*Pipe(nil), f.pipes...) }

func (f *Field) OccupantOf(c lattice.Cell) (lattice.PipeID, bool) { return f.grid.OccupantOf(c) }

func (f *Field) OccupiedCells() []lattice.Cell { return f.grid.Cells() }

// Occupied is the number of claimed cells.
func (f *Field) Occupied() int { return f.grid.Len() }

// Tick advances every live pipe once. When the field has no pipes afterwards, the grid is
// cleared and a new batch is spawned.
func (f *Field) Tick(now time.Time) TickResult {
	var res TickResult
	f.stats.Ticks++

	g := &growth{
		grid:   f.grid,
		bounds: f.opts.Bounds,
		policy: f.policy,
		joints: f.joints,
		batch:  &f.batch,
		out:    f.out,
	}
	for _, p := range f.pipes {
		moved, joint := p.advance(g)
		if !moved {
			res.Stuck++
			continue
		}
		res.Moved++
		f.stats.Segments++
		switch joint {
		case JointBall:
			f.stats.Balls++
		case JointElbow:
			f.stats.Elbows++
		case JointTeapot:
			f.stats.Teapots++
		}
	}
	f.stats.StuckSteps += uint64(res.Stuck)

	if len(f.pipes) > 0 && res.Moved == 0 {
		f.stuckTicks++
		if f.opts.StuckResetTicks > 0 && f.stuckTicks >= f.opts.StuckResetTicks {
			f.Clear()
		}
	} else {
		f.stuckTicks = 0
	}

	if len(f.pipes) == 0 {
		res.Reset = true
		res.Spawned = f.respawn(now)
	}
	return res
}

// Clear drops every live pipe and their claims. The next Tick spawns a fresh batch.
func (f *Field) Clear() {
	f.pipes = f.pipes[:0]
	f.grid.Reset()
	f.stuckTicks = 0
}

// StuckTicks is the number of consecutive ticks in which no live pipe moved.
func (f *Field) StuckTicks() int { return f.stuckTicks }

func (f *Field) respawn(now time.Time) int {
	if f.pending != nil {
		f.opts = *f.pending
		f.pending = nil
		if rp, ok := f.policy.(*RandomPolicy); ok {
			rp.StraightChance = f.opts.StraightChance
		}
	}
	f.grid.Reset()
	f.batch = f.nextBatch(now)

	count := 1
	if f.opts.Multiple {
		count++
		if chance(f.rand, f.opts.ExtraPipeChance) {
			count++
		}
	}
	f.batch.Pipes = count
	f.stats.Batches++
	f.out.OnFieldReset(f.batch)

	// Batch members are placed independently; two may share a start cell.
	for i := 0; i < count; i++ {
		start := randomCell(f.rand, f.opts.Bounds)
		style := Style{Texture: f.batch.Texture}
		if style.Texture == "" {
			style.Color = uint32(roundedInt(f.rand, 0, 0xFFFFFF))
		}
		f.nextID++
		p := newPipe(f.nextID, start, style)
		f.grid.Claim(start, p.id)
		f.pipes = append(f.pipes, p)
		f.stats.Spawned++
		f.out.OnPipeSpawned(p.id, start, style)
	}
	f.stuckTicks = 0
	return count
}

func (f *Field) nextBatch(now time.Time) BatchConfig {
	mode := f.opts.Joints
	if mode == JointsCycle {
		mode = f.opts.Cycle[f.cycleIdx%len(f.opts.Cycle)]
		f.cycleIdx++
	}
	b := BatchConfig{
		Seq:             f.batch.Seq + 1,
		Joints:          mode,
		BallJointChance: ballChanceFor(mode, f.opts.MixedBallChance),
		TeapotChance:    f.opts.TeapotChance,
		Texture:         f.opts.Texture,
	}
	if chance(f.rand, f.opts.FestiveChance) && f.opts.Season(now) {
		b.Festive = true
		b.TeapotChance = f.opts.FestiveTeapotChance
		b.Texture = f.opts.FestiveTexture
	}
	return b
}

func randomCell(r Rand, b lattice.Bounds) lattice.Cell {
	return lattice.Cell{
		X: roundedInt(r, b.Min.X, b.Max.X),
		Y: roundedInt(r, b.Min.Y, b.Max.Y),
		Z: roundedInt(r, b.Min.Z, b.Max.Z),
	}
}
