package pipes

import "pipescreen.ai/internal/sim/lattice"

// growth bundles what a pipe needs to take one step. It is owned by the Field.
type growth struct {
	grid   *lattice.Grid
	bounds lattice.Bounds
	policy Policy
	joints JointClassifier
	batch  *BatchConfig
	out    Renderer
}

// Pipe is one growing path through the lattice. Its path is append-only.
type Pipe struct {
	id     lattice.PipeID
	style  Style
	path   []lattice.Cell
	joints []JointMark
}

// JointMark is a joint placed on the path cell at index Step.
type JointMark struct {
	Step int       `json:"step"`
	Kind JointKind `json:"kind"`
}

func newPipe(id lattice.PipeID, start lattice.Cell, style Style) *Pipe {
	return &Pipe{
		id:    id,
		style: style,
		path:  append(make([]lattice.Cell, 0, 64), start),
	}
}

func (p *Pipe) ID() lattice.PipeID { return p.id }

func (p *Pipe) Style() Style { return p.style }

func (p *Pipe) Current() lattice.Cell { return p.path[len(p.path)-1] }

func (p *Pipe) Len() int { return len(p.path) }

// Path returns a copy of the visited cells in order.
func (p *Pipe) Path() []lattice.Cell {
	return append([]lattice.Cell(nil), p.path...)
}

// Joints returns a copy of the joints placed so far, in path order.
func (p *Pipe) Joints() []JointMark {
	return append([]JointMark(nil), p.joints...)
}

// LastDirection is the step between the last two cells, or DirNone for a fresh pipe.
func (p *Pipe) LastDirection() lattice.Direction {
	n := len(p.path)
	if n < 2 {
		return lattice.DirNone
	}
	d, _ := lattice.Between(p.path[n-2], p.path[n-1])
	return d
}

// advance tries a single step. It reports moved=false, with no state change and no events,
// when the proposed cell is out of bounds or already claimed. joint is JointNone unless the
// step turned.
func (p *Pipe) advance(g *growth) (moved bool, joint JointKind) {
	prev := p.LastDirection()
	dir := g.policy.Next(prev)
	if !dir.Valid() {
		return false, JointNone
	}
	cur := p.Current()
	next := cur.Step(dir)
	if !g.grid.Contains(next, g.bounds) {
		return false, JointNone
	}
	if _, taken := g.grid.OccupantOf(next); taken {
		return false, JointNone
	}
	g.grid.Claim(next, p.id)

	if prev.Valid() && prev != dir {
		joint = g.joints.Classify(g.batch.BallJointChance, g.batch.TeapotChance)
		p.joints = append(p.joints, JointMark{Step: len(p.path) - 1, Kind: joint})
		g.out.OnJoint(p.id, cur, joint, p.style)
	}
	g.out.OnSegment(p.id, cur, next, p.style)
	p.path = append(p.path, next)
	return true, joint
}
