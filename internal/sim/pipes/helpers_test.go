package pipes

import (
	"math/rand/v2"
	"testing"

	"pipescreen.ai/internal/sim/lattice"
)

type recorded struct {
	kind  string
	pipe  lattice.PipeID
	from  lattice.Cell
	to    lattice.Cell
	joint JointKind
}

type recorder struct {
	events []recorded
}

func (r *recorder) OnFieldReset(BatchConfig) {
	r.events = append(r.events, recorded{kind: "reset"})
}

func (r *recorder) OnPipeSpawned(pipe lattice.PipeID, at lattice.Cell, _ Style) {
	r.events = append(r.events, recorded{kind: "spawn", pipe: pipe, from: at})
}

func (r *recorder) OnSegment(pipe lattice.PipeID, from, to lattice.Cell, _ Style) {
	r.events = append(r.events, recorded{kind: "segment", pipe: pipe, from: from, to: to})
}

func (r *recorder) OnJoint(pipe lattice.PipeID, at lattice.Cell, kind JointKind, _ Style) {
	r.events = append(r.events, recorded{kind: "joint", pipe: pipe, from: at, joint: kind})
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

// countingJoints always answers Elbow and counts the requests.
type countingJoints struct{ calls int }

func (c *countingJoints) Classify(float64, float64) JointKind {
	c.calls++
	return JointElbow
}

// scriptedRand replays fixed Float64 values; IntN always answers 0.
type scriptedRand struct {
	floats []float64
	i      int
}

func (s *scriptedRand) Float64() float64 {
	v := s.floats[s.i%len(s.floats)]
	s.i++
	return v
}

func (s *scriptedRand) IntN(int) int { return 0 }

func seeded(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }

func newTestField(t *testing.T, opts Options, seed uint64) (*Field, *recorder) {
	t.Helper()
	rec := &recorder{}
	f, err := NewField(opts, seeded(seed), rec)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f, rec
}

// placePipe adds a pipe at a chosen cell, as a batch spawn would.
func placePipe(f *Field, at lattice.Cell) *Pipe {
	f.nextID++
	p := newPipe(f.nextID, at, Style{Color: 0xffffff})
	f.grid.Claim(at, p.id)
	f.pipes = append(f.pipes, p)
	return p
}
