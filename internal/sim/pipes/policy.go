package pipes

import "pipescreen.ai/internal/sim/lattice"

// DefaultStraightChance is the probability of continuing in the previous direction.
const DefaultStraightChance = 0.5

// Policy proposes the next step for a growing pipe. prev is DirNone before the second cell.
type Policy interface {
	Next(prev lattice.Direction) lattice.Direction
}

// RandomPolicy continues straight with StraightChance, otherwise picks a random axis and sign.
// The result of the random branch may equal prev.
type RandomPolicy struct {
	Rand           Rand
	StraightChance float64
}

func NewRandomPolicy(r Rand, straight float64) *RandomPolicy {
	return &RandomPolicy{Rand: r, StraightChance: straight}
}

func (p *RandomPolicy) Next(prev lattice.Direction) lattice.Direction {
	// Draw first so the stream consumption does not depend on prev.
	if chance(p.Rand, p.StraightChance) && prev.Valid() {
		return prev
	}
	axis := p.Rand.IntN(3)
	sign := 1
	if p.Rand.IntN(2) == 1 {
		sign = -1
	}
	return lattice.AxisDirection(axis, sign)
}

// FixedPolicy always proposes the same direction.
type FixedPolicy lattice.Direction

func (p FixedPolicy) Next(lattice.Direction) lattice.Direction { return lattice.Direction(p) }

// SequencePolicy cycles through Steps, one per call.
type SequencePolicy struct {
	Steps []lattice.Direction
	i     int
}

func (p *SequencePolicy) Next(lattice.Direction) lattice.Direction {
	if len(p.Steps) == 0 {
		return lattice.DirNone
	}
	d := p.Steps[p.i%len(p.Steps)]
	p.i++
	return d
}
