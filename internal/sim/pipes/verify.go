package pipes

import (
	"fmt"

	"pipescreen.ai/internal/sim/lattice"
)

// Verify checks the occupancy and path invariants of the live field:
// every path stays in bounds, moves by unit axis steps and never revisits a cell, and every
// grown cell is owned by its pipe in the grid. Start cells may be shared by pipes of the same
// batch because batch spawns are not checked against each other.
func (f *Field) Verify() error {
	b := f.opts.Bounds
	starts := make(map[lattice.Cell]bool, len(f.pipes))
	for _, p := range f.pipes {
		starts[p.path[0]] = true
	}

	claimed := make(map[lattice.Cell]lattice.PipeID, f.grid.Len())
	for _, p := range f.pipes {
		seen := make(map[lattice.Cell]struct{}, len(p.path))
		for i, c := range p.path {
			if !b.Contains(c) {
				return fmt.Errorf("pipe %d: cell %v outside bounds", p.id, c)
			}
			if _, dup := seen[c]; dup {
				return fmt.Errorf("pipe %d: revisits %v at step %d", p.id, c, i)
			}
			seen[c] = struct{}{}
			if i > 0 {
				if _, ok := lattice.Between(p.path[i-1], c); !ok {
					return fmt.Errorf("pipe %d: step %d %v -> %v is not a unit axis step", p.id, i, p.path[i-1], c)
				}
			}

			owner, ok := f.grid.OccupantOf(c)
			if !ok {
				return fmt.Errorf("pipe %d: cell %v missing from grid", p.id, c)
			}
			if i == 0 {
				continue
			}
			if owner != p.id {
				return fmt.Errorf("pipe %d: cell %v owned by pipe %d", p.id, c, owner)
			}
			if starts[c] {
				return fmt.Errorf("pipe %d: grew into start cell %v", p.id, c)
			}
			if other, dup := claimed[c]; dup && other != p.id {
				return fmt.Errorf("cell %v claimed by pipes %d and %d", c, other, p.id)
			}
			claimed[c] = p.id
		}
		if err := verifyJoints(p); err != nil {
			return err
		}
	}
	total := len(claimed) + len(starts)
	if f.grid.Len() != total {
		return fmt.Errorf("grid holds %d cells, paths account for %d", f.grid.Len(), total)
	}
	return nil
}

// verifyJoints checks that every joint sits on an interior cell where the path turns.
func verifyJoints(p *Pipe) error {
	last := 0
	for _, j := range p.joints {
		if j.Step <= last || j.Step >= len(p.path)-1 {
			return fmt.Errorf("pipe %d: joint at step %d out of order", p.id, j.Step)
		}
		switch j.Kind {
		case JointBall, JointElbow, JointTeapot:
		default:
			return fmt.Errorf("pipe %d: joint at step %d has kind %v", p.id, j.Step, j.Kind)
		}
		in, _ := lattice.Between(p.path[j.Step-1], p.path[j.Step])
		out, _ := lattice.Between(p.path[j.Step], p.path[j.Step+1])
		if in == out {
			return fmt.Errorf("pipe %d: joint at step %d on a straight run", p.id, j.Step)
		}
		last = j.Step
	}
	return nil
}
