package lattice

import (
	"fmt"
	"sort"

	simenc "pipescreen.ai/internal/sim/encoding"
)

// PipeID identifies the owner of a claimed cell. Zero is never a valid owner.
type PipeID uint32

// Grid tracks which pipe owns which cell. Callers check OccupantOf/Contains before Claim.
type Grid struct {
	cells map[Cell]PipeID
}

func NewGrid() *Grid {
	return &Grid{cells: make(map[Cell]PipeID, 512)}
}

// Claim registers owner for c. An existing owner is overwritten.
func (g *Grid) Claim(c Cell, owner PipeID) {
	g.cells[c] = owner
}

func (g *Grid) OccupantOf(c Cell) (PipeID, bool) {
	id, ok := g.cells[c]
	return id, ok
}

func (g *Grid) Contains(c Cell, b Bounds) bool { return b.Contains(c) }

func (g *Grid) Reset() {
	clear(g.cells)
}

func (g *Grid) Len() int { return len(g.cells) }

// Cells returns the claimed cells ordered by z, y, x.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, 0, len(g.cells))
	for c := range g.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out
}

// EncodeRLE packs the occupancy inside b as RLE of palette ids. slot maps an owner to a
// non-zero palette id; zero marks an empty cell.
func (g *Grid) EncodeRLE(b Bounds, slot func(PipeID) uint16) string {
	ids := make([]uint16, b.Volume())
	for c, owner := range g.cells {
		i, ok := b.Index(c)
		if !ok {
			continue
		}
		ids[i] = slot(owner)
	}
	return simenc.EncodeRLE(ids)
}

// DecodeRLE replaces the grid contents from an EncodeRLE payload.
func (g *Grid) DecodeRLE(b Bounds, data string, owner func(uint16) (PipeID, bool)) error {
	ids, err := simenc.DecodeRLE(data)
	if err != nil {
		return err
	}
	if len(ids) != b.Volume() {
		return fmt.Errorf("occupancy size mismatch: got %d want %d", len(ids), b.Volume())
	}
	g.Reset()
	for i, s := range ids {
		if s == 0 {
			continue
		}
		id, ok := owner(s)
		if !ok {
			return fmt.Errorf("unknown occupancy slot %d at %d", s, i)
		}
		g.cells[b.CellAt(i)] = id
	}
	return nil
}
