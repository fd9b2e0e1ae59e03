package lattice

import (
	"fmt"

	simenc "pipescreen.ai/internal/sim/encoding"
)

// MaxVolume is the largest number of cells whose occupancy still decodes.
const MaxVolume = simenc.MaxDecodedLen

// Cell is one integer point of the lattice. It is comparable and used directly as a map key.
type Cell struct {
	X int
	Y int
	Z int
}

func (c Cell) ToArray() [3]int { return [3]int{c.X, c.Y, c.Z} }

func CellFromArray(a [3]int) Cell { return Cell{X: a[0], Y: a[1], Z: a[2]} }

func (c Cell) Step(d Direction) Cell {
	v := d.Vec()
	return Cell{X: c.X + v.X, Y: c.Y + v.Y, Z: c.Z + v.Z}
}

func (c Cell) Sub(o Cell) Cell { return Cell{X: c.X - o.X, Y: c.Y - o.Y, Z: c.Z - o.Z} }

func (c Cell) String() string { return fmt.Sprintf("(%d, %d, %d)", c.X, c.Y, c.Z) }

// Bounds is an inclusive axis-aligned box of cells.
type Bounds struct {
	Min Cell
	Max Cell
}

// Cube returns the bounds [-r, r] on every axis.
func Cube(r int) Bounds {
	return Bounds{Min: Cell{X: -r, Y: -r, Z: -r}, Max: Cell{X: r, Y: r, Z: r}}
}

func (b Bounds) Validate() error {
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
		return fmt.Errorf("bounds min %v exceeds max %v", b.Min, b.Max)
	}
	if !b.volumeWithin(MaxVolume) {
		return fmt.Errorf("bounds %v..%v hold more than %d cells", b.Min, b.Max, MaxVolume)
	}
	return nil
}

// volumeWithin reports whether b holds at most limit cells. It works on spans directly so
// extreme coordinates cannot overflow. b must not be inverted.
func (b Bounds) volumeWithin(limit int) bool {
	n := uint64(1)
	for _, ax := range [3][2]int{{b.Min.X, b.Max.X}, {b.Min.Y, b.Max.Y}, {b.Min.Z, b.Max.Z}} {
		span := uint64(ax[1]) - uint64(ax[0])
		if span >= uint64(limit) {
			return false
		}
		n *= span + 1
		if n > uint64(limit) {
			return false
		}
	}
	return true
}

func (b Bounds) Contains(c Cell) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

func (b Bounds) Size() [3]int {
	return [3]int{b.Max.X - b.Min.X + 1, b.Max.Y - b.Min.Y + 1, b.Max.Z - b.Min.Z + 1}
}

func (b Bounds) Volume() int {
	s := b.Size()
	return s[0] * s[1] * s[2]
}

// Index maps a cell to its x-fastest linear offset inside b.
func (b Bounds) Index(c Cell) (int, bool) {
	if !b.Contains(c) {
		return 0, false
	}
	s := b.Size()
	return (c.X - b.Min.X) + s[0]*((c.Y-b.Min.Y)+s[1]*(c.Z-b.Min.Z)), true
}

func (b Bounds) CellAt(i int) Cell {
	s := b.Size()
	x := i % s[0]
	i /= s[0]
	y := i % s[1]
	z := i / s[1]
	return Cell{X: b.Min.X + x, Y: b.Min.Y + y, Z: b.Min.Z + z}
}
