package lattice

// Direction is one of the six axis-aligned unit steps. The zero value means "no direction yet".
type Direction uint8

const (
	DirNone Direction = iota
	DirPosX
	DirNegX
	DirPosY
	DirNegY
	DirPosZ
	DirNegZ
)

// Directions lists the six valid steps.
var Directions = [6]Direction{DirPosX, DirNegX, DirPosY, DirNegY, DirPosZ, DirNegZ}

var dirVecs = [...]Cell{
	DirNone: {},
	DirPosX: {X: 1},
	DirNegX: {X: -1},
	DirPosY: {Y: 1},
	DirNegY: {Y: -1},
	DirPosZ: {Z: 1},
	DirNegZ: {Z: -1},
}

var dirNames = [...]string{
	DirNone: "NONE",
	DirPosX: "+X",
	DirNegX: "-X",
	DirPosY: "+Y",
	DirNegY: "-Y",
	DirPosZ: "+Z",
	DirNegZ: "-Z",
}

func (d Direction) Valid() bool { return d >= DirPosX && d <= DirNegZ }

func (d Direction) Vec() Cell {
	if int(d) >= len(dirVecs) {
		return Cell{}
	}
	return dirVecs[d]
}

func (d Direction) String() string {
	if int(d) >= len(dirNames) {
		return "INVALID"
	}
	return dirNames[d]
}

// Axis returns 0, 1 or 2 for x, y, z, and -1 for DirNone.
func (d Direction) Axis() int {
	if !d.Valid() {
		return -1
	}
	return int(d-1) / 2
}

// AxisDirection builds the direction for axis (0..2) and sign (+1/-1).
func AxisDirection(axis, sign int) Direction {
	if axis < 0 || axis > 2 || (sign != 1 && sign != -1) {
		return DirNone
	}
	d := Direction(1 + axis*2)
	if sign < 0 {
		d++
	}
	return d
}

// Between returns the unit step leading from a to b, if they are axis neighbours.
func Between(a, b Cell) (Direction, bool) {
	delta := b.Sub(a)
	for _, d := range Directions {
		if dirVecs[d] == delta {
			return d, true
		}
	}
	return DirNone, false
}
