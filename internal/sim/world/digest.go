package world

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"

	"pipescreen.ai/internal/sim/lattice"
)

// StateDigest hashes the state after the last completed tick.
func (w *World) StateDigest() string {
	cur := w.tick.Load()
	if cur > 0 {
		cur--
	}
	return w.stateDigest(cur)
}

func (w *World) stateDigest(nowTick uint64) string {
	h := xxh3.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)

	b := w.field.Batch()
	digestWriteU64(h, &tmp, b.Seq)
	h.WriteString(string(b.Joints))
	digestWriteU64(h, &tmp, math.Float64bits(b.BallJointChance))
	digestWriteU64(h, &tmp, math.Float64bits(b.TeapotChance))
	h.WriteString(b.Texture)
	h.Write([]byte{boolByte(b.Festive)})
	digestWriteU64(h, &tmp, uint64(b.Pipes))

	for _, p := range w.field.Pipes() {
		digestWriteU64(h, &tmp, uint64(p.ID()))
		st := p.Style()
		h.WriteString(st.Texture)
		digestWriteU64(h, &tmp, uint64(st.Color))
		digestWriteU64(h, &tmp, uint64(p.Len()))
		for _, c := range p.Path() {
			digestWriteCell(h, &tmp, c)
		}
	}

	for _, c := range w.field.OccupiedCells() {
		digestWriteCell(h, &tmp, c)
		id, _ := w.field.OccupantOf(c)
		digestWriteU64(h, &tmp, uint64(id))
	}

	if rng, err := w.src.MarshalBinary(); err == nil {
		h.Write(rng)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func digestWriteU64(h *xxh3.Hasher, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteCell(h *xxh3.Hasher, tmp *[8]byte, c lattice.Cell) {
	digestWriteU64(h, tmp, uint64(int64(c.X)))
	digestWriteU64(h, tmp, uint64(int64(c.Y)))
	digestWriteU64(h, tmp, uint64(int64(c.Z)))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
