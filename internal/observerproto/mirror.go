package observerproto

import (
	"encoding/json"
	"errors"
	"fmt"

	simenc "pipescreen.ai/internal/sim/encoding"
)

// Mirror rebuilds the field on the observer side from STATE and TICK messages and checks
// that the stream keeps the lattice invariants.
type Mirror struct {
	WorldID string
	RunID   string
	// Tick is the next tick the server will run, as far as this mirror knows.
	Tick   uint64
	Bounds Bounds
	Batch  Batch

	// boundsKnown is cleared by RESET: a new batch may run with new bounds, which only the
	// next STATE carries.
	boundsKnown bool

	States int
	Ticks  int

	pipes map[uint32]*PipeInfo
	order []uint32
	cells map[[3]int]uint32
}

func NewMirror() *Mirror {
	return &Mirror{pipes: map[uint32]*PipeInfo{}, cells: map[[3]int]uint32{}}
}

// Handle decodes one server message and applies it.
func (m *Mirror) Handle(raw []byte) (msgType string, err error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &base); err != nil {
		return "", err
	}
	switch base.Type {
	case "STATE":
		var s StateMsg
		if err := json.Unmarshal(raw, &s); err != nil {
			return base.Type, err
		}
		return base.Type, m.ApplyState(s)
	case "TICK":
		var t TickMsg
		if err := json.Unmarshal(raw, &t); err != nil {
			return base.Type, err
		}
		return base.Type, m.ApplyTick(t)
	default:
		return base.Type, fmt.Errorf("unexpected message type %q", base.Type)
	}
}

// ApplyState replaces the mirror and cross-checks the occupancy grid against the pipe paths.
func (m *Mirror) ApplyState(s StateMsg) error {
	m.WorldID, m.RunID = s.WorldID, s.RunID
	m.Tick = s.Tick
	m.Bounds = s.Bounds
	m.boundsKnown = true
	m.Batch = s.Batch
	m.States++
	m.pipes = make(map[uint32]*PipeInfo, len(s.Pipes))
	m.order = m.order[:0]
	m.cells = map[[3]int]uint32{}

	for i := range s.Pipes {
		p := s.Pipes[i]
		m.pipes[p.ID] = &p
		m.order = append(m.order, p.ID)
		for _, c := range p.Path {
			if owner, ok := m.cells[c]; ok {
				return fmt.Errorf("state: cell %v claimed by pipes %d and %d", c, owner, p.ID)
			}
			m.cells[c] = p.ID
		}
	}
	if s.Occupancy.Data == "" {
		return nil
	}
	if s.Occupancy.Encoding != simenc.RLEName {
		return fmt.Errorf("state: unknown occupancy encoding %q", s.Occupancy.Encoding)
	}
	ids, err := simenc.DecodeRLE(s.Occupancy.Data)
	if err != nil {
		return fmt.Errorf("state: occupancy: %w", err)
	}
	min, max := s.Bounds.Min, s.Bounds.Max
	nx, ny, nz := max[0]-min[0]+1, max[1]-min[1]+1, max[2]-min[2]+1
	if len(ids) != nx*ny*nz {
		return fmt.Errorf("state: occupancy has %d cells, bounds have %d", len(ids), nx*ny*nz)
	}
	for i, id := range ids {
		c := [3]int{min[0] + i%nx, min[1] + (i/nx)%ny, min[2] + i/(nx*ny)}
		owner, ok := m.cells[c]
		switch {
		case id == 0 && ok:
			return fmt.Errorf("state: cell %v on pipe %d but empty in occupancy", c, owner)
		case id == 0:
		case int(id) > len(s.Pipes):
			return fmt.Errorf("state: cell %v names pipe index %d of %d", c, id, len(s.Pipes))
		case !ok || owner != s.Pipes[id-1].ID:
			return fmt.Errorf("state: cell %v occupancy disagrees with pipe paths", c)
		}
	}
	return nil
}

// ApplyTick applies growth events. A SEGMENT that is not a unit step from its pipe's head,
// or that enters an occupied cell, is an error.
func (m *Mirror) ApplyTick(t TickMsg) error {
	m.Ticks++
	m.Tick = t.Tick + 1
	for _, e := range t.Events {
		switch e.Kind {
		case EventReset:
			m.pipes = map[uint32]*PipeInfo{}
			m.order = m.order[:0]
			m.cells = map[[3]int]uint32{}
			m.boundsKnown = false
			if e.Batch != nil {
				m.Batch = *e.Batch
			}
		case EventSpawn:
			if e.At == nil {
				return errors.New("spawn without cell")
			}
			if _, ok := m.pipes[e.Pipe]; ok {
				return fmt.Errorf("tick %d: pipe %d spawned twice", t.Tick, e.Pipe)
			}
			if err := m.claim(*e.At, e.Pipe, t.Tick); err != nil {
				return err
			}
			p := &PipeInfo{ID: e.Pipe, Path: [][3]int{*e.At}}
			if e.Style != nil {
				p.Style = *e.Style
			}
			m.pipes[e.Pipe] = p
			m.order = append(m.order, e.Pipe)
		case EventSegment:
			p, ok := m.pipes[e.Pipe]
			if !ok || e.At == nil || e.To == nil {
				return fmt.Errorf("tick %d: segment for unknown pipe %d", t.Tick, e.Pipe)
			}
			head := p.Path[len(p.Path)-1]
			if *e.At != head {
				return fmt.Errorf("tick %d: pipe %d segment starts at %v, head is %v", t.Tick, e.Pipe, *e.At, head)
			}
			if manhattan(head, *e.To) != 1 {
				return fmt.Errorf("tick %d: pipe %d segment %v -> %v is not a unit step", t.Tick, e.Pipe, head, *e.To)
			}
			if err := m.claim(*e.To, e.Pipe, t.Tick); err != nil {
				return err
			}
			p.Path = append(p.Path, *e.To)
		case EventJoint:
			if _, ok := m.pipes[e.Pipe]; !ok {
				return fmt.Errorf("tick %d: joint for unknown pipe %d", t.Tick, e.Pipe)
			}
		}
	}
	return nil
}

func (m *Mirror) claim(c [3]int, pipe uint32, tick uint64) error {
	if m.boundsKnown && (c[0] < m.Bounds.Min[0] || c[1] < m.Bounds.Min[1] || c[2] < m.Bounds.Min[2] ||
		c[0] > m.Bounds.Max[0] || c[1] > m.Bounds.Max[1] || c[2] > m.Bounds.Max[2]) {
		return fmt.Errorf("tick %d: pipe %d left bounds at %v", tick, pipe, c)
	}
	if owner, ok := m.cells[c]; ok {
		return fmt.Errorf("tick %d: pipe %d entered %v owned by pipe %d", tick, pipe, c, owner)
	}
	m.cells[c] = pipe
	return nil
}

func manhattan(a, b [3]int) int {
	d := 0
	for i := range a {
		if a[i] > b[i] {
			d += a[i] - b[i]
		} else {
			d += b[i] - a[i]
		}
	}
	return d
}

// Occupied is the number of cells on some pipe.
func (m *Mirror) Occupied() int { return len(m.cells) }

// Pipes returns the mirrored pipes in spawn order.
func (m *Mirror) Pipes() []PipeInfo {
	out := make([]PipeInfo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.pipes[id])
	}
	return out
}
