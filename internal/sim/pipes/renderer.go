package pipes

import "pipescreen.ai/internal/sim/lattice"

// Style is the material token a pipe carries. The core never interprets it.
type Style struct {
	Texture string `json:"texture,omitempty"`
	Color   uint32 `json:"color"`
}

// Renderer consumes growth events. Calls happen synchronously inside Field.Tick.
type Renderer interface {
	OnFieldReset(batch BatchConfig)
	OnPipeSpawned(pipe lattice.PipeID, at lattice.Cell, style Style)
	OnSegment(pipe lattice.PipeID, from, to lattice.Cell, style Style)
	OnJoint(pipe lattice.PipeID, at lattice.Cell, kind JointKind, style Style)
}

// Renderers fans events out to every non-nil member in order.
type Renderers []Renderer

func (rs Renderers) OnFieldReset(batch BatchConfig) {
	for _, r := range rs {
		if r != nil {
			r.OnFieldReset(batch)
		}
	}
}

func (rs Renderers) OnPipeSpawned(pipe lattice.PipeID, at lattice.Cell, style Style) {
	for _, r := range rs {
		if r != nil {
			r.OnPipeSpawned(pipe, at, style)
		}
	}
}

func (rs Renderers) OnSegment(pipe lattice.PipeID, from, to lattice.Cell, style Style) {
	for _, r := range rs {
		if r != nil {
			r.OnSegment(pipe, from, to, style)
		}
	}
}

func (rs Renderers) OnJoint(pipe lattice.PipeID, at lattice.Cell, kind JointKind, style Style) {
	for _, r := range rs {
		if r != nil {
			r.OnJoint(pipe, at, kind, style)
		}
	}
}

type nopRenderer struct{}

func (nopRenderer) OnFieldReset(BatchConfig)                                    {}
func (nopRenderer) OnPipeSpawned(lattice.PipeID, lattice.Cell, Style)           {}
func (nopRenderer) OnSegment(lattice.PipeID, lattice.Cell, lattice.Cell, Style) {}
func (nopRenderer) OnJoint(lattice.PipeID, lattice.Cell, JointKind, Style)      {}
