package world

import (
	"pipescreen.ai/internal/observerproto"
	"pipescreen.ai/internal/sim/lattice"
	"pipescreen.ai/internal/sim/pipes"
)

// eventRecorder collects the growth events of one tick in emission order.
type eventRecorder struct {
	buf []observerproto.Event
}

func (r *eventRecorder) take() []observerproto.Event {
	out := r.buf
	r.buf = nil
	return out
}

func (r *eventRecorder) OnFieldReset(b pipes.BatchConfig) {
	pb := batchMsg(b)
	r.buf = append(r.buf, observerproto.Event{Kind: observerproto.EventReset, Batch: &pb})
}

func (r *eventRecorder) OnPipeSpawned(pipe lattice.PipeID, at lattice.Cell, style pipes.Style) {
	a := at.ToArray()
	st := styleMsg(style)
	r.buf = append(r.buf, observerproto.Event{Kind: observerproto.EventSpawn, Pipe: uint32(pipe), At: &a, Style: &st})
}

func (r *eventRecorder) OnSegment(pipe lattice.PipeID, from, to lattice.Cell, _ pipes.Style) {
	a, b := from.ToArray(), to.ToArray()
	r.buf = append(r.buf, observerproto.Event{Kind: observerproto.EventSegment, Pipe: uint32(pipe), At: &a, To: &b})
}

func (r *eventRecorder) OnJoint(pipe lattice.PipeID, at lattice.Cell, kind pipes.JointKind, _ pipes.Style) {
	a := at.ToArray()
	r.buf = append(r.buf, observerproto.Event{Kind: observerproto.EventJoint, Pipe: uint32(pipe), At: &a, Joint: kind.String()})
}

func batchMsg(b pipes.BatchConfig) observerproto.Batch {
	return observerproto.Batch{
		Seq:             b.Seq,
		Joints:          string(b.Joints),
		BallJointChance: b.BallJointChance,
		TeapotChance:    b.TeapotChance,
		Texture:         b.Texture,
		Festive:         b.Festive,
		Pipes:           b.Pipes,
	}
}

func styleMsg(s pipes.Style) observerproto.Style {
	return observerproto.Style{Texture: s.Texture, Color: s.Color}
}
