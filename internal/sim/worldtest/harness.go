package worldtest

import (
	"testing"
	"time"

	"pipescreen.ai/internal/observerproto"
	"pipescreen.ai/internal/persistence/snapshot"
	"pipescreen.ai/internal/sim/lattice"
	"pipescreen.ai/internal/sim/pipes"
	world "pipescreen.ai/internal/sim/world"
)

// Harness drives a world through exported APIs only, on a synthetic clock:
// - Step/StepFor/Reset call StepAt
// - every tick log entry is kept in Ticks
// - snapshots emitted by the world are kept in Snaps
type Harness struct {
	T *testing.T
	W *world.World

	Now      time.Time
	Interval time.Duration

	Ticks []world.TickLogEntry
	Snaps []snapshot.SnapshotV1

	sink chan snapshot.SnapshotV1
}

// DefaultConfig is a small bounded field that never sees the festive override.
func DefaultConfig(seed int64) world.WorldConfig {
	opts := pipes.DefaultOptions()
	opts.Bounds = lattice.Cube(3)
	opts.Joints = pipes.JointsCycle
	opts.StuckResetTicks = 15
	opts.Season = pipes.Never
	return world.WorldConfig{ID: "test", TickRateHz: 60, Seed: seed, Field: opts}
}

func NewHarness(t *testing.T, cfg world.WorldConfig) *Harness {
	t.Helper()
	w, err := world.New(cfg, nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w)
}

// NewHarnessWithWorld attaches to an existing world, e.g. one that just imported a snapshot.
func NewHarnessWithWorld(t *testing.T, w *world.World) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	h := &Harness{
		T:        t,
		W:        w,
		Now:      time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
		Interval: time.Second / 60,
		sink:     make(chan snapshot.SnapshotV1, 1024),
	}
	w.SetTickLogger(h)
	w.SetSnapshotSink(h.sink)
	return h
}

func (h *Harness) WriteTick(e world.TickLogEntry) error {
	h.Ticks = append(h.Ticks, e)
	return nil
}

func (h *Harness) step(adminReset bool) string {
	h.T.Helper()
	want := h.W.CurrentTick()
	tick, digest := h.W.StepAt(h.Now, adminReset)
	if tick != want {
		h.T.Fatalf("stepped tick %d, want %d", tick, want)
	}
	h.Now = h.Now.Add(h.Interval)
	for {
		select {
		case s := <-h.sink:
			h.Snaps = append(h.Snaps, s)
		default:
			return digest
		}
	}
}

// Step advances one tick and returns its digest.
func (h *Harness) Step() string { return h.step(false) }

// Reset advances one tick with an admin reset applied first.
func (h *Harness) Reset() string { return h.step(true) }

func (h *Harness) StepFor(n int) string {
	h.T.Helper()
	var d string
	for i := 0; i < n; i++ {
		d = h.Step()
	}
	return d
}

// LastEvents are the events of the most recent tick.
func (h *Harness) LastEvents() []observerproto.Event {
	if len(h.Ticks) == 0 {
		return nil
	}
	return h.Ticks[len(h.Ticks)-1].Events
}

// CountEvents counts events of kind over all recorded ticks.
func (h *Harness) CountEvents(kind string) int {
	n := 0
	for _, e := range h.Ticks {
		for _, ev := range e.Events {
			if ev.Kind == kind {
				n++
			}
		}
	}
	return n
}

// SnapshotsWithReason filters recorded snapshots.
func (h *Harness) SnapshotsWithReason(reason string) []snapshot.SnapshotV1 {
	var out []snapshot.SnapshotV1
	for _, s := range h.Snaps {
		if s.Header.Reason == reason {
			out = append(out, s)
		}
	}
	return out
}
