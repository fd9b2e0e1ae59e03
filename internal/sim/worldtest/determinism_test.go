package worldtest

import (
	"testing"
	"time"

	"pipescreen.ai/internal/observerproto"
	"pipescreen.ai/internal/persistence/snapshot"
	world "pipescreen.ai/internal/sim/world"
)

func TestDeterminism_SameSeedSameDigests(t *testing.T) {
	h1 := NewHarness(t, DefaultConfig(42))
	h2 := NewHarness(t, DefaultConfig(42))

	for i := 0; i < 600; i++ {
		var d1, d2 string
		if i == 250 {
			d1, d2 = h1.Reset(), h2.Reset()
		} else {
			d1, d2 = h1.Step(), h2.Step()
		}
		if d1 != d2 {
			t.Fatalf("tick %d: digest mismatch %s vs %s", i, d1, d2)
		}
	}
	if len(h1.Ticks) != 600 {
		t.Fatalf("ticks=%d", len(h1.Ticks))
	}
	if h1.CountEvents(observerproto.EventReset) < 2 {
		t.Fatalf("expected at least two batches, got %d resets", h1.CountEvents(observerproto.EventReset))
	}
}

func TestDeterminism_ReplayFromBatchStartSnapshot(t *testing.T) {
	h := NewHarness(t, DefaultConfig(7))
	h.StepFor(120)
	h.Reset()
	h.StepFor(300)

	starts := h.SnapshotsWithReason(snapshot.ReasonBatchStart)
	if len(starts) < 2 {
		t.Fatalf("batch-start snapshots=%d", len(starts))
	}
	from := starts[1]

	w, err := world.New(DefaultConfig(999), nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	if err := w.ImportSnapshot(from); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}

	checked := 0
	for _, e := range h.Ticks {
		if e.Tick <= from.Header.Tick {
			continue
		}
		if e.Tick != w.CurrentTick() {
			t.Fatalf("tick mismatch: log=%d world=%d", e.Tick, w.CurrentTick())
		}
		_, got := w.StepAt(time.UnixMilli(e.UnixMS), e.AdminReset)
		if got != e.Digest {
			t.Fatalf("tick %d: replay digest %s, recorded %s", e.Tick, got, e.Digest)
		}
		checked++
	}
	if checked == 0 {
		t.Fatalf("nothing replayed")
	}
}

func TestBatchStartSnapshotsMatchResets(t *testing.T) {
	h := NewHarness(t, DefaultConfig(3))
	h.StepFor(400)

	resets := h.CountEvents(observerproto.EventReset)
	starts := h.SnapshotsWithReason(snapshot.ReasonBatchStart)
	if len(starts) != resets {
		t.Fatalf("batch-start snapshots=%d resets=%d", len(starts), resets)
	}
	for i, s := range starts {
		if s.Header.Batch != uint64(i+1) {
			t.Fatalf("snapshot %d batch=%d", i, s.Header.Batch)
		}
	}
}
