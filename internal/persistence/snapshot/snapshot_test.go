package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", FileName(42))
	in := SnapshotV1{
		Header:   Header{Version: Version, WorldID: "w1", Tick: 42, Reason: ReasonAdmin, Batch: 3},
		RunID:    "run-1",
		Seed:     7,
		TickRate: 60,
		RNG:      []byte{1, 2, 3},
		Field: FieldV1{
			Min:        [3]int{-1, -1, -1},
			Max:        [3]int{1, 1, 1},
			Batch:      BatchV1{Seq: 3, Joints: "mixed", BallJointChance: 1.0 / 3, TeapotChance: 0.005, Pipes: 1},
			Pipes:      []PipeV1{{ID: 5, Color: 0xabcdef, Path: [][3]int{{0, 0, 0}, {1, 0, 0}}}},
			Occupancy:  "AAEB",
			NextID:     5,
			CycleIndex: 2,
			Stats:      StatsV1{Ticks: 42, Segments: 1},
		},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if out.Header != in.Header || out.RunID != in.RunID || out.Seed != in.Seed {
		t.Fatalf("header mismatch: %+v", out.Header)
	}
	if len(out.RNG) != 3 || out.RNG[2] != 3 {
		t.Fatalf("rng mismatch: %v", out.RNG)
	}
	if len(out.Field.Pipes) != 1 || out.Field.Pipes[0].Path[1] != [3]int{1, 0, 0} {
		t.Fatalf("pipes mismatch: %+v", out.Field.Pipes)
	}
	if out.Field.Stats != in.Field.Stats || out.Field.Batch != in.Field.Batch {
		t.Fatalf("field mismatch: %+v", out.Field)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h != in.Header {
		t.Fatalf("ReadHeader=%+v", h)
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.snap.zst")); err == nil {
		t.Fatalf("expected error")
	}
}
