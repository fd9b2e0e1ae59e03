package archive

import (
	"os"
	"path/filepath"
	"testing"

	"pipescreen.ai/internal/persistence/snapshot"
)

func TestArchiveBatchSnapshot_CopiesBatchStart(t *testing.T) {
	worldDir := filepath.Join(t.TempDir(), "worlds", "w1")
	src := filepath.Join(worldDir, "snapshots", snapshot.FileName(7))
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir snapshots: %v", err)
	}
	want := []byte("dummy")
	if err := os.WriteFile(src, want, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: "w1", Tick: 7, Reason: snapshot.ReasonBatchStart, Batch: 3},
		Seed:   42,
		RunID:  "r",
		Field:  snapshot.FieldV1{Batch: snapshot.BatchV1{Seq: 3, Joints: "ball", Pipes: 2}},
	}
	archivedPath, ok, err := ArchiveBatchSnapshot(worldDir, src, snap)
	if err != nil || !ok {
		t.Fatalf("archive ok=%v err=%v", ok, err)
	}
	if filepath.Dir(archivedPath) != BatchDir(worldDir, 3) {
		t.Fatalf("archived at %s", archivedPath)
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil || string(got) != string(want) {
		t.Fatalf("archived content=%q err=%v", got, err)
	}

	meta, err := ReadMeta(worldDir, 3)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.Batch != 3 || meta.StartTick != 7 || meta.Joints != "ball" || meta.Pipes != 2 || meta.Seed != 42 {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestArchiveBatchSnapshot_IgnoresPeriodic(t *testing.T) {
	snap := snapshot.SnapshotV1{Header: snapshot.Header{Version: 1, Tick: 9, Reason: snapshot.ReasonPeriodic, Batch: 1}}
	_, ok, err := ArchiveBatchSnapshot(t.TempDir(), "unused", snap)
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}
