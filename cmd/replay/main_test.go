package main

import (
	"strings"
	"testing"

	persistlog "pipescreen.ai/internal/persistence/log"
	"pipescreen.ai/internal/persistence/snapshot"
	"pipescreen.ai/internal/sim/worldtest"
)

func recordRun(t *testing.T) (worldDir string, start snapshot.SnapshotV1, h *worldtest.Harness) {
	t.Helper()
	cfg := worldtest.DefaultConfig(11)
	h = worldtest.NewHarness(t, cfg)
	h.StepFor(90)
	h.Reset()
	h.StepFor(200)

	starts := h.SnapshotsWithReason(snapshot.ReasonBatchStart)
	if len(starts) < 2 {
		t.Fatalf("batch-start snapshots=%d", len(starts))
	}

	worldDir = t.TempDir()
	tl := persistlog.NewTickLogger(worldDir)
	for _, e := range h.Ticks {
		if err := tl.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return worldDir, starts[1], h
}

func TestReplayVerifiesRecordedDigests(t *testing.T) {
	worldDir, start, h := recordRun(t)

	res, err := replay(replayConfig{
		Snapshot: start,
		Field:    worldtest.DefaultConfig(11).Field,
		TicksDir: persistlog.TickDir(worldDir),
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.StartTick != start.Header.Tick+1 {
		t.Fatalf("start tick=%d, want %d", res.StartTick, start.Header.Tick+1)
	}
	last := h.Ticks[len(h.Ticks)-1]
	if res.LastTick != last.Tick || res.Digest != last.Digest {
		t.Fatalf("ended at %d/%s, recorded %d/%s", res.LastTick, res.Digest, last.Tick, last.Digest)
	}
	if res.Checked != last.Tick-start.Header.Tick {
		t.Fatalf("checked=%d", res.Checked)
	}
	if res.LogBytes == 0 {
		t.Fatalf("log size not measured")
	}
}

func TestReplayStopsAtToTick(t *testing.T) {
	worldDir, start, _ := recordRun(t)
	to := start.Header.Tick + 10
	res, err := replay(replayConfig{
		Snapshot: start,
		Field:    worldtest.DefaultConfig(11).Field,
		TicksDir: persistlog.TickDir(worldDir),
		ToTick:   to,
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.LastTick != to || res.Checked != 10 {
		t.Fatalf("last=%d checked=%d", res.LastTick, res.Checked)
	}
}

func TestReplayDetectsDivergence(t *testing.T) {
	_, start, h := recordRun(t)

	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	for _, e := range h.Ticks {
		if e.Tick == start.Header.Tick+5 {
			e.Digest = "0000000000000000"
		}
		if err := tl.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	_ = tl.Close()

	_, err := replay(replayConfig{
		Snapshot: start,
		Field:    worldtest.DefaultConfig(11).Field,
		TicksDir: persistlog.TickDir(dir),
	})
	if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}
