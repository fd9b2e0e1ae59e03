package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "pipescreen.ai/internal/persistence/log"
	"pipescreen.ai/internal/persistence/snapshot"
	"pipescreen.ai/internal/sim/pipes"
	"pipescreen.ai/internal/sim/tuning"
	"pipescreen.ai/internal/sim/world"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		ticksDir   = flag.String("ticks", "", "tick log dir containing ticks-*.jsonl.zst (default: <world>/ticks next to the snapshot)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "tuning file the run used (default: <configs>/tuning.yaml)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d world=%s tick=%d reason=%s batch=%d seed=%d pipes=%d joints=%s\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Header.Reason, snap.Header.Batch,
		snap.Seed, len(snap.Field.Pipes), snap.Field.Batch.Joints)

	dir := strings.TrimSpace(*ticksDir)
	if dir == "" {
		// <world>/snapshots/N.snap.zst or <world>/archives/batch_N/N.snap.zst
		snapDir := filepath.Dir(*snapPath)
		worldDir := filepath.Dir(snapDir)
		if filepath.Base(worldDir) == "archives" {
			worldDir = filepath.Dir(worldDir)
		}
		dir = persistlog.TickDir(worldDir)
	}
	if _, err := os.Stat(dir); err != nil {
		fmt.Println("no tick log at", dir)
		return
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	opts, err := tune.FieldOptions()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		os.Exit(1)
	}

	res, err := replay(replayConfig{
		Snapshot: snap,
		Field:    opts,
		TicksDir: dir,
		FromTick: *fromTick,
		ToTick:   *toTick,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%s ticks (%s..%d) admin_resets=%s events=%s log=%s digest=%s\n",
		humanize.Comma(int64(res.Checked)), humanize.Comma(int64(res.StartTick)), res.LastTick,
		humanize.Comma(int64(res.Resets)), humanize.Comma(int64(res.Events)),
		humanize.Bytes(res.LogBytes), res.Digest)
}

type replayConfig struct {
	Snapshot snapshot.SnapshotV1
	// Field must match the options the recorded run used after the snapshot.
	Field    pipes.Options
	TicksDir string
	FromTick uint64
	ToTick   uint64
}

type replayResult struct {
	StartTick uint64
	LastTick  uint64
	Checked   uint64
	Resets    uint64
	Events    uint64
	LogBytes  uint64
	Digest    string
}

var errStop = errors.New("stop")

// replay restores the snapshot and steps the world through the tick log, comparing digests.
func replay(cfg replayConfig) (replayResult, error) {
	snap := cfg.Snapshot
	w, err := world.New(world.WorldConfig{
		ID:         snap.Header.WorldID,
		TickRateHz: snap.TickRate,
		Seed:       snap.Seed,
		Field:      cfg.Field,
	}, nil)
	if err != nil {
		return replayResult{}, fmt.Errorf("world: %w", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return replayResult{}, fmt.Errorf("import snapshot: %w", err)
	}

	res := replayResult{StartTick: w.CurrentTick(), LogBytes: dirBytes(cfg.TicksDir)}
	verifyFrom := cfg.FromTick
	if verifyFrom < res.StartTick {
		verifyFrom = res.StartTick
	}

	err = persistlog.ReadTicks(cfg.TicksDir, func(e world.TickLogEntry) error {
		if e.Tick < res.StartTick {
			return nil
		}
		if cfg.ToTick != 0 && e.Tick > cfg.ToTick {
			return errStop
		}
		if e.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), e.Tick)
		}
		tick, got := w.StepAt(time.UnixMilli(e.UnixMS), e.AdminReset)
		res.LastTick = tick
		res.Digest = got
		res.Events += uint64(len(e.Events))
		if e.AdminReset {
			res.Resets++
		}
		if tick < verifyFrom {
			return nil
		}
		res.Checked++
		if got != e.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, got, e.Digest)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return res, err
	}
	if res.Checked == 0 {
		return res, fmt.Errorf("no ticks after %d in %s", res.StartTick, cfg.TicksDir)
	}
	return res, nil
}

func dirBytes(dir string) uint64 {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var n uint64
	for _, e := range ents {
		if info, err := e.Info(); err == nil && !e.IsDir() {
			n += uint64(info.Size())
		}
	}
	return n
}
