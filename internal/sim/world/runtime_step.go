package world

import (
	"time"

	"pipescreen.ai/internal/persistence/snapshot"
)

func (w *World) stepInternal(now time.Time, adminReset bool) string {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	if adminReset {
		w.field.Clear()
		w.logf("admin reset at tick %d", nowTick)
	}

	res := w.field.Tick(now)
	events := w.events.take()
	if res.Reset {
		w.resetTotal++
	}

	digest := w.stateDigest(nowTick)
	w.tick.Store(nowTick + 1)

	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:       nowTick,
			UnixMS:     now.UnixMilli(),
			AdminReset: adminReset,
			Events:     events,
			Digest:     digest,
		}
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.logf("tick log write failed at tick %d: %v", nowTick, err)
		}
	}

	w.broadcastTick(nowTick, events)
	for _, p := range w.presenters {
		p.Present(nowTick)
	}

	if res.Reset {
		b := w.field.Batch()
		w.logf("batch %d: %s joints, %d pipe(s), festive=%v", b.Seq, b.Joints, b.Pipes, b.Festive)
		if w.batchLogger != nil {
			entry := BatchLogEntry{Tick: nowTick, UnixMS: now.UnixMilli(), AdminReset: adminReset, Batch: batchMsg(b)}
			if err := w.batchLogger.WriteBatch(entry); err != nil {
				w.logf("batch log write failed at tick %d: %v", nowTick, err)
			}
		}
		w.emitSnapshot(nowTick, snapshot.ReasonBatchStart)
	} else if w.cfg.SnapshotEveryTicks > 0 && nowTick > 0 && nowTick%w.cfg.SnapshotEveryTicks == 0 {
		w.emitSnapshot(nowTick, snapshot.ReasonPeriodic)
	}

	w.publishMetrics(float64(time.Since(stepStart).Microseconds()) / 1000.0)
	return digest
}

// emitSnapshot hands the post-tick state to the sink without blocking the loop.
func (w *World) emitSnapshot(tick uint64, reason string) bool {
	if w.snapshotSink == nil {
		return false
	}
	snap := w.ExportSnapshot(tick)
	snap.Header.Reason = reason
	select {
	case w.snapshotSink <- snap:
		return true
	default:
		w.logf("snapshot sink backpressure; dropped %s snapshot at tick %d", reason, tick)
		return false
	}
}
