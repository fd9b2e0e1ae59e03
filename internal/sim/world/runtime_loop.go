package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var drawTimeout <-chan time.Time
	if w.cfg.DrawTimeout > 0 {
		t := time.NewTimer(w.cfg.DrawTimeout)
		defer t.Stop()
		drawTimeout = t.C
	}

	var pendingAdmin []adminSnapshotReq
	var pendingAdminReset []adminResetReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-drawTimeout:
			w.drawing.Store(false)
			drawTimeout = nil
			w.logf("draw timeout reached at tick %d; ticking stopped", w.tick.Load())
			w.rejectResets(pendingAdminReset, "not drawing")
			pendingAdminReset = pendingAdminReset[:0]
			w.publishMetrics(0)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case req := <-w.adminReset:
			if !w.drawing.Load() {
				w.rejectResets([]adminResetReq{req}, "not drawing")
				continue
			}
			pendingAdminReset = append(pendingAdminReset, req)
		case req := <-w.optionsReq:
			w.handleOptionsReq(req)
		case req := <-w.stateReq:
			w.handleStateReq(req)
		case <-ticker.C:
			if w.drawing.Load() {
				w.stepInternal(w.cfg.Clock(), len(pendingAdminReset) > 0)
				w.answerResets(pendingAdminReset)
				pendingAdminReset = pendingAdminReset[:0]
			}
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepAt advances the field by a single tick at the given wall time using the same
// ordering as the server loop. It is intended for deterministic replays and tests.
func (w *World) StepAt(now time.Time, adminReset bool) (tick uint64, digest string) {
	tick = w.tick.Load()
	digest = w.stepInternal(now, adminReset)
	return tick, digest
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
