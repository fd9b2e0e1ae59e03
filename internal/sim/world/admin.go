package world

import (
	"context"
	"errors"

	"pipescreen.ai/internal/observerproto"
	"pipescreen.ai/internal/persistence/snapshot"
	"pipescreen.ai/internal/sim/pipes"
)

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	resp := make(chan adminSnapshotResp, 1)
	select {
	case w.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if len(reqs) == 0 {
		return
	}
	cur := w.tick.Load()
	snapTick := uint64(0)
	if cur > 0 {
		snapTick = cur - 1
	}

	errStr := ""
	if w.snapshotSink == nil {
		errStr = "snapshot sink not configured"
	} else if !w.emitSnapshot(snapTick, snapshot.ReasonAdmin) {
		errStr = "snapshot sink backpressure"
	}

	resp := adminSnapshotResp{Tick: snapTick, Err: errStr}
	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Client timed out; don't block the loop.
		}
	}
}

type adminResetReq struct {
	Resp chan adminResetResp
}

type adminResetResp struct {
	Tick uint64
	Err  string
}

// RequestReset clears the field; the next tick spawns a fresh batch.
// It is safe to call from other goroutines.
func (w *World) RequestReset(ctx context.Context) (tick uint64, err error) {
	if w == nil || w.adminReset == nil {
		return 0, errors.New("admin reset not available")
	}
	resp := make(chan adminResetResp, 1)
	select {
	case w.adminReset <- adminResetReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// answerResets reports the tick in which the reset took effect.
func (w *World) answerResets(reqs []adminResetReq) {
	cur := w.tick.Load()
	tick := uint64(0)
	if cur > 0 {
		tick = cur - 1
	}
	for _, r := range reqs {
		select {
		case r.Resp <- adminResetResp{Tick: tick}:
		default:
		}
	}
}

func (w *World) rejectResets(reqs []adminResetReq, msg string) {
	for _, r := range reqs {
		select {
		case r.Resp <- adminResetResp{Tick: w.tick.Load(), Err: msg}:
		default:
		}
	}
}

type optionsReq struct {
	Opts pipes.Options
	Resp chan error
}

// ApplyOptions stages new field options. They take effect at the next batch.
func (w *World) ApplyOptions(ctx context.Context, opts pipes.Options) error {
	resp := make(chan error, 1)
	select {
	case w.optionsReq <- optionsReq{Opts: opts, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) handleOptionsReq(req optionsReq) {
	err := w.field.SetOptions(req.Opts)
	if err == nil {
		w.logf("field options staged for the next batch")
	}
	select {
	case req.Resp <- err:
	default:
	}
}

type stateReq struct {
	Resp chan observerproto.StateMsg
}

// RequestState returns the full field state as seen between ticks.
func (w *World) RequestState(ctx context.Context) (observerproto.StateMsg, error) {
	resp := make(chan observerproto.StateMsg, 1)
	select {
	case w.stateReq <- stateReq{Resp: resp}:
	case <-ctx.Done():
		return observerproto.StateMsg{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-ctx.Done():
		return observerproto.StateMsg{}, ctx.Err()
	}
}

func (w *World) handleStateReq(req stateReq) {
	select {
	case req.Resp <- w.stateMsg():
	default:
	}
}
