package world

import (
	"fmt"
	"log"
	"math/rand/v2"
	"sync/atomic"

	"github.com/google/uuid"

	"pipescreen.ai/internal/observerproto"
	"pipescreen.ai/internal/persistence/snapshot"
	"pipescreen.ai/internal/sim/pipes"
)

// World is a single-threaded runtime around one pipes.Field.
// All field state must be accessed only from the world loop goroutine.
type World struct {
	cfg   WorldConfig
	runID string

	tick atomic.Uint64

	src   *rand.PCG
	field *pipes.Field

	events     *eventRecorder
	renderers  pipes.Renderers
	presenters []Presenter

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string

	admin      chan adminSnapshotReq
	adminReset chan adminResetReq
	optionsReq chan optionsReq
	stateReq   chan stateReq
	stop       chan struct{}

	drawing    atomic.Bool
	resetTotal uint64

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	batchLogger BatchLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	logger  *log.Logger
	metrics atomic.Value
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry is everything needed to re-run one tick from the previous state.
type TickLogEntry struct {
	Tick       uint64                `json:"tick"`
	UnixMS     int64                 `json:"unix_ms"`
	AdminReset bool                  `json:"admin_reset,omitempty"`
	Events     []observerproto.Event `json:"events,omitempty"`
	Digest     string                `json:"digest"`
}

type BatchLogger interface {
	WriteBatch(entry BatchLogEntry) error
}

// BatchLogEntry records one field reset.
type BatchLogEntry struct {
	Tick       uint64              `json:"tick"`
	UnixMS     int64               `json:"unix_ms"`
	AdminReset bool                `json:"admin_reset,omitempty"`
	Batch      observerproto.Batch `json:"batch"`
}

// Presenter is implemented by renderers that batch draw calls and flush once per tick.
type Presenter interface {
	Present(tick uint64)
}

func New(cfg WorldConfig, logger *log.Logger) (*World, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	seed := uint64(cfg.Seed)
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	ev := &eventRecorder{}
	w := &World{
		cfg:           cfg,
		runID:         uuid.NewString(),
		src:           src,
		events:        ev,
		renderers:     pipes.Renderers{ev},
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		admin:         make(chan adminSnapshotReq, 8),
		adminReset:    make(chan adminResetReq, 8),
		optionsReq:    make(chan optionsReq, 8),
		stateReq:      make(chan stateReq, 16),
		stop:          make(chan struct{}),
		logger:        logger,
	}
	f, err := pipes.NewField(cfg.Field, rand.New(src), w.renderers)
	if err != nil {
		return nil, fmt.Errorf("field: %w", err)
	}
	w.field = f
	w.drawing.Store(true)
	w.publishMetrics(0)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetBatchLogger(l BatchLogger)                  { w.batchLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// AddRenderer attaches r to the growth event stream. It must be called before Run.
// The current field contents are replayed into r as spawns, joints and segments so a
// renderer attached after a snapshot import starts from the same picture.
func (w *World) AddRenderer(r pipes.Renderer) {
	if r == nil {
		return
	}
	w.renderers = append(w.renderers, r)
	w.field.SetRenderer(w.renderers)
	if p, ok := r.(Presenter); ok {
		w.presenters = append(w.presenters, p)
	}
	w.replayInto(r)
}

func (w *World) replayInto(r pipes.Renderer) {
	b := w.field.Batch()
	if b.Seq == 0 {
		return
	}
	r.OnFieldReset(b)
	for _, p := range w.field.Pipes() {
		path, joints := p.Path(), p.Joints()
		r.OnPipeSpawned(p.ID(), path[0], p.Style())
		for i := 1; i < len(path); i++ {
			if len(joints) > 0 && joints[0].Step == i-1 {
				r.OnJoint(p.ID(), path[i-1], joints[0].Kind, p.Style())
				joints = joints[1:]
			}
			r.OnSegment(p.ID(), path[i-1], path[i], p.Style())
		}
	}
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) RunID() string { return w.runID }

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

// CurrentTick is the tick the next step will run.
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Drawing reports whether the loop is still ticking.
func (w *World) Drawing() bool { return w.drawing.Load() }

func (w *World) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}
