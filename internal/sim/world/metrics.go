package world

import "pipescreen.ai/internal/sim/pipes"

// WorldMetrics is a thread-safe read-only view of key runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick    uint64 `json:"tick"`
	RunID   string `json:"run_id"`
	Drawing bool   `json:"drawing"`

	BatchSeq      uint64 `json:"batch_seq"`
	BatchJoints   string `json:"batch_joints"`
	BatchFestive  bool   `json:"batch_festive"`
	LivePipes     int    `json:"live_pipes"`
	OccupiedCells int    `json:"occupied_cells"`
	StuckTicks    int    `json:"stuck_ticks"`
	Observers     int    `json:"observers"`
	ResetTotal    uint64 `json:"reset_total"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	Field pipes.Stats `json:"field"`
}

type QueueDepths struct {
	ObserverJoin int `json:"observer_join"`
	Admin        int `json:"admin"`
	AdminReset   int `json:"admin_reset"`
	State        int `json:"state"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(stepMS float64) {
	b := w.field.Batch()
	w.metrics.Store(WorldMetrics{
		Tick:          w.tick.Load(),
		RunID:         w.runID,
		Drawing:       w.drawing.Load(),
		BatchSeq:      b.Seq,
		BatchJoints:   string(b.Joints),
		BatchFestive:  b.Festive,
		LivePipes:     len(w.field.Pipes()),
		OccupiedCells: w.field.Occupied(),
		StuckTicks:    w.field.StuckTicks(),
		Observers:     len(w.observers),
		ResetTotal:    w.resetTotal,
		QueueDepths: QueueDepths{
			ObserverJoin: len(w.observerJoin),
			Admin:        len(w.admin),
			AdminReset:   len(w.adminReset),
			State:        len(w.stateReq),
		},
		StepMS: stepMS,
		Field:  w.field.Stats(),
	})
}
