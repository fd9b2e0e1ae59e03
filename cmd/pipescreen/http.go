package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"pipescreen.ai/internal/persistence/indexdb"
	"pipescreen.ai/internal/sim/world"
	"pipescreen.ai/internal/transport/observer"
)

// runtimeWorld is what the HTTP surface needs from the world.
type runtimeWorld interface {
	ID() string
	CurrentTick() uint64
	Metrics() world.WorldMetrics
	RequestSnapshot(ctx context.Context) (uint64, error)
	RequestReset(ctx context.Context) (uint64, error)
}

type muxOptions struct {
	Admin bool
	Pprof bool
}

func newMux(w runtimeWorld, obsSrv *observer.Server, idx *indexdb.SQLiteIndex, opts muxOptions, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()
		if m.Tick == 0 {
			m.Tick = w.CurrentTick()
		}
		var sessions int64
		if obsSrv != nil {
			sessions = obsSrv.Sessions()
		}
		writeMetrics(rw, w.ID(), m, sessions)
		if idx != nil {
			writeIndexMetrics(rw, w.ID(), idx.Stats())
		}
	})

	if obsSrv != nil {
		mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())
	}

	if opts.Admin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string             `json:"world_id"`
				Tick    uint64             `json:"tick"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{
				WorldID: w.ID(),
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", adminHandler(w.RequestSnapshot))
		mux.HandleFunc("/admin/v1/reset", adminHandler(w.RequestReset))
	} else if logger != nil {
		logger.Printf("admin endpoints disabled (PS_ENABLE_ADMIN_HTTP=false)")
	}

	if opts.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else if logger != nil {
		logger.Printf("pprof endpoints disabled (PS_ENABLE_PPROF_HTTP=false)")
	}
	return mux
}

func adminHandler(call func(ctx context.Context) (uint64, error)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := call(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	}
}

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(out io.Writer, id string, m world.WorldMetrics, sessions int64) {
	gauge := func(name, help string) {
		fmt.Fprintf(out, "# HELP %s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE %s gauge\n", name)
	}
	counter := func(name, help string) {
		fmt.Fprintf(out, "# HELP %s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE %s counter\n", name)
	}

	gauge("pipescreen_world_tick", "Next tick the world will run.")
	fmt.Fprintf(out, "pipescreen_world_tick{world=%q} %d\n", id, m.Tick)

	gauge("pipescreen_world_drawing", "1 while the field is still growing.")
	fmt.Fprintf(out, "pipescreen_world_drawing{world=%q} %d\n", id, boolGauge(m.Drawing))

	gauge("pipescreen_batch_seq", "Sequence number of the current batch.")
	fmt.Fprintf(out, "pipescreen_batch_seq{world=%q,joints=%q} %d\n", id, m.BatchJoints, m.BatchSeq)

	gauge("pipescreen_batch_festive", "1 when the current batch uses the festive texture.")
	fmt.Fprintf(out, "pipescreen_batch_festive{world=%q} %d\n", id, boolGauge(m.BatchFestive))

	gauge("pipescreen_live_pipes", "Pipes in the current batch.")
	fmt.Fprintf(out, "pipescreen_live_pipes{world=%q} %d\n", id, m.LivePipes)

	gauge("pipescreen_occupied_cells", "Occupied lattice cells.")
	fmt.Fprintf(out, "pipescreen_occupied_cells{world=%q} %d\n", id, m.OccupiedCells)

	gauge("pipescreen_stuck_ticks", "Consecutive ticks in which no pipe advanced.")
	fmt.Fprintf(out, "pipescreen_stuck_ticks{world=%q} %d\n", id, m.StuckTicks)

	gauge("pipescreen_observers", "Observers attached to the world loop.")
	fmt.Fprintf(out, "pipescreen_observers{world=%q} %d\n", id, m.Observers)

	gauge("pipescreen_observer_sessions", "Open observer websocket sessions.")
	fmt.Fprintf(out, "pipescreen_observer_sessions{world=%q} %d\n", id, sessions)

	counter("pipescreen_admin_resets_total", "Admin field resets.")
	fmt.Fprintf(out, "pipescreen_admin_resets_total{world=%q} %d\n", id, m.ResetTotal)

	counter("pipescreen_field_events_total", "Field growth events by kind.")
	fmt.Fprintf(out, "pipescreen_field_events_total{world=%q,kind=%q} %d\n", id, "batch", m.Field.Batches)
	fmt.Fprintf(out, "pipescreen_field_events_total{world=%q,kind=%q} %d\n", id, "spawn", m.Field.Spawned)
	fmt.Fprintf(out, "pipescreen_field_events_total{world=%q,kind=%q} %d\n", id, "segment", m.Field.Segments)
	fmt.Fprintf(out, "pipescreen_field_events_total{world=%q,kind=%q} %d\n", id, "stuck", m.Field.StuckSteps)
	fmt.Fprintf(out, "pipescreen_field_events_total{world=%q,kind=%q} %d\n", id, "ball", m.Field.Balls)
	fmt.Fprintf(out, "pipescreen_field_events_total{world=%q,kind=%q} %d\n", id, "elbow", m.Field.Elbows)
	fmt.Fprintf(out, "pipescreen_field_events_total{world=%q,kind=%q} %d\n", id, "teapot", m.Field.Teapots)

	gauge("pipescreen_queue_depth", "Channel backlog depth.")
	fmt.Fprintf(out, "pipescreen_queue_depth{world=%q,queue=%q} %d\n", id, "observer_join", m.QueueDepths.ObserverJoin)
	fmt.Fprintf(out, "pipescreen_queue_depth{world=%q,queue=%q} %d\n", id, "admin", m.QueueDepths.Admin)
	fmt.Fprintf(out, "pipescreen_queue_depth{world=%q,queue=%q} %d\n", id, "admin_reset", m.QueueDepths.AdminReset)
	fmt.Fprintf(out, "pipescreen_queue_depth{world=%q,queue=%q} %d\n", id, "state", m.QueueDepths.State)

	gauge("pipescreen_step_ms", "Last tick step duration in milliseconds.")
	fmt.Fprintf(out, "pipescreen_step_ms{world=%q} %.3f\n", id, m.StepMS)
}

func writeIndexMetrics(out io.Writer, id string, s indexdb.Stats) {
	fmt.Fprintf(out, "# HELP pipescreen_index_queue_depth Index writer queue depth.\n")
	fmt.Fprintf(out, "# TYPE pipescreen_index_queue_depth gauge\n")
	fmt.Fprintf(out, "pipescreen_index_queue_depth{world=%q} %d\n", id, s.QueueDepth)

	fmt.Fprintf(out, "# HELP pipescreen_index_dropped_total Index rows dropped on a full queue.\n")
	fmt.Fprintf(out, "# TYPE pipescreen_index_dropped_total counter\n")
	fmt.Fprintf(out, "pipescreen_index_dropped_total{world=%q,table=%q} %d\n", id, "ticks", s.DropTickTotal)
	fmt.Fprintf(out, "pipescreen_index_dropped_total{world=%q,table=%q} %d\n", id, "batches", s.DropBatchTotal)
	fmt.Fprintf(out, "pipescreen_index_dropped_total{world=%q,table=%q} %d\n", id, "snapshots", s.DropSnapshotTotal)
	fmt.Fprintf(out, "pipescreen_index_dropped_total{world=%q,table=%q} %d\n", id, "archives", s.DropArchiveTotal)
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
