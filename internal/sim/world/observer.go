package world

import (
	"encoding/json"

	"pipescreen.ai/internal/observerproto"
	simenc "pipescreen.ai/internal/sim/encoding"
	"pipescreen.ai/internal/sim/lattice"
)

// ObserverJoinRequest registers a read-only observer session. The world sends one STATE
// message, then a TICK message for every tick that produced events. Out is closed by the
// world when the session leaves or is replaced.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
}

type observerClient struct {
	id  string
	out chan []byte

	// resync is set when a TICK could not be queued; the next send is a full STATE.
	resync bool
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	c := &observerClient{id: req.SessionID, out: req.Out}
	w.observers[req.SessionID] = c
	w.sendState(c)
	w.logf("observer %s joined (%d total)", req.SessionID, len(w.observers))
}

func (w *World) handleObserverLeave(id string) {
	c := w.observers[id]
	if c == nil {
		return
	}
	close(c.out)
	delete(w.observers, id)
}

func (w *World) sendState(c *observerClient) {
	b, err := json.Marshal(w.stateMsg())
	if err != nil {
		return
	}
	select {
	case c.out <- b:
		c.resync = false
	default:
		c.resync = true
	}
}

func (w *World) broadcastTick(tick uint64, events []observerproto.Event) {
	if len(w.observers) == 0 {
		return
	}
	var payload []byte
	if len(events) > 0 {
		b, err := json.Marshal(observerproto.TickMsg{
			Type:            "TICK",
			ProtocolVersion: observerproto.Version,
			Tick:            tick,
			Events:          events,
		})
		if err != nil {
			w.logf("observer tick marshal failed: %v", err)
			return
		}
		payload = b
	}
	for _, c := range w.observers {
		if c.resync {
			// The STATE built after this tick already contains its events.
			w.sendState(c)
			continue
		}
		if payload == nil {
			continue
		}
		select {
		case c.out <- payload:
		default:
			c.resync = true
		}
	}
}

func (w *World) stateMsg() observerproto.StateMsg {
	st := w.field.Export()
	msg := observerproto.StateMsg{
		ProtocolVersion: observerproto.Version,
		Type:            "STATE",
		WorldID:         w.cfg.ID,
		RunID:           w.runID,
		Tick:            w.tick.Load(),
		TickRateHz:      w.cfg.TickRateHz,
		Drawing:         w.drawing.Load(),
		Bounds:          observerproto.Bounds{Min: st.Bounds.Min.ToArray(), Max: st.Bounds.Max.ToArray()},
		Batch:           batchMsg(st.Batch),
		Pipes:           make([]observerproto.PipeInfo, 0, len(st.Pipes)),
		Occupancy:       observerproto.Occupancy{Encoding: simenc.RLEName, Data: st.Occupancy},
	}
	for _, p := range st.Pipes {
		msg.Pipes = append(msg.Pipes, observerproto.PipeInfo{
			ID:    uint32(p.ID),
			Style: styleMsg(p.Style),
			Path:  cellArrays(p.Path),
		})
	}
	return msg
}

func cellArrays(cs []lattice.Cell) [][3]int {
	out := make([][3]int, len(cs))
	for i, c := range cs {
		out[i] = c.ToArray()
	}
	return out
}
