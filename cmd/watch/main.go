package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"pipescreen.ai/internal/observerproto"
)

func main() {
	var (
		url   = flag.String("url", "ws://127.0.0.1:8080/v1/observer/ws", "observer ws url")
		every = flag.Duration("every", 5*time.Second, "summary interval (0 disables)")
		dur   = flag.Duration("for", 0, "stop after this long (0 runs until interrupted)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *dur > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *dur)
		defer cancel()
	}

	m, err := watch(ctx, *url, *every, logger)
	if m != nil {
		logger.Printf("done: tick=%d states=%d ticks=%s batch=%d pipes=%d occupied=%s",
			m.Tick, m.States, humanize.Comma(int64(m.Ticks)), m.Batch.Seq, len(m.Pipes()), humanize.Comma(int64(m.Occupied())))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "watch:", err)
		os.Exit(1)
	}
}

// watch subscribes to the observer stream and mirrors the field until ctx is done.
// A stream that breaks the lattice invariants is an error.
func watch(ctx context.Context, url string, every time.Duration, logger *log.Logger) (*observerproto.Mirror, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version}
	if err := conn.WriteJSON(sub); err != nil {
		return nil, fmt.Errorf("send SUBSCRIBE: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	m := observerproto.NewMirror()
	var lastSummary time.Time
	var lastBatch uint64
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return m, nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return m, nil
			}
			return m, err
		}
		typ, err := m.Handle(msg)
		if err != nil {
			return m, err
		}
		switch {
		case typ == "STATE":
			logger.Printf("STATE world=%s run=%s tick=%d batch=%d joints=%s pipes=%d occupied=%d",
				m.WorldID, m.RunID, m.Tick, m.Batch.Seq, m.Batch.Joints, len(m.Pipes()), m.Occupied())
		case m.Batch.Seq != lastBatch:
			logger.Printf("batch %d tick=%d joints=%s pipes=%d festive=%t",
				m.Batch.Seq, m.Tick-1, m.Batch.Joints, m.Batch.Pipes, m.Batch.Festive)
		}
		lastBatch = m.Batch.Seq
		if every > 0 && time.Since(lastSummary) >= every {
			lastSummary = time.Now()
			logger.Printf("tick=%d pipes=%d occupied=%d", m.Tick, len(m.Pipes()), m.Occupied())
		}
	}
}
