package main

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pipescreen.ai/internal/sim/world"
	"pipescreen.ai/internal/sim/worldtest"
	"pipescreen.ai/internal/transport/observer"
)

func TestWatchMirrorsLiveWorld(t *testing.T) {
	cfg := worldtest.DefaultConfig(21)
	cfg.DrawTimeout = 400 * time.Millisecond
	w, err := world.New(cfg, nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	srv := httptest.NewServer(observer.NewServer(w, nil).WSHandler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	wctx, wcancel := context.WithTimeout(ctx, time.Second)
	defer wcancel()
	m, err := watch(wctx, url, 0, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if m.States != 1 {
		t.Fatalf("states=%d, want 1", m.States)
	}
	if m.Ticks == 0 || m.Occupied() == 0 {
		t.Fatalf("mirror saw nothing: ticks=%d occupied=%d", m.Ticks, m.Occupied())
	}
}

func TestWatchDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := watch(ctx, "ws://127.0.0.1:1/v1/observer/ws", 0, log.New(io.Discard, "", 0)); err == nil {
		t.Fatalf("expected dial error")
	}
}
