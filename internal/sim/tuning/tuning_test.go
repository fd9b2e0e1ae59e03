package tuning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pipescreen.ai/internal/sim/lattice"
	"pipescreen.ai/internal/sim/pipes"
)

func TestDefaults_Valid(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	opts, err := d.FieldOptions()
	if err != nil {
		t.Fatalf("FieldOptions: %v", err)
	}
	if opts.Bounds != lattice.Cube(10) || !opts.Multiple || opts.Joints != pipes.JointsMixed {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if d.DrawTimeout() != 5*time.Second {
		t.Fatalf("draw timeout=%s", d.DrawTimeout())
	}
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := `
tick_rate_hz: 30
bounds:
  min: [-3, -3, -3]
  max: [3, 3, 3]
multiple: false
joints: cycle
joints_cycle: [ball, elbow]
chances:
  teapot: 0
festive:
  season: never
stuck_reset_ticks: 40
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 30 || tu.Multiple || tu.StuckResetTicks != 40 {
		t.Fatalf("fields not loaded: %+v", tu)
	}
	if tu.Chances.Teapot != 0 || tu.Chances.MixedBall != pipes.DefaultMixedBallChance {
		t.Fatalf("chances=%+v", tu.Chances)
	}
	if tu.DrawTimeoutMs != 5000 {
		t.Fatalf("unset field lost its default: %d", tu.DrawTimeoutMs)
	}
	opts, err := tu.FieldOptions()
	if err != nil {
		t.Fatalf("FieldOptions: %v", err)
	}
	if opts.Bounds != lattice.Cube(3) || opts.Joints != pipes.JointsCycle || len(opts.Cycle) != 2 || opts.Cycle[0] != pipes.JointsBall {
		t.Fatalf("options=%+v", opts)
	}
	if opts.Season(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("season never must be false")
	}
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	body := `
tick_rate_hz = 24
joints = "ball"

[bounds]
min = [0, 0, 0]
max = [4, 2, 1]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 24 || tu.Joints != "ball" || tu.Bounds.Max != [3]int{4, 2, 1} {
		t.Fatalf("toml not applied: %+v", tu)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bounds.yaml": "bounds:\n  min: [1, 0, 0]\n  max: [0, 0, 0]\n",
		"chance.yaml": "chances:\n  teapot: 1.5\n",
		"joints.yaml": "joints: spiral\n",
		"season.yaml": "festive:\n  season: monsoon\n",
		"rate.yaml":   "tick_rate_hz: 0\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("missing file: got %v", err)
	}
}

func TestValidate_RejectsOversizedBounds(t *testing.T) {
	tu := Defaults()
	tu.Bounds = Bounds{Min: [3]int{-130, -130, -130}, Max: [3]int{130, 130, 130}}
	if err := tu.Validate(); err == nil {
		t.Fatalf("expected bounds over the occupancy cap to be rejected")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 10\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan Tuning, 4)
	go func() { _ = Watch(ctx, path, nil, func(t Tuning) { got <- t }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("tick_rate_hz: 20\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case tu := <-got:
		if tu.TickRateHz != 20 {
			t.Fatalf("reloaded tick rate=%d", tu.TickRateHz)
		}
	case <-ctx.Done():
		t.Fatalf("no reload observed")
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	tune, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Defaults()
	if tune.TickRateHz != def.TickRateHz || tune.Bounds != def.Bounds || tune.Joints != def.Joints {
		t.Fatalf("shipped config drifted from defaults: %+v", tune)
	}
	if tune.Chances.Straight != def.Chances.Straight || tune.Festive.Texture != def.Festive.Texture {
		t.Fatalf("shipped chances/festive drifted: %+v", tune)
	}
	if tune.DrawTimeout() != 0 {
		t.Fatalf("shipped config should draw forever, got %v", tune.DrawTimeout())
	}
}
