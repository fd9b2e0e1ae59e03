package tuning

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"pipescreen.ai/internal/sim/lattice"
	"pipescreen.ai/internal/sim/pipes"
)

type Tuning struct {
	TickRateHz         int `yaml:"tick_rate_hz" toml:"tick_rate_hz"`
	DrawTimeoutMs      int `yaml:"draw_timeout_ms" toml:"draw_timeout_ms"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" toml:"snapshot_every_ticks"`

	Bounds      Bounds   `yaml:"bounds" toml:"bounds"`
	Multiple    bool     `yaml:"multiple" toml:"multiple"`
	Joints      string   `yaml:"joints" toml:"joints"`
	JointsCycle []string `yaml:"joints_cycle" toml:"joints_cycle"`
	Texture     string   `yaml:"texture" toml:"texture"`

	Chances Chances `yaml:"chances" toml:"chances"`
	Festive Festive `yaml:"festive" toml:"festive"`

	StuckResetTicks int `yaml:"stuck_reset_ticks" toml:"stuck_reset_ticks"`
}

type Bounds struct {
	Min [3]int `yaml:"min" toml:"min"`
	Max [3]int `yaml:"max" toml:"max"`
}

type Chances struct {
	Teapot    float64 `yaml:"teapot" toml:"teapot"`
	MixedBall float64 `yaml:"mixed_ball" toml:"mixed_ball"`
	ExtraPipe float64 `yaml:"extra_pipe" toml:"extra_pipe"`
	Straight  float64 `yaml:"straight" toml:"straight"`
}

type Festive struct {
	Season       string  `yaml:"season" toml:"season"`
	Chance       float64 `yaml:"chance" toml:"chance"`
	TeapotChance float64 `yaml:"teapot_chance" toml:"teapot_chance"`
	Texture      string  `yaml:"texture" toml:"texture"`
}

func Defaults() Tuning {
	b := lattice.Cube(pipes.DefaultBoundsRadius)
	cycle := make([]string, 0, len(pipes.DefaultCycle))
	for _, m := range pipes.DefaultCycle {
		cycle = append(cycle, string(m))
	}
	return Tuning{
		TickRateHz:         60,
		DrawTimeoutMs:      5000,
		SnapshotEveryTicks: 3600,
		Bounds:             Bounds{Min: b.Min.ToArray(), Max: b.Max.ToArray()},
		Multiple:           true,
		Joints:             string(pipes.JointsMixed),
		JointsCycle:        cycle,
		Chances: Chances{
			Teapot:    pipes.DefaultTeapotChance,
			MixedBall: pipes.DefaultMixedBallChance,
			ExtraPipe: pipes.DefaultExtraPipeChance,
			Straight:  pipes.DefaultStraightChance,
		},
		Festive: Festive{
			Season:       "winter",
			Chance:       pipes.DefaultFestiveChance,
			TeapotChance: pipes.DefaultFestiveTeapotChance,
			Texture:      pipes.DefaultFestiveTexture,
		},
	}
}

// Load reads a YAML (.yaml/.yml) or TOML (.toml) tuning file on top of Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	default:
		return t, fmt.Errorf("%s: unsupported tuning format", name)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.DrawTimeoutMs < 0 {
		return errors.New("draw_timeout_ms must be >= 0")
	}
	if t.SnapshotEveryTicks < 0 {
		return errors.New("snapshot_every_ticks must be >= 0")
	}
	opts, err := t.FieldOptions()
	if err != nil {
		return err
	}
	return opts.Validate()
}

// DrawTimeout is how long the field keeps ticking after start. Zero means forever.
func (t Tuning) DrawTimeout() time.Duration {
	return time.Duration(t.DrawTimeoutMs) * time.Millisecond
}

func (t Tuning) FieldOptions() (pipes.Options, error) {
	season, err := pipes.ParseSeason(t.Festive.Season)
	if err != nil {
		return pipes.Options{}, err
	}
	cycle := make([]pipes.JointMode, 0, len(t.JointsCycle))
	for _, m := range t.JointsCycle {
		cycle = append(cycle, pipes.JointMode(strings.ToLower(strings.TrimSpace(m))))
	}
	return pipes.Options{
		Bounds: lattice.Bounds{
			Min: lattice.CellFromArray(t.Bounds.Min),
			Max: lattice.CellFromArray(t.Bounds.Max),
		},
		Multiple:            t.Multiple,
		Joints:              pipes.JointMode(strings.ToLower(strings.TrimSpace(t.Joints))),
		Cycle:               cycle,
		Texture:             t.Texture,
		TeapotChance:        t.Chances.Teapot,
		MixedBallChance:     t.Chances.MixedBall,
		ExtraPipeChance:     t.Chances.ExtraPipe,
		StraightChance:      t.Chances.Straight,
		FestiveChance:       t.Festive.Chance,
		FestiveTeapotChance: t.Festive.TeapotChance,
		FestiveTexture:      t.Festive.Texture,
		Season:              season,
		StuckResetTicks:     t.StuckResetTicks,
	}, nil
}
