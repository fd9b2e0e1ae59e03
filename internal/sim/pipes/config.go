package pipes

import (
	"errors"
	"fmt"
	"time"

	"pipescreen.ai/internal/sim/lattice"
)

// JointMode selects how a batch decorates its turns.
type JointMode string

const (
	JointsElbow JointMode = "elbow"
	JointsBall  JointMode = "ball"
	JointsMixed JointMode = "mixed"
	JointsCycle JointMode = "cycle"
)

const (
	DefaultBoundsRadius        = 10
	DefaultTeapotChance        = 1.0 / 200
	DefaultMixedBallChance     = 1.0 / 3
	DefaultExtraPipeChance     = 1.0 / 10
	DefaultFestiveChance       = 1.0 / 5
	DefaultFestiveTeapotChance = 1.0 / 20
	DefaultFestiveTexture      = "./images/textures/candycane.png"
)

// DefaultCycle is the joint mode rotation used by JointsCycle.
var DefaultCycle = []JointMode{JointsElbow, JointsBall, JointsMixed}

// SeasonFunc reports whether the festive override may apply at t.
type SeasonFunc func(t time.Time) bool

// Winter is true outside the open interval (Mar 1, Dec 31) of t's year, in t's location.
func Winter(t time.Time) bool {
	start := time.Date(t.Year(), time.March, 1, 0, 0, 0, 0, t.Location())
	end := time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location())
	return !(t.After(start) && t.Before(end))
}

func Always(time.Time) bool { return true }
func Never(time.Time) bool  { return false }

func ParseSeason(name string) (SeasonFunc, error) {
	switch name {
	case "", "winter":
		return Winter, nil
	case "always":
		return Always, nil
	case "never":
		return Never, nil
	}
	return nil, fmt.Errorf("unknown season %q", name)
}

// Options is the controller configuration. It is read at every batch boundary.
type Options struct {
	Bounds   lattice.Bounds
	Multiple bool
	Joints   JointMode
	Cycle    []JointMode
	Texture  string

	TeapotChance    float64
	MixedBallChance float64
	ExtraPipeChance float64
	StraightChance  float64

	FestiveChance       float64
	FestiveTeapotChance float64
	FestiveTexture      string
	Season              SeasonFunc

	// StuckResetTicks clears the field after that many consecutive ticks in which no pipe
	// moved. Zero keeps stuck pipes forever.
	StuckResetTicks int
}

func DefaultOptions() Options {
	return Options{
		Bounds:              lattice.Cube(DefaultBoundsRadius),
		Multiple:            true,
		Joints:              JointsMixed,
		Cycle:               append([]JointMode(nil), DefaultCycle...),
		TeapotChance:        DefaultTeapotChance,
		MixedBallChance:     DefaultMixedBallChance,
		ExtraPipeChance:     DefaultExtraPipeChance,
		StraightChance:      DefaultStraightChance,
		FestiveChance:       DefaultFestiveChance,
		FestiveTeapotChance: DefaultFestiveTeapotChance,
		FestiveTexture:      DefaultFestiveTexture,
		Season:              Winter,
	}
}

func (o *Options) applyDefaults() {
	if o.Joints == "" {
		o.Joints = JointsMixed
	}
	if len(o.Cycle) == 0 {
		o.Cycle = append([]JointMode(nil), DefaultCycle...)
	}
	if o.Season == nil {
		o.Season = Winter
	}
}

func (o Options) Validate() error {
	if err := o.Bounds.Validate(); err != nil {
		return err
	}
	switch o.Joints {
	case JointsElbow, JointsBall, JointsMixed, JointsCycle, "":
	default:
		return fmt.Errorf("unknown joint mode %q", o.Joints)
	}
	for _, m := range o.Cycle {
		switch m {
		case JointsElbow, JointsBall, JointsMixed:
		default:
			return fmt.Errorf("joint cycle: unsupported mode %q", m)
		}
	}
	probs := []struct {
		name string
		v    float64
	}{
		{"teapot_chance", o.TeapotChance},
		{"mixed_ball_chance", o.MixedBallChance},
		{"extra_pipe_chance", o.ExtraPipeChance},
		{"straight_chance", o.StraightChance},
		{"festive_chance", o.FestiveChance},
		{"festive_teapot_chance", o.FestiveTeapotChance},
	}
	for _, p := range probs {
		if p.v < 0 || p.v > 1 {
			return fmt.Errorf("%s out of range [0,1]: %v", p.name, p.v)
		}
	}
	if o.StuckResetTicks < 0 {
		return errors.New("stuck_reset_ticks must be >= 0")
	}
	return nil
}

// BatchConfig is fixed for every pipe spawned after one field reset.
type BatchConfig struct {
	Seq             uint64    `json:"seq"`
	Joints          JointMode `json:"joints"`
	BallJointChance float64   `json:"ball_joint_chance"`
	TeapotChance    float64   `json:"teapot_chance"`
	Texture         string    `json:"texture,omitempty"`
	Festive         bool      `json:"festive,omitempty"`
	Pipes           int       `json:"pipes"`
}

func ballChanceFor(mode JointMode, mixed float64) float64 {
	switch mode {
	case JointsBall:
		return 1
	case JointsMixed:
		return mixed
	default:
		return 0
	}
}
