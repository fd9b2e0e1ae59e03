package world

import (
	"errors"
	"time"

	"pipescreen.ai/internal/sim/pipes"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64

	// DrawTimeout stops ticking that long after Run starts. Zero ticks forever.
	DrawTimeout time.Duration

	// SnapshotEveryTicks emits a periodic snapshot to the sink. Zero disables.
	SnapshotEveryTicks uint64

	Field pipes.Options

	// Clock feeds Field.Tick. Defaults to time.Now.
	Clock func() time.Time
}

func (c *WorldConfig) normalize() error {
	if c.ID == "" {
		c.ID = "main"
	}
	if c.TickRateHz <= 0 {
		return errors.New("tick rate must be > 0")
	}
	if c.DrawTimeout < 0 {
		return errors.New("draw timeout must be >= 0")
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return nil
}
