package extraction

import (
	"context"

	"codeberg.org/mutker/dustctl/internal/analytics"
	"codeberg.org/mutker/dustctl/internal/errors"
)

// StopWhenBelow starts a trailing extraction: full speed until the dust
// value drops to limit, then timed auto mode. It returns false without doing
// anything if a trailing extraction is already running or the controller is
// closed.
func (c *Controller) StopWhenBelow(limit float64) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug().Float64("limit", limit).Msg("Controller closed, not starting trailing extraction")
		return false
	}
	if c.trailing {
		c.mu.Unlock()
		c.logger.Debug().Float64("limit", limit).Msg("Trailing extraction already active")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.trailing = true
	c.workerCancel = cancel
	c.workerDone = done
	start := c.reading
	c.mu.Unlock()

	go c.trail(ctx, cancel, limit, start, done)

	return true
}

// Trailing reports whether a trailing extraction is running.
func (c *Controller) Trailing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trailing
}

func (c *Controller) trail(ctx context.Context, cancel context.CancelFunc, limit float64, start Reading, done chan struct{}) {
	defer close(done)
	defer cancel()
	defer c.finishTrailing()
	// Restore is idempotent; this covers the early exits.
	defer c.sampler.Restore()

	c.logger.Debug().Float64("limit", limit).Msg("Starting trailing dust extraction")

	c.sampler.Tighten()

	c.opMu.Lock()
	_ = c.setFixedLocked(100, ModeTrailing)
	c.opMu.Unlock()

	end, err := c.waitUntilBelow(ctx, limit)
	c.sampler.Restore()
	if err != nil {
		c.logger.ErrorWithCode(errors.New().Wrap(errors.ErrTrailingAborted, err)).Msg("Trailing extraction stopped early")
		return
	}

	c.writeAnalytics(start, end)

	c.opMu.Lock()
	c.activateTimedAutoLocked(c.cfg.AutoModeTime)
	c.opMu.Unlock()
}

// waitUntilBelow polls the latest reading every sample interval until it is
// present and at or below limit. A silent sensor keeps it waiting; the
// sampler's staleness check reports that case, it does not end the loop.
func (c *Controller) waitUntilBelow(ctx context.Context, limit float64) (Reading, error) {
	waitingLogged := false
	for {
		r := c.Latest()
		if r.Present && r.Value <= limit {
			return r, nil
		}
		if !r.Present && !waitingLogged {
			c.logger.Debug().Msg("No dust value yet, waiting")
			waitingLogged = true
		}

		select {
		case <-ctx.Done():
			return r, ctx.Err()
		case <-c.clock.After(c.sampler.Interval()):
		}
	}
}

func (c *Controller) finishTrailing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trailing = false
	c.workerCancel = nil
	c.workerDone = nil
}

func (c *Controller) writeAnalytics(start, end Reading) {
	record := analytics.NewRecord(start.valuePtr(), start.ObservedAt, end.valuePtr(), end.ObservedAt)

	ev := c.logger.Debug().
		Dur("duration", record.Duration()).
		Float64("dust_end", end.Value)
	if start.Present {
		ev = ev.Float64("dust_start", start.Value)
	}
	if g, ok := record.Gradient(); ok {
		ev = ev.Float64("gradient", g)
	}
	ev.Msg("Dust extraction finished")

	if err := c.sink.AddRecord(context.Background(), record); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write dust analytics")
	}
}
