package extraction

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/dustctl/internal/analytics"
	"codeberg.org/mutker/dustctl/internal/fan"
	"codeberg.org/mutker/dustctl/internal/logger"
	"codeberg.org/mutker/dustctl/internal/status"
	"github.com/jonboulle/clockwork"
)

// Dependencies are the collaborators a Controller talks to.
type Dependencies struct {
	Sender fan.CommandSender
	Sink   analytics.Sink
	Status status.Publisher
	Clock  clockwork.Clock
	Logger logger.Logger
}

// Controller decides the fan mode from job lifecycle events and dust
// readings. It owns the auto-off timer and the trailing-extraction worker;
// the Sampler owns the poll timer.
type Controller struct {
	cfg     Config
	sender  fan.CommandSender
	sink    analytics.Sink
	status  status.Publisher
	clock   clockwork.Clock
	logger  logger.Logger
	sampler *Sampler

	// opMu serializes mode transitions together with the command that
	// realizes them, so state always names the last mode sent.
	opMu       sync.Mutex
	state      State
	autoOff    clockwork.Timer
	autoOffGen uint64

	// mu guards the fields below. It is never held across a fan command.
	mu           sync.Mutex
	reading      Reading
	trailing     bool
	workerDone   chan struct{}
	workerCancel context.CancelFunc
	shuttingDown bool
	closed       bool
}

// New builds a controller. Nothing is sent to the fan until Start.
func New(cfg Config, deps Dependencies) *Controller {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Sink == nil {
		deps.Sink = analytics.Noop()
	}
	if deps.Status == nil {
		deps.Status = status.Noop()
	}

	c := &Controller{
		cfg:    cfg,
		sender: deps.Sender,
		sink:   deps.Sink,
		status: deps.Status,
		clock:  deps.Clock,
		logger: deps.Logger,
		// The sensor has not spoken yet; staleness counts from startup.
		reading: Reading{ObservedAt: deps.Clock.Now()},
	}
	c.sampler = NewSampler(cfg, c.requestDust, c.Latest, deps.Clock, deps.Logger.With("sampler"))

	return c
}

// Start switches the fan off and arms the dust poll.
func (c *Controller) Start() {
	_ = c.StopExtraction()
	c.sampler.Start()

	c.logger.Debug().
		Float64("extraction_limit", c.cfg.ExtractionLimit).
		Dur("auto_mode_time", c.cfg.AutoModeTime).
		Msg("initialized!")
}

// Config returns the settings the controller was built with.
func (c *Controller) Config() Config {
	return c.cfg
}

// Sampler exposes the poll loop.
func (c *Controller) Sampler() *Sampler {
	return c.sampler
}

// StartAuto hands fan speed to the board's automatic regulation.
func (c *Controller) StartAuto() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.startAutoLocked()
}

// SetFixed runs the fan at percent, clamped to [0,100].
func (c *Controller) SetFixed(percent int) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.setFixedLocked(percent, ModeFixed)
}

// StopExtraction switches the fan off. It is the only way out of
// ModeTrailing other than the worker finishing.
func (c *Controller) StopExtraction() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.cancelAutoOffLocked()
	return c.stopLocked()
}

func (c *Controller) startAutoLocked() error {
	c.cancelAutoOffLocked()
	c.setState(State{Mode: ModeAuto})

	if err := c.sender.Send(fan.CmdAuto, c.cfg.ModeRetryDelay); err != nil {
		c.logger.Warn().Err(err).Msg("Could not start auto mode!")
		return err
	}
	return nil
}

func (c *Controller) setFixedLocked(percent int, mode Mode) error {
	c.cancelAutoOffLocked()
	percent = fan.ClampPercent(percent)
	c.setState(State{Mode: mode, Percent: percent})

	if err := c.sender.Send(fan.On(percent), c.cfg.ModeRetryDelay); err != nil {
		c.logger.Warn().Err(err).Int("percent", percent).Msg("Could not start fixed mode!")
		return err
	}
	return nil
}

func (c *Controller) stopLocked() error {
	c.setState(State{Mode: ModeOff})

	if err := c.sender.Send(fan.CmdOff, c.cfg.RetryDelay); err != nil {
		c.logger.Warn().Err(err).Msg("Could not turn off dust extraction!")
		return err
	}
	return nil
}

func (c *Controller) setState(s State) {
	if s != c.state {
		c.logger.Debug().
			Str("from", c.state.Mode.String()).
			Str("to", s.Mode.String()).
			Int("percent", s.Percent).
			Msg("Fan mode change")
	}
	c.state = s
}

// activateTimedAutoLocked enters auto mode and arms the auto-off timer.
func (c *Controller) activateTimedAutoLocked(d time.Duration) {
	c.logger.Debug().Dur("duration", d).Msg("Starting timed auto mode")

	_ = c.startAutoLocked()

	gen := c.autoOffGen
	c.autoOff = c.clock.AfterFunc(d, func() { c.autoOffExpired(gen) })
}

// cancelAutoOffLocked drops any pending auto-off. Bumping the generation
// makes a callback that already started but is waiting on opMu a no-op.
func (c *Controller) cancelAutoOffLocked() {
	if c.autoOff != nil {
		c.autoOff.Stop()
		c.autoOff = nil
	}
	c.autoOffGen++
}

func (c *Controller) autoOffExpired(gen uint64) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if gen != c.autoOffGen || c.autoOff == nil {
		return
	}
	c.autoOff = nil
	c.autoOffGen++

	c.logger.Debug().Msg("Auto mode stopped!")
	_ = c.stopLocked()
}

// UpdateReading records a sensor event. It never changes the fan mode.
func (c *Controller) UpdateReading(value float64, present bool) {
	c.mu.Lock()
	now := c.clock.Now()
	if now.Before(c.reading.ObservedAt) {
		now = c.reading.ObservedAt
	}
	c.reading = Reading{Value: value, Present: present, ObservedAt: now}
	c.mu.Unlock()

	c.checkDustValue(value, present)

	if err := c.status.Publish(context.Background(), status.NewMessage(value, present)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send status to frontend")
	}
}

// checkDustValue is the per-reading policy hook. Readings only drive the
// trailing worker today, so it just traces them.
func (c *Controller) checkDustValue(value float64, present bool) {
	ev := c.logger.Debug().Bool("present", present)
	if present {
		ev = ev.Float64("dust", value)
	}
	ev.Msg("Dust value")
}

// Latest returns the most recent reading.
func (c *Controller) Latest() Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reading
}

func (c *Controller) requestDust() error {
	return c.sender.Send(fan.CmdDust, c.cfg.RetryDelay)
}

// Shutdown stops the dust poll from re-arming. A running trailing
// extraction is left to finish.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.shuttingDown = true
	c.mu.Unlock()

	c.sampler.Shutdown()
	c.logger.Debug().Msg("Shutdown requested")
}

// Close stops new trailing extractions and waits for a running one while
// the dust poll keeps feeding it readings. If ctx expires first the worker is
// cancelled and ctx's error returned once it has exited. Close then stops the
// poll, drops any pending auto-off and switches the fan off.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	done, cancel := c.workerDone, c.workerCancel
	c.mu.Unlock()

	var err error
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			c.logger.Warn().Msg("Trailing extraction still running, cancelling")
			cancel()
			<-done
			err = ctx.Err()
		}
	}

	c.Shutdown()
	c.sampler.Stop()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.cancelAutoOffLocked()
	if stopErr := c.stopLocked(); stopErr != nil && err == nil {
		err = stopErr
	}

	return err
}

// Snapshot returns the current state for inspection.
func (c *Controller) Snapshot() Snapshot {
	c.opMu.Lock()
	st := c.state
	pending := c.autoOff != nil
	c.opMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		State:          st,
		Reading:        c.reading,
		Trailing:       c.trailing,
		AutoOffPending: pending,
		SampleInterval: c.sampler.Interval(),
		ShuttingDown:   c.shuttingDown,
	}
}
