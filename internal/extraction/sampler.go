package extraction

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/logger"
	"github.com/jonboulle/clockwork"
)

// Sampler periodically asks the board for a fresh dust value and checks that
// readings keep arriving. It re-arms its one-shot timer after every cycle,
// whatever the cycle's outcome, until Shutdown is called.
type Sampler struct {
	clock        clockwork.Clock
	logger       logger.Logger
	request      func() error
	latest       func() Reading
	maxStaleness time.Duration
	normal       time.Duration
	trailing     time.Duration

	interval atomic.Int64
	cycles   atomic.Uint64

	mu           sync.Mutex
	timer        clockwork.Timer
	shuttingDown bool
}

// NewSampler builds a sampler. request fetches a new reading, latest returns
// the most recent one.
func NewSampler(cfg Config, request func() error, latest func() Reading, clock clockwork.Clock, log logger.Logger) *Sampler {
	s := &Sampler{
		clock:        clock,
		logger:       log,
		request:      request,
		latest:       latest,
		maxStaleness: cfg.MaxStaleness,
		normal:       cfg.SampleInterval,
		trailing:     cfg.TrailingSampleInterval,
	}
	s.interval.Store(int64(cfg.SampleInterval))
	return s
}

// Start arms the first poll.
func (s *Sampler) Start() {
	s.schedule()
}

// Interval is the current delay between polls.
func (s *Sampler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Tighten switches to the trailing-extraction interval.
func (s *Sampler) Tighten() {
	s.interval.Store(int64(s.trailing))
}

// Restore switches back to the normal interval.
func (s *Sampler) Restore() {
	s.interval.Store(int64(s.normal))
}

// Cycles counts completed poll callbacks.
func (s *Sampler) Cycles() uint64 {
	return s.cycles.Load()
}

// Shutdown stops future re-arming. A poll that is already pending still runs
// once.
func (s *Sampler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuttingDown = true
}

// Stop is Shutdown plus cancelling the pending poll.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuttingDown = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sampler) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		s.logger.Debug().Msg("Shutting down.")
		s.timer = nil
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.Interval(), s.poll)
}

func (s *Sampler) poll() {
	defer s.schedule()
	defer s.cycles.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err := errors.New().WithData(errors.ErrPollPanic, fmt.Sprint(r))
			s.logger.ErrorWithCode(err).Str("stack", string(debug.Stack())).Msg("Exception in dust poll")
		}
	}()

	if err := s.request(); err != nil {
		s.logger.Warn().
			Err(err).
			Bool("transient", errors.IsTransient(err)).
			Msg("Dust value request failed")
	}

	if err := s.CheckStaleness(); err != nil {
		s.logger.ErrorWithCode(err).Msg("Can't read dust value.")
	}
}

// CheckStaleness returns an ErrSensorStale error when the latest reading is
// older than the configured maximum age. Nothing else happens; pausing the
// job on stale data is left to the operator.
func (s *Sampler) CheckStaleness() errors.Error {
	age := s.clock.Since(s.latest().ObservedAt)
	if age > s.maxStaleness {
		return errors.New().WithData(errors.ErrSensorStale, fmt.Sprintf("last reading %s ago", age.Round(time.Millisecond)))
	}
	return nil
}
