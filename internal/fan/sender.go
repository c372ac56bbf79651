package fan

import (
	"sync"
	"time"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/logger"
	"github.com/jonboulle/clockwork"
)

// Sender is the single choke point for hardware-facing commands. Calls are
// serialized: a second caller waits until the first one's retry sequence has
// finished, so command strings never interleave on the wire.
type Sender struct {
	channel    Channel
	maxRetries int
	clock      clockwork.Clock
	logger     logger.Logger

	mu sync.Mutex
}

// NewSender wraps channel. maxRetries below one is treated as one.
func NewSender(channel Channel, maxRetries int, clock clockwork.Clock, log logger.Logger) *Sender {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sender{
		channel:    channel,
		maxRetries: maxRetries,
		clock:      clock,
		logger:     log,
	}
}

func (s *Sender) Send(cmd Command, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := cmd.Wire()
	for attempt := 1; ; attempt++ {
		if s.channel.SendCommand(wire) {
			if attempt > 1 {
				s.logger.Debug().Str("command", wire).Int("attempt", attempt).Msg("Fan command succeeded after retry")
			}
			return nil
		}

		if attempt >= s.maxRetries {
			err := errors.New().WithData(errors.ErrFanCommandFailed, wire)
			s.logger.Warn().
				Str("command", wire).
				Int("attempts", attempt).
				Msg("Fan command failed")
			return err
		}

		s.logger.Debug().Str("command", wire).Int("attempt", attempt).Dur("delay", delay).Msg("Fan command rejected, retrying")
		s.clock.Sleep(delay)
	}
}
