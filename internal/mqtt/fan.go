package mqtt

import (
	"time"

	"codeberg.org/mutker/dustctl/internal/fan"
	"codeberg.org/mutker/dustctl/internal/logger"
)

// FanChannel sends fan commands to the board over the broker. A command
// counts as accepted once the broker acknowledged it within the timeout.
type FanChannel struct {
	client  Client
	topic   string
	timeout time.Duration
	logger  logger.Logger
}

func NewFanChannel(client Client, topics Topics, timeout time.Duration, log logger.Logger) *FanChannel {
	return &FanChannel{
		client:  client,
		topic:   topics.FanCommand,
		timeout: timeout,
		logger:  log,
	}
}

// SendCommand implements fan.Channel. Commands the board would not
// understand are rejected without being published.
func (f *FanChannel) SendCommand(command string) bool {
	if _, err := fan.Parse(command); err != nil {
		f.logger.Warn().Err(err).Str("command", command).Msg("Refusing invalid fan command")
		return false
	}

	if err := wait(f.client.Publish(f.topic, 1, false, command), f.timeout); err != nil {
		f.logger.Debug().Err(err).Str("command", command).Msg("Fan command not acknowledged")
		return false
	}
	return true
}
