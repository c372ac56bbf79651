package mqtt

import (
	"context"
	"time"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/status"
)

// StatusPublisher publishes status messages as retained QoS 0 messages so
// a frontend that connects late still sees the last value.
type StatusPublisher struct {
	client  Client
	topic   string
	timeout time.Duration
}

func NewStatusPublisher(client Client, topics Topics, timeout time.Duration) *StatusPublisher {
	return &StatusPublisher{client: client, topic: topics.Status, timeout: timeout}
}

// Publish implements status.Publisher.
func (p *StatusPublisher) Publish(ctx context.Context, msg *status.Message) error {
	payload, err := status.Encode(msg)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 0, true, payload)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return errors.New().Wrap(status.ErrPublishFailed, ctx.Err())
	case <-timer.C:
		return errors.New().New(errors.ErrTimeout)
	}

	if err := token.Error(); err != nil {
		return errors.New().Wrap(status.ErrPublishFailed, err)
	}
	return nil
}
