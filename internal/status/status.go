package status

import (
	"context"
	"encoding/json"
	"sync"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/logger"
)

// Encode renders msg as the JSON the frontend expects.
func Encode(msg *Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.New().Wrap(ErrEncode, err)
	}
	return b, nil
}

type noopPublisher struct{}

// Noop returns a publisher that drops every message.
func Noop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, *Message) error {
	return nil
}

// Latest keeps the last published message in memory and forwards to an
// optional downstream publisher.
type Latest struct {
	next   Publisher
	logger logger.Logger

	mu   sync.RWMutex
	last *Message
}

func NewLatest(next Publisher, log logger.Logger) *Latest {
	if next == nil {
		next = Noop()
	}
	return &Latest{next: next, logger: log}
}

func (l *Latest) Publish(ctx context.Context, msg *Message) error {
	l.mu.Lock()
	l.last = msg
	l.mu.Unlock()

	if err := l.next.Publish(ctx, msg); err != nil {
		l.logger.Debug().Err(err).Msg("Failed to publish status")
		return err
	}
	return nil
}

// Last returns the most recent message, or nil before the first reading.
func (l *Latest) Last() *Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}
