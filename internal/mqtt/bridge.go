package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/events"
	"codeberg.org/mutker/dustctl/internal/logger"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const bridgeQueueSize = 64

var jobKinds = map[string]events.Kind{
	JobStarted:   events.JobStarted,
	JobDone:      events.JobFinished,
	JobFailed:    events.JobFailed,
	JobCancelled: events.JobCancelled,
}

type dustMessage struct {
	Val *float64 `json:"val"`
}

type jobMessage struct {
	Event string `json:"event"`
}

type inbound struct {
	kind    events.Kind
	payload events.Payload
}

// Bridge turns broker messages into bus events. paho must not block in a
// message callback while the same client publishes, and the bus delivers
// synchronously into code that sends fan commands, so messages are queued
// and published to the bus from Run's goroutine in arrival order.
type Bridge struct {
	client Client
	bus    events.Publisher
	topics Topics
	logger logger.Logger

	queue    chan inbound
	done     chan struct{}
	stopOnce sync.Once
}

func NewBridge(client Client, bus events.Publisher, topics Topics, log logger.Logger) *Bridge {
	return &Bridge{
		client: client,
		bus:    bus,
		topics: topics,
		logger: log,
		queue:  make(chan inbound, bridgeQueueSize),
		done:   make(chan struct{}),
	}
}

// Subscribe registers the dust and job topics.
func (b *Bridge) Subscribe(timeout time.Duration) error {
	subs := []struct {
		topic   string
		handler paho.MessageHandler
	}{
		{b.topics.Dust, b.handleDust},
		{b.topics.Job, b.handleJob},
	}

	for _, s := range subs {
		if err := wait(b.client.Subscribe(s.topic, 1, s.handler), timeout); err != nil {
			return errors.New().Wrap(ErrSubscribe, err)
		}
		b.logger.Debug().Str("topic", s.topic).Msg("Subscribed")
	}
	return nil
}

// OnConnect restores subscriptions after a reconnect. It runs on paho's
// goroutine and must not wait for tokens.
func (b *Bridge) OnConnect(c paho.Client) {
	c.Subscribe(b.topics.Dust, 1, b.handleDust)
	c.Subscribe(b.topics.Job, 1, b.handleJob)
}

// Run publishes queued messages to the bus until ctx is done or Stop is
// called.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case in := <-b.queue:
			b.bus.Publish(in.kind, in.payload)
		}
	}
}

// Stop unsubscribes and ends Run. Queued messages are dropped.
func (b *Bridge) Stop(timeout time.Duration) error {
	b.stopOnce.Do(func() { close(b.done) })

	if err := wait(b.client.Unsubscribe(b.topics.Dust, b.topics.Job), timeout); err != nil {
		return errors.New().Wrap(ErrSubscribe, err)
	}
	return nil
}

func (b *Bridge) handleDust(_ paho.Client, msg paho.Message) {
	var m dustMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		b.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Malformed dust message")
		return
	}

	payload := events.Payload{}
	if m.Val != nil {
		payload["val"] = *m.Val
	}
	b.enqueue(inbound{kind: events.DustValue, payload: payload})
}

func (b *Bridge) handleJob(_ paho.Client, msg paho.Message) {
	var m jobMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		b.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Malformed job message")
		return
	}

	kind, ok := jobKinds[m.Event]
	if !ok {
		b.logger.Debug().Str("event", m.Event).Msg("Ignoring job event")
		return
	}
	b.enqueue(inbound{kind: kind, payload: events.Payload{"event": m.Event}})
}

func (b *Bridge) enqueue(in inbound) {
	select {
	case b.queue <- in:
	case <-b.done:
	}
}
