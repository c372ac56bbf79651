package extraction_test

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/dustctl/internal/analytics"
	"codeberg.org/mutker/dustctl/internal/extraction"
	"codeberg.org/mutker/dustctl/internal/fan"
	"codeberg.org/mutker/dustctl/internal/logger"
	"codeberg.org/mutker/dustctl/internal/status"
	"github.com/jonboulle/clockwork"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

// recordingChannel stands in for the fan board.
type recordingChannel struct {
	mu       sync.Mutex
	commands []string
	fail     bool
}

func (c *recordingChannel) SendCommand(command string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, command)
	return !c.fail
}

func (c *recordingChannel) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

func (c *recordingChannel) count(command string) int {
	n := 0
	for _, cmd := range c.sent() {
		if cmd == command {
			n++
		}
	}
	return n
}

func (c *recordingChannel) last() string {
	cmds := c.sent()
	if len(cmds) == 0 {
		return ""
	}
	return cmds[len(cmds)-1]
}

// withoutDust drops the poll requests so assertions can focus on mode commands.
func withoutDust(cmds []string) []string {
	var out []string
	for _, c := range cmds {
		if c != "fan:dust" {
			out = append(out, c)
		}
	}
	return out
}

type memorySink struct {
	mu      sync.Mutex
	records []analytics.Record
}

func (s *memorySink) AddRecord(_ context.Context, r *analytics.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *r)
	return nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) all() []analytics.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]analytics.Record(nil), s.records...)
}

type memoryStatus struct {
	mu       sync.Mutex
	messages []*status.Message
}

func (p *memoryStatus) Publish(_ context.Context, msg *status.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *memoryStatus) all() []*status.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*status.Message(nil), p.messages...)
}

// stepClock makes every After call return immediately after running onWait,
// so the trailing loop advances one poll per call without real delays.
type stepClock struct {
	clockwork.Clock
	mu     sync.Mutex
	onWait func(d time.Duration)
	waits  []time.Duration
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	fn := c.onWait
	c.mu.Unlock()

	if fn != nil {
		fn(d)
	}
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *stepClock) recordedWaits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

type harness struct {
	ctrl    *extraction.Controller
	channel *recordingChannel
	sink    *memorySink
	status  *memoryStatus
}

func testConfig() extraction.Config {
	cfg := extraction.DefaultConfig(50, time.Minute)
	cfg.RetryDelay = 0
	cfg.ModeRetryDelay = 0
	return cfg
}

func newHarness(cfg extraction.Config, clock clockwork.Clock) *harness {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	h := &harness{
		channel: &recordingChannel{},
		sink:    &memorySink{},
		status:  &memoryStatus{},
	}
	h.ctrl = extraction.New(cfg, extraction.Dependencies{
		Sender: fan.NewSender(h.channel, 5, clock, logger.Nop()),
		Sink:   h.sink,
		Status: h.status,
		Clock:  clock,
		Logger: logger.Nop(),
	})
	return h
}
