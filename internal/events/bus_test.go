package events

import (
	"testing"

	"codeberg.org/mutker/dustctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(logger.Nop())
	defer bus.Close()

	var received []Event
	unsub := bus.Subscribe(DustValue, func(e Event) {
		received = append(received, e)
	})
	defer unsub()

	bus.Publish(DustValue, Payload{"val": 42.0})

	// Delivery is synchronous, no waiting needed.
	require.Len(t, received, 1)
	assert.Equal(t, DustValue, received[0].Kind)
	v, ok := received[0].Payload.Float("val")
	assert.True(t, ok)
	assert.InDelta(t, 42.0, v, 1e-9)
}

func TestBus_OnlyMatchingKind(t *testing.T) {
	bus := NewBus(logger.Nop())

	started := 0
	bus.Subscribe(JobStarted, func(Event) { started++ })

	bus.Publish(JobFinished, nil)
	bus.Publish(JobStarted, nil)

	assert.Equal(t, 1, started)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(logger.Nop())

	first, second := 0, 0
	unsub := bus.Subscribe(Shutdown, func(Event) { first++ })
	bus.Subscribe(Shutdown, func(Event) { second++ })

	unsub()
	bus.Publish(Shutdown, nil)

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestBus_PanicIsolation(t *testing.T) {
	bus := NewBus(logger.Nop())

	delivered := false
	bus.Subscribe(JobFailed, func(Event) { panic("boom") })
	bus.Subscribe(JobFailed, func(Event) { delivered = true })

	assert.NotPanics(t, func() { bus.Publish(JobFailed, nil) })
	assert.True(t, delivered)
}

func TestPayloadFloat(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    float64
		ok      bool
	}{
		{"float", Payload{"val": 1.5}, 1.5, true},
		{"int", Payload{"val": 3}, 3, true},
		{"zero", Payload{"val": 0.0}, 0, true},
		{"missing", Payload{}, 0, false},
		{"null", Payload{"val": nil}, 0, false},
		{"string", Payload{"val": "7"}, 0, false},
		{"nil payload", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.payload.Float("val")
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
