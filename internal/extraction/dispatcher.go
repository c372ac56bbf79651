package extraction

import (
	"codeberg.org/mutker/dustctl/internal/events"
	"codeberg.org/mutker/dustctl/internal/logger"
)

// Kinds is the closed set of events the dispatcher consumes.
var Kinds = []events.Kind{
	events.DustValue,
	events.JobStarted,
	events.JobFinished,
	events.JobFailed,
	events.JobCancelled,
	events.Shutdown,
}

// Dispatcher routes bus events to a Controller on the publishing goroutine.
type Dispatcher struct {
	ctrl   *Controller
	logger logger.Logger
	unsubs []func()
}

func NewDispatcher(ctrl *Controller, log logger.Logger) *Dispatcher {
	return &Dispatcher{ctrl: ctrl, logger: log}
}

// Subscribe registers the dispatcher for every kind in Kinds.
func (d *Dispatcher) Subscribe(bus events.Subscriber) {
	for _, kind := range Kinds {
		d.unsubs = append(d.unsubs, bus.Subscribe(kind, d.HandleEvent))
	}
}

// Unsubscribe undoes Subscribe.
func (d *Dispatcher) Unsubscribe() {
	for _, unsub := range d.unsubs {
		unsub()
	}
	d.unsubs = nil
}

// HandleEvent applies one event. Only trailing extraction leaves the calling
// goroutine; fan commands issued here are bounded by the sender's retries.
func (d *Dispatcher) HandleEvent(e events.Event) {
	switch e.Kind {
	case events.DustValue:
		value, ok := e.Payload.Float("val")
		d.ctrl.UpdateReading(value, ok)
	case events.JobStarted:
		_ = d.ctrl.StartAuto()
	case events.JobFinished, events.JobFailed, events.JobCancelled:
		d.ctrl.StopWhenBelow(d.ctrl.Config().ExtractionLimit)
	case events.Shutdown:
		d.ctrl.Shutdown()
	default:
		d.logger.Debug().Str("kind", string(e.Kind)).Msg("Ignoring event")
	}
}
