package status

import "context"

// Publisher pushes the latest dust reading to the UI. Delivery is best
// effort; callers log and drop errors.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// Message is the frontend payload: {"status":{"dust_value":<number|null>}}.
type Message struct {
	Status Status `json:"status"`
}

// Status carries the reading; nil encodes as JSON null.
type Status struct {
	DustValue *float64 `json:"dust_value"`
}

// NewMessage builds a status message for a reading.
func NewMessage(value float64, present bool) *Message {
	if !present {
		return &Message{}
	}
	return &Message{Status: Status{DustValue: &value}}
}
