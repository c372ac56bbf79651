package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Client is the part of paho's client the adapters use. paho.Client
// satisfies it.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

// Config holds the broker settings.
type Config struct {
	Broker         string
	ClientID       string
	TopicPrefix    string
	CommandTimeout time.Duration
}

// Topics are the broker topics derived from a prefix.
type Topics struct {
	Dust       string
	Job        string
	FanCommand string
	Status     string
}

// NewTopics builds the topic set under prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		Dust:       prefix + "/dust",
		Job:        prefix + "/job",
		FanCommand: prefix + "/fan/cmd",
		Status:     prefix + "/status",
	}
}

// Job lifecycle values carried in the "event" field of the job topic.
const (
	JobStarted   = "started"
	JobDone      = "done"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)
