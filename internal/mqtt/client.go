package mqtt

import (
	"time"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/logger"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const connectTimeout = 10 * time.Second

// Validate checks the broker settings.
func (c Config) Validate() error {
	errFactory := errors.New()
	switch {
	case c.Broker == "":
		return errFactory.WithMessage(ErrInvalidConfig, "broker must not be empty")
	case c.TopicPrefix == "":
		return errFactory.WithMessage(ErrInvalidConfig, "topic prefix must not be empty")
	case c.CommandTimeout <= 0:
		return errFactory.WithMessage(ErrInvalidConfig, "command timeout must be positive")
	}
	return nil
}

// Connect opens a connection to the broker. The client reconnects on its
// own after the first successful connect; subscriptions are restored by
// onConnect, which may be nil.
func Connect(cfg Config, onConnect func(paho.Client), log logger.Logger) (paho.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
		}).
		SetOnConnectHandler(func(c paho.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
			if onConnect != nil {
				onConnect(c)
			}
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.New().WithData(ErrConnect, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.New().Wrap(ErrConnect, err)
	}

	return client, nil
}

// wait blocks for token up to timeout and reports its outcome.
func wait(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errors.New().New(errors.ErrTimeout)
	}
	return token.Error()
}
