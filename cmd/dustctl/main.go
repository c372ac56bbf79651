package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"codeberg.org/mutker/dustctl/internal/analytics"
	"codeberg.org/mutker/dustctl/internal/config"
	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/events"
	"codeberg.org/mutker/dustctl/internal/extraction"
	"codeberg.org/mutker/dustctl/internal/fan"
	"codeberg.org/mutker/dustctl/internal/logger"
	"codeberg.org/mutker/dustctl/internal/mqtt"
	"codeberg.org/mutker/dustctl/internal/pid"
	"codeberg.org/mutker/dustctl/internal/status"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
)

// Upper bound for letting a trailing extraction finish on exit.
const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(config.WithArgs(os.Args[1:]))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		logger.Warn().Err(err).Msg("Invalid log level, using info")
	}
	logger.Debug().Str("profile", cfg.Profile).Msg("Config loaded")

	if err := pid.Write(cfg.PIDFile); err != nil {
		fatal(err, "failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	logger.Info().Msg("Exiting...")
}

func run(cfg *config.Config) error {
	extractionCfg, err := extraction.NewConfig(cfg, cfg)
	if err != nil {
		return err
	}

	sink, err := analytics.NewService(analytics.Config{
		DBPath:  cfg.Analytics.DBPath,
		Enabled: cfg.Analytics.Enabled,
	}, logger.New("analytics"))
	if err != nil {
		// Analytics are best effort; extraction runs without them.
		logger.Warn().Err(err).Msg("failed to open analytics store, continuing without")
		sink = analytics.Noop()
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close analytics store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(logger.New("events"))
	defer bus.Close()

	mqttCfg := mqtt.Config{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		TopicPrefix:    cfg.MQTT.TopicPrefix,
		CommandTimeout: cfg.MQTT.CommandTimeout,
	}
	topics := mqtt.NewTopics(mqttCfg.TopicPrefix)

	// Set once the client exists; reconnects before that have nothing to
	// restore.
	var current atomic.Pointer[mqtt.Bridge]
	client, err := mqtt.Connect(mqttCfg, func(c paho.Client) {
		if b := current.Load(); b != nil {
			b.OnConnect(c)
		}
	}, logger.New("mqtt"))
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	bridge := mqtt.NewBridge(client, bus, topics, logger.New("bridge"))
	current.Store(bridge)

	clock := clockwork.NewRealClock()
	sender := fan.NewSender(
		mqtt.NewFanChannel(client, topics, mqttCfg.CommandTimeout, logger.New("fan")),
		cfg.MaxRetries, clock, logger.New("sender"),
	)
	statusOut := status.NewLatest(
		mqtt.NewStatusPublisher(client, topics, mqttCfg.CommandTimeout),
		logger.New("status"),
	)

	ctrl := extraction.New(extractionCfg, extraction.Dependencies{
		Sender: sender,
		Sink:   sink,
		Status: statusOut,
		Clock:  clock,
		Logger: logger.New("extraction"),
	})
	dispatcher := extraction.NewDispatcher(ctrl, logger.New("dispatcher"))
	dispatcher.Subscribe(bus)
	defer dispatcher.Unsubscribe()

	go bridge.Run(ctx)
	if err := bridge.Subscribe(mqttCfg.CommandTimeout); err != nil {
		return err
	}

	ctrl.Start()
	logger.Info().
		Float64("extraction_limit", extractionCfg.ExtractionLimit).
		Dur("auto_mode_time", extractionCfg.AutoModeTime).
		Str("broker", mqttCfg.Broker).
		Msg("Dust manager started")

	waitForSignal()

	// The bridge and the dust poll stay up while Close waits, so a running
	// trailing extraction still sees readings. Close leaves the fan off.
	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer closeCancel()
	closeErr := ctrl.Close(closeCtx)

	bus.Publish(events.Shutdown, nil)
	if err := bridge.Stop(mqttCfg.CommandTimeout); err != nil {
		logger.Warn().Err(err).Msg("failed to unsubscribe")
	}

	ev := logger.Debug().Str("mode", ctrl.Snapshot().State.Mode.String())
	if last := statusOut.Last(); last != nil && last.Status.DustValue != nil {
		ev = ev.Float64("last_dust", *last.Status.DustValue)
	}
	ev.Msg("Controller closed")

	if closeErr != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, closeErr)
	}
	return nil
}

func waitForSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
}

func fatal(err error, msg string) {
	var appErr errors.Error
	if stderrors.As(err, &appErr) {
		logger.FatalWithCode(appErr).Msg(msg)
	}
	logger.Fatal().Err(err).Msg(msg)
}
