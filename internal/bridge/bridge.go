package bridge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/device"
	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/config"
	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/mqtt"
)

// conn is the session-scoped broker connection. *mqtt.Client satisfies it;
// tests substitute fakes.
type conn interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler mqtt.MessageHandler) error
	SetOnConnectionLost(callback func(err error))
	Close() error
}

// Bridge mirrors Kasa device state into an MQTT topic space and routes
// inbound commands back to the devices. The registry and discovery job
// schedules live for the process lifetime and survive broker reconnects.
type Bridge struct {
	cfg       *config.Config
	logger    Logger
	registry  *device.Registry
	topics    mqtt.Topics
	scheduler *discoveryScheduler

	// connect opens one session connection; replaced in tests.
	connect func(config.MQTTConfig) (conn, error)

	// watchdog is forwarded to the heartbeat; may be nil.
	watchdog func() error
}

// New wires a bridge for the given configuration. client performs the
// device-side network operations; logger may be nil.
func New(cfg *config.Config, client Discoverer, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	registry := device.NewRegistry()
	return &Bridge{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		topics:    mqtt.Topics{Base: cfg.MQTT.BaseTopic},
		scheduler: newDiscoveryScheduler(client, registry, logger, cfg.DiscoveryJobs),
		connect: func(mc config.MQTTConfig) (conn, error) {
			return mqtt.Connect(mc)
		},
	}
}

// SetWatchdog installs a liveness callback invoked on every heartbeat.
func (b *Bridge) SetWatchdog(fn func() error) {
	b.watchdog = fn
}

// Registry exposes the shared device registry, mainly for inspection.
func (b *Bridge) Registry() *device.Registry {
	return b.registry
}

// runSession owns one broker connection end to end: connect, run the four
// activities plus a connection watcher as a unit, and drain everything when
// the first one fails. Returns nil when the session ended because ctx was
// cancelled.
func (b *Bridge) runSession(ctx context.Context) error {
	c, err := b.connect(b.cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer c.Close()

	lost := make(chan error, 1)
	c.SetOnConnectionLost(func(err error) {
		select {
		case lost <- err:
		default:
		}
	})

	states := &statePublisher{registry: b.registry, pub: c, topics: b.topics}
	poll := newPollLoop(b.registry, states, b.logger, b.cfg.GetPollInterval())
	router := newCommandRouter(b.registry, states, c, b.topics, b.logger)
	beat := newHeartbeat(c, b.topics, b.logger, b.watchdog)

	b.logger.Info("session started", "broker", b.cfg.MQTT.Host, "base_topic", b.cfg.MQTT.BaseTopic)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return b.scheduler.run(gctx) })
	group.Go(func() error { return poll.run(gctx) })
	group.Go(func() error { return router.run(gctx) })
	group.Go(func() error { return beat.run(gctx) })
	group.Go(func() error {
		select {
		case err := <-lost:
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	err = group.Wait()
	if ctx.Err() != nil {
		// external stop; the activities drained cleanly
		return nil
	}
	return err
}
