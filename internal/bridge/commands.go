package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/device"
	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/mqtt"
)

const (
	// settleDelay is how long a hub needs before it reflects a freshly
	// written child state in its own report.
	settleDelay = 1 * time.Second

	// commandQueueSize buffers inbound messages between the subscription
	// callback and the single consumer.
	commandQueueSize = 16
)

// inboundMessage is one raw command delivery awaiting routing.
type inboundMessage struct {
	topic   string
	payload []byte
}

// commandRouter consumes inbound set messages one at a time, in arrival
// order, and applies them to registered devices. It terminates only via
// cancellation; every per-message failure is logged and absorbed.
type commandRouter struct {
	registry *device.Registry
	states   *statePublisher
	sub      subscriber
	topics   mqtt.Topics
	logger   Logger
	queue    chan inboundMessage
	settle   time.Duration
}

func newCommandRouter(registry *device.Registry, states *statePublisher, sub subscriber, topics mqtt.Topics, logger Logger) *commandRouter {
	return &commandRouter{
		registry: registry,
		states:   states,
		sub:      sub,
		topics:   topics,
		logger:   logger,
		queue:    make(chan inboundMessage, commandQueueSize),
		settle:   settleDelay,
	}
}

// run subscribes to the command wildcard and serializes all deliveries
// through a single consumer. A failed subscription is session-fatal.
func (r *commandRouter) run(ctx context.Context) error {
	handler := func(topic string, payload []byte) error {
		select {
		case r.queue <- inboundMessage{topic: topic, payload: payload}:
		case <-ctx.Done():
		}
		return nil
	}
	if err := r.sub.Subscribe(r.topics.CommandWildcard(), handler); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.topics.CommandWildcard(), err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-r.queue:
			r.handle(ctx, msg)
		}
	}
}

// handle routes one message: topic → device → feature writes → hub
// confirmation.
func (r *commandRouter) handle(ctx context.Context, msg inboundMessage) {
	name, ok := r.topics.ParseCommandTopic(msg.topic)
	if !ok {
		r.logger.Debug("ignoring message on unexpected topic", "topic", msg.topic)
		return
	}

	id, ok := r.registry.ByTopic(name)
	if !ok {
		r.logger.Warn("command for unknown device", "topic", msg.topic)
		return
	}
	dev, ok := r.registry.ByID(id)
	if !ok {
		r.logger.Warn("command for unknown device", "topic", msg.topic)
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(msg.payload, &fields); err != nil {
		r.logger.Warn("malformed command payload", "topic", msg.topic, "error", err)
		return
	}

	r.apply(ctx, dev, fields)
}

// apply writes each requested feature value, skipping unknown and
// read-only features individually. Every successful write is followed by
// its own confirmation so a multi-feature payload republishes after each
// change the hub reflects.
func (r *commandRouter) apply(ctx context.Context, dev device.Device, fields map[string]any) {
	features := dev.Features()
	for name, value := range fields {
		f, ok := features[name]
		if !ok {
			r.logger.Warn("command for unknown feature", "device_id", dev.DeviceID(), "feature", name)
			continue
		}
		if !f.Settable() {
			r.logger.Warn("command for read-only feature", "device_id", dev.DeviceID(), "feature", name)
			continue
		}

		opCtx, cancel := context.WithTimeout(ctx, deviceOpTimeout)
		err := f.SetValue(opCtx, value)
		cancel()
		if err != nil {
			r.logger.Warn("feature write failed",
				"device_id", dev.DeviceID(), "feature", name, "error", err)
			continue
		}
		r.logger.Debug("feature written", "device_id", dev.DeviceID(), "feature", name, "value", value)
		r.confirm(ctx, dev)
	}
}

// confirm republishes the device state after a write. Hub-backed devices
// need a settle delay and a fresh hub refresh before the hub reports the
// new state.
func (r *commandRouter) confirm(ctx context.Context, dev device.Device) {
	parent := dev.Parent()
	if parent == nil {
		return
	}
	if !sleepCtx(ctx, r.settle) {
		return
	}
	if err := refresh(ctx, parent); err != nil {
		r.logger.Warn("confirmation refresh failed",
			"device_id", dev.DeviceID(), "hub", parent.DeviceID(), "error", err)
		return
	}
	if err := r.states.publish(dev); err != nil {
		r.logger.Warn("confirmation publish failed", "device_id", dev.DeviceID(), "error", err)
	}
}
