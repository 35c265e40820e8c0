package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/device"
	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/mqtt"
)

// Logger is the narrow logging surface the bridge activities use.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// publisher is the outbound slice of the broker connection.
type publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// subscriber is the inbound slice of the broker connection.
type subscriber interface {
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// Discoverer finds Kasa devices on the local network.
type Discoverer interface {
	Discover(ctx context.Context, timeout time.Duration) (map[string]device.Device, error)
	DiscoverSingle(ctx context.Context, host string) (device.Device, error)
}

// deviceOpTimeout bounds every individual device network operation issued
// by the poll loop and command router.
const deviceOpTimeout = 10 * time.Second

// statePublisher serializes a device's feature snapshot and publishes it
// retained on the device's state topic. Shared by the poll loop and the
// command router's confirmation path.
type statePublisher struct {
	registry *device.Registry
	pub      publisher
	topics   mqtt.Topics
}

func (s *statePublisher) publish(dev device.Device) error {
	name, ok := s.registry.TopicName(dev.DeviceID())
	if !ok {
		return fmt.Errorf("device %s has no topic name", dev.DeviceID())
	}
	payload, err := json.Marshal(featureSnapshot(dev))
	if err != nil {
		return fmt.Errorf("serializing state for %s: %w", name, err)
	}
	if err := s.pub.Publish(s.topics.DeviceState(name), payload, true); err != nil {
		return fmt.Errorf("publishing state for %s: %w", name, err)
	}
	return nil
}

// featureSnapshot extracts every feature with a present value. Enumerated
// values are lowered to their lowercase name; everything else passes
// through unchanged.
func featureSnapshot(dev device.Device) map[string]any {
	snapshot := make(map[string]any)
	for name, f := range dev.Features() {
		v := f.Value()
		if v == nil {
			continue
		}
		if nv, ok := v.(device.NamedValue); ok {
			snapshot[name] = strings.ToLower(nv.Name())
		} else {
			snapshot[name] = v
		}
	}
	return snapshot
}

// refresh updates one device's live state, bounded by deviceOpTimeout.
func refresh(ctx context.Context, dev device.Device) error {
	opCtx, cancel := context.WithTimeout(ctx, deviceOpTimeout)
	defer cancel()
	return dev.Update(opCtx)
}

// sleepCtx waits for d, reporting false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
