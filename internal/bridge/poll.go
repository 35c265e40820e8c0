package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/device"
)

// pollLoop periodically refreshes every registered device and republishes
// its state retained. Hubs are refreshed before their children and at most
// once per cycle.
type pollLoop struct {
	registry *device.Registry
	states   *statePublisher
	logger   Logger
	interval time.Duration
}

func newPollLoop(registry *device.Registry, states *statePublisher, logger Logger, interval time.Duration) *pollLoop {
	return &pollLoop{
		registry: registry,
		states:   states,
		logger:   logger,
		interval: interval,
	}
}

// run executes one cycle immediately, then one per interval, until ctx is
// cancelled.
func (p *pollLoop) run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.cycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle walks a snapshot of the registry so concurrent discovery inserts
// cannot disturb the iteration. One unreachable device never blocks the
// rest of the cycle.
func (p *pollLoop) cycle(ctx context.Context) {
	refreshed := make(map[string]bool)
	for _, id := range p.registry.IDs() {
		dev, ok := p.registry.ByID(id)
		if !ok {
			continue
		}
		if err := p.pollDevice(ctx, dev, refreshed); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("poll failed", "device_id", id, "error", err)
		}
	}
}

// pollDevice refreshes one device and publishes its state. For hub
// children the hub is refreshed first; refreshed tracks which devices
// already hit the network this cycle, keyed by identity.
func (p *pollLoop) pollDevice(ctx context.Context, dev device.Device, refreshed map[string]bool) error {
	if parent := dev.Parent(); parent != nil {
		pid := parent.DeviceID()
		if !refreshed[pid] {
			if err := refresh(ctx, parent); err != nil {
				return fmt.Errorf("refreshing hub %s: %w", pid, err)
			}
			refreshed[pid] = true
		}
		if err := refresh(ctx, dev); err != nil {
			return err
		}
	} else if !refreshed[dev.DeviceID()] {
		if err := refresh(ctx, dev); err != nil {
			return err
		}
		refreshed[dev.DeviceID()] = true
	}
	return p.states.publish(dev)
}
