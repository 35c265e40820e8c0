package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/mqtt"
)

// heartbeatInterval is the liveness announcement period.
const heartbeatInterval = 15 * time.Second

// heartbeat announces bridge liveness: a retained online status at session
// start, a timestamped beat every interval, and a retained offline status
// on the way out. Publish failures are never fatal.
type heartbeat struct {
	pub      publisher
	topics   mqtt.Topics
	logger   Logger
	interval time.Duration

	// watchdog, when set, is notified on every beat. Wired to the service
	// manager's liveness watchdog by the caller.
	watchdog func() error
}

func newHeartbeat(pub publisher, topics mqtt.Topics, logger Logger, watchdog func() error) *heartbeat {
	return &heartbeat{
		pub:      pub,
		topics:   topics,
		logger:   logger,
		interval: heartbeatInterval,
		watchdog: watchdog,
	}
}

// run beats until ctx is cancelled, then publishes the final offline
// status. It always returns nil so a shutdown-triggered exit never reads
// as a session failure.
func (h *heartbeat) run(ctx context.Context) error {
	if err := h.pub.Publish(h.topics.BridgeStatus(), mqtt.StatusPayload(mqtt.StatusOnline), true); err != nil {
		h.logger.Warn("online status publish failed", "error", err)
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := h.pub.Publish(h.topics.BridgeStatus(), mqtt.StatusPayload(mqtt.StatusOffline), true); err != nil {
				h.logger.Debug("offline status publish failed", "error", err)
			}
			return nil
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *heartbeat) beat() {
	if err := h.pub.Publish(h.topics.BridgeHeartbeat(), heartbeatPayload(), false); err != nil {
		h.logger.Warn("heartbeat publish failed", "error", err)
	}
	if h.watchdog != nil {
		if err := h.watchdog(); err != nil {
			h.logger.Warn("watchdog notification failed", "error", err)
		}
	}
}

func heartbeatPayload() []byte {
	return fmt.Appendf(nil, `{"ts":%q}`, time.Now().UTC().Format(time.RFC3339))
}
