package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for the initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// defaultQoS is the QoS level used for all bridge publishes.
	defaultQoS = 0

	// clientIDSuffixLen is how many characters of the session UUID are
	// appended to the configured client ID.
	clientIDSuffixLen = 8

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Bridge status values published to the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// buildClientOptions creates paho MQTT options from bridge config.
//
// Auto-reconnect and connect-retry are disabled on purpose: the reconnect
// supervisor owns the retry loop, and a half-reconnected paho client would
// race with it.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))

	opts.SetClientID(sessionClientID(cfg.ClientID))

	if cfg.User != "" {
		opts.SetUsername(cfg.User)
		opts.SetPassword(cfg.Password)
	}

	// Fresh session per connection; retained state topics carry the history.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// The command router requires strict arrival-order delivery.
	opts.SetOrderMatters(true)

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// sessionClientID derives a unique per-session client ID.
//
// Brokers disconnect the older of two clients sharing an ID; a fixed ID would
// make a reconnect attempt kill a session the broker still considers alive.
func sessionClientID(base string) string {
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:clientIDSuffixLen])
}

// configureLWT sets up Last Will and Testament on the bridge status topic.
//
// The LWT message is published by the broker if the bridge disconnects
// unexpectedly (crash, network failure), so consumers observe "offline"
// without waiting for a heartbeat gap.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics) {
	opts.SetWill(topics.BridgeStatus(), string(StatusPayload(StatusOffline)), defaultQoS, true)
}

// StatusPayload builds the JSON payload for bridge status messages.
func StatusPayload(status string) []byte {
	return fmt.Appendf(nil, `{"status":%q,"ts":%q}`,
		status,
		time.Now().UTC().Format(time.RFC3339),
	)
}
