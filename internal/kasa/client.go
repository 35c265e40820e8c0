package kasa

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/device"
)

// Credentials hold the cloud account login. First-generation devices never
// see them on the wire, but devices provisioned against newer firmware
// refuse unauthenticated callers, so the client carries them for every
// lookup.
type Credentials struct {
	Username string
	Password string
}

// Logger is the narrow logging surface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client discovers and talks to Kasa devices on the local network.
// A single Client is safe for concurrent use.
type Client struct {
	creds  Credentials
	logger Logger
}

// NewClient returns a client that authenticates with creds where firmware
// demands it.
func NewClient(creds Credentials) *Client {
	return &Client{creds: creds, logger: noopLogger{}}
}

// SetLogger replaces the client's logger. Not safe to call after discovery
// has started.
func (c *Client) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// broadcast discovery tuning.
const (
	// discoveryProbeInterval is how often the sysinfo probe is re-sent
	// while the listen window is open; devices answer a single datagram
	// unreliably on congested networks.
	discoveryProbeInterval = 1 * time.Second

	// maxDatagramSize bounds one discovery reply.
	maxDatagramSize = 64 * 1024
)

// Discover broadcasts a sysinfo probe and collects every reply that arrives
// before timeout elapses. The result maps host address to device; replies
// carrying the same host are deduplicated, keeping the first.
func (c *Client) Discover(ctx context.Context, timeout time.Duration) (map[string]device.Device, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("opening discovery socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting discovery deadline: %w", err)
	}

	target := &net.UDPAddr{IP: net.IPv4bcast, Port: Port}
	probe := encrypted(sysinfoQuery)

	stopProbing := make(chan struct{})
	defer close(stopProbing)
	go func() {
		// expire the read deadline early if the caller gives up
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-stopProbing:
		}
	}()
	go func() {
		ticker := time.NewTicker(discoveryProbeInterval)
		defer ticker.Stop()
		for {
			if _, err := conn.WriteTo(probe, target); err != nil {
				c.logger.Debug("discovery probe send failed", "error", err)
			}
			select {
			case <-ticker.C:
			case <-stopProbing:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	found := make(map[string]device.Device)
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				return found, nil
			}
			if ctx.Err() != nil {
				return found, ctx.Err()
			}
			return found, fmt.Errorf("reading discovery reply: %w", err)
		}

		host, _, splitErr := net.SplitHostPort(from.String())
		if splitErr != nil {
			host = from.String()
		}
		if _, seen := found[host]; seen {
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		decrypt(payload)
		info, err := parseSysinfo(payload)
		if err != nil {
			c.logger.Debug("ignoring malformed discovery reply", "host", host, "error", err)
			continue
		}
		found[host] = newDevice(c, host, info)
		c.logger.Debug("discovered device",
			"host", host, "alias", info.Alias, "model", info.Model, "hub", IsHub(info.Model))
	}
}

// DiscoverSingle queries one known host directly over TCP and returns the
// device with a fresh sysinfo snapshot. The context deadline bounds the
// exchange.
func (c *Client) DiscoverSingle(ctx context.Context, host string) (device.Device, error) {
	raw, err := call(ctx, hostAddr(host), sysinfoQuery)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", host, err)
	}
	info, err := parseSysinfo(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing sysinfo from %s: %w", host, err)
	}
	return newDevice(c, host, info), nil
}

// isTimeout reports whether err is a deadline expiry on a net connection.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// hubModelFamily identifies the hub product line whose children the bridge
// exposes as individual devices.
const hubModelFamily = "KH100"

// IsHub reports whether a model string identifies a hub that brokers access
// to child devices.
func IsHub(model string) bool {
	return strings.Contains(strings.ToUpper(model), hubModelFamily)
}
