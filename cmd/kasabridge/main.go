// Kasa MQTT Bridge
//
// Mirrors the live state of TP-Link Kasa smart devices (plugs, hubs and
// their children) into an MQTT topic space and routes inbound set commands
// back to the devices. Designed to run unattended under a service manager:
// broker outages are survived with backoff, device failures never crash
// the process.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/bridge"
	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/config"
	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/logging"
	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/kasa"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Exit codes. A config error means a restart will not help until the file
// is fixed, so it gets a distinct code service managers can act on.
const (
	exitFailure = 1
	exitConfig  = 2
)

// errInvalidConfig marks startup failures caused by configuration.
var errInvalidConfig = errors.New("invalid configuration")

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errInvalidConfig) {
			os.Exit(exitConfig)
		}
		os.Exit(exitFailure)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Kasa MQTT bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	client := kasa.NewClient(kasa.Credentials{
		Username: cfg.Kasa.Email,
		Password: cfg.Kasa.Password,
	})
	client.SetLogger(log)

	b := bridge.New(cfg, client, log)
	b.SetWatchdog(func() error {
		_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		return err
	})

	// Tell the service manager we are up; a no-op outside systemd
	if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
		log.Warn("service readiness notification failed", "error", notifyErr)
	}

	log.Info("bridge running",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
		"base_topic", cfg.MQTT.BaseTopic,
		"poll_interval", cfg.GetPollInterval(),
		"discovery_jobs", len(cfg.DiscoveryJobs),
	)

	err = b.Run(ctx)

	if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyStopping); notifyErr != nil {
		log.Debug("service stopping notification failed", "error", notifyErr)
	}
	log.Info("shutdown complete")
	return err
}

// getConfigPath returns the configuration file path.
// Uses KASABRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KASABRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
