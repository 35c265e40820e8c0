package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Kasa MQTT bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT          MQTTConfig    `yaml:"mqtt"`
	Kasa          KasaConfig    `yaml:"kasa"`
	PollInterval  int           `yaml:"poll_interval"`
	DiscoveryJobs []JobConfig   `yaml:"discovery_jobs"`
	Logging       LoggingConfig `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	BaseTopic string `yaml:"base_topic"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"client_id"`
	TLS       bool   `yaml:"tls"`
}

// KasaConfig contains TP-Link cloud credentials used when authenticating
// against newer Kasa devices.
type KasaConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// JobConfig describes one configured discovery job.
//
// Type is either "broadcast" (network-wide scan) or "host" (single target).
// Timeout applies to broadcast scans; Target is required for host jobs.
// Jobs without a RescanInterval run exactly once.
type JobConfig struct {
	Type           string `yaml:"type"`
	Timeout        int    `yaml:"timeout"`
	Target         string `yaml:"target"`
	RescanInterval int    `yaml:"rescan_interval"`
}

// Job types.
const (
	JobTypeBroadcast = "broadcast"
	JobTypeHost      = "host"
)

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KASABRIDGE_SECTION_KEY
// For example: KASABRIDGE_MQTT_HOST, KASABRIDGE_KASA_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "kasa",
			ClientID:  "kasa-bridge",
		},
		PollInterval: 60,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: KASABRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KASABRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("KASABRIDGE_MQTT_USER"); v != "" {
		cfg.MQTT.User = v
	}
	if v := os.Getenv("KASABRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("KASABRIDGE_KASA_EMAIL"); v != "" {
		cfg.Kasa.Email = v
	}
	if v := os.Getenv("KASABRIDGE_KASA_PASSWORD"); v != "" {
		cfg.Kasa.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Missing required keys is a fatal startup error: the caller exits with a
// distinct code so a service manager knows restarting will not help without a
// config fix.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.Host == "" {
		errs = append(errs, "mqtt.host is required")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		errs = append(errs, "mqtt.port must be between 1 and 65535")
	}
	if c.MQTT.BaseTopic == "" {
		errs = append(errs, "mqtt.base_topic is required")
	}
	if strings.ContainsAny(c.MQTT.BaseTopic, "+#/") {
		errs = append(errs, "mqtt.base_topic must be a single topic segment (no wildcards or slashes)")
	}

	if c.Kasa.Email == "" {
		errs = append(errs, "kasa.email is required")
	}
	if c.Kasa.Password == "" {
		errs = append(errs, "kasa.password is required")
	}

	if c.PollInterval < 1 {
		errs = append(errs, "poll_interval must be at least 1 second")
	}

	for i, job := range c.DiscoveryJobs {
		switch job.Type {
		case JobTypeBroadcast:
			// Timeout is optional; the scheduler applies its default.
		case JobTypeHost:
			if job.Target == "" {
				errs = append(errs, fmt.Sprintf("discovery_jobs[%d]: host job requires a target", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("discovery_jobs[%d]: type must be %q or %q", i, JobTypeBroadcast, JobTypeHost))
		}
		if job.RescanInterval < 0 {
			errs = append(errs, fmt.Sprintf("discovery_jobs[%d]: rescan_interval cannot be negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the device poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// GetTimeout returns a job's broadcast scan timeout as a Duration,
// falling back to the 5 second default when unset.
func (j JobConfig) GetTimeout() time.Duration {
	if j.Timeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(j.Timeout) * time.Second
}

// GetRescanInterval returns a job's rescan interval as a Duration.
// A zero value means the job runs exactly once.
func (j JobConfig) GetRescanInterval() time.Duration {
	return time.Duration(j.RescanInterval) * time.Second
}
