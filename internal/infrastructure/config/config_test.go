package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTempConfig writes YAML content to a temp file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

const validYAML = `
mqtt:
  host: 127.0.0.1
  port: 1883
  base_topic: kasa
kasa:
  email: user@example.com
  password: secret
discovery_jobs:
  - { type: broadcast, timeout: 5, rescan_interval: 120 }
  - { type: host, target: "192.168.1.50", rescan_interval: 300 }
`

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Host != "127.0.0.1" {
		t.Errorf("MQTT.Host = %q, want 127.0.0.1", cfg.MQTT.Host)
	}
	if cfg.MQTT.BaseTopic != "kasa" {
		t.Errorf("MQTT.BaseTopic = %q, want kasa", cfg.MQTT.BaseTopic)
	}
	if len(cfg.DiscoveryJobs) != 2 {
		t.Fatalf("len(DiscoveryJobs) = %d, want 2", len(cfg.DiscoveryJobs))
	}
	if cfg.DiscoveryJobs[1].Target != "192.168.1.50" {
		t.Errorf("DiscoveryJobs[1].Target = %q", cfg.DiscoveryJobs[1].Target)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, `
mqtt:
  host: broker.local
  base_topic: kasa
kasa:
  email: user@example.com
  password: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Port != 1883 {
		t.Errorf("default MQTT.Port = %d, want 1883", cfg.MQTT.Port)
	}
	if cfg.PollInterval != 60 {
		t.Errorf("default PollInterval = %d, want 60", cfg.PollInterval)
	}
	if cfg.MQTT.ClientID != "kasa-bridge" {
		t.Errorf("default MQTT.ClientID = %q, want kasa-bridge", cfg.MQTT.ClientID)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	t.Setenv("KASABRIDGE_MQTT_HOST", "override.local")
	t.Setenv("KASABRIDGE_KASA_PASSWORD", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Host != "override.local" {
		t.Errorf("MQTT.Host = %q, want env override", cfg.MQTT.Host)
	}
	if cfg.Kasa.Password != "env-secret" {
		t.Errorf("Kasa.Password = %q, want env override", cfg.Kasa.Password)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Kasa.Email = "user@example.com"
		cfg.Kasa.Password = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing mqtt host",
			mutate:  func(c *Config) { c.MQTT.Host = "" },
			wantErr: "mqtt.host",
		},
		{
			name:    "missing base topic",
			mutate:  func(c *Config) { c.MQTT.BaseTopic = "" },
			wantErr: "mqtt.base_topic",
		},
		{
			name:    "base topic with slash",
			mutate:  func(c *Config) { c.MQTT.BaseTopic = "kasa/home" },
			wantErr: "single topic segment",
		},
		{
			name:    "missing kasa email",
			mutate:  func(c *Config) { c.Kasa.Email = "" },
			wantErr: "kasa.email",
		},
		{
			name:    "missing kasa password",
			mutate:  func(c *Config) { c.Kasa.Password = "" },
			wantErr: "kasa.password",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.MQTT.Port = 70000 },
			wantErr: "mqtt.port",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.PollInterval = 0 },
			wantErr: "poll_interval",
		},
		{
			name: "unknown job type",
			mutate: func(c *Config) {
				c.DiscoveryJobs = []JobConfig{{Type: "multicast"}}
			},
			wantErr: "discovery_jobs[0]",
		},
		{
			name: "host job without target",
			mutate: func(c *Config) {
				c.DiscoveryJobs = []JobConfig{{Type: JobTypeHost}}
			},
			wantErr: "requires a target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestJobDurations(t *testing.T) {
	job := JobConfig{Type: JobTypeBroadcast}
	if got := job.GetTimeout(); got != 5*time.Second {
		t.Errorf("GetTimeout() default = %v, want 5s", got)
	}

	job.Timeout = 8
	if got := job.GetTimeout(); got != 8*time.Second {
		t.Errorf("GetTimeout() = %v, want 8s", got)
	}

	if got := job.GetRescanInterval(); got != 0 {
		t.Errorf("GetRescanInterval() = %v, want 0 for one-shot job", got)
	}

	job.RescanInterval = 120
	if got := job.GetRescanInterval(); got != 120*time.Second {
		t.Errorf("GetRescanInterval() = %v, want 120s", got)
	}
}
