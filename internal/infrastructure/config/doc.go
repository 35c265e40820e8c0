// Package config provides configuration loading for the Kasa MQTT bridge.
//
// Configuration is loaded from a YAML file with this structure:
//
//	mqtt:
//	  host: 127.0.0.1
//	  port: 1883
//	  base_topic: kasa
//	  user: bridge
//	  password: secret
//	kasa:
//	  email: you@example.com
//	  password: secret
//	poll_interval: 60
//	discovery_jobs:
//	  - { type: broadcast, timeout: 5, rescan_interval: 120 }
//	  - { type: host, target: "192.168.1.50", rescan_interval: 300 }
//	logging:
//	  level: info
//	  format: json
//
// Values can be overridden by KASABRIDGE_* environment variables, which is the
// recommended way to supply credentials in containerised deployments.
//
// Validation failures are fatal: the bridge exits with a distinct code so that
// a supervisor (e.g. systemd) can tell a broken config from a transient error.
package config
