// Package bridge coordinates the long-running activities that mirror Kasa
// devices into an MQTT topic space: discovery scans feeding the device
// registry, the poll loop republishing device state, the command router
// applying inbound writes, and the heartbeat announcing liveness.
//
// One Bridge owns the registry for the process lifetime. Each broker
// connection is wrapped in a session that runs the four activities as a
// unit; the first activity to fail tears the session down, and Run retries
// with exponential backoff until its context is cancelled.
package bridge
