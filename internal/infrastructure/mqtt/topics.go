package mqtt

import "strings"

// Topic layout relative to the configured base topic:
//
//	{base}/{topic_name}/state    retained JSON of feature name → value
//	{base}/{topic_name}/set      inbound JSON of feature name → requested value
//	{base}/_bridge/status        retained {"status":"online"|"offline","ts":...}
//	{base}/_bridge/heartbeat     non-retained {"ts":...}
//
// The "_bridge" segment cannot collide with a device topic name: the alias
// part is sanitized to [a-z0-9_-] and every name ends in an "_" plus a
// case-preserved device ID suffix.

// bridgeSegment is the reserved topic segment for bridge-level topics.
const bridgeSegment = "_bridge"

// Topics builds the bridge's MQTT topics under one base topic.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct {
	Base string
}

// DeviceState returns the retained state topic for a device.
//
// Example: kasa/lamp_1a2b3c4d/state
func (t Topics) DeviceState(topicName string) string {
	return t.Base + "/" + topicName + "/state"
}

// DeviceCommand returns the command topic for a device.
//
// Example: kasa/lamp_1a2b3c4d/set
func (t Topics) DeviceCommand(topicName string) string {
	return t.Base + "/" + topicName + "/set"
}

// CommandWildcard returns the wildcard pattern matching all device command topics.
//
// Example: kasa/+/set
func (t Topics) CommandWildcard() string {
	return t.Base + "/+/set"
}

// BridgeStatus returns the retained bridge status topic.
//
// Example: kasa/_bridge/status
func (t Topics) BridgeStatus() string {
	return t.Base + "/" + bridgeSegment + "/status"
}

// BridgeHeartbeat returns the non-retained bridge heartbeat topic.
//
// Example: kasa/_bridge/heartbeat
func (t Topics) BridgeHeartbeat() string {
	return t.Base + "/" + bridgeSegment + "/heartbeat"
}

// ParseCommandTopic extracts the device topic name from a command topic.
//
// It returns ok=false for any topic that does not have exactly the shape
// {base}/{topic_name}/set, including the bridge's own reserved topics.
func (t Topics) ParseCommandTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != t.Base || parts[2] != "set" {
		return "", false
	}
	name := parts[1]
	if name == "" || name == bridgeSegment {
		return "", false
	}
	return name, true
}
