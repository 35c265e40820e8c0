// Package mqtt provides MQTT client connectivity for the Kasa bridge.
//
// This package manages:
//   - One broker connection per bridge session
//   - Message publishing with bounded waits
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for crash-offline detection
//   - The bridge's topic layout relative to the configured base topic
//
// # Architecture
//
// The bridge mirrors Kasa device state into a topic space and routes inbound
// command topics back to devices:
//
//	Kasa devices ↔ bridge ↔ MQTT broker ↔ consumers (Home Assistant, etc.)
//
// A Client is deliberately session-scoped. Automatic reconnection is turned
// off: when the connection drops, the session supervisor tears everything
// down and the reconnect supervisor builds a fresh session with exponential
// backoff. This keeps exactly one layer responsible for retries.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Base: cfg.MQTT.BaseTopic}
//	err = client.Subscribe(topics.CommandWildcard(),
//	    func(topic string, payload []byte) error {
//	        // route command
//	        return nil
//	    })
package mqtt
