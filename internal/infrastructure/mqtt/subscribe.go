package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages on the specified topic.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "kasa/+/set" matches any device command topic
//   - # (multi-level): "kasa/#" matches all bridge topics
//
// Because order matters is enabled on the connection, the handler is called
// for messages in arrival order and a blocking handler delays the next
// message rather than racing it.
//
// A Client lives for exactly one session, so there is no re-subscription
// logic: a lost connection ends the session and the next session subscribes
// afresh.
//
// Parameters:
//   - topic: The topic pattern to subscribe to
//   - handler: Callback function invoked for each message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, defaultQoS, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}
