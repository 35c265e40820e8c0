package bridge

import "errors"

var (
	// ErrConnectionLost signals that the broker dropped the session's
	// connection. It ends the session; the reconnect loop handles it.
	ErrConnectionLost = errors.New("bridge: broker connection lost")
)
