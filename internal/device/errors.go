package device

import "errors"

// Domain-specific errors for the device registry.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConflict is returned when registering an identity or topic name that
	// is already present.
	ErrConflict = errors.New("device: already registered")

	// ErrInvalidDevice is returned when a registration argument is missing.
	ErrInvalidDevice = errors.New("device: invalid registration")

	// ErrNotSettable is returned by SetValue on a read-only feature.
	ErrNotSettable = errors.New("device: feature is not settable")
)
