package device

import "context"

// Device is the bridge's view of one Kasa device or hub child.
//
// Implementations live in the kasa package; tests use lightweight fakes.
// All network-bound methods take a context and respect its deadline.
type Device interface {
	// DeviceID returns the opaque stable identifier supplied by the device
	// protocol. Unique per physical device or hub child.
	DeviceID() string

	// Alias returns the human-readable name configured on the device.
	Alias() string

	// Model returns the device's model string (e.g. "HS110(EU)", "KH100").
	Model() string

	// Host returns the network address the device was discovered at.
	Host() string

	// Update refreshes the device's live state from the network.
	Update(ctx context.Context) error

	// Features returns the device's named capabilities. The map must not be
	// mutated by callers; it reflects the state as of the last Update.
	Features() map[string]Feature

	// Children returns the child devices of a hub, or nil for standalone
	// devices.
	Children() []Device

	// Parent returns the hub brokering access to this device, or nil for
	// standalone devices and for the hub itself. The bridge only reads this
	// relationship; it never creates or destroys it.
	Parent() Device
}

// Feature is one named, typed, individually readable capability of a device,
// such as power state or brightness. Settable features also accept writes.
type Feature interface {
	// Value returns the feature's current value, or nil if the value is not
	// available. Enumerated values implement NamedValue.
	Value() any

	// Settable reports whether SetValue is supported for this feature.
	Settable() bool

	// SetValue writes a new value to the device.
	// Returns an error for unsettable features.
	SetValue(ctx context.Context, v any) error
}

// NamedValue is implemented by enumerated feature values. When a feature
// value implements it, publishers surface the lowercase name instead of the
// raw value.
type NamedValue interface {
	Name() string
}
