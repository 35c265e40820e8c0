package kasa

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/device"
)

// Device is a first-generation Kasa device reachable over the local network.
// It satisfies device.Device for both standalone devices and children that
// live behind a hub or power strip.
type Device struct {
	client *Client
	host   string

	mu       sync.RWMutex
	info     sysinfo
	child    *childInfo
	parent   *Device
	children []device.Device
}

var _ device.Device = (*Device)(nil)

// newDevice builds a standalone (or hub) device from a sysinfo snapshot.
func newDevice(client *Client, host string, info sysinfo) *Device {
	d := &Device{client: client, host: host, info: info}
	d.rebuildChildren()
	return d
}

// rebuildChildren materialises child devices from the current sysinfo.
// Existing children are reused so identity stays stable across updates.
// Caller must hold d.mu or have exclusive access.
func (d *Device) rebuildChildren() {
	if len(d.info.Children) == 0 {
		d.children = nil
		return
	}
	prev := make(map[string]*Device, len(d.children))
	for _, c := range d.children {
		kc := c.(*Device)
		prev[kc.DeviceID()] = kc
	}
	children := make([]device.Device, 0, len(d.info.Children))
	for i := range d.info.Children {
		ci := d.info.Children[i]
		id := childDeviceID(d.info.DeviceID, ci.ID)
		child, ok := prev[id]
		if !ok {
			child = &Device{client: d.client, host: d.host, parent: d}
		}
		child.mu.Lock()
		child.child = &ci
		child.info = sysinfo{
			Alias:    ci.Alias,
			DeviceID: id,
			Model:    d.info.Model,
		}
		child.mu.Unlock()
		children = append(children, child)
	}
	d.children = children
}

// childDeviceID yields the globally unique ID of a child. Hubs report child
// IDs either as full IDs or as a short suffix appended to their own ID.
func childDeviceID(parentID, childID string) string {
	if len(childID) > len(parentID) {
		return childID
	}
	return parentID + childID
}

// DeviceID returns the stable hardware identifier.
func (d *Device) DeviceID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info.DeviceID
}

// Alias returns the user-assigned name from the Kasa app.
func (d *Device) Alias() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info.Alias
}

// Model returns the reported hardware model string.
func (d *Device) Model() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info.Model
}

// Host returns the network address the device answers on. Children report
// their hub's address.
func (d *Device) Host() string {
	return d.host
}

// Parent returns the hub this device hangs off, or nil for standalone
// devices and hubs themselves.
func (d *Device) Parent() device.Device {
	if d.parent == nil {
		return nil
	}
	return d.parent
}

// Children returns the devices behind this hub or power strip. The slice is
// rebuilt on every Update; callers should not retain it across updates.
func (d *Device) Children() []device.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]device.Device, len(d.children))
	copy(out, d.children)
	return out
}

// Update refreshes the device's state from the network. For a child this
// refreshes the parent hub, which in turn refreshes every sibling.
func (d *Device) Update(ctx context.Context) error {
	if d.parent != nil {
		return d.parent.Update(ctx)
	}

	raw, err := call(ctx, hostAddr(d.host), sysinfoQuery)
	if err != nil {
		return fmt.Errorf("querying %s: %w", d.host, err)
	}
	info, err := parseSysinfo(raw)
	if err != nil {
		return fmt.Errorf("parsing sysinfo from %s: %w", d.host, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if info.DeviceID != d.info.DeviceID {
		return fmt.Errorf("device at %s changed identity: %s -> %s", d.host, d.info.DeviceID, info.DeviceID)
	}
	d.info = info
	d.rebuildChildren()
	return nil
}

// Features returns the current feature set. The map is rebuilt from the
// latest sysinfo snapshot on every call.
func (d *Device) Features() map[string]device.Feature {
	d.mu.RLock()
	defer d.mu.RUnlock()

	features := make(map[string]device.Feature)
	if d.child != nil {
		if d.child.State != nil {
			features["state"] = &relayFeature{device: d, on: *d.child.State != 0}
		}
		if d.child.OnTime != nil {
			features["on_time"] = readOnlyFeature{value: *d.child.OnTime}
		}
		return features
	}

	if d.info.RelayState != nil {
		features["state"] = &relayFeature{device: d, on: *d.info.RelayState != 0}
	}
	if d.info.RSSI != nil {
		features["rssi"] = readOnlyFeature{value: *d.info.RSSI}
	}
	if d.info.OnTime != nil {
		features["on_time"] = readOnlyFeature{value: *d.info.OnTime}
	}
	if d.info.LEDOff != nil {
		features["led"] = readOnlyFeature{value: *d.info.LEDOff == 0}
	}
	return features
}

// setRelay drives the device relay, routing through the hub for children.
func (d *Device) setRelay(ctx context.Context, on bool) error {
	target := d
	var childIDs []string
	if d.parent != nil {
		target = d.parent
		childIDs = []string{d.rawChildID()}
	}
	_, err := call(ctx, hostAddr(target.host), relayCommand(on, childIDs))
	if err != nil {
		return fmt.Errorf("setting relay on %s: %w", d.DeviceID(), err)
	}
	return nil
}

// rawChildID returns the child ID exactly as the hub reported it, which is
// what the hub expects back in a child_ids context.
func (d *Device) rawChildID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.child == nil {
		return ""
	}
	return d.child.ID
}

// relayFeature exposes a relay as a settable boolean feature.
type relayFeature struct {
	device *Device
	on     bool
}

func (f *relayFeature) Value() any     { return f.on }
func (f *relayFeature) Settable() bool { return true }

// SetValue accepts a bool, a 0/1 number, or the usual string spellings of
// on and off.
func (f *relayFeature) SetValue(ctx context.Context, v any) error {
	on, err := coerceBool(v)
	if err != nil {
		return err
	}
	return f.device.setRelay(ctx, on)
}

// coerceBool maps the payload shapes clients actually send onto a bool.
func coerceBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "on", "true", "1", "yes":
			return true, nil
		case "off", "false", "0", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("cannot interpret %v (%T) as on/off", v, v)
}

// readOnlyFeature carries a value that cannot be written.
type readOnlyFeature struct {
	value any
}

func (f readOnlyFeature) Value() any     { return f.value }
func (f readOnlyFeature) Settable() bool { return false }

func (f readOnlyFeature) SetValue(context.Context, any) error {
	return device.ErrNotSettable
}
