package device

import (
	"fmt"
	"sync"
)

// Registry is the in-memory mapping of device identity to live device handle
// and topic name, plus the reverse topic → identity map used for inbound
// command resolution.
//
// There is no persistence and no removal: once discovered, a device is known
// for the process lifetime, and its entry is rebuilt from scratch by
// discovery after a restart. A device going offline shows up as poll or
// command failures, not as deregistration, which keeps topic names stable
// for consumers.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Discovery writes; the poll
//     loop and command router read. Register performs its conflict check and
//     both map inserts under one lock, so the two maps can never diverge.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]entry
	byTopic map[string]string // topic name → device ID
}

// entry is one registered device: its live handle and assigned topic name.
type entry struct {
	device    Device
	topicName string
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[string]entry),
		byTopic: make(map[string]string),
	}
}

// Register adds a device under its identity and topic name.
//
// It fails with ErrConflict if either the identity or the topic name is
// already present. This is deliberately not idempotent: a sanitized-alias
// collision that survives the ID suffix is a bug worth failing loudly on,
// not silently overwriting.
func (r *Registry) Register(deviceID string, dev Device, topicName string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: empty device ID", ErrInvalidDevice)
	}
	if dev == nil {
		return fmt.Errorf("%w: nil device handle", ErrInvalidDevice)
	}
	if topicName == "" {
		return fmt.Errorf("%w: empty topic name", ErrInvalidDevice)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[deviceID]; exists {
		return fmt.Errorf("%w: device ID %q already registered", ErrConflict, deviceID)
	}
	if _, exists := r.byTopic[topicName]; exists {
		return fmt.Errorf("%w: topic name %q already registered", ErrConflict, topicName)
	}

	r.byID[deviceID] = entry{device: dev, topicName: topicName}
	r.byTopic[topicName] = deviceID
	return nil
}

// ByID returns the live device handle for an identity.
func (r *Registry) ByID(deviceID string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[deviceID]
	if !ok {
		return nil, false
	}
	return e.device, true
}

// ByTopic resolves a topic name back to a device identity.
func (r *Registry) ByTopic(topicName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTopic[topicName]
	return id, ok
}

// TopicName returns the topic name assigned to an identity at registration.
func (r *Registry) TopicName(deviceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[deviceID]
	if !ok {
		return "", false
	}
	return e.topicName, true
}

// IDs returns a snapshot of all registered identities.
//
// The poll loop iterates this copy, so discovery registering new devices
// mid-cycle never corrupts the iteration; new devices are picked up on the
// next cycle.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

// HasHost reports whether any registered device was discovered at the given
// network address. Discovery uses this to skip candidates already known,
// without re-notifying devices whose address has not changed.
func (r *Registry) HasHost(host string) bool {
	if host == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byID {
		if e.device.Host() == host {
			return true
		}
	}
	return false
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
