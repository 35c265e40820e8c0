package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/device"
)

func newTestPoll(t *testing.T) (*pollLoop, *device.Registry, *fakeConn) {
	t.Helper()
	registry := device.NewRegistry()
	fc := newFakeConn()
	states := &statePublisher{registry: registry, pub: fc, topics: testTopics()}
	return newPollLoop(registry, states, noopLogger{}, time.Minute), registry, fc
}

func mustRegister(t *testing.T, r *device.Registry, dev device.Device) {
	t.Helper()
	name := device.TopicName(dev.Alias(), dev.DeviceID())
	if err := r.Register(dev.DeviceID(), dev, name); err != nil {
		t.Fatalf("registering %s: %v", dev.DeviceID(), err)
	}
}

func TestPollParentRefreshedBeforeChildren(t *testing.T) {
	poll, registry, _ := newTestPoll(t)

	log := &callLog{}
	hub := &fakeDevice{id: "HUB00000", alias: "Hall Hub", host: "10.0.0.2", updates: log}
	children := []*fakeDevice{
		{id: "CHILD001", alias: "Radiator", host: "10.0.0.2", parent: hub, updates: log},
		{id: "CHILD002", alias: "Towel Rail", host: "10.0.0.2", parent: hub, updates: log},
		{id: "CHILD003", alias: "Lounge Valve", host: "10.0.0.2", parent: hub, updates: log},
	}
	mustRegister(t, registry, hub)
	for _, c := range children {
		mustRegister(t, registry, c)
	}

	poll.cycle(context.Background())

	if n := log.count(hub.id); n != 1 {
		t.Errorf("hub refreshed %d times in one cycle, want 1", n)
	}
	hubIdx := log.firstIndex(hub.id)
	for _, c := range children {
		idx := log.firstIndex(c.id)
		if idx == -1 {
			t.Errorf("child %s never refreshed", c.id)
			continue
		}
		if idx < hubIdx {
			t.Errorf("child %s refreshed at %d, before hub at %d", c.id, idx, hubIdx)
		}
	}
}

func TestPollRefreshedSetResetsBetweenCycles(t *testing.T) {
	poll, registry, _ := newTestPoll(t)

	log := &callLog{}
	hub := &fakeDevice{id: "HUB00000", alias: "Hub", host: "10.0.0.2", updates: log}
	child := &fakeDevice{id: "CHILD001", alias: "Valve", host: "10.0.0.2", parent: hub, updates: log}
	mustRegister(t, registry, hub)
	mustRegister(t, registry, child)

	poll.cycle(context.Background())
	poll.cycle(context.Background())

	if n := log.count(hub.id); n != 2 {
		t.Errorf("hub refreshed %d times over two cycles, want 2", n)
	}
}

func TestPollPublishesRetainedState(t *testing.T) {
	poll, registry, fc := newTestPoll(t)

	dev := &fakeDevice{
		id: "AAAA1a2b3c4d", alias: "Desk Lamp", host: "10.0.0.9",
		features: map[string]device.Feature{
			"state": &fakeFeature{value: true},
			"rssi":  &fakeFeature{value: -60},
		},
	}
	mustRegister(t, registry, dev)

	poll.cycle(context.Background())

	msgs := fc.onTopic("kasa/desk_lamp_1a2b3c4d/state")
	if len(msgs) != 1 {
		t.Fatalf("got %d state publishes, want 1", len(msgs))
	}
	if !msgs[0].retained {
		t.Error("state publish is not retained")
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(msgs[0].payload), &decoded); err != nil {
		t.Fatalf("state payload is not JSON: %v", err)
	}
	if decoded["state"] != true {
		t.Errorf("state = %v, want true", decoded["state"])
	}
	if decoded["rssi"] != float64(-60) {
		t.Errorf("rssi = %v, want -60", decoded["rssi"])
	}
}

func TestPollContinuesPastFailingDevice(t *testing.T) {
	poll, registry, fc := newTestPoll(t)

	broken := &fakeDevice{id: "BAD00001", alias: "Broken", host: "10.0.0.3",
		updateErr: errors.New("connection refused")}
	healthy := &fakeDevice{id: "GOOD0001", alias: "Healthy", host: "10.0.0.4"}
	mustRegister(t, registry, broken)
	mustRegister(t, registry, healthy)

	poll.cycle(context.Background())

	var brokenPublished, healthyPublished bool
	for _, m := range fc.published() {
		if strings.Contains(m.topic, "broken_") {
			brokenPublished = true
		}
		if strings.Contains(m.topic, "healthy_") {
			healthyPublished = true
		}
	}
	if brokenPublished {
		t.Error("state published for a device whose refresh failed")
	}
	if !healthyPublished {
		t.Error("healthy device skipped after earlier failure")
	}
}

func TestFeatureSnapshotSkipsAbsentValues(t *testing.T) {
	dev := &fakeDevice{
		id: "X", alias: "x",
		features: map[string]device.Feature{
			"present": &fakeFeature{value: 5},
			"absent":  &fakeFeature{value: nil},
		},
	}
	snap := featureSnapshot(dev)
	if _, ok := snap["absent"]; ok {
		t.Error("snapshot includes a feature with no value")
	}
	if snap["present"] != 5 {
		t.Errorf("present = %v, want 5", snap["present"])
	}
}

type namedMode string

func (m namedMode) Name() string { return string(m) }

func TestFeatureSnapshotLowersNamedValues(t *testing.T) {
	dev := &fakeDevice{
		id: "X", alias: "x",
		features: map[string]device.Feature{
			"mode": &fakeFeature{value: namedMode("HEATING")},
		},
	}
	snap := featureSnapshot(dev)
	if snap["mode"] != "heating" {
		t.Errorf("mode = %v, want lowered name", snap["mode"])
	}
}
