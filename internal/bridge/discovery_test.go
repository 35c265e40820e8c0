package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/device"
	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/config"
)

func newTestScheduler(t *testing.T, disc Discoverer, jobs ...config.JobConfig) (*discoveryScheduler, *device.Registry) {
	t.Helper()
	registry := device.NewRegistry()
	return newDiscoveryScheduler(disc, registry, noopLogger{}, jobs), registry
}

func TestHostJobIsIdempotent(t *testing.T) {
	disc := &fakeDiscoverer{byHost: map[string]device.Device{
		"10.0.0.5": &fakeDevice{id: "PLUG0001", alias: "Plug", host: "10.0.0.5"},
	}}
	s, registry := newTestScheduler(t, disc)

	for i := 0; i < 2; i++ {
		if err := s.runHostProbe(context.Background(), "10.0.0.5"); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}

	if n := registry.Len(); n != 1 {
		t.Errorf("registry has %d entries after double probe, want 1", n)
	}
	if disc.singleCalls != 1 {
		t.Errorf("device probed %d times, want 1 (second probe skipped by host)", disc.singleCalls)
	}
}

func TestKnownIdentityAtNewAddressNotReRegistered(t *testing.T) {
	// same physical device answering at two addresses: identity wins
	disc := &fakeDiscoverer{byHost: map[string]device.Device{
		"10.0.0.5": &fakeDevice{id: "PLUG0001", alias: "Plug", host: "10.0.0.5"},
		"10.0.0.6": &fakeDevice{id: "PLUG0001", alias: "Plug", host: "10.0.0.6"},
	}}
	s, registry := newTestScheduler(t, disc)

	if err := s.runHostProbe(context.Background(), "10.0.0.5"); err != nil {
		t.Fatal(err)
	}
	if err := s.runHostProbe(context.Background(), "10.0.0.6"); err != nil {
		t.Fatal(err)
	}

	if n := registry.Len(); n != 1 {
		t.Errorf("registry has %d entries, want 1", n)
	}
}

func TestBroadcastRegistersHubAndChildren(t *testing.T) {
	hub := &fakeDevice{id: "HUB00000", alias: "Hall Hub", model: "KH100(UK)", host: "10.0.0.2"}
	hub.children = []device.Device{
		&fakeDevice{id: "CHILD001", alias: "Radiator", host: "10.0.0.2", parent: hub},
		&fakeDevice{id: "CHILD002", alias: "Towel Rail", host: "10.0.0.2", parent: hub},
	}
	disc := &fakeDiscoverer{broadcast: map[string]device.Device{"10.0.0.2": hub}}
	s, registry := newTestScheduler(t, disc)

	if err := s.runBroadcast(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}

	if n := registry.Len(); n != 3 {
		t.Fatalf("registry has %d entries, want hub + 2 children", n)
	}
	for _, id := range []string{"HUB00000", "CHILD001", "CHILD002"} {
		if _, ok := registry.ByID(id); !ok {
			t.Errorf("%s not registered", id)
		}
	}
}

func TestAdoptFailureSkipsCandidate(t *testing.T) {
	good := &fakeDevice{id: "GOOD0001", alias: "Good", host: "10.0.0.3"}
	bad := &fakeDevice{id: "BAD00001", alias: "Bad", host: "10.0.0.4",
		updateErr: context.DeadlineExceeded}
	disc := &fakeDiscoverer{broadcast: map[string]device.Device{
		"10.0.0.3": good,
		"10.0.0.4": bad,
	}}
	s, registry := newTestScheduler(t, disc)

	if err := s.runBroadcast(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}

	if _, ok := registry.ByID("GOOD0001"); !ok {
		t.Error("healthy candidate not registered")
	}
	if _, ok := registry.ByID("BAD00001"); ok {
		t.Error("candidate with failing update was registered")
	}
}

func TestOneShotJobRunsOnce(t *testing.T) {
	disc := &fakeDiscoverer{broadcast: map[string]device.Device{}}
	s, _ := newTestScheduler(t, disc, config.JobConfig{Type: config.JobTypeBroadcast, Timeout: 1})

	s.runDue(context.Background())
	s.runDue(context.Background())

	if disc.discovers != 1 {
		t.Errorf("one-shot job ran %d times, want 1", disc.discovers)
	}
}

func TestRescanJobRunsAgainWhenDue(t *testing.T) {
	disc := &fakeDiscoverer{broadcast: map[string]device.Device{}}
	s, _ := newTestScheduler(t, disc,
		config.JobConfig{Type: config.JobTypeBroadcast, Timeout: 1, RescanInterval: 300})

	now := time.Now()
	s.now = func() time.Time { return now }

	s.runDue(context.Background())
	s.runDue(context.Background()) // not due yet
	if disc.discovers != 1 {
		t.Fatalf("job ran %d times before rescan interval, want 1", disc.discovers)
	}

	now = now.Add(301 * time.Second)
	s.runDue(context.Background())
	if disc.discovers != 2 {
		t.Errorf("job ran %d times after rescan interval, want 2", disc.discovers)
	}
}
