package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/device"
	"github.com/il-prof-f-a/kasa-mqtt-simple-bridge/internal/infrastructure/config"
)

const (
	// discoveryTick is how often the scheduler checks for due jobs.
	discoveryTick = 15 * time.Second

	// broadcastGrace pads a broadcast job's listen window so the overall
	// deadline covers socket setup and reply parsing.
	broadcastGrace = 2 * time.Second

	// hostProbeTimeout bounds a single-target probe.
	hostProbeTimeout = 10 * time.Second

	// adoptTimeout bounds the authenticated refresh of one new candidate.
	adoptTimeout = 10 * time.Second
)

// discoveryJob is one configured scan with its schedule state. Jobs without
// a rescan interval run exactly once.
type discoveryJob struct {
	cfg      config.JobConfig
	nextScan time.Time
	done     bool
}

// discoveryScheduler runs the configured scan jobs and feeds the registry.
// Job schedule state lives for the whole process, so one-shot jobs do not
// re-run after a broker reconnect.
type discoveryScheduler struct {
	client   Discoverer
	registry *device.Registry
	logger   Logger
	jobs     []*discoveryJob
	tick     time.Duration
	now      func() time.Time
}

func newDiscoveryScheduler(client Discoverer, registry *device.Registry, logger Logger, cfgs []config.JobConfig) *discoveryScheduler {
	jobs := make([]*discoveryJob, 0, len(cfgs))
	for _, cfg := range cfgs {
		// zero nextScan makes the first pass run every job immediately
		jobs = append(jobs, &discoveryJob{cfg: cfg})
	}
	return &discoveryScheduler{
		client:   client,
		registry: registry,
		logger:   logger,
		jobs:     jobs,
		tick:     discoveryTick,
		now:      time.Now,
	}
}

// run executes due jobs at every tick until ctx is cancelled.
func (s *discoveryScheduler) run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		s.runDue(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runDue runs every job whose scan time has arrived. A failing job is
// logged and rescheduled like a successful one; discovery never fails the
// session.
func (s *discoveryScheduler) runDue(ctx context.Context) {
	for _, job := range s.jobs {
		if job.done || job.nextScan.After(s.now()) {
			continue
		}
		if err := s.runJob(ctx, job); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("discovery job failed",
				"type", job.cfg.Type, "target", job.cfg.Target, "error", err)
		}
		if interval := job.cfg.GetRescanInterval(); interval > 0 {
			job.nextScan = s.now().Add(interval)
		} else {
			job.done = true
		}
	}
}

func (s *discoveryScheduler) runJob(ctx context.Context, job *discoveryJob) error {
	switch job.cfg.Type {
	case config.JobTypeBroadcast:
		return s.runBroadcast(ctx, job.cfg.GetTimeout())
	case config.JobTypeHost:
		return s.runHostProbe(ctx, job.cfg.Target)
	default:
		return fmt.Errorf("unknown job type %q", job.cfg.Type)
	}
}

func (s *discoveryScheduler) runBroadcast(ctx context.Context, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout+broadcastGrace)
	defer cancel()

	found, err := s.client.Discover(opCtx, timeout)
	// adopt whatever answered before deciding the job's fate
	for host, dev := range found {
		if s.registry.HasHost(host) {
			continue
		}
		s.adopt(ctx, host, dev)
	}
	if err != nil {
		return fmt.Errorf("broadcast scan: %w", err)
	}
	return nil
}

func (s *discoveryScheduler) runHostProbe(ctx context.Context, target string) error {
	if s.registry.HasHost(target) {
		s.logger.Debug("host already registered, skipping probe", "host", target)
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, hostProbeTimeout)
	defer cancel()
	dev, err := s.client.DiscoverSingle(opCtx, target)
	if err != nil {
		return fmt.Errorf("probing %s: %w", target, err)
	}
	s.adopt(ctx, target, dev)
	return nil
}

// adopt authenticates one new candidate with a fresh update and registers
// it together with any children it brokers. A failing candidate never
// aborts the rest of the tick.
func (s *discoveryScheduler) adopt(ctx context.Context, host string, dev device.Device) {
	opCtx, cancel := context.WithTimeout(ctx, adoptTimeout)
	defer cancel()
	if err := dev.Update(opCtx); err != nil {
		s.logger.Warn("candidate device update failed", "host", host, "error", err)
		return
	}

	s.register(dev)
	for _, child := range dev.Children() {
		s.register(child)
	}
}

// register assigns a topic name and inserts the device, skipping identities
// the registry already knows. A topic-name collision between two distinct
// identities is a real fault and is logged loudly.
func (s *discoveryScheduler) register(dev device.Device) {
	id := dev.DeviceID()
	if _, ok := s.registry.ByID(id); ok {
		return
	}

	name := device.TopicName(dev.Alias(), id)
	if err := s.registry.Register(id, dev, name); err != nil {
		s.logger.Error("device registration failed",
			"device_id", id, "topic", name, "error", err)
		return
	}
	s.logger.Info("registered device",
		"device_id", id, "topic", name, "model", dev.Model(), "host", dev.Host())
}
