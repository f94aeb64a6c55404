package submission

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// StaticReachability is a manual switch, used for forced offline mode and in
// tests.
type StaticReachability struct {
	online atomic.Bool
}

func NewStaticReachability(online bool) *StaticReachability {
	r := &StaticReachability{}
	r.online.Store(online)
	return r
}

func (r *StaticReachability) Reachable(context.Context) bool { return r.online.Load() }
func (r *StaticReachability) Set(online bool)                { r.online.Store(online) }

type Prober interface {
	Health(ctx context.Context) error
}

// Monitor polls the order service health endpoint and signals on Restored
// whenever it comes back after being unreachable.
type Monitor struct {
	log      *slog.Logger
	prober   Prober
	interval time.Duration
	restored chan struct{}

	mu     sync.Mutex
	known  bool
	online bool
}

func NewMonitor(log *slog.Logger, prober Prober, interval time.Duration) *Monitor {
	return &Monitor{
		log:      log,
		prober:   prober,
		interval: interval,
		restored: make(chan struct{}, 1),
	}
}

// Reachable returns the last probe result, probing first if there is none.
func (m *Monitor) Reachable(ctx context.Context) bool {
	m.mu.Lock()
	known, online := m.known, m.online
	m.mu.Unlock()
	if known {
		return online
	}
	return m.Probe(ctx)
}

func (m *Monitor) Restored() <-chan struct{} { return m.restored }

func (m *Monitor) Probe(ctx context.Context) bool {
	err := m.prober.Health(ctx)
	online := err == nil

	m.mu.Lock()
	wasKnown, wasOnline := m.known, m.online
	m.known, m.online = true, online
	m.mu.Unlock()

	switch {
	case online && wasKnown && !wasOnline:
		m.log.Info("order service reachable again")
		select {
		case m.restored <- struct{}{}:
		default:
		}
	case !online && (!wasKnown || wasOnline):
		m.log.Warn("order service unreachable", "err", err)
	}
	return online
}

func (m *Monitor) Run(ctx context.Context) error {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Probe(ctx)
		}
	}
}
