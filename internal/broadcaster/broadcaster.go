// Package broadcaster implements the periodic roster fan-out task: the
// only component that turns registry mutations into outbound traffic.
package broadcaster

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"picoradar/internal/metrics"
	"picoradar/internal/protocol"
)

// Registry is the subset of *registry.Registry the Broadcaster depends
// on.
type Registry interface {
	Snapshot() []protocol.RosterEntry
	Version() uint64
}

// Sink receives the encoded RosterUpdate payload once per non-idle tick.
// Implementations must not block; Session.Enqueue satisfies this.
type Sink interface {
	Enqueue(payload []byte, isRoster bool)
}

// Broadcaster wakes on a fixed period and, unless nothing has changed
// since the last tick, snapshots the registry, encodes the roster once,
// and fans it out to every currently registered Sink.
type Broadcaster struct {
	reg      Registry
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu          sync.RWMutex
	sinks       map[Sink]struct{}
	lastVersion uint64

	ticks     atomic.Uint64
	sentTicks atomic.Uint64
	bytesSent atomic.Uint64
}

// New constructs a Broadcaster. Call Run to start its periodic loop. m
// may be nil, in which case no Prometheus metrics are recorded; the
// Stats-based counters are always kept regardless.
func New(reg Registry, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		reg:      reg,
		interval: interval,
		log:      log,
		metrics:  m,
		sinks:    make(map[Sink]struct{}),
	}
}

// AddSink registers a Sink (normally a *session.Session newly entered
// Authenticated) to receive future roster ticks.
func (b *Broadcaster) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[s] = struct{}{}
	// A newly authenticated session counts as a wake condition in its
	// own right (spec §4.4); force the next tick to be non-idle by
	// invalidating the cached version. The complement of the current
	// version is a value the monotonic counter never reaches, so repeated
	// AddSink calls between ticks keep the next tick non-idle.
	b.lastVersion = ^b.reg.Version()
}

// RemoveSink deregisters a Sink, normally once its Session leaves
// Authenticated.
func (b *Broadcaster) RemoveSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, s)
}

// Run blocks, ticking at the configured interval, until ctx is
// cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.tick()
		}
	}
}

func (b *Broadcaster) tick() {
	b.ticks.Add(1)
	if b.metrics != nil {
		b.metrics.BroadcastTicks.Inc()
	}
	version := b.reg.Version()

	b.mu.RLock()
	unchanged := version == b.lastVersion
	b.mu.RUnlock()
	if unchanged {
		return
	}

	snapshot := b.reg.Snapshot()
	payload := protocol.Encode(protocol.RosterUpdate{Players: snapshot})

	b.mu.Lock()
	b.lastVersion = version
	sinks := make([]Sink, 0, len(b.sinks))
	for s := range b.sinks {
		sinks = append(sinks, s)
	}
	b.mu.Unlock()

	for _, s := range sinks {
		s.Enqueue(payload, true)
	}

	b.sentTicks.Add(1)
	sentBytes := uint64(len(payload)) * uint64(len(sinks))
	b.bytesSent.Add(sentBytes)
	if b.metrics != nil {
		b.metrics.BroadcastSentTicks.Inc()
		b.metrics.BytesSent.Add(float64(sentBytes))
	}
}

// Stats returns simple counters for status/metrics reporting.
func (b *Broadcaster) Stats() (ticks, sentTicks, bytesSent uint64) {
	return b.ticks.Load(), b.sentTicks.Load(), b.bytesSent.Load()
}
