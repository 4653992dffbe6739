package broadcaster

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"picoradar/internal/protocol"
	"picoradar/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakeSink) Enqueue(payload []byte, isRoster bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func TestNoOpWhenRegistryUnchanged(t *testing.T) {
	reg := registry.New()
	b := New(reg, 10*time.Millisecond, testLogger(), nil)
	sink := &fakeSink{}
	b.AddSink(sink) // adding a sink forces one non-idle tick

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	time.Sleep(60 * time.Millisecond)
	n1 := sink.count()
	if n1 == 0 {
		t.Fatal("expected at least one tick after AddSink")
	}
	time.Sleep(60 * time.Millisecond)
	n2 := sink.count()
	if n2 != n1 {
		t.Fatalf("expected no further ticks once registry is unchanged, got %d -> %d", n1, n2)
	}
}

func TestBroadcastsOnRegistryChange(t *testing.T) {
	reg := registry.New()
	b := New(reg, 10*time.Millisecond, testLogger(), nil)
	sink := &fakeSink{}
	b.AddSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	reg.Upsert("alice", protocol.Pose{PosX: 1}, nil)
	time.Sleep(30 * time.Millisecond)

	if sink.count() < 2 {
		t.Fatalf("expected at least 2 ticks (add-sink + registry change), got %d", sink.count())
	}
}

func TestZeroSessionsNoOp(t *testing.T) {
	reg := registry.New()
	b := New(reg, 10*time.Millisecond, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)
	time.Sleep(40 * time.Millisecond)

	ticks, sentTicks, _ := b.Stats()
	if ticks == 0 {
		t.Fatal("expected ticks to have occurred")
	}
	if sentTicks != 0 {
		t.Fatalf("expected 0 sent ticks with no sessions and no changes, got %d", sentTicks)
	}
}
