package metrics

import (
	"strings"
	"testing"
)

func TestStatusLineFormatsBytes(t *testing.T) {
	line := StatusLine(3, 100, 40, 2048, 5)
	if line == "" {
		t.Fatal("expected non-empty status line")
	}
	if !strings.Contains(line, "bytes_sent=2.0 kB") {
		t.Fatalf("status line %q does not contain humanized byte count", line)
	}
}

func TestNewRegistersCollectorsWithoutPanic(t *testing.T) {
	m := New()
	if m.Registry == nil {
		t.Fatal("expected non-nil registry")
	}
	m.PlayersGauge.Set(3)
	m.BroadcastTicks.Inc()
}
