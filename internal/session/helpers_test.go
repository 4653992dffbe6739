package session

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"picoradar/internal/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sendMsg(t *testing.T, conn net.Conn, msg protocol.Message) {
	t.Helper()
	payload := protocol.Encode(msg)
	if err := protocol.WriteFrame(conn, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
}

func recvMsg(t *testing.T, conn net.Conn) protocol.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	msg, err := protocol.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return msg
}

func writeOversizedFrame(conn net.Conn, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	var header [4]byte
	header[0] = byte(len(payload) >> 24)
	header[1] = byte(len(payload) >> 16)
	header[2] = byte(len(payload) >> 8)
	header[3] = byte(len(payload))
	if _, err := conn.Write(header[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

func waitForState(t *testing.T, s *Session, want ...State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cur := s.State()
		for _, w := range want {
			if cur == w {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session did not reach state %v, stuck at %v", want, s.State())
}
