// Package clientdriver implements the peer-side mirror of Session: a
// small state machine that connects, authenticates, streams poses, and
// dispatches received rosters to a registered callback.
package clientdriver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"picoradar/internal/protocol"
)

// State mirrors the client-side lifecycle of spec §4.6.
type State int32

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Authenticating:
		return "Authenticating"
	case Connected:
		return "Connected"
	case Disconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// HandshakeTimeout bounds DNS, transport connect, and the first
// AuthResponse cumulatively, per spec §4.6.
const HandshakeTimeout = 5 * time.Second

// Driver is a single client connection to a PICORadar server.
type Driver struct {
	state   atomic.Int32
	connMu  sync.Mutex
	conn    net.Conn
	connecting atomic.Bool

	rosterMu sync.RWMutex
	onRoster func(protocol.RosterUpdate)

	readDone chan struct{}
}

// New returns a Driver in the Disconnected state.
func New() *Driver {
	d := &Driver{readDone: make(chan struct{})}
	d.state.Store(int32(Disconnected))
	return d
}

// State returns the Driver's current state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// OnRoster registers the callback invoked once per received
// RosterUpdate. The callback runs on the Driver's internal read loop and
// must be short and non-blocking.
func (d *Driver) OnRoster(cb func(protocol.RosterUpdate)) {
	d.rosterMu.Lock()
	defer d.rosterMu.Unlock()
	d.onRoster = cb
}

// Connect dials addr, authenticates with playerID/token, and blocks
// until the AuthResponse arrives or HandshakeTimeout elapses. A second
// concurrent Connect on the same Driver fails immediately.
func (d *Driver) Connect(ctx context.Context, addr, playerID, token string) error {
	if !d.connecting.CompareAndSwap(false, true) {
		return fmt.Errorf("clientdriver: connect already in progress")
	}
	defer d.connecting.Store(false)

	d.state.Store(int32(Connecting))

	normalized, err := NormalizeAddr(addr)
	if err != nil {
		d.state.Store(int32(Disconnected))
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", normalized)
	if err != nil {
		d.state.Store(int32(Disconnected))
		return fmt.Errorf("clientdriver: dial %s: %w", normalized, err)
	}

	d.connMu.Lock()
	d.conn = conn
	d.connMu.Unlock()

	d.state.Store(int32(Authenticating))

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	payload := protocol.Encode(protocol.AuthRequest{PlayerID: playerID, Token: token})
	if err := protocol.WriteFrame(conn, payload); err != nil {
		d.teardown()
		d.state.Store(int32(Disconnected))
		return fmt.Errorf("clientdriver: send AuthRequest: %w", err)
	}

	respPayload, err := protocol.ReadFrame(conn)
	if err != nil {
		d.teardown()
		d.state.Store(int32(Disconnected))
		return fmt.Errorf("clientdriver: read AuthResponse: %w", err)
	}
	msg, err := protocol.Decode(respPayload)
	if err != nil {
		d.teardown()
		d.state.Store(int32(Disconnected))
		return fmt.Errorf("clientdriver: decode AuthResponse: %w", err)
	}
	resp, ok := msg.(protocol.AuthResponse)
	if !ok {
		d.teardown()
		d.state.Store(int32(Disconnected))
		return fmt.Errorf("clientdriver: expected AuthResponse, got %T", msg)
	}
	if !resp.OK {
		d.teardown()
		d.state.Store(int32(Disconnected))
		return fmt.Errorf("clientdriver: auth rejected: %s", resp.Reason)
	}

	_ = conn.SetDeadline(time.Time{})
	d.state.Store(int32(Connected))
	d.readDone = make(chan struct{})
	go d.readLoop(conn)
	return nil
}

func (d *Driver) readLoop(conn net.Conn) {
	defer close(d.readDone)
	for {
		payload, err := protocol.ReadFrame(conn)
		if err != nil {
			if d.State() != Disconnecting {
				d.state.Store(int32(Disconnected))
			}
			return
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			continue
		}
		if roster, ok := msg.(protocol.RosterUpdate); ok {
			d.rosterMu.RLock()
			cb := d.onRoster
			d.rosterMu.RUnlock()
			if cb != nil {
				cb(roster)
			}
		}
	}
}

// SendPose fire-and-forget sends a pose update. Silently dropped if the
// Driver is not Connected.
func (d *Driver) SendPose(pose protocol.Pose) {
	if d.State() != Connected {
		return
	}
	d.connMu.Lock()
	conn := d.conn
	d.connMu.Unlock()
	if conn == nil {
		return
	}
	payload := protocol.Encode(protocol.PoseUpdate{Pose: pose})
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = protocol.WriteFrame(conn, payload)
}

// Disconnect is idempotent. It closes the connection and waits for the
// internal read loop to exit for at most one second; if the loop has not
// exited by then, Disconnect returns without it.
func (d *Driver) Disconnect() {
	if d.State() == Disconnected {
		return
	}
	d.state.Store(int32(Disconnecting))
	d.teardown()
	select {
	case <-d.readDone:
	case <-time.After(time.Second):
	}
	d.state.Store(int32(Disconnected))
}

func (d *Driver) teardown() {
	d.connMu.Lock()
	conn := d.conn
	d.conn = nil
	d.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

var errNotConnected = errors.New("clientdriver: not connected")
