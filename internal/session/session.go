// Package session implements the per-connection state machine described
// in the component design: accept -> authenticate -> stream, owning the
// peer-specific bounded send queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"picoradar/internal/metrics"
	"picoradar/internal/protocol"
	"picoradar/internal/registry"
)

// State is the Session's lifecycle stage. It is read from both the
// Session's own goroutines and, read-only, from the Broadcaster; all
// reads and writes go through atomic operations so no lock is needed.
type State int32

const (
	Handshaking State = iota
	Authenticating
	Authenticated
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Handshaking:
		return "Handshaking"
	case Authenticating:
		return "Authenticating"
	case Authenticated:
		return "Authenticated"
	case Draining:
		return "Draining"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// playerIDPattern is the conservative character set spec §4.3 requires:
// letters, digits, underscore, hyphen, dot.
var playerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.]+$`)

// ValidPlayerID reports whether id satisfies the registry's PlayerId
// shape: non-empty, at most 64 bytes, drawn from the conservative
// character set.
func ValidPlayerID(id string) bool {
	return len(id) > 0 && len(id) <= protocol.MaxPlayerIDLen && playerIDPattern.MatchString(id)
}

// Config holds the tunables a Session needs, all sourced from
// internal/config at startup.
type Config struct {
	AuthToken     string
	AuthTimeout   time.Duration
	DrainTimeout  time.Duration
	QueueCapacity int
}

// Registry is the subset of *registry.Registry a Session depends on.
type Registry interface {
	Upsert(playerID string, pose protocol.Pose, owner registry.SessionHandle)
	Remove(playerID string)
}

// Session is the server-side per-peer object: the connection, its state
// machine, and its outbound queue.
type Session struct {
	id       string // diagnostic uuid, distinct from the business PlayerId
	conn     net.Conn
	cfg      Config
	reg      Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
	state    atomic.Int32
	outbox   *outbox
	playerID atomic.Value // string
	cancel   context.CancelFunc

	drainReason atomic.Value // string
	closeOnce   atomic.Bool
	done        chan struct{}

	// OnAuthenticated, if set, is invoked once as the Session enters
	// Authenticated, before the AuthResponse is written. OnClosed, if
	// set, is invoked once the Session has fully terminated. Both are
	// called synchronously on the Session's own goroutine and must not
	// block.
	OnAuthenticated func(*Session)
	OnClosed        func(*Session)
}

// New constructs a Session for an accepted connection. Call Run to drive
// it; Run blocks until the connection is fully closed. m may be nil, in
// which case no metrics are recorded.
func New(conn net.Conn, cfg Config, reg Registry, log *slog.Logger, m *metrics.Metrics) *Session {
	s := &Session{
		id:      uuid.NewString(),
		conn:    conn,
		cfg:     cfg,
		reg:     reg,
		log:     log,
		metrics: m,
		outbox:  newOutbox(cfg.QueueCapacity),
		done:    make(chan struct{}),
	}
	s.playerID.Store("")
	s.drainReason.Store("")
	s.state.Store(int32(Handshaking))
	return s
}

// State returns the Session's current state. Safe for concurrent use.
func (s *Session) State() State {
	return State(s.state.Load())
}

// PlayerID returns the authenticated player id, or "" before
// authentication completes.
func (s *Session) PlayerID() string {
	return s.playerID.Load().(string)
}

// String implements registry.SessionHandle for logging.
func (s *Session) String() string {
	return fmt.Sprintf("session(%s,player=%s)", s.id, s.PlayerID())
}

// Supersede implements registry.SessionHandle: it transitions an
// Authenticated incumbent to Draining with the "superseded" reason. Safe
// to call more than once and never blocks.
func (s *Session) Supersede() {
	s.beginDrain("superseded")
}

// beginDrain moves the Session from Authenticating or Authenticated into
// Draining, recording reason once. Idempotent.
//
// Entering Draining is not enough on its own: readLoop is almost always
// parked inside protocol.ReadFrame(s.conn) waiting on the peer's next
// frame, and only notices a state change between reads. So beginDrain
// also interrupts that blocked read immediately by forcing the read
// deadline into the past — safe to call from any goroutine (takeover via
// Supersede, slow-consumer via Enqueue, or the auth-timeout timer), and
// it never touches the write side, so a pending flush in writeLoop is
// unaffected.
func (s *Session) beginDrain(reason string) {
	for {
		cur := State(s.state.Load())
		if cur == Draining || cur == Closed {
			return
		}
		if s.state.CompareAndSwap(int32(cur), int32(Draining)) {
			s.drainReason.Store(reason)
			// A superseded session's registry entry already belongs to
			// its successor, so it is left in place.
			if cur == Authenticated && reason != "superseded" {
				if pid := s.PlayerID(); pid != "" {
					s.reg.Remove(pid)
				}
			}
			_ = s.conn.SetReadDeadline(time.Now())
			return
		}
	}
}

// Enqueue offers payload to the Session's outbound queue, applying the
// slow-consumer policy on overflow. isRoster marks payload as a
// RosterUpdate eligible for drop-oldest eviction.
func (s *Session) Enqueue(payload []byte, isRoster bool) {
	if s.State() != Authenticated {
		return
	}
	switch s.outbox.push(payload, isRoster) {
	case rejectedSlowConsumer:
		s.log.Warn("slow consumer, draining session", "session", s.id, "player_id", s.PlayerID())
		if s.metrics != nil {
			s.metrics.SlowConsumers.Inc()
		}
		s.beginDrain("slow-consumer")
	case pushedAfterDroppingRoster:
		// Within policy; no log per spec §7 ("logged once per
		// transition, not once per drop").
	}
}

// Run drives the Session's read and write loops until the connection is
// closed, the context is cancelled, or a protocol/auth failure occurs. It
// blocks until the read loop has exited and the connection is closed; it
// waits for the write loop to exit for at most the drain timeout.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	authTimer := time.AfterFunc(s.cfg.AuthTimeout, func() {
		if s.State() == Authenticating || s.State() == Handshaking {
			s.log.Info("auth timeout", "session", s.id)
			s.beginDrain("auth-timeout")
			cancel()
		}
	})
	defer authTimer.Stop()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writeLoop(ctx)
	}()

	s.state.CompareAndSwap(int32(Handshaking), int32(Authenticating))
	s.readLoop(ctx)

	s.beginDrain("peer-closed")
	s.drainAndClose(writeDone)
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := protocol.ReadFrame(s.conn)
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrTooLarge):
				s.log.Warn("oversized message, closing", "session", s.id)
				s.beginDrain("policy-violation")
			case s.State() == Draining || s.State() == Closed:
				// The read was interrupted by beginDrain forcing the
				// deadline into the past (takeover, slow-consumer, or
				// auth-timeout); not a transport error.
			case !errors.Is(err, io.EOF):
				s.log.Info("transport read error", "session", s.id, "err", err)
			}
			return
		}
		if !s.handleFrame(payload) {
			return
		}
	}
}

// handleFrame processes one decoded frame in the context of the current
// state, returning false if the read loop should stop.
func (s *Session) handleFrame(payload []byte) bool {
	msg, err := protocol.Decode(payload)
	if err != nil {
		s.log.Warn("decode error, closing", "session", s.id, "err", err)
		s.beginDrain("policy-violation")
		return false
	}

	switch s.State() {
	case Authenticating:
		return s.handleAuthenticating(msg)
	case Authenticated:
		return s.handleAuthenticated(msg)
	default:
		return false
	}
}

func (s *Session) handleAuthenticating(msg protocol.Message) bool {
	req, ok := msg.(protocol.AuthRequest)
	if !ok {
		s.log.Warn("expected AuthRequest", "session", s.id)
		s.beginDrain("policy-violation")
		return false
	}

	if req.Token != s.cfg.AuthToken || !ValidPlayerID(req.PlayerID) {
		s.log.Info("auth rejected", "session", s.id)
		s.sendDirect(protocol.AuthResponse{OK: false, Reason: "invalid token or player_id"})
		s.beginDrain("auth-failed")
		return false
	}

	s.playerID.Store(req.PlayerID)
	s.state.Store(int32(Authenticated))
	// Open Question resolution (see DESIGN.md): register with an
	// all-zero pose rather than waiting for the first PoseUpdate.
	s.reg.Upsert(req.PlayerID, protocol.Pose{}, s)
	if s.OnAuthenticated != nil {
		s.OnAuthenticated(s)
	}
	s.sendDirect(protocol.AuthResponse{OK: true})
	s.log.Info("authenticated", "session", s.id, "player_id", req.PlayerID)
	return true
}

func (s *Session) handleAuthenticated(msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.PoseUpdate:
		s.reg.Upsert(s.PlayerID(), m.Pose, s)
		return true
	case protocol.AuthRequest:
		s.log.Warn("duplicate AuthRequest", "session", s.id)
		s.beginDrain("policy-violation")
		return false
	default:
		s.log.Warn("unexpected message for authenticated session", "session", s.id, "kind", msg.Kind())
		s.beginDrain("policy-violation")
		return false
	}
}

// sendDirect writes a single message synchronously, bypassing the
// outbound queue. Used only for the AuthResponse, which must reach the
// peer (or attempt to) even if the session is about to close.
func (s *Session) sendDirect(msg protocol.Message) {
	payload := protocol.Encode(msg)
	_ = s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := protocol.WriteFrame(s.conn, payload); err != nil {
		s.log.Info("write error sending direct message", "session", s.id, "err", err)
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		entry, ok := s.outbox.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}
		_ = s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := protocol.WriteFrame(s.conn, entry.payload); err != nil {
			s.log.Info("write error", "session", s.id, "err", err)
			return
		}
	}
}

// drainAndClose flushes the outbound queue (best-effort) up to the
// configured drain timeout, then closes the connection.
func (s *Session) drainAndClose(writeDone <-chan struct{}) {
	deadline := time.After(s.cfg.DrainTimeout)
	for s.outbox.len() > 0 {
		select {
		case <-deadline:
			goto closeConn
		case <-time.After(10 * time.Millisecond):
		}
	}
closeConn:
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-writeDone:
	case <-time.After(s.cfg.DrainTimeout):
	}
	s.state.Store(int32(Closed))
	_ = s.conn.Close()
	if !s.closeOnce.Swap(true) {
		if s.OnClosed != nil {
			s.OnClosed(s)
		}
		close(s.done)
	}
}

// Done returns a channel closed once the Session has fully terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
