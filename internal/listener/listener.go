// Package listener implements the TCP accept loop that spawns a Session
// per inbound connection.
package listener

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"picoradar/internal/metrics"
	"picoradar/internal/session"
)

// Registry is the subset of *registry.Registry a spawned Session depends
// on.
type Registry = session.Registry

// Listener accepts inbound connections on a bound TCP address and spawns
// a Session for each. A single accept error is never fatal; only the
// listener itself closing stops the loop.
type Listener struct {
	ln      net.Listener
	cfg     session.Config
	reg     Registry
	log     *slog.Logger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// New binds addr and returns a Listener ready to Run. m may be nil, in
// which case spawned Sessions record no metrics.
func New(addr string, cfg session.Config, reg Registry, log *slog.Logger, m *metrics.Metrics) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, cfg: cfg, reg: reg, log: log, metrics: m}, nil
}

// Addr returns the bound address, useful when addr was ":0".
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Run accepts connections and spawns a Session for each until ctx is
// cancelled, at which point it stops accepting and returns once every
// spawned Session has terminated. onAuthenticated and onClosed, when
// non-nil, are wired as the spawned Session's OnAuthenticated/OnClosed
// hooks — the Listener's caller uses them to register/deregister the
// Session with the Broadcaster.
func (l *Listener) Run(ctx context.Context, onAuthenticated, onClosed func(*session.Session)) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				break
			}
			l.log.Warn("accept error, continuing", "err", err)
			continue
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			// Mirrors the listener's own accept-socket shutdown above:
			// Session.Run only notices ctx cancellation between reads, so
			// force the blocked read to unblock by closing the connection
			// directly once the context ends.
			go func() {
				<-ctx.Done()
				_ = conn.Close()
			}()
			s := session.New(conn, l.cfg, l.reg, l.log, l.metrics)
			s.OnAuthenticated = onAuthenticated
			s.OnClosed = onClosed
			s.Run(ctx)
		}()
	}
	l.wg.Wait()
	return nil
}
