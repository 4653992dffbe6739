// Package discovery implements the LAN discovery responder: a UDP
// listener that answers a fixed probe datagram with the service
// endpoint, grounded on the original PICORadar discovery protocol.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
)

// Request is the literal payload a probe must send.
const Request = "PICO_RADAR_DISCOVERY_REQUEST"

// ResponsePrefix begins every reply.
const ResponsePrefix = "PICO_RADAR_SERVER:"

// Responder answers discovery probes on a UDP port.
type Responder struct {
	conn        *net.UDPConn
	servicePort int
	advertise   string
	log         *slog.Logger

	requests atomic.Uint64
}

// New binds a UDP socket on udpPort. advertiseHost is the host included
// in replies; use "0.0.0.0" to tell the peer to use the reply packet's
// source address instead.
func New(udpPort int, advertiseHost string, servicePort int, log *slog.Logger) (*Responder, error) {
	addr := &net.UDPAddr{Port: udpPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Responder{conn: conn, servicePort: servicePort, advertise: advertiseHost, log: log}, nil
}

// Addr returns the bound UDP address.
func (r *Responder) Addr() net.Addr { return r.conn.LocalAddr() }

// Run reads datagrams until ctx is cancelled. Garbage input is silently
// dropped, never logged above DEBUG and never fatal — the responder must
// not crash on malformed probes.
func (r *Responder) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = r.conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		n, src, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Debug("discovery read error", "err", err)
			continue
		}
		if string(buf[:n]) != Request {
			continue
		}
		r.requests.Add(1)
		reply := fmt.Sprintf("%s%s:%d", ResponsePrefix, r.advertise, r.servicePort)
		if _, err := r.conn.WriteToUDP([]byte(reply), src); err != nil {
			r.log.Debug("discovery reply error", "err", err)
		}
	}
}

// Requests returns the number of valid probes answered so far.
func (r *Responder) Requests() uint64 { return r.requests.Load() }
