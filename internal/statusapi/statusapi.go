// Package statusapi exposes a small optional HTTP surface — health,
// Prometheus metrics, and a JSON status summary — grounded on the
// teacher's own echo-based API server in api.go, narrowed to the
// read-only routes this service needs.
package statusapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"picoradar/internal/broadcaster"
	"picoradar/internal/discovery"
	"picoradar/internal/metrics"
	"picoradar/internal/registry"
)

// Server is the optional status/metrics HTTP server.
type Server struct {
	echo *echo.Echo
	reg  *registry.Registry
	bc   *broadcaster.Broadcaster
	disc *discovery.Responder
	m    *metrics.Metrics
}

// New builds the echo application and registers its routes. Call
// (*Server).Start to actually listen.
func New(reg *registry.Registry, bc *broadcaster.Broadcaster, disc *discovery.Responder, m *metrics.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, reg: reg, bc: bc, disc: disc, m: m}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.m.Registry, promhttp.HandlerOpts{})))
	s.echo.GET("/api/status", s.handleStatus)
}

type statusResponse struct {
	Players           int    `json:"players"`
	BroadcastTicks    uint64 `json:"broadcast_ticks"`
	BroadcastSent     uint64 `json:"broadcast_sent_ticks"`
	BytesSent         uint64 `json:"bytes_sent"`
	DiscoveryRequests uint64 `json:"discovery_requests"`
}

func (s *Server) handleStatus(c echo.Context) error {
	ticks, sent, bytesSent := s.bc.Stats()
	var discoveryRequests uint64
	if s.disc != nil {
		discoveryRequests = s.disc.Requests()
	}
	s.m.PlayersGauge.Set(float64(s.reg.Count()))
	return c.JSON(http.StatusOK, statusResponse{
		Players:           s.reg.Count(),
		BroadcastTicks:    ticks,
		BroadcastSent:     sent,
		BytesSent:         bytesSent,
		DiscoveryRequests: discoveryRequests,
	})
}

// Start listens on addr. It blocks until the server is shut down.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown waits for ctxDone to be closed, then closes the server
// immediately, including any active connections.
func (s *Server) Shutdown(ctxDone <-chan struct{}) error {
	<-ctxDone
	return s.echo.Close()
}
