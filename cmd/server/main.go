// Command picoradar-server runs the PICORadar position-sharing service:
// the Listener, Registry, Broadcaster, Discovery responder, and optional
// status HTTP surface, wired together under one shutdown context.
package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"picoradar/internal/broadcaster"
	"picoradar/internal/config"
	"picoradar/internal/discovery"
	"picoradar/internal/listener"
	"picoradar/internal/lockfile"
	"picoradar/internal/metrics"
	"picoradar/internal/registry"
	"picoradar/internal/session"
	"picoradar/internal/statusapi"
)

func main() {
	root := newRootCmd()
	root.AddCommand(newGenTokenCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var statusAddr string

	cmd := &cobra.Command{
		Use:   "picoradar-server [port]",
		Short: "Run the PICORadar position-sharing service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			if len(args) == 1 {
				port, err := strconv.Atoi(args[0])
				if err != nil {
					fmt.Fprintf(os.Stderr, "invalid port argument %q: %v\n", args[0], err)
					return err
				}
				cfg.ServerPort = port
			}
			return run(cfg, statusAddr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a JSON config file")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "optional address for the /healthz, /metrics, /api/status HTTP surface (disabled if empty)")
	return cmd
}

func newGenTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-token",
		Short: "Print a random auth token suitable for auth.token",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(buf))
			return nil
		},
	}
}

func run(cfg config.Config, statusAddr string) error {
	logger := newLogger(cfg.LoggingLevel)

	lockPath := filepath.Join(os.TempDir(), lockfile.DefaultName)
	lk, err := lockfile.Acquire(lockPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer lk.Unlock()

	reg := registry.New()
	m := metrics.New()
	bc := broadcaster.New(reg, time.Duration(cfg.BroadcastIntervalMs)*time.Millisecond, logger, m)

	sessionCfg := session.Config{
		AuthToken:     cfg.AuthToken,
		AuthTimeout:   time.Duration(cfg.SessionAuthTimeoutMs) * time.Millisecond,
		DrainTimeout:  time.Second,
		QueueCapacity: cfg.SessionQueueCapacity,
	}
	addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
	ln, err := listener.New(addr, sessionCfg, reg, logger, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bind failed: %v\n", err)
		return err
	}
	logger.Info("listening", "addr", addr)

	disc, err := discovery.New(cfg.DiscoveryUDPPort, "0.0.0.0", cfg.ServerPort, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovery bind failed: %v\n", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bc.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return disc.Run(gctx)
	})
	g.Go(func() error {
		return ln.Run(gctx,
			func(s *session.Session) {
				bc.AddSink(s)
				m.PlayersGauge.Set(float64(reg.Count()))
			},
			func(s *session.Session) {
				bc.RemoveSink(s)
				m.PlayersGauge.Set(float64(reg.Count()))
			},
		)
	})

	var statusSrv *statusapi.Server
	if statusAddr != "" {
		statusSrv = statusapi.New(reg, bc, disc, m)
		g.Go(func() error {
			return statusSrv.Start(statusAddr)
		})
		g.Go(func() error {
			return statusSrv.Shutdown(gctx.Done())
		})
	}

	g.Go(func() error {
		runStdinCommands(gctx, stop, reg, bc, disc)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Warn("shutting down after error", "err", err)
	}
	return nil
}

// runStdinCommands implements spec §6's line-oriented stdin command
// surface: status prints a summary line; quit/exit triggers graceful
// shutdown via stop (the same path SIGINT takes).
func runStdinCommands(ctx context.Context, stop context.CancelFunc, reg *registry.Registry, bc *broadcaster.Broadcaster, disc *discovery.Responder) {
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch line {
			case "status":
				ticks, sent, bytesSent := bc.Stats()
				var discoveryRequests uint64
				if disc != nil {
					discoveryRequests = disc.Requests()
				}
				fmt.Println(metrics.StatusLine(reg.Count(), ticks, sent, bytesSent, discoveryRequests))
			case "quit", "exit":
				stop()
				return
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
