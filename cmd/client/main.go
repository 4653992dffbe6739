// Command picoradar-client is a minimal interactive sample client
// exercising internal/clientdriver: it connects, streams a synthetic
// pose on a fixed cadence, and prints each received roster.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"picoradar/internal/clientdriver"
	"picoradar/internal/protocol"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		playerID string
		token    string
		sceneID  string
		hz       float64
	)

	cmd := &cobra.Command{
		Use:   "picoradar-client",
		Short: "Connect to a PICORadar server and stream a synthetic pose",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			d := clientdriver.New()
			d.OnRoster(func(r protocol.RosterUpdate) {
				fmt.Printf("roster: %d player(s)\n", len(r.Players))
				for _, p := range r.Players {
					fmt.Printf("  %s pos=(%.2f,%.2f,%.2f) scene=%s\n", p.PlayerID, p.Pose.PosX, p.Pose.PosY, p.Pose.PosZ, p.Pose.SceneID)
				}
			})

			if err := d.Connect(ctx, addr, playerID, token); err != nil {
				return err
			}
			defer d.Disconnect()

			ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
			defer ticker.Stop()

			var t float64
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					t += 1.0 / hz
					d.SendPose(protocol.Pose{
						PosX:        float32(math.Sin(t)),
						PosY:        0,
						PosZ:        float32(math.Cos(t)),
						RotW:        1,
						SceneID:     sceneID,
						TimestampMs: time.Now().UnixMilli(),
					})
				}
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:11451", "server address (host, host:port, or picoradar://host:port)")
	cmd.Flags().StringVar(&playerID, "player-id", "", "player id to authenticate as (required)")
	cmd.Flags().StringVar(&token, "token", "", "shared auth token (required)")
	cmd.Flags().StringVar(&sceneID, "scene", "default", "scene id to report in poses")
	cmd.Flags().Float64Var(&hz, "rate", 20, "pose send rate in Hz")
	cmd.MarkFlagRequired("player-id")
	cmd.MarkFlagRequired("token")
	return cmd
}
