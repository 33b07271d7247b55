package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/config"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/logging"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/metrics"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/node"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/sender"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/station"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

var rootCmd = &cobra.Command{
	Use:   "skylink",
	Short: "Emergency mesh relay network",
	Long: `SkyLink — disaster-area emergency message relay.

Victim devices submit reports that hop through relay nodes toward a base
station, with priority-ordered delivery, duplicate suppression, and failover
to alternate neighbors when a hop is unreachable. Delivery is best-effort.`,
}

// ─── node ────────────────────────────────────────────────────────────────────

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a relay node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		log, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		met := metrics.New("skylink")
		if cfg.MetricsListen != "" {
			go func() {
				if err := met.Serve(cfg.MetricsListen); err != nil {
					log.Warn("metrics endpoint failed", zap.Error(err))
				}
			}()
		}

		n := node.New(node.Config{
			Listen:      cfg.Listen,
			Neighbors:   cfg.Neighbors,
			Delay:       cfg.TransmissionDelay(),
			MaxAttempts: cfg.MaxRetries,
			Backoff:     cfg.RetryBackoff(),
			Timeout:     cfg.Timeout(),
			Workers:     cfg.Workers,
			Log:         log,
			Metrics:     met,
		})
		if err := n.Start(); err != nil {
			return err
		}
		defer n.Stop()

		log.Info("relay node ready",
			zap.String("listen", cfg.Listen),
			zap.Int("neighbors", len(cfg.Neighbors)),
			zap.Int("workers", cfg.Workers))

		waitForSignal()
		log.Info("shutting down")
		return nil
	},
}

// ─── station ─────────────────────────────────────────────────────────────────

var stationCmd = &cobra.Command{
	Use:   "station",
	Short: "Run the base station (rescue control center)",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		dataDir, _ := cmd.Flags().GetString("data")
		level, _ := cmd.Flags().GetString("log-level")

		log, err := logging.New(level)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		s, err := station.New(dataDir, log)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Start(listen); err != nil {
			return err
		}
		fmt.Printf("Base station listening on %s\n", s.Addr())
		fmt.Printf("Messages persisted under %s\n\n", dataDir)

		waitForSignal()
		return s.PrintStats()
	},
}

// ─── send ────────────────────────────────────────────────────────────────────

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an emergency report into the mesh",
	Long: `Send an emergency report to the first relay node.

With --name, --location and --text the report is sent directly; otherwise an
interactive prompt collects the details.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		name, _ := cmd.Flags().GetString("name")
		location, _ := cmd.Flags().GetString("location")
		text, _ := cmd.Flags().GetString("text")
		prioStr, _ := cmd.Flags().GetString("priority")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		var msg wire.Message
		if name != "" && location != "" && text != "" {
			priority, err := wire.ParsePriority(prioStr)
			if err != nil {
				return err
			}
			msg = wire.New(name, location, text, priority)
		} else {
			var err error
			msg, err = sender.Prompt(os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := sender.New(timeout).Send(ctx, to, msg); err != nil {
			return err
		}

		fmt.Printf("\n✓ Report accepted by %s\n", to)
		fmt.Printf("  Message ID : %s\n", msg.ID)
		fmt.Printf("  Priority   : %s\n", msg.Priority)
		fmt.Println("\nThe report will be relayed toward the base station (best effort).")
		return nil
	},
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

func init() {
	nodeCmd.Flags().String("config", "node.yml", "Path to the node configuration file")

	stationCmd.Flags().String("listen", "0.0.0.0:5000", "TCP listen address")
	stationCmd.Flags().String("data", "./data", "Directory for the message database")
	stationCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")

	sendCmd.Flags().String("to", "127.0.0.1:5001", "Address of the first relay node")
	sendCmd.Flags().String("name", "", "Sender name")
	sendCmd.Flags().String("location", "", "Sender location")
	sendCmd.Flags().String("text", "", "Emergency message text")
	sendCmd.Flags().String("priority", "MEDIUM", "Priority (HIGH, MEDIUM, LOW)")
	sendCmd.Flags().Duration("timeout", 5*time.Second, "Send timeout")

	rootCmd.AddCommand(nodeCmd, stationCmd, sendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
