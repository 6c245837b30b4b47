package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/masteraxl/flotta/pkg/agent"
	"github.com/masteraxl/flotta/pkg/config"
	"github.com/masteraxl/flotta/pkg/controller"
	"github.com/masteraxl/flotta/pkg/log"
	"github.com/masteraxl/flotta/pkg/metrics"
	"github.com/masteraxl/flotta/pkg/reconciler"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flottactld",
	Short: "flottactld is the centralized cluster workload manager's controller daemon",
	Long: `flottactld accepts batch-job RPCs, schedules pending work onto
registered nodes, supervises running jobs through an RPC fan-out agent,
and persists job-table state across restarts.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"flottactld version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(startCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the controller daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		nodeAgentPort, _ := cmd.Flags().GetInt("node-agent-port")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		haNodeID, _ := cmd.Flags().GetString("ha-node-id")
		haBindAddr, _ := cmd.Flags().GetString("ha-bind-addr")
		haBootstrap, _ := cmd.Flags().GetBool("ha-bootstrap")

		doc, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		var ha *controller.HA
		if haBindAddr != "" {
			ha = controller.NewHA(haNodeID, haBindAddr, doc.StateDir)
			if haBootstrap {
				err = ha.Bootstrap()
			} else {
				err = ha.Join()
			}
			if err != nil {
				return fmt.Errorf("starting ha: %w", err)
			}
			defer ha.Shutdown()
		}

		transport := agent.NewNetTransport(nodeAgentPort)
		ctrl, err := controller.New(controller.Options{
			Doc:         doc,
			ConfigPath:  configPath,
			Transport:   transport,
			StateDir:    doc.StateDir,
			IsSuperUser: func(uid uint32) bool { return uid == 0 },
		})
		if err != nil {
			return fmt.Errorf("building controller: %w", err)
		}

		if err := ctrl.Recover(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Logger.Warn().Err(err).Msg("flottactld: job_state recovery failed, starting with an empty table")
		}

		recon := reconciler.New(ctrl.Agent, ctrl.Nodes, reconciler.Config{
			Interval: doc.Tunables.PingInterval,
			Fanout:   doc.Tunables.DefaultFanout,
		})

		collector := metrics.NewCollector(ctrl.Jobs, ctrl.Nodes, haStatsOrNil(ha), 15*time.Second)
		collector.Start()
		defer collector.Stop()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("rpc", false, "starting")
		if ha != nil {
			metrics.RegisterComponent("raft", ha.IsLeader(), "")
		} else {
			metrics.RegisterComponent("raft", true, "ha disabled")
		}
		metrics.RegisterComponent("agent", true, "")

		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())
			http.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Logger.Error().Err(err).Msg("flottactld: metrics server error")
			}
		}()
		log.Logger.Info().Str("addr", metricsAddr).Msg("flottactld: metrics endpoint ready")

		server := controller.NewServer(ctrl)
		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(doc.ListenAddr); err != nil {
				errCh <- err
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go ctrl.Run(ctx)
		recon.Start(ctx)

		metrics.UpdateComponent("rpc", true, "ready")
		log.Logger.Info().Str("addr", doc.ListenAddr).Msg("flottactld: ready")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Logger.Info().Msg("flottactld: shutting down")
		case err := <-errCh:
			log.Logger.Error().Err(err).Msg("flottactld: rpc server failed")
		}

		recon.Stop()
		cancel()
		ctrl.Stop()
		_ = server.Stop()
		return nil
	},
}

func haStatsOrNil(ha *controller.HA) metrics.HAStats {
	if ha == nil {
		return nil
	}
	return ha
}

func init() {
	startCmd.Flags().String("config", "/etc/flottactld/flottactld.yaml", "Path to the controller configuration file")
	startCmd.Flags().Int("node-agent-port", 6818, "TCP port the per-node agent daemon listens on")
	startCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
	startCmd.Flags().String("ha-node-id", "controller-1", "Unique ID for this controller instance's Raft HA group membership")
	startCmd.Flags().String("ha-bind-addr", "", "Address for Raft HA traffic; empty disables HA and runs single-instance")
	startCmd.Flags().Bool("ha-bootstrap", false, "Bootstrap a new HA group instead of joining an existing one")
}
