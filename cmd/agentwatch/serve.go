package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentwatch/internal/config"
	"agentwatch/internal/relay"
	"agentwatch/internal/telemetry"
	"agentwatch/internal/web"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll all sources and serve the aggregated state over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 7777, "Port for the HTTP API (bound to 127.0.0.1)")
	serveCmd.Flags().Bool("relay-endpoint", false, "Also accept relayed snapshots on /relay")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("relay.endpoint", serveCmd.Flags().Lookup("relay-endpoint"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}
	logger := telemetry.Component("serve")

	eng, err := newEngine(settings, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	opts := []web.Option{
		web.WithVersion(version),
		web.WithMetrics(eng.metrics),
		web.WithLogger(telemetry.Component("web")),
	}
	if settings.Relay.Endpoint {
		opts = append(opts, web.WithRelayEndpoint(relay.NewHandler(settings.Relay.Token)))
	}
	srv := web.NewServer(eng.store, eng.aggregator, settings.Port, opts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	done := make(chan struct{})
	go func() {
		eng.run(runCtx)
		close(done)
	}()

	logger.Info("agentwatch serving", "port", settings.Port, "sources", len(eng.sources.Adapters), "interval", settings.PollInterval)

	select {
	case <-runCtx.Done():
	case err = <-errCh:
		if err != nil {
			err = fmt.Errorf("http server failed: %w", err)
		}
	}
	cancel()
	<-done

	shutdownCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer stopCancel()
	if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("http server shutdown failed", "error", stopErr)
	}
	return err
}
