package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentwatch/internal/aggregator"
	"agentwatch/internal/alert"
	"agentwatch/internal/config"
	"agentwatch/internal/db"
	"agentwatch/internal/metrics"
	"agentwatch/internal/notify"
	"agentwatch/internal/polling"
	"agentwatch/internal/relay"
	"agentwatch/internal/snapshot"
	"agentwatch/internal/sources"
)

// engine is the in-process monitor shared by serve and watch.
type engine struct {
	settings   config.Settings
	logger     *slog.Logger
	sources    *sources.Set
	store      *snapshot.Store
	metrics    *metrics.Metrics
	history    db.Store
	alerts     *alert.Engine
	aggregator *aggregator.Aggregator
}

// newEngine wires sources, the aggregator, alerting and history from
// settings. Nothing is polled until run is called.
func newEngine(settings config.Settings, logger *slog.Logger) (*engine, error) {
	set, err := sources.Build(settings, logger)
	if err != nil {
		return nil, err
	}

	history, err := db.NewStore(db.StoreConfig{Type: settings.History.Type, ConnectionString: settings.History.DSN})
	if err != nil {
		set.Close()
		return nil, fmt.Errorf("failed to open alert history: %w", err)
	}

	e := &engine{
		settings: settings,
		logger:   logger,
		sources:  set,
		store:    snapshot.NewStore(),
		metrics:  metrics.NewMetrics(),
		history:  history,
	}

	alertOpts := []alert.Option{
		alert.WithLogger(logger.With("component", "alert")),
		alert.WithObserver(e.metrics),
	}
	if settings.Alerts.Cooldown > 0 {
		alertOpts = append(alertOpts, alert.WithCooldown(settings.Alerts.Cooldown))
	}
	if settings.Alerts.SendTimeout > 0 {
		alertOpts = append(alertOpts, alert.WithSendTimeout(settings.Alerts.SendTimeout))
	}
	if settings.StateTTL > 0 {
		alertOpts = append(alertOpts, alert.WithStateTTL(settings.StateTTL))
	}
	if history != nil {
		alertOpts = append(alertOpts, alert.WithRecorder(history))
	}
	e.alerts = alert.NewEngine(notify.BuildChannels(settings.Channels), config.AlertRules(), alertOpts...)

	aggOpts := []aggregator.Option{
		aggregator.WithConfig(aggregator.Config{
			CostPerMillion: settings.CostPerMillion,
			ActivityLimit:  aggregator.DefaultActivityLimit,
			Retention:      settings.Retention,
			StateTTL:       settings.StateTTL,
		}),
		aggregator.WithLogger(logger.With("component", "aggregator")),
		aggregator.WithAlerts(e.alerts),
		aggregator.WithPublisher(e.store),
		aggregator.WithObserver(e.metrics),
	}
	if pub := relay.NewPublisher(settings.Relay.URL, settings.Relay.Token, logger.With("component", "relay")); pub != nil {
		aggOpts = append(aggOpts, aggregator.WithRelay(pub))
	}
	e.aggregator = aggregator.New(set.Adapters, aggOpts...)
	return e, nil
}

// run polls until ctx is cancelled.
func (e *engine) run(ctx context.Context) {
	cfg := &polling.Config{Interval: e.settings.PollInterval}
	polling.NewScheduler(cfg, func(ctx context.Context) {
		e.aggregator.RunCycle(ctx)
	}).WithLogger(e.logger.With("component", "scheduler")).Start(ctx)
}

func (e *engine) Close() error {
	var errs []error
	if err := e.sources.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.history != nil {
		if err := e.history.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
