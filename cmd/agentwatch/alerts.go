package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"agentwatch/internal/alert"
	"agentwatch/internal/config"
	"agentwatch/internal/db"
	"agentwatch/internal/notify"
	"agentwatch/internal/telemetry"
	"agentwatch/internal/utils"

	"github.com/spf13/cobra"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Test alert delivery and inspect alert history",
}

var alertsTestCmd = &cobra.Command{
	Use:   "test <event>",
	Short: "Send a synthetic alert through the channels routed for an event",
	Long: `Send a synthetic alert through the channels the configured rule for
<event> routes to. Events: agent_completed, agent_error, agent_started,
provider_degraded. Cooldowns and the alerts.enabled switch are bypassed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := alert.EventKind(args[0])
		if !knownEvent(kind) {
			return fmt.Errorf("unknown event %q (expected one of %s)", args[0], eventNames())
		}
		settings, err := config.Current()
		if err != nil {
			return err
		}

		var names []string
		if only, _ := cmd.Flags().GetStringSlice("channel"); len(only) > 0 {
			names = only
		} else if rule, ok := settings.Alerts.Engine().Rule(kind); ok {
			names = rule.Channels
		}
		if len(names) == 0 {
			return fmt.Errorf("no channels are routed for %s; add them to alerts.rules or pass --channel", kind)
		}

		eng := alert.NewEngine(notify.BuildChannels(settings.Channels), config.AlertRules(),
			alert.WithLogger(telemetry.Component("alert")))
		msg := notify.Message{
			Title: "agentwatch test alert: " + string(kind),
			Body:  "This is a test of the " + string(kind) + " alert route, sent at " + time.Now().Format(time.RFC3339) + ".",
		}
		failures := eng.Dispatch(cmd.Context(), names, msg)

		out := cmd.OutOrStdout()
		for _, name := range names {
			if err, failed := failures[name]; failed {
				fmt.Fprintf(out, "FAIL  %s: %v\n", name, err)
			} else {
				fmt.Fprintf(out, "OK    %s\n", name)
			}
		}
		if len(failures) > 0 {
			return fmt.Errorf("%d of %d channels failed", len(failures), len(names))
		}
		return nil
	},
}

var alertsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently fired alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetString("since")
		var cutoff time.Time
		if since != "" {
			var err error
			if cutoff, err = utils.ParseSince(since, time.Now()); err != nil {
				return err
			}
		}
		settings, err := config.Current()
		if err != nil {
			return err
		}
		store, err := db.NewStore(db.StoreConfig{Type: settings.History.Type, ConnectionString: settings.History.DSN})
		if err != nil {
			return fmt.Errorf("failed to open alert history: %w", err)
		}
		out := cmd.OutOrStdout()
		if store == nil {
			fmt.Fprintln(out, "Alert history is disabled (history.type=none).")
			return nil
		}
		defer store.Close()

		records, err := store.RecentAlerts(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if !cutoff.IsZero() {
			kept := records[:0]
			for _, r := range records {
				if !r.FiredAt.Before(cutoff) {
					kept = append(kept, r)
				}
			}
			records = kept
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No alerts have fired yet.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "FIRED\tWHEN\tEVENT\tENTITY\tCHANNELS\tFAILED\tTITLE")
		now := time.Now()
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.FiredAt.Local().Format("2006-01-02 15:04:05"), utils.Ago(r.FiredAt, now), r.Event, r.Entity,
				strings.Join(r.Channels, ","), strings.Join(r.Failed, ","), r.Title)
		}
		return w.Flush()
	},
}

func knownEvent(kind alert.EventKind) bool {
	for _, k := range alert.AllEvents {
		if k == kind {
			return true
		}
	}
	return false
}

func eventNames() string {
	names := make([]string, 0, len(alert.AllEvents))
	for _, k := range alert.AllEvents {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func init() {
	alertsTestCmd.Flags().StringSlice("channel", nil, "Send to these channels instead of the rule's")
	alertsHistoryCmd.Flags().Int("limit", db.DefaultHistoryLimit, "Maximum number of alerts to list")
	alertsHistoryCmd.Flags().String("since", "", "Only alerts fired after this (7d, 24h or YYYY-MM-DD)")

	alertsCmd.AddCommand(alertsTestCmd, alertsHistoryCmd)
	rootCmd.AddCommand(alertsCmd)
}
