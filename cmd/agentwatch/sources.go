package main

import (
	"fmt"
	"text/tabwriter"

	"agentwatch/internal/aggregator"
	"agentwatch/internal/config"
	"agentwatch/internal/sources"
	"agentwatch/internal/telemetry"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Run one poll cycle and print the health of every source",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Current()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tNAME\tGROUP\tENABLED")
		for _, info := range sources.Describe(settings) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", info.ID, info.Name, info.Group, info.Enabled)
		}
		w.Flush()

		set, err := sources.Build(settings, telemetry.Component("sources"))
		if err != nil {
			return err
		}
		defer set.Close()

		agg := aggregator.New(set.Adapters, aggregator.WithLogger(telemetry.Component("aggregator")))
		snap := agg.RunCycle(cmd.Context())

		fmt.Fprintln(out)
		printProviders(out, snap.Providers)

		// health messages are truncated; print the full cause here
		var failed []string
		for _, a := range set.Adapters {
			if err := a.LastError(); err != nil {
				failed = append(failed, fmt.Sprintf("  %s: %v", a.ID(), err))
			}
		}
		if len(failed) > 0 {
			fmt.Fprintln(out, "\nErrors:")
			for _, line := range failed {
				fmt.Fprintln(out, line)
			}
		}

		fmt.Fprintf(out, "\n%d agents found\n", snap.Stats.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
