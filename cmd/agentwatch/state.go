package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"agentwatch/internal/model"
	"agentwatch/internal/utils"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current state of a running agentwatch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		var snap model.Snapshot
		if err := getJSON(cmd.Context(), serverURL(url)+"/state", &snap); err != nil {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

func init() {
	stateCmd.Flags().String("url", "", "Base URL of the agentwatch server (default http://127.0.0.1:<port>)")
	rootCmd.AddCommand(stateCmd)
}

func printSnapshot(out io.Writer, snap model.Snapshot) {
	if len(snap.Agents) == 0 {
		fmt.Fprintln(out, "No agents detected.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tLOCATION\tTOKENS\tELAPSED\tTASK")
		for _, ag := range snap.Agents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				ag.ID, ag.Name, ag.Status, ag.Location, ag.Tokens, ag.Elapsed, ag.Task)
		}
		w.Flush()
	}

	fmt.Fprintln(out)
	printProviders(out, snap.Providers)

	s := snap.Stats
	fmt.Fprintf(out, "\n%d agents, %d active, %d done, %d errors, %d tokens, $%.2f estimated\n",
		s.Total, s.Active, s.Completed, s.Errored, s.TotalTokens, s.EstimatedCost)
}

func printProviders(out io.Writer, providers []model.ProviderHealth) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tSTATE\tAGENTS\tCHECKED\tMESSAGE")
	now := time.Now()
	for _, p := range providers {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.ID, p.State, p.AgentCount, utils.Ago(p.LastChecked, now), p.Message)
	}
	w.Flush()
}
