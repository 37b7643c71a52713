package main

import (
	"os"
	"os/signal"
	"syscall"

	"agentwatch/internal/config"
	"agentwatch/internal/telemetry"
	"agentwatch/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchStyle string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll all sources and show a live terminal dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout belongs to the dashboard
		telemetry.InitLogger(viper.GetBool("verbose"), viper.GetString("log_file"), true)

		settings, err := config.Current()
		if err != nil {
			return err
		}
		eng, err := newEngine(settings, telemetry.Component("watch"))
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		updates, unsubscribe := eng.store.Subscribe()
		done := make(chan struct{})
		go func() {
			eng.run(ctx)
			close(done)
		}()

		err = ui.RunWatch(updates, eng.aggregator.Conversation, watchStyle)
		stop()
		unsubscribe()
		<-done
		return err
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchStyle, "style", "auto", "Glamour style for conversations (auto, dark, light, notty)")
	rootCmd.AddCommand(watchCmd)
}
