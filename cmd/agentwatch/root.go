package main

import (
	"fmt"
	"os"

	"agentwatch/internal/config"
	"agentwatch/internal/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exit = os.Exit
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentwatch",
	Short: "Monitor AI coding agents across processes, logs, containers and clusters",
	Long: `agentwatch polls every configured agent source on a fixed interval,
reconciles what they report into one snapshot, raises alerts on state
transitions and serves the result over HTTP or a live terminal view.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'agentwatch --help' for usage.")
		exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "Also append JSON logs to this file")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads the config file and environment, validates them and sets
// up logging.
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
		return
	}
	if err := config.ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
		return
	}
	telemetry.InitLogger(viper.GetBool("verbose"), viper.GetString("log_file"), false)
}

