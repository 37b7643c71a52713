// Package config loads agentwatch settings from a config file, the
// environment and .env, with viper as the single source of truth.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AGENTWATCH_PORT.
const EnvPrefix = "AGENTWATCH"

// Load initializes the configuration from file and environment variables.
// A missing config file is not an error; a malformed one is.
func Load(cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	// Fall back to the conventional Slack variable when no prefixed one is set
	if os.Getenv(EnvPrefix+"_CHANNELS_SLACK_TOKEN") == "" && os.Getenv("SLACK_BOT_USER_TOKEN") != "" {
		viper.SetDefault("channels.slack.token", os.Getenv("SLACK_BOT_USER_TOKEN"))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile == "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	return nil
}

// SetDefaults registers every default. Keys must have a default for
// environment overrides to reach Unmarshal.
func SetDefaults() {
	viper.SetDefault("poll_interval", 3*time.Second)
	viper.SetDefault("port", 7777)
	viper.SetDefault("retention", 10*time.Minute)
	viper.SetDefault("state_ttl", 24*time.Hour)
	viper.SetDefault("source_timeout", 10*time.Second)
	viper.SetDefault("cost_per_million", 3.0)
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_file", "")

	// Sources
	viper.SetDefault("sources.group", GroupAll)
	viper.SetDefault("sources.procscan.enabled", true)
	viper.SetDefault("sources.procscan.proc_root", "/proc")
	viper.SetDefault("sources.claudelog.enabled", true)
	viper.SetDefault("sources.claudelog.root", "")
	viper.SetDefault("sources.claudelog.window", 30*time.Minute)
	viper.SetDefault("sources.docker.enabled", true)
	viper.SetDefault("sources.docker.label", "agentwatch.agent")
	viper.SetDefault("sources.kube.enabled", true)
	viper.SetDefault("sources.kube.kubeconfig", "")
	viper.SetDefault("sources.kube.namespace", "")
	viper.SetDefault("sources.kube.selector", "app=agent")

	// Alerts
	viper.SetDefault("alerts.enabled", false)
	viper.SetDefault("alerts.cooldown", 60*time.Second)
	viper.SetDefault("alerts.send_timeout", 15*time.Second)
	viper.SetDefault("alerts.rules", DefaultRules())

	// Relay
	viper.SetDefault("relay.url", "")
	viper.SetDefault("relay.token", "")
	viper.SetDefault("relay.endpoint", false)

	// History
	viper.SetDefault("history.type", "sqlite")
	viper.SetDefault("history.dsn", ".agentwatch.db")

	// Channel credentials
	viper.SetDefault("channels.webhook.url", "")
	viper.SetDefault("channels.webhook.token", "")
	viper.SetDefault("channels.slack.webhook_url", "")
	viper.SetDefault("channels.slack.token", "")
	viper.SetDefault("channels.slack.channel", "#general")
	viper.SetDefault("channels.discord.webhook_url", "")
	viper.SetDefault("channels.email.host", "")
	viper.SetDefault("channels.email.port", 587)
	viper.SetDefault("channels.email.username", "")
	viper.SetDefault("channels.email.password", "")
	viper.SetDefault("channels.email.from", "")
	viper.SetDefault("channels.email.to", []string{})
	viper.SetDefault("channels.sms.account_sid", "")
	viper.SetDefault("channels.sms.auth_token", "")
	viper.SetDefault("channels.sms.from", "")
	viper.SetDefault("channels.sms.to", "")
	viper.SetDefault("channels.sms.base_url", "")
}

// DefaultRules enables every event kind but routes none anywhere until
// channels are configured.
func DefaultRules() []map[string]any {
	events := []string{"agent_completed", "agent_error", "agent_started", "provider_degraded"}
	rules := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		rules = append(rules, map[string]any{
			"event":    ev,
			"enabled":  ev != "agent_started",
			"channels": []string{},
		})
	}
	return rules
}
