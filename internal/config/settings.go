package config

import (
	"fmt"
	"time"

	"agentwatch/internal/alert"
	"agentwatch/internal/notify"

	"github.com/spf13/viper"
)

// Source groups accepted by sources.group.
const (
	GroupAll    = "all"
	GroupLocal  = "local"
	GroupRemote = "remote"
)

// Settings is the typed view of the current configuration.
type Settings struct {
	PollInterval   time.Duration   `mapstructure:"poll_interval"`
	Port           int             `mapstructure:"port"`
	Retention      time.Duration   `mapstructure:"retention"`
	StateTTL       time.Duration   `mapstructure:"state_ttl"`
	SourceTimeout  time.Duration   `mapstructure:"source_timeout"`
	CostPerMillion float64         `mapstructure:"cost_per_million"`
	Sources        SourcesSettings `mapstructure:"sources"`
	Alerts         AlertSettings   `mapstructure:"alerts"`
	Relay          RelaySettings   `mapstructure:"relay"`
	History        HistorySettings `mapstructure:"history"`
	Channels       notify.Settings `mapstructure:"channels"`
}

type SourcesSettings struct {
	Group     string            `mapstructure:"group"`
	Procscan  ProcscanSettings  `mapstructure:"procscan"`
	Claudelog ClaudelogSettings `mapstructure:"claudelog"`
	Docker    DockerSettings    `mapstructure:"docker"`
	Kube      KubeSettings      `mapstructure:"kube"`
}

type ProcscanSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	ProcRoot string `mapstructure:"proc_root"`
}

type ClaudelogSettings struct {
	Enabled bool          `mapstructure:"enabled"`
	Root    string        `mapstructure:"root"`
	Window  time.Duration `mapstructure:"window"`
}

type DockerSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Label   string `mapstructure:"label"`
}

type KubeSettings struct {
	Enabled    bool   `mapstructure:"enabled"`
	Kubeconfig string `mapstructure:"kubeconfig"`
	Namespace  string `mapstructure:"namespace"`
	Selector   string `mapstructure:"selector"`
}

type AlertSettings struct {
	Enabled     bool          `mapstructure:"enabled"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	Rules       []alert.Rule  `mapstructure:"rules"`
}

// Engine converts to the alert engine's rule set.
func (a AlertSettings) Engine() alert.Settings {
	return alert.Settings{Enabled: a.Enabled, Rules: a.Rules}
}

type RelaySettings struct {
	URL      string `mapstructure:"url"`
	Token    string `mapstructure:"token"`
	Endpoint bool   `mapstructure:"endpoint"`
}

type HistorySettings struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// Current decodes the live viper state. It is cheap enough to call every
// cycle, which is how rule edits take effect without a restart.
func Current() (Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return s, nil
}

// AlertRules returns a provider of alert settings for the alert engine.
// Decode failures disable alerting for that cycle rather than panicking.
func AlertRules() func() alert.Settings {
	return func() alert.Settings {
		s, err := Current()
		if err != nil {
			return alert.Settings{}
		}
		return s.Alerts.Engine()
	}
}
