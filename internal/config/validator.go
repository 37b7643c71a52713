package config

import (
	"fmt"
	"strings"

	"agentwatch/internal/alert"
	"agentwatch/internal/notify"

	"github.com/spf13/viper"
)

// ValidateConfig validates configuration values and returns an error if any are invalid.
// This function should be called after viper has loaded the configuration.
func ValidateConfig() error {
	var errors []string

	for _, key := range []string{"poll_interval", "state_ttl", "source_timeout", "alerts.send_timeout"} {
		if d := viper.GetDuration(key); d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %v", key, d))
		}
	}

	// zero retention drops unreported agents immediately
	for _, key := range []string{"retention", "alerts.cooldown"} {
		if d := viper.GetDuration(key); d < 0 {
			errors = append(errors, fmt.Sprintf("%s must not be negative, got: %v", key, d))
		}
	}

	if port := viper.GetInt("port"); port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("port must be between 1 and 65535, got: %d", port))
	}

	if cost := viper.GetFloat64("cost_per_million"); cost < 0 {
		errors = append(errors, fmt.Sprintf("cost_per_million must not be negative, got: %v", cost))
	}

	switch group := strings.ToLower(viper.GetString("sources.group")); group {
	case GroupAll, GroupLocal, GroupRemote:
	default:
		errors = append(errors, fmt.Sprintf("sources.group must be one of all, local, remote, got: %q", group))
	}

	switch typ := strings.ToLower(viper.GetString("history.type")); typ {
	case "sqlite", "postgres", "none":
	default:
		errors = append(errors, fmt.Sprintf("history.type must be one of sqlite, postgres, none, got: %q", typ))
	}

	s, err := Current()
	if err != nil {
		errors = append(errors, err.Error())
	} else {
		errors = append(errors, validateRules(s.Alerts.Rules)...)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}
	return nil
}

func validateRules(rules []alert.Rule) []string {
	var errors []string
	seen := make(map[alert.EventKind]bool)
	for i, r := range rules {
		if !knownEvent(r.Event) {
			errors = append(errors, fmt.Sprintf("alerts.rules[%d]: unknown event %q", i, r.Event))
		}
		if seen[r.Event] {
			errors = append(errors, fmt.Sprintf("alerts.rules[%d]: duplicate rule for %q", i, r.Event))
		}
		seen[r.Event] = true
		for _, ch := range r.Channels {
			if !notify.IsKnown(ch) {
				errors = append(errors, fmt.Sprintf("alerts.rules[%d]: unknown channel %q", i, ch))
			}
		}
	}
	return errors
}

func knownEvent(ev alert.EventKind) bool {
	for _, k := range alert.AllEvents {
		if k == ev {
			return true
		}
	}
	return false
}
