package alert

// EventKind identifies an alertable transition.
type EventKind string

const (
	EventAgentCompleted   EventKind = "agent_completed"
	EventAgentError       EventKind = "agent_error"
	EventAgentStarted     EventKind = "agent_started"
	EventProviderDegraded EventKind = "provider_degraded"
)

// AllEvents lists every event kind.
var AllEvents = []EventKind{EventAgentCompleted, EventAgentError, EventAgentStarted, EventProviderDegraded}

// Rule routes one event kind to a set of channels.
type Rule struct {
	Event    EventKind `mapstructure:"event"`
	Enabled  bool      `mapstructure:"enabled"`
	Channels []string  `mapstructure:"channels"`
}

// Settings is the alerting configuration read at the start of every check.
type Settings struct {
	Enabled bool   `mapstructure:"enabled"`
	Rules   []Rule `mapstructure:"rules"`
}

// Rule returns the rule for event, if any.
func (s Settings) Rule(event EventKind) (Rule, bool) {
	for _, r := range s.Rules {
		if r.Event == event {
			return r, true
		}
	}
	return Rule{}, false
}

// Event is a detected transition that may become a fired alert.
type Event struct {
	Kind   EventKind
	Entity string
	Title  string
	Body   string
}
