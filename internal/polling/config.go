package polling

import "time"

// DefaultInterval is the poll interval when nothing overrides it.
const DefaultInterval = 3 * time.Second

// Config holds the polling configuration
type Config struct {
	Interval time.Duration
}
