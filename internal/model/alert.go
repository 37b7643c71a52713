package model

import "time"

// AlertRecord is one alert that was actually fired.
type AlertRecord struct {
	ID       string    `json:"id"`
	Event    string    `json:"event"`
	Entity   string    `json:"entity"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Channels []string  `json:"channels"`
	Failed   []string  `json:"failed,omitempty"`
	FiredAt  time.Time `json:"firedAt"`
}
