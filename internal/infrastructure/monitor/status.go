package monitor

import "time"

type Status struct {
	Services  map[string]bool `json:"services"`
	Healthy   bool            `json:"healthy"`
	LastCheck time.Time       `json:"last_check"`
}
