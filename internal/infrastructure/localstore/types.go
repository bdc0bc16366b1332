package localstore

import (
	"encoding/json"
	"time"
)

// Entry is one stored value with its last write time.
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}
