package backtest

import (
	"encoding/json"
	"time"

	"shadowtrade/internal/strategy"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunConfig snapshots everything needed to replay a run.
type RunConfig struct {
	Symbol         string          `json:"symbol"`
	Timeframe      string          `json:"timeframe"`
	Strategy       string          `json:"strategy"`
	Profile        string          `json:"profile,omitempty"`
	Params         strategy.Params `json:"params"`
	StartTS        int64           `json:"start_ts"`
	EndTS          int64           `json:"end_ts"`
	InitialCapital float64         `json:"initial_capital"`
}

// Run is one submitted backtest with its lifecycle and headline stats.
type Run struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Strategy    string    `json:"strategy"`
	Profile     string    `json:"profile,omitempty"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Config      RunConfig `json:"config"`
	Stats       Stats     `json:"stats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// MarshalConfig returns the config as JSON for persistence.
func (r Run) MarshalConfig() ([]byte, error) {
	return json.Marshal(r.Config)
}

// RunRequest is the HTTP submission shape. Either a strategy name with
// optional raw params, or a profile name, must be given. Params arrive
// as raw JSON so numeric strings can be coerced leniently.
type RunRequest struct {
	Symbol         string          `json:"symbol" binding:"required"`
	Timeframe      string          `json:"timeframe" binding:"required"`
	Strategy       string          `json:"strategy"`
	Profile        string          `json:"profile"`
	Params         json.RawMessage `json:"params"`
	StartTS        int64           `json:"start_ts" binding:"required"`
	EndTS          int64           `json:"end_ts" binding:"required"`
	InitialCapital float64         `json:"initial_capital"`
}
