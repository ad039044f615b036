package model

import "time"

// ToolCallRecord is the audit entry of one tool call made by the model.
type ToolCallRecord struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	CallID     string    `json:"call_id"`
	Tool       string    `json:"tool"`
	Arguments  string    `json:"arguments"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Statement  string    `json:"statement,omitempty"`
	Rows       int       `json:"rows"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
