package models

// LogStatus is the lifecycle state of one execution log entry.
type LogStatus string

const (
	LogPending   LogStatus = "pending"
	LogExecuting LogStatus = "executing"
	LogSuccess   LogStatus = "success"
	LogFailed    LogStatus = "failed"
)

// LogEntry is one execution status event. Entries sharing an id describe the
// same execution and are meant to update the previous entry in place rather
// than append.
type LogEntry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	Message    string    `json:"message"`
	Status     LogStatus `json:"status"`
	Timestamp  int64     `json:"timestamp"`
	PnL        *float64  `json:"pnl,omitempty"`
	Capital    *float64  `json:"capital,omitempty"`
	ROIPercent *float64  `json:"roiPercent,omitempty"`
	Actions    []string  `json:"actions,omitempty"`
}
