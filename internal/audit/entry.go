// Package audit is the append-only trail of every state-affecting
// operation the engine performs. Entries are never edited or deleted by
// the core; retention and archival are an external concern.
package audit

import "time"

// Action identifies what kind of operation an entry records.
type Action string

const (
	ActionCreated           Action = "created"
	ActionStatusChanged     Action = "statusChanged"
	ActionUrgencyChanged    Action = "urgencyChanged"
	ActionSentToKitchen     Action = "sentToKitchen"
	ActionAssignmentChanged Action = "assignmentChanged"
	ActionReprinted         Action = "reprinted"
	ActionDeliveryFailed    Action = "deliveryFailed"
)

// Level grades an entry's severity.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Entry is one immutable audit record.
//
// Seq is a monotonic sequence assigned by the engine's logical clock at
// serialization time, so for any order the audit trail reads back in the
// exact order its operations were applied, independent of wall-clock
// resolution.
type Entry struct {
	ID              string         `json:"id"`
	OrderID         string         `json:"order_id,omitempty"`
	OrderNumber     string         `json:"order_number,omitempty"`
	Action          Action         `json:"action"`
	Level           Level          `json:"level"`
	Description     string         `json:"description"`
	Before          map[string]any `json:"before,omitempty"`
	After           map[string]any `json:"after,omitempty"`
	PerformedBy     string         `json:"performed_by"`
	PerformedByName string         `json:"performed_by_name,omitempty"`
	FinancialImpact *float64       `json:"financial_impact,omitempty"`
	Seq             int64          `json:"seq"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Filter narrows a Query. Zero values mean "no constraint".
type Filter struct {
	OrderID string
	Action  Action
	Level   Level
	UserID  string
	From    time.Time
	To      time.Time

	// Search is a case-insensitive substring match against description,
	// order number, and performer name/id.
	Search string

	// Limit caps the number of returned entries. Zero means no cap.
	Limit int
}

// Analytics aggregates a queried window on demand; nothing is
// pre-aggregated.
type Analytics struct {
	TotalOperations int            `json:"total_operations"`
	ByAction        map[Action]int `json:"by_action"`
	ByUser          map[string]int `json:"by_user"`
	ErrorCount      int            `json:"error_count"`
	WarningCount    int            `json:"warning_count"`
}
