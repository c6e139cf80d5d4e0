// Package audit records who changed what in the registry. Every mutating
// request — publishes, deletes, key lifecycle — appends an event row;
// reads are not audited. Writes are best-effort and never fail the request
// they describe.
package audit

import "time"

// Event is one recorded mutation attempt.
type Event struct {
	ID        string `gorm:"primaryKey;size:100" json:"event_id"`
	RequestID string `gorm:"size:100;index" json:"request_id,omitempty"`

	// Actor is the acting user ID, or "anonymous" for unauthenticated
	// attempts (which show up here as denied).
	Actor string `gorm:"size:255;index" json:"actor"`

	// Namespace is the namespace the mutation targeted, when one can be
	// derived from the request path.
	Namespace string `gorm:"size:100;index" json:"namespace,omitempty"`

	// Action is the logical operation: publish, delete, key.create,
	// key.delete.
	Action string `gorm:"size:50;index" json:"action"`

	// Outcome is success, denied or failure.
	Outcome    string `gorm:"size:20;index" json:"outcome"`
	StatusCode int    `gorm:"not null" json:"status_code"`

	Method     string `gorm:"size:10" json:"method"`
	Path       string `gorm:"size:512" json:"path"`
	DurationMS int64  `gorm:"not null;default:0" json:"duration_ms"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName sets the audit table name.
func (Event) TableName() string {
	return "audit_events"
}
