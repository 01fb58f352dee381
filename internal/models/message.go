package models

// Message is one persisted entry of a case's message log, keyed by
// (case_id, msg_index). Rows are only ever inserted.
type Message struct {
	CaseID uint64 `gorm:"primaryKey;autoIncrement:false" json:"case_id"`
	Index  uint64 `gorm:"column:msg_index;primaryKey;autoIncrement:false" json:"index"`
	// FromRole is "citizen" or "police".
	FromRole string `gorm:"type:varchar(16);not null" json:"from_role"`
	// FromAgent is nil for unattributed messages.
	FromAgent *string `gorm:"type:text" json:"from_agent,omitempty"`
	Content   string  `gorm:"type:text;not null" json:"content"`
	// Timestamp is the host block counter at append time.
	Timestamp uint64 `gorm:"not null" json:"timestamp"`
}
