package models

import "time"

// Case is the persisted case row. There is no column for the identity that
// opened the case.
type Case struct {
	// ID is allocated by the ledger, never by the database.
	ID      uint64 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Region  string `gorm:"type:varchar(64);not null;index" json:"region"`
	Subject string `gorm:"type:text;not null" json:"subject"`
	Details string `gorm:"type:text;not null" json:"details"`
	// ReporterCommitment is the 0x-prefixed hex commitment of the reporter's secret.
	ReporterCommitment string `gorm:"type:char(66);not null" json:"reporter_commitment"`
	// AssignedAgent is nil while the case is unassigned.
	AssignedAgent *string `gorm:"type:text;index" json:"assigned_agent,omitempty"`
	// Status is "open" or "closed".
	Status    string    `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageCount is the per-case message counter row.
type MessageCount struct {
	CaseID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Count  uint64 `gorm:"not null"`
}

// LedgerScalars holds the two ledger-wide scalars in a single row.
type LedgerScalars struct {
	ID uint `gorm:"primaryKey"`
	// Coordinator is nil until the first coordinator-gated call.
	Coordinator *string `gorm:"type:text"`
	NextCaseID  uint64  `gorm:"not null;default:1"`
}

// LedgerScalarsID is the primary key of the single LedgerScalars row.
const LedgerScalarsID = 1
