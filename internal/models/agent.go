package models

import "time"

// Agent is the persisted agent registry row. Deactivated agents keep their
// row; only Active flips.
type Agent struct {
	// Identity is the agent's caller identity (primary key).
	Identity string `gorm:"primaryKey;type:text" json:"identity"`
	// Region is the region the agent is deployed to.
	Region string `gorm:"type:varchar(64);not null;index" json:"region"`
	// Active is false once the coordinator deactivates the agent.
	Active    bool      `gorm:"not null" json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}
