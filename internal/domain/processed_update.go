package domain

import "time"

// ProcessedUpdate marks a chat transport update as handled so that a
// redelivered webhook (or an overlapping poll after restart) does not run the
// same command twice. Rows carry an expiry after which the marker may be
// purged; Telegram never redelivers an update that old.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"primaryKey;autoIncrement:false"`
	Kind      string    `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
