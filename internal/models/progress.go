package models

import "time"

const ActionSessionCompleted = "session_completed"

// SessionConsumption is the ledger entry for one completed booking.
type SessionConsumption struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BookingID  string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"booking_id"`
	SubjectID  string    `gorm:"type:varchar(64);not null;index" json:"subject_id"`
	PoolType   PoolType  `gorm:"type:varchar(16);not null" json:"pool_type"`
	Deducted   bool      `gorm:"not null" json:"deducted"`
	ConsumedAt time.Time `gorm:"not null" json:"consumed_at"`
}

type ProgressEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SubjectID string    `gorm:"type:varchar(64);not null;index" json:"subject_id"`
	BookingID string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"booking_id"`
	Pillar    Pillar    `gorm:"type:varchar(20);not null" json:"pillar"`
	Action    string    `gorm:"type:varchar(40);not null" json:"action"`
	CreatedAt time.Time `json:"created_at"`
}
