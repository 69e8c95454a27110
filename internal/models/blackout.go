package models

import "time"

// Blackout is one provider-declared unavailable slot time on a date.
type Blackout struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProviderID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_blackout_slot" json:"provider_id"`
	Date       string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_blackout_slot" json:"date"`
	Time       string    `gorm:"type:varchar(5);not null;uniqueIndex:idx_blackout_slot" json:"time"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type BlackoutWindow struct {
	ProviderID string   `json:"provider_id"`
	Date       string   `json:"date"`
	Times      []string `json:"times"`
}
