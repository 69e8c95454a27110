package models

import "time"

// Provider is a session provider synced from the directory service.
type Provider struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Pillar    Pillar    `gorm:"type:varchar(20);not null" json:"pillar"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
