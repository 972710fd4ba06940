package models

import "time"

// Contact is the minimal CRM contact shape the sync engine reads:
// the display name goes into invoice references and line descriptions.
type Contact struct {
	ID          int       `gorm:"primary_key" json:"id"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
