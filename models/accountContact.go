package models

import "time"

// AccountContact maps a remote contact id to a local CRM contact.
// Contact synchronization itself is handled elsewhere; the invoice sync
// only reads this mapping.
type AccountContact struct {
	ID                uint      `gorm:"primary_key" json:"id"`
	Plugin            string    `gorm:"uniqueIndex:idx_account_contact_remote,priority:1;size:50;not null" json:"plugin"`
	ConnectorId       int       `gorm:"uniqueIndex:idx_account_contact_remote,priority:2;not null" json:"connector_id"`
	AccountsContactId string    `gorm:"uniqueIndex:idx_account_contact_remote,priority:3;size:128;not null" json:"accounts_contact_id"`
	ContactId         int       `gorm:"index" json:"contact_id"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
