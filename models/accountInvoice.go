package models

import "time"

// AccountInvoice is the CRM-side mirror row tracking sync state for one
// remote invoice. It is created on first pull-sight of a remote invoice
// or on the first push attempt of a local contribution, and is only ever
// updated after that, never deleted by the sync engine.
//
// (accounts_invoice_id, plugin, connector_id) is unique when the remote
// id is known: at most one local record maps to a given remote invoice
// per connector.
type AccountInvoice struct {
	ID                   uint              `gorm:"primary_key" json:"id"`
	Plugin               string            `gorm:"uniqueIndex:idx_account_invoice_remote,priority:1;size:50;not null" json:"plugin"`
	ConnectorId          int               `gorm:"uniqueIndex:idx_account_invoice_remote,priority:2;not null" json:"connector_id"`
	AccountsInvoiceId    *string           `gorm:"uniqueIndex:idx_account_invoice_remote,priority:3;size:128" json:"accounts_invoice_id"`
	AccountsModifiedDate *time.Time        `json:"accounts_modified_date"`
	AccountsData         []byte            `gorm:"type:json" json:"accounts_data"`
	AccountsStatus       InvoiceSyncStatus `gorm:"size:20;not null" json:"accounts_status"`
	AccountsNeedsUpdate  bool              `gorm:"default:false" json:"accounts_needs_update"`
	ErrorData            []byte            `gorm:"type:json" json:"error_data"`
	IsErrorResolved      bool              `gorm:"default:false" json:"is_error_resolved"`
	ContributionId       *int              `gorm:"index" json:"contribution_id"`
	LastSyncDate         *time.Time        `json:"last_sync_date"`
	CreatedAt            time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
