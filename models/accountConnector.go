package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	PluginXero = "xero"
)

const (
	ConnectorStatusConnected    = "connected"
	ConnectorStatusDisconnected = "disconnected"
	ConnectorStatusError        = "error"
)

// AccountConnector identifies one remote tenant/credential set of the
// accounts package. All mirrored invoices and sync runs hang off a
// connector row.
type AccountConnector struct {
	ID                int        `gorm:"primary_key" json:"id"`
	Plugin            string     `gorm:"uniqueIndex:idx_connector_tenant,priority:1;size:50;not null" json:"plugin"`
	TenantId          string     `gorm:"uniqueIndex:idx_connector_tenant,priority:2;size:100;not null" json:"tenant_id"`
	Name              string     `gorm:"size:255" json:"name"`
	Status            string     `gorm:"size:20;not null" json:"status"`
	AuthSecretRef     string     `gorm:"type:text" json:"auth_secret_ref"`
	SettingsJSON      []byte     `gorm:"type:json" json:"settings"`
	LastSyncAt        *time.Time `json:"last_sync_at"`
	LastSuccessSyncAt *time.Time `json:"last_success_sync_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetConnectorByID returns nil when the connector does not exist.
func GetConnectorByID(db *gorm.DB, id int) (*AccountConnector, error) {
	var conn AccountConnector
	err := db.Where("id = ? AND plugin = ?", id, PluginXero).Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}
