package models

import "time"

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredRetry  = "retry"
	SyncTriggeredSystem = "system"
)

// AccountSyncRun is one queued pull/push invocation with its outcome.
type AccountSyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	ConnectorId   int        `gorm:"index;not null" json:"connector_id"`
	Plugin        string     `gorm:"index;size:50;not null" json:"plugin"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	ParamsJSON    []byte     `gorm:"type:json" json:"params"`
	StatsJSON     []byte     `gorm:"type:json" json:"stats"`
	RecordsSynced int        `json:"records_synced"`
	ErrorCount    int        `json:"error_count"`
	ParentRunId   *uint      `gorm:"index" json:"parent_run_id"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// AccountSyncError is one per-record failure captured during a run.
type AccountSyncError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	ConnectorId int       `gorm:"index;not null" json:"connector_id"`
	Operation   string    `gorm:"size:20" json:"operation"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	Message     string    `gorm:"type:text" json:"message"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
