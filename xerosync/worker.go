package xerosync

import (
	"context"
	"errors"
	"time"

	"github.com/mjwconsult/accountsync/config"
	"github.com/mjwconsult/accountsync/models"
	"github.com/mjwconsult/accountsync/utils"
	"gorm.io/gorm"
)

// processSyncRun executes one queued sync run: pull then push per the
// run params, recording per-record failures as sync-error rows and the
// outcome on the run itself.
func processSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	if payload.RunId == 0 || payload.ConnectorId == 0 {
		return errors.New("invalid payload")
	}

	ctx = utils.SetConnectorIdInContext(ctx, payload.ConnectorId)
	db := config.GetDB().WithContext(ctx)

	var run models.AccountSyncRun
	if err := db.Where("id = ? AND connector_id = ?", payload.RunId, payload.ConnectorId).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	conn, err := models.GetConnectorByID(db, payload.ConnectorId)
	if err != nil {
		return err
	}
	if conn == nil {
		return utils.ErrorRecordNotFound
	}
	if conn.Status != models.ConnectorStatusConnected {
		return errors.New("xero not connected")
	}

	params := DecodeRunParams(run.ParamsJSON)

	startedAt := utils.DereferencePtr(run.StartedAt, time.Now())
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	engine, err := NewInvoiceSyncForConnector(db, conn)
	if err != nil {
		config.LogError(config.GetLogger(), "xerosync", "processSyncRun", "engine setup", payload, err)
		_ = finishSyncRun(db, &run, conn, startedAt, models.SyncRunStatusFailed, map[string]int{}, 1)
		_ = createSyncError(ctx, db, run.ID, "setup", "", err.Error(), false)
		return err
	}

	stats := map[string]int{"pulled": 0, "pushed": 0}
	errorCount := 0
	rateLimited := false

	if params.Pull {
		opts := PullOptions{
			Filter:              InvoiceFilter{InvoiceID: params.XeroInvoiceId, InvoiceNumber: params.InvoiceNumber},
			ModifiedSince:       pullSince(params, conn),
			CreateContributions: params.CreateContributions || engine.settings.CreateContributions,
		}
		count, err := engine.Pull(ctx, opts)
		stats["pulled"] = count
		if err != nil {
			config.LogError(config.GetLogger(), "xerosync", "processSyncRun", "pull", payload, err)
			var incomplete *IncompleteSyncError
			switch {
			case errors.As(err, &incomplete):
				for _, message := range incomplete.Errors {
					errorCount++
					_ = createSyncError(ctx, db, run.ID, "pull", "", message, false)
				}
			case errors.Is(err, ErrRateLimited):
				rateLimited = true
				errorCount++
				_ = createSyncError(ctx, db, run.ID, "pull", "", err.Error(), true)
			default:
				errorCount++
				_ = createSyncError(ctx, db, run.ID, "pull", "", err.Error(), true)
			}
		}
	}

	if params.Push && !rateLimited {
		attempted, err := engine.Push(ctx, params.ContributionId, params.Limit)
		stats["pushed"] = len(attempted)
		if err != nil {
			config.LogError(config.GetLogger(), "xerosync", "processSyncRun", "push", payload, err)
			var incomplete *IncompleteSyncError
			switch {
			case errors.As(err, &incomplete):
				for _, message := range incomplete.Errors {
					errorCount++
					_ = createSyncError(ctx, db, run.ID, "push", "", message, false)
				}
			case errors.Is(err, ErrRateLimited):
				errorCount++
				_ = createSyncError(ctx, db, run.ID, "push", "", err.Error(), true)
			default:
				errorCount++
				_ = createSyncError(ctx, db, run.ID, "push", "", err.Error(), true)
			}
		}
	}

	status := models.SyncRunStatusSuccess
	totalSynced := stats["pulled"] + stats["pushed"]
	if errorCount > 0 && totalSynced == 0 {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 {
		status = models.SyncRunStatusPartial
	}
	return finishSyncRun(db, &run, conn, startedAt, status, stats, errorCount)
}

// pullSince derives the modified-since watermark: an explicit start date
// on the run wins, otherwise the connector's last successful sync.
func pullSince(params RunParams, conn *models.AccountConnector) *time.Time {
	if params.StartDate != "" {
		if parsed := parseXeroTime(params.StartDate); parsed != nil {
			return parsed
		}
	}
	return conn.LastSuccessSyncAt
}

func finishSyncRun(db *gorm.DB, run *models.AccountSyncRun, conn *models.AccountConnector, startedAt time.Time, status string, stats map[string]int, errorCount int) error {
	finishedAt := time.Now()
	totalSynced := 0
	for _, count := range stats {
		totalSynced += count
	}
	statsJSON, _ := utils.MarshalToJSON(stats)
	if err := db.Model(run).Updates(map[string]interface{}{
		"status":         status,
		"finished_at":    finishedAt,
		"duration_ms":    finishedAt.Sub(startedAt).Milliseconds(),
		"records_synced": totalSynced,
		"error_count":    errorCount,
		"stats_json":     statsJSON,
	}).Error; err != nil {
		return err
	}

	connUpdates := map[string]interface{}{
		"last_sync_at": finishedAt,
	}
	if status == models.SyncRunStatusSuccess {
		connUpdates["last_success_sync_at"] = finishedAt
	}
	return db.Model(&models.AccountConnector{}).
		Where("id = ?", conn.ID).
		Updates(connUpdates).Error
}

// createSyncError reads the connector id back off the context, which
// processSyncRun stamps before any engine work starts.
func createSyncError(ctx context.Context, db *gorm.DB, runId uint, operation string, externalId string, message string, retryable bool) error {
	connectorId, _ := utils.GetConnectorIdFromContext(ctx)
	return db.WithContext(ctx).Create(&models.AccountSyncError{
		SyncRunId:   runId,
		ConnectorId: connectorId,
		Operation:   operation,
		ExternalId:  externalId,
		Message:     message,
		Retryable:   retryable,
	}).Error
}
