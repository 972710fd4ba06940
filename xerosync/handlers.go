package xerosync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mjwconsult/accountsync/config"
	"github.com/mjwconsult/accountsync/models"
	"github.com/mjwconsult/accountsync/utils"
	"gorm.io/gorm"
)

// RegisterRoutes mounts the connector management and sync trigger API.
func RegisterRoutes(router gin.IRouter) {
	xero := router.Group("/xero")
	xero.POST("/connect", ConnectHandler())
	xero.GET("/choices/invoice-status", ChoicesHandler(InvoiceStatusChoices))
	xero.GET("/choices/tax-mode", ChoicesHandler(TaxModeChoices))

	connector := xero.Group("/:connectorId")
	connector.GET("/status", StatusHandler())
	connector.POST("/disconnect", DisconnectHandler())
	connector.PUT("/settings", UpdateSettingsHandler())
	connector.POST("/sync", TriggerSyncHandler())
	connector.GET("/sync-history", SyncHistoryHandler())
	connector.GET("/sync-history/:id", SyncRunDetailHandler())
	connector.POST("/sync-history/:id/retry", RetrySyncRunHandler())
	connector.GET("/sync-history/:id/report", SyncRunReportHandler())

	router.POST("/pubsub/xero-sync", PubSubPushHandler())
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, _, ok := resolveConnector(c)
		if !ok {
			return
		}

		c.JSON(http.StatusOK, StatusResponse{
			Connector:         mapConnectorToResponse(conn),
			LastSyncAt:        formatTime(conn.LastSyncAt),
			LastSuccessSyncAt: formatTime(conn.LastSuccessSyncAt),
			Settings:          DecodeSettings(conn.SettingsJSON),
		})
	}
}

func ConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())

		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = req.TenantId
		}

		var conn models.AccountConnector
		err := db.Where("plugin = ? AND tenant_id = ?", models.PluginXero, req.TenantId).Take(&conn).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			conn = models.AccountConnector{
				Plugin:        models.PluginXero,
				TenantId:      req.TenantId,
				Name:          name,
				Status:        models.ConnectorStatusConnected,
				AuthSecretRef: encodeCredentials(req.ClientId, req.ClientSecret),
				SettingsJSON:  EncodeSettings(DefaultSettings()),
			}
			if err := db.Create(&conn).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			update := map[string]interface{}{
				"status":          models.ConnectorStatusConnected,
				"name":            name,
				"auth_secret_ref": encodeCredentials(req.ClientId, req.ClientSecret),
				"updated_at":      time.Now(),
			}
			if len(conn.SettingsJSON) == 0 {
				update["settings_json"] = EncodeSettings(DefaultSettings())
			}
			if err := db.Model(&conn).Updates(update).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"id": conn.ID})
	}
}

func DisconnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, db, ok := resolveConnector(c)
		if !ok {
			return
		}

		if err := db.Model(conn).Updates(map[string]interface{}{
			"status":          models.ConnectorStatusDisconnected,
			"auth_secret_ref": "",
			"updated_at":      time.Now(),
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func UpdateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, db, ok := resolveConnector(c)
		if !ok {
			return
		}

		var req SyncSettings
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		if err := db.Model(conn).Updates(map[string]interface{}{
			"settings_json": EncodeSettings(req),
			"updated_at":    time.Now(),
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, db, ok := resolveConnector(c)
		if !ok {
			return
		}
		if conn.Status != models.ConnectorStatusConnected {
			c.JSON(http.StatusConflict, gin.H{"error": "xero is not connected"})
			return
		}

		var params RunParams
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !params.Pull && !params.Push {
			params = DefaultRunParams()
		}

		run := models.AccountSyncRun{
			ConnectorId: conn.ID,
			Plugin:      models.PluginXero,
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredManual,
			ParamsJSON:  EncodeRunParams(params),
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(c.Request.Context(), run.ID, conn.ID)

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, db, ok := resolveConnector(c)
		if !ok {
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		var runs []models.AccountSyncRun
		if err := db.Where("connector_id = ? AND plugin = ?", conn.ID, models.PluginXero).
			Order("id desc").
			Limit(limit).
			Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, db, ok := resolveConnector(c)
		if !ok {
			return
		}
		run, ok := resolveSyncRun(c, db, conn.ID)
		if !ok {
			return
		}

		var errs []models.AccountSyncError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(*run),
			Errors:          mapErrors(errs),
		})
	}
}

func RetrySyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, db, ok := resolveConnector(c)
		if !ok {
			return
		}
		run, ok := resolveSyncRun(c, db, conn.ID)
		if !ok {
			return
		}

		newRun := models.AccountSyncRun{
			ConnectorId: run.ConnectorId,
			Plugin:      run.Plugin,
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredRetry,
			ParamsJSON:  run.ParamsJSON,
			ParentRunId: &run.ID,
		}
		if err := db.Create(&newRun).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(c.Request.Context(), newRun.ID, run.ConnectorId)

		c.JSON(http.StatusOK, gin.H{"id": newRun.ID})
	}
}

// ChoicesHandler serves a static label/value table for the settings UI.
func ChoicesHandler(choices func() []Choice) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"items": choices()})
	}
}

func resolveConnector(c *gin.Context) (*models.AccountConnector, *gorm.DB, bool) {
	connectorId, err := strconv.Atoi(c.Param("connectorId"))
	if err != nil || connectorId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connector id"})
		return nil, nil, false
	}

	ctx := utils.SetConnectorIdInContext(c.Request.Context(), connectorId)
	db := config.GetDB().WithContext(ctx)

	conn, err := models.GetConnectorByID(db, connectorId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	if conn == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connector not found"})
		return nil, nil, false
	}
	return conn, db, true
}

func resolveSyncRun(c *gin.Context, db *gorm.DB, connectorId int) (*models.AccountSyncRun, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return nil, false
	}

	var run models.AccountSyncRun
	if err := db.Where("id = ? AND connector_id = ?", id, connectorId).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return &run, true
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapConnectorToResponse(conn *models.AccountConnector) ConnectorResponse {
	return ConnectorResponse{
		ID:       conn.ID,
		Status:   conn.Status,
		TenantId: conn.TenantId,
		Name:     conn.Name,
	}
}

func mapRunToResponse(run models.AccountSyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:            run.ID,
		Status:        run.Status,
		StartedAt:     formatTime(run.StartedAt),
		FinishedAt:    formatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
		RecordsSynced: run.RecordsSynced,
		ErrorCount:    run.ErrorCount,
		TriggeredBy:   run.TriggeredBy,
	}
}

func mapErrors(errorsList []models.AccountSyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:         errItem.ID,
			Operation:  errItem.Operation,
			ExternalId: errItem.ExternalId,
			Message:    errItem.Message,
			Retryable:  errItem.Retryable,
		})
	}
	return out
}
