package xerosync

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mjwconsult/accountsync/models"
	"github.com/xuri/excelize/v2"
)

// SyncRunReportHandler exports the per-record failures of one run as an
// xlsx sheet for operators chasing down rejected records.
func SyncRunReportHandler() gin.HandlerFunc {
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
		if err := db.Where("sync_run_id = ?", run.ID).Order("id").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		sheet := "Sheet1"
		if _, err := f.NewSheet(sheet); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Add headers
		f.SetCellValue(sheet, "A1", "Operation")
		f.SetCellValue(sheet, "B1", "ExternalId")
		f.SetCellValue(sheet, "C1", "Message")
		f.SetCellValue(sheet, "D1", "Retryable")
		f.SetCellValue(sheet, "E1", "CreatedAt")

		// Add data
		for i, e := range errs {
			row := fmt.Sprint(i + 2)
			f.SetCellValue(sheet, "A"+row, e.Operation)
			f.SetCellValue(sheet, "B"+row, e.ExternalId)
			f.SetCellValue(sheet, "C"+row, e.Message)
			f.SetCellValue(sheet, "D"+row, e.Retryable)
			f.SetCellValue(sheet, "E"+row, e.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=sync-run-%d-errors.xlsx", run.ID))
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
		}
	}
}
