package models_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mjwconsult/accountsync/config"
	"github.com/mjwconsult/accountsync/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Exercises the gorm-backed store against a real MySQL. Requires the
// DB_* environment to point at a disposable database.
func TestSyncStore_Integration(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires mysql)")
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	store := models.NewSyncStore(db)
	connectorId := int(time.Now().UnixNano() % 1_000_000)

	t.Run("upsert by remote id", func(t *testing.T) {
		remoteId := "itest-inv-1"
		record := &models.AccountInvoice{
			Plugin:              models.PluginXero,
			ConnectorId:         connectorId,
			AccountsInvoiceId:   &remoteId,
			AccountsStatus:      models.InvoiceSyncStatusPending,
			AccountsNeedsUpdate: true,
		}
		require.NoError(t, store.SaveInvoice(ctx, record))
		require.NotZero(t, record.ID)
		require.NotNil(t, record.LastSyncDate)

		loaded, err := store.GetInvoiceByRemoteID(ctx, connectorId, remoteId)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		require.Equal(t, record.ID, loaded.ID)

		loaded.AccountsStatus = models.InvoiceSyncStatusCompleted
		require.NoError(t, store.SaveInvoice(ctx, loaded))

		again, err := store.GetInvoiceByRemoteID(ctx, connectorId, remoteId)
		require.NoError(t, err)
		require.Equal(t, models.InvoiceSyncStatusCompleted, again.AccountsStatus)

		missing, err := store.GetInvoiceByRemoteID(ctx, connectorId, "itest-nope")
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("push selection gating", func(t *testing.T) {
		mk := func(remoteId string, contributionId int, needsUpdate bool, errorData []byte, resolved bool, status models.InvoiceSyncStatus) *models.AccountInvoice {
			record := &models.AccountInvoice{
				Plugin:              models.PluginXero,
				ConnectorId:         connectorId,
				AccountsInvoiceId:   &remoteId,
				AccountsStatus:      status,
				AccountsNeedsUpdate: needsUpdate,
				ErrorData:           errorData,
				IsErrorResolved:     resolved,
				ContributionId:      &contributionId,
			}
			require.NoError(t, store.SaveInvoice(ctx, record))
			return record
		}

		eligible := mk("itest-sel-1", 101, true, nil, false, models.InvoiceSyncStatusPending)
		mk("itest-sel-2", 102, false, nil, false, models.InvoiceSyncStatusPending)
		mk("itest-sel-3", 103, true, []byte(`{"error":"x"}`), false, models.InvoiceSyncStatusPending)
		retried := mk("itest-sel-4", 104, true, []byte(`{"error":"x"}`), true, models.InvoiceSyncStatusPending)
		mk("itest-sel-5", 105, true, nil, false, models.InvoiceSyncStatusCancelled)

		selected, err := store.SelectInvoicesForPush(ctx, connectorId, 0, 10)
		require.NoError(t, err)
		ids := map[uint]bool{}
		for _, r := range selected {
			ids[r.ID] = true
		}
		require.True(t, ids[eligible.ID])
		require.True(t, ids[retried.ID])
		require.Len(t, ids, 2)

		forced, err := store.SelectInvoicesForPush(ctx, connectorId, 102, 10)
		require.NoError(t, err)
		require.Len(t, forced, 1)
	})

	t.Run("contribution roundtrip", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Contact{DisplayName: "Pat Field"}).Error)
		var contact models.Contact
		require.NoError(t, db.Where("display_name = ?", "Pat Field").Last(&contact).Error)
		require.NoError(t, db.Create(&models.AccountContact{
			Plugin:            models.PluginXero,
			ConnectorId:       connectorId,
			AccountsContactId: "itest-contact-1",
			ContactId:         contact.ID,
		}).Error)

		localId, err := store.LookupLocalContact(ctx, connectorId, "itest-contact-1")
		require.NoError(t, err)
		require.Equal(t, contact.ID, localId)

		contributionId, err := store.CreateContribution(ctx, &models.NewContribution{
			ContactId:   contact.ID,
			Status:      models.ContributionStatusPending,
			TotalAmount: decimal.NewFromInt(120),
			Currency:    "GBP",
			ReceiveDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			Source:      "itest",
		})
		require.NoError(t, err)

		require.NoError(t, db.Create(&models.ContributionLineItem{
			ContributionId: contributionId,
			Label:          "Membership",
			Qty:            decimal.NewFromInt(2),
			UnitPrice:      decimal.NewFromInt(60),
		}).Error)

		invoice, err := store.GetContributionInvoice(ctx, connectorId, contributionId)
		require.NoError(t, err)
		require.NotNil(t, invoice)
		require.Equal(t, "Pat Field", invoice.DisplayName)
		require.Equal(t, "itest-contact-1", invoice.AccountsContactId)
		require.Len(t, invoice.LineItems, 1)

		require.NoError(t, store.RecordPayment(ctx, contributionId, decimal.NewFromInt(120), time.Now()))
		var contribution models.Contribution
		require.NoError(t, db.Where("id = ?", contributionId).Take(&contribution).Error)
		require.Equal(t, models.ContributionStatusCompleted, contribution.Status)
	})
}
