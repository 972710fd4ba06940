package xerosync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mjwconsult/accountsync/models"
	"github.com/shopspring/decimal"
)

func TestPull_SavesRemoteInvoices(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "AUTHORISED"),
		remoteInvoice("xero-inv-2", "0002", "PAID"),
	}}

	count, err := te.sync.Pull(context.Background(), PullOptions{})
	if err != nil {
		t.Fatalf("Pull error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 saved, got %d", count)
	}
	record, _ := te.store.GetInvoiceByRemoteID(context.Background(), 1, "xero-inv-2")
	if record == nil {
		t.Fatal("expected record for xero-inv-2")
	}
	if record.AccountsStatus != models.InvoiceSyncStatusCompleted {
		t.Fatalf("expected completed, got %s", record.AccountsStatus)
	}
	if record.AccountsNeedsUpdate {
		t.Fatal("pulled records must not be marked for push")
	}
	if record.AccountsModifiedDate == nil {
		t.Fatal("expected modified date parsed")
	}
	if record.LastSyncDate == nil {
		t.Fatal("expected last sync date stamped")
	}
}

func TestPull_IsIdempotent(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "AUTHORISED"),
	}}

	if _, err := te.sync.Pull(context.Background(), PullOptions{}); err != nil {
		t.Fatalf("first pull: %v", err)
	}
	if _, err := te.sync.Pull(context.Background(), PullOptions{}); err != nil {
		t.Fatalf("second pull: %v", err)
	}
	if len(te.store.records) != 1 {
		t.Fatalf("expected exactly one local record, got %d", len(te.store.records))
	}
}

func TestPull_PrefixLinking(t *testing.T) {
	cases := []struct {
		name          string
		prefix        string
		invoiceNumber string
		preExisting   bool
		expectLink    *int
	}{
		{"prefix match with existing record", "INV-", "INV-42", true, intPtr(42)},
		{"no prefix configured", "", "42", true, nil},
		{"prefix mismatch", "INV-", "OTHER-42", true, nil},
		{"non-positive remainder", "INV-", "INV-0", true, nil},
		{"non-numeric remainder", "INV-", "INV-abc", true, nil},
		{"no pre-existing record drops link", "INV-", "INV-42", false, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			te := newTestEngine(SyncSettings{InvoiceNumberPrefix: tc.prefix})
			if tc.preExisting {
				remoteId := "xero-inv-1"
				_ = te.store.SaveInvoice(context.Background(), &models.AccountInvoice{
					Plugin:            models.PluginXero,
					ConnectorId:       1,
					AccountsInvoiceId: &remoteId,
					AccountsStatus:    models.InvoiceSyncStatusPending,
				})
			}
			te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
				remoteInvoice("xero-inv-1", tc.invoiceNumber, "AUTHORISED"),
			}}

			if _, err := te.sync.Pull(context.Background(), PullOptions{}); err != nil {
				t.Fatalf("Pull error: %v", err)
			}
			record, _ := te.store.GetInvoiceByRemoteID(context.Background(), 1, "xero-inv-1")
			if record == nil {
				t.Fatal("expected record saved")
			}
			if tc.expectLink == nil {
				if record.ContributionId != nil {
					t.Fatalf("expected no link, got %d", *record.ContributionId)
				}
			} else if record.ContributionId == nil || *record.ContributionId != *tc.expectLink {
				t.Fatalf("expected link %d, got %v", *tc.expectLink, record.ContributionId)
			}
		})
	}
}

func TestPull_BatchContinuesPastFailures(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "AUTHORISED"),
		remoteInvoice("xero-inv-2", "0002", "SURPRISE"),
		remoteInvoice("xero-inv-3", "0003", "PAID"),
	}}

	count, err := te.sync.Pull(context.Background(), PullOptions{})
	var incomplete *IncompleteSyncError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteSyncError, got %v", err)
	}
	if len(incomplete.Errors) != 1 {
		t.Fatalf("expected one failure, got %v", incomplete.Errors)
	}
	if count != 2 {
		t.Fatalf("expected the other two saved, got %d", count)
	}
	if record, _ := te.store.GetInvoiceByRemoteID(context.Background(), 1, "xero-inv-3"); record == nil {
		t.Fatal("records after the failure must still be saved")
	}
}

func TestPull_PersistenceFailureIsPerRecord(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.store.saveErr["xero-inv-1"] = errors.New("duplicate key")
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "AUTHORISED"),
		remoteInvoice("xero-inv-2", "0002", "AUTHORISED"),
	}}

	count, err := te.sync.Pull(context.Background(), PullOptions{})
	var incomplete *IncompleteSyncError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteSyncError, got %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 saved, got %d", count)
	}
}

func TestPull_HookAssignedLinkSurvivesFirstSight(t *testing.T) {
	te := newTestEngine(SyncSettings{InvoiceNumberPrefix: "INV-"}, func(d *Deps) {
		d.PullHook = func(remote *Invoice, candidate *models.AccountInvoice) bool {
			candidate.ContributionId = intPtr(42)
			return true
		}
	})
	// The number matches the prefix, but no local record pre-exists, so
	// the number-derived link is dropped; the hook's link is not.
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "INV-42", "AUTHORISED"),
	}}

	if _, err := te.sync.Pull(context.Background(), PullOptions{}); err != nil {
		t.Fatalf("Pull error: %v", err)
	}
	record, _ := te.store.GetInvoiceByRemoteID(context.Background(), 1, "xero-inv-1")
	if record == nil || record.ContributionId == nil || *record.ContributionId != 42 {
		t.Fatalf("expected hook-assigned link kept, got %+v", record)
	}
}

func TestPull_HookVetoSkipsWithoutError(t *testing.T) {
	te := newTestEngine(SyncSettings{}, func(d *Deps) {
		d.PullHook = func(remote *Invoice, _ *models.AccountInvoice) bool {
			return remote.InvoiceID != "xero-inv-1"
		}
	})
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "AUTHORISED"),
		remoteInvoice("xero-inv-2", "0002", "AUTHORISED"),
	}}

	count, err := te.sync.Pull(context.Background(), PullOptions{})
	if err != nil {
		t.Fatalf("a vetoed invoice is not an error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 saved, got %d", count)
	}
	if record, _ := te.store.GetInvoiceByRemoteID(context.Background(), 1, "xero-inv-1"); record != nil {
		t.Fatal("vetoed invoice must not be saved")
	}
}

func TestPull_RateLimitedAbortsBeforeFetch(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.guard.limited = true

	_, err := te.sync.Pull(context.Background(), PullOptions{})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if te.client.fetchCalls != 0 {
		t.Fatal("no network call may happen during a cooldown")
	}
}

func TestPull_RemoteFetchFailure(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.client.fetchErr = errors.New("boom")

	_, err := te.sync.Pull(context.Background(), PullOptions{})
	var fetchErr *RemoteFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected RemoteFetchError, got %v", err)
	}
}

func TestPull_RateLimitResponseMarksCooldown(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.client.fetchErr = ErrRateLimited

	_, err := te.sync.Pull(context.Background(), PullOptions{})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(te.guard.marked) != 1 {
		t.Fatal("expected cooldown marked on the guard")
	}
}

func TestPull_CreatesContributionOnce(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.contacts.mapping["contact-xero-inv-1"] = 77
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "AUTHORISED"),
	}}

	if _, err := te.sync.Pull(context.Background(), PullOptions{CreateContributions: true}); err != nil {
		t.Fatalf("Pull error: %v", err)
	}
	if len(te.contributions.created) != 1 {
		t.Fatalf("expected one contribution, got %d", len(te.contributions.created))
	}
	created := te.contributions.created[0]
	if created.ContactId != 77 || created.Status != models.ContributionStatusPending {
		t.Fatalf("unexpected contribution: %+v", created)
	}
	if !created.TotalAmount.Equal(decimal.NewFromInt(50)) || created.Currency != "GBP" {
		t.Fatalf("unexpected amount/currency: %+v", created)
	}
	record, _ := te.store.GetInvoiceByRemoteID(context.Background(), 1, "xero-inv-1")
	if record.ContributionId == nil {
		t.Fatal("expected contribution linked back")
	}

	// A second pull of the same invoice must not create another.
	if _, err := te.sync.Pull(context.Background(), PullOptions{CreateContributions: true}); err != nil {
		t.Fatalf("second pull: %v", err)
	}
	if len(te.contributions.created) != 1 {
		t.Fatalf("derivation must be at most once, got %d contributions", len(te.contributions.created))
	}
}

func TestPull_CompletedInvoiceRecordsPayment(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.contacts.mapping["contact-xero-inv-1"] = 77
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "PAID"),
	}}

	if _, err := te.sync.Pull(context.Background(), PullOptions{CreateContributions: true}); err != nil {
		t.Fatalf("Pull error: %v", err)
	}
	if len(te.contributions.payments) != 1 {
		t.Fatalf("expected a payment recorded, got %d", len(te.contributions.payments))
	}
	if !te.contributions.payments[0].amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected payment amount %s", te.contributions.payments[0].amount)
	}
}

func TestPull_CancelledInvoiceCancelsContribution(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.contacts.mapping["contact-xero-inv-1"] = 77
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "VOIDED"),
	}}

	if _, err := te.sync.Pull(context.Background(), PullOptions{CreateContributions: true}); err != nil {
		t.Fatalf("Pull error: %v", err)
	}
	if len(te.contributions.statusChanges) != 1 {
		t.Fatal("expected contribution cancelled")
	}
}

func TestPull_UnmappedContactSkipsCreation(t *testing.T) {
	te := newTestEngine(SyncSettings{})
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "AUTHORISED"),
	}}

	count, err := te.sync.Pull(context.Background(), PullOptions{CreateContributions: true})
	if err != nil {
		t.Fatalf("a missing contact mapping is not an error: %v", err)
	}
	if count != 1 {
		t.Fatalf("the invoice itself must still be saved, got %d", count)
	}
	if len(te.contributions.created) != 0 {
		t.Fatal("expected no contribution without a contact mapping")
	}
}

func TestPull_BusyLockSkipsCreation(t *testing.T) {
	locks := NewMemoryLockManager()
	release, ok := locks.TryAcquire(context.Background(), contributionCreateLockName)
	if !ok {
		t.Fatal("setup: could not take lock")
	}
	defer release()

	te := newTestEngine(SyncSettings{}, func(d *Deps) { d.Locks = locks })
	te.contacts.mapping["contact-xero-inv-1"] = 77
	te.client.fetchResp = &RemoteResponse{Invoices: invoiceList{
		remoteInvoice("xero-inv-1", "0001", "AUTHORISED"),
	}}

	if _, err := te.sync.Pull(context.Background(), PullOptions{CreateContributions: true}); err != nil {
		t.Fatalf("a busy lock is not an error: %v", err)
	}
	if len(te.contributions.created) != 0 {
		t.Fatal("expected creation skipped while the lock is held")
	}
}

func TestPull_ConcurrentDerivationIsAtMostOnce(t *testing.T) {
	locks := NewMemoryLockManager()
	te := newTestEngine(SyncSettings{}, func(d *Deps) { d.Locks = locks })
	te.contacts.mapping["contact-xero-inv-1"] = 77
	invoice := remoteInvoice("xero-inv-1", "0001", "AUTHORISED")
	remoteId := invoice.InvoiceID
	_ = te.store.SaveInvoice(context.Background(), &models.AccountInvoice{
		Plugin:            models.PluginXero,
		ConnectorId:       1,
		AccountsInvoiceId: &remoteId,
		AccountsStatus:    models.InvoiceSyncStatusPending,
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = te.sync.maybeCreateContribution(context.Background(), &invoice, models.InvoiceSyncStatusPending)
		}()
	}
	wg.Wait()

	if len(te.contributions.created) > 1 {
		t.Fatalf("expected at most one derived contribution, got %d", len(te.contributions.created))
	}
}

func intPtr(v int) *int { return &v }
