package xerosync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mjwconsult/accountsync/models"
	"github.com/sirupsen/logrus"
)

// PullOptions narrows one pull invocation. The zero filter pulls every
// receivable invoice modified since ModifiedSince.
type PullOptions struct {
	Filter              InvoiceFilter
	ModifiedSince       *time.Time
	CreateContributions bool
}

// Pull fetches remote invoices and mirrors them locally, returning the
// number of records saved. Per-record failures are collected and raised
// as one IncompleteSyncError after every invoice has been attempted.
func (s *InvoiceSync) Pull(ctx context.Context, opts PullOptions) (int, error) {
	if err := s.checkRateLimit(ctx); err != nil {
		return 0, err
	}

	resp, err := s.client.FetchInvoices(ctx, opts.Filter, opts.ModifiedSince, "ACCREC")
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			_ = s.guard.MarkExceeded(ctx, time.Hour)
			return 0, err
		}
		return 0, &RemoteFetchError{Err: err}
	}
	if resp == nil {
		return 0, &RemoteFetchError{}
	}
	if resp.Kind() == ResponseKindBankTransactions {
		return 0, &RemoteFetchError{Err: errors.New("invoice fetch returned bank transactions")}
	}

	saved := 0
	var failures []string
	for i := range resp.Invoices {
		invoice := &resp.Invoices[i]
		wasSaved, err := s.pullOne(ctx, invoice, opts.CreateContributions)
		if err != nil {
			failures = append(failures, fmt.Sprintf("failed to save invoice %s: %v", invoice.InvoiceID, err))
			continue
		}
		if wasSaved {
			saved++
		}
	}

	if len(failures) > 0 {
		return saved, &IncompleteSyncError{Errors: failures}
	}
	return saved, nil
}

// pullOne mirrors a single remote invoice. The false return without an
// error means the pre-save hook vetoed it.
func (s *InvoiceSync) pullOne(ctx context.Context, invoice *Invoice, createContributions bool) (bool, error) {
	status, err := MapInvoiceStatus(invoice.Status)
	if err != nil {
		return false, err
	}

	existing, err := s.store.GetInvoiceByRemoteID(ctx, s.connectorId, invoice.InvoiceID)
	if err != nil {
		return false, err
	}

	var record models.AccountInvoice
	if existing != nil {
		record = *existing
	} else {
		record = models.AccountInvoice{Plugin: models.PluginXero, ConnectorId: s.connectorId}
	}
	remoteId := invoice.InvoiceID
	record.AccountsInvoiceId = &remoteId
	record.AccountsStatus = status
	record.AccountsNeedsUpdate = false
	record.AccountsData, _ = json.Marshal(invoice)
	if modified := parseXeroTime(invoice.UpdatedDateUTC); modified != nil {
		record.AccountsModifiedDate = modified
	}
	// The store stamps last_sync_date itself.
	record.LastSyncDate = nil

	// Invoice-number linking is only trusted when a local record already
	// mirrors this remote invoice. Without one, a remote-numbered invoice
	// could falsely link to an unrelated contribution.
	if existing != nil {
		if contributionId, ok := contributionIdFromInvoiceNumber(invoice.InvoiceNumber, s.settings.InvoiceNumberPrefix); ok {
			record.ContributionId = &contributionId
		}
	}

	// The hook runs after number-derived linking, so a contribution link
	// the hook assigns survives even on first sight of a remote invoice,
	// where number-derived links are dropped.
	if s.pullHook != nil && !s.pullHook(invoice, &record) {
		return false, nil
	}

	if err := s.store.SaveInvoice(ctx, &record); err != nil {
		return false, err
	}

	if createContributions {
		if err := s.maybeCreateContribution(ctx, invoice, status); err != nil {
			return true, err
		}
	}
	return true, nil
}

// contributionIdFromInvoiceNumber strips the configured prefix and
// parses the remainder as a positive contribution id. No prefix
// configured means no linking at all.
func contributionIdFromInvoiceNumber(invoiceNumber, prefix string) (int, bool) {
	if prefix == "" || !strings.HasPrefix(invoiceNumber, prefix) {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(invoiceNumber, prefix))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// maybeCreateContribution derives a local contribution from a pulled
// invoice, at most once per remote invoice. Missing contact mappings and
// a busy lock are logged no-ops, not errors.
func (s *InvoiceSync) maybeCreateContribution(ctx context.Context, invoice *Invoice, status models.InvoiceSyncStatus) error {
	if invoice.Contact == nil || invoice.Contact.ContactID == "" {
		s.logger.WithFields(logrus.Fields{
			"connectorId": s.connectorId,
			"invoiceId":   invoice.InvoiceID,
		}).Info("pulled invoice has no contact, skipping contribution creation")
		return nil
	}
	contactId, err := s.contacts.LookupLocalContact(ctx, s.connectorId, invoice.Contact.ContactID)
	if err != nil {
		return err
	}
	if contactId == 0 {
		s.logger.WithFields(logrus.Fields{
			"connectorId":       s.connectorId,
			"invoiceId":         invoice.InvoiceID,
			"accountsContactId": invoice.Contact.ContactID,
		}).Info("no local contact mapping yet, skipping contribution creation")
		return nil
	}

	release, ok := s.locks.TryAcquire(ctx, contributionCreateLockName)
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"connectorId": s.connectorId,
			"invoiceId":   invoice.InvoiceID,
		}).Info("contribution creation lock busy, skipping")
		return nil
	}
	contributionId, err := s.createLinkedContribution(ctx, invoice, contactId)
	release()
	if err != nil || contributionId == 0 {
		return err
	}

	switch status {
	case models.InvoiceSyncStatusCompleted:
		receiveDate := time.Now()
		if parsed := parseXeroTime(invoice.Date); parsed != nil {
			receiveDate = *parsed
		}
		return s.contributions.RecordPayment(ctx, contributionId, invoice.Total, receiveDate)
	case models.InvoiceSyncStatusCancelled:
		return s.contributions.UpdateContributionStatus(ctx, contributionId, models.ContributionStatusCancelled)
	}
	return nil
}

// createLinkedContribution runs inside the named lock: check the record
// is still unlinked, create the contribution, link it back. Returns 0
// when a contribution already exists.
func (s *InvoiceSync) createLinkedContribution(ctx context.Context, invoice *Invoice, contactId int) (int, error) {
	record, err := s.store.GetInvoiceByRemoteID(ctx, s.connectorId, invoice.InvoiceID)
	if err != nil {
		return 0, err
	}
	if record == nil || record.ContributionId != nil {
		return 0, nil
	}

	receiveDate := time.Now()
	if parsed := parseXeroTime(invoice.Date); parsed != nil {
		receiveDate = *parsed
	}
	source := strings.TrimSpace(fmt.Sprintf("Xero invoice %s %s", invoice.InvoiceNumber, invoice.Reference))

	contributionId, err := s.contributions.CreateContribution(ctx, &models.NewContribution{
		ContactId:     contactId,
		Status:        models.ContributionStatusPending,
		FinancialType: "Accounts Receivable",
		TotalAmount:   invoice.Total,
		Currency:      invoice.CurrencyCode,
		ReceiveDate:   receiveDate,
		Source:        source,
	})
	if err != nil {
		return 0, err
	}
	if err := s.store.LinkContribution(ctx, record.ID, contributionId); err != nil {
		return 0, err
	}
	return contributionId, nil
}
