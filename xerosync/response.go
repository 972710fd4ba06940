package xerosync

import (
	"context"
	"encoding/json"

	"github.com/mjwconsult/accountsync/models"
)

// notModifiablePhrases are the remote error messages that mean the
// invoice can never be changed again (paid, credited, or locked by
// status). A record hitting one of these stops being retried for good.
var notModifiablePhrases = map[string]bool{
	"Invoice not of valid status for modification": true,
	" Invoice not of valid status for modification This document cannot be edited as it has a payment or credit note allocated to it.": true,
}

// savePushResponse interprets the remote response for one push attempt
// and persists the updated record state. A nil response means the record
// was intentionally not sent. Validation errors are returned as messages
// after the error state has been saved.
func (s *InvoiceSync) savePushResponse(ctx context.Context, record *models.AccountInvoice, resp *RemoteResponse) ([]string, error) {
	if resp == nil {
		record.AccountsNeedsUpdate = false
		record.LastSyncDate = nil
		return nil, s.store.SaveInvoice(ctx, record)
	}

	if messages := resp.ValidationMessages(); len(messages) > 0 {
		record.ErrorData, _ = json.Marshal(map[string]interface{}{"error": messages})
		record.IsErrorResolved = false
		if anyNotModifiable(messages) {
			// An unmodifiable remote invoice can never push successfully,
			// so retrying is pointless.
			record.AccountsNeedsUpdate = false
		}
		record.LastSyncDate = nil
		if err := s.store.SaveInvoice(ctx, record); err != nil {
			return nil, err
		}
		return messages, nil
	}

	switch resp.Kind() {
	case ResponseKindInvoices:
		remote := resp.Invoices[0]
		if record.AccountsInvoiceId == nil || *record.AccountsInvoiceId == "" {
			remoteId := remote.InvoiceID
			record.AccountsInvoiceId = &remoteId
		}
		if modified := parseXeroTime(remote.UpdatedDateUTC); modified != nil {
			record.AccountsModifiedDate = modified
		}
		record.AccountsData, _ = json.Marshal(remote)
		status, err := MapInvoiceStatus(remote.Status)
		if err != nil {
			return nil, err
		}
		record.AccountsStatus = status
	case ResponseKindBankTransactions:
		remote := resp.BankTransactions[0]
		if record.AccountsInvoiceId == nil || *record.AccountsInvoiceId == "" {
			remoteId := remote.BankTransactionID
			record.AccountsInvoiceId = &remoteId
		}
		if modified := parseXeroTime(remote.UpdatedDateUTC); modified != nil {
			record.AccountsModifiedDate = modified
		}
		record.AccountsData, _ = json.Marshal(remote)
		status, err := MapInvoiceStatus(remote.Status)
		if err != nil {
			return nil, err
		}
		record.AccountsStatus = status
	}

	// A clean push supersedes any earlier failure.
	record.ErrorData = nil
	record.IsErrorResolved = false
	record.AccountsNeedsUpdate = false
	record.LastSyncDate = nil
	return nil, s.store.SaveInvoice(ctx, record)
}

func anyNotModifiable(messages []string) bool {
	for _, message := range messages {
		if notModifiablePhrases[message] {
			return true
		}
	}
	return false
}
