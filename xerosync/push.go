package xerosync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mjwconsult/accountsync/models"
)

// ignoredViaHookMessage is the sentinel stored on a record the push
// alter hook vetoed, so it is not reselected every batch.
const ignoredViaHookMessage = "Ignored via hook"

var errHookVeto = errors.New("push vetoed by hook")

// Push sends eligible local records to the remote service, up to limit.
// A non-zero contributionId forces that single record through regardless
// of the needs-update/error gating. Returns the contribution ids that
// were attempted; per-record failures are raised together as one
// IncompleteSyncError after the whole batch has run.
func (s *InvoiceSync) Push(ctx context.Context, contributionId int, limit int) ([]int, error) {
	if err := s.checkRateLimit(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPushLimit
	}

	records, err := s.store.SelectInvoicesForPush(ctx, s.connectorId, contributionId, limit)
	if err != nil {
		return nil, err
	}

	attempted := make([]int, 0, len(records))
	var failures []string
	for i := range records {
		record := &records[i]
		recordContributionId := 0
		if record.ContributionId != nil {
			recordContributionId = *record.ContributionId
		}

		validationMessages, err := s.pushOne(ctx, record)
		if errors.Is(err, errHookVeto) {
			continue
		}
		if err != nil {
			if markErr := s.store.SetInvoiceError(ctx, record.ID, appendErrorData(record.ErrorData, err), false); markErr != nil {
				failures = append(failures, fmt.Sprintf("contribution %d: failed to record error: %v", recordContributionId, markErr))
			}
			failures = append(failures, fmt.Sprintf("contribution %d: %v", recordContributionId, err))
		} else if len(validationMessages) > 0 {
			failures = append(failures, fmt.Sprintf("contribution %d rejected by xero: %s", recordContributionId, strings.Join(validationMessages, "; ")))
		}
		attempted = append(attempted, recordContributionId)
	}

	if len(failures) > 0 {
		return attempted, &IncompleteSyncError{Errors: failures}
	}
	return attempted, nil
}

// pushOne maps and sends a single record. Validation errors reported by
// the remote service are returned as messages with the record state
// already persisted; errHookVeto means the alter hook vetoed the record.
func (s *InvoiceSync) pushOne(ctx context.Context, record *models.AccountInvoice) ([]string, error) {
	if record.ContributionId == nil {
		return nil, errors.New("record has no linked contribution")
	}
	contributionId := *record.ContributionId

	contributionInvoice, err := s.contributions.GetContributionInvoice(ctx, s.connectorId, contributionId)
	if err != nil {
		return nil, err
	}
	if contributionInvoice == nil {
		return nil, fmt.Errorf("contribution %d not found", contributionId)
	}

	var payload *Invoice
	if contributionInvoice.Status.IsCancelled() {
		if record.AccountsInvoiceId == nil || *record.AccountsInvoiceId == "" {
			// Cancelled before it ever reached the remote service, so
			// there is nothing to void there.
			return s.savePushResponse(ctx, record, nil)
		}
		payload = s.mapCancelled(contributionId, record.AccountsInvoiceId)
	} else {
		mapped, proceed, err := s.mapToRemote(ctx, contributionInvoice, record.AccountsInvoiceId)
		if err != nil {
			return nil, err
		}
		if !proceed {
			errorData, _ := json.Marshal(map[string]string{"error": ignoredViaHookMessage})
			if err := s.store.SetInvoiceError(ctx, record.ID, errorData, false); err != nil {
				return nil, err
			}
			return nil, errHookVeto
		}
		payload = mapped
	}

	resp, err := s.client.SendInvoices(ctx, []Invoice{*payload})
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			_ = s.guard.MarkExceeded(ctx, time.Hour)
		}
		return nil, err
	}
	return s.savePushResponse(ctx, record, resp)
}

// appendErrorData wraps the failure with whatever error context the
// record already carried.
func appendErrorData(prior []byte, err error) []byte {
	payload := map[string]interface{}{"error": err.Error()}
	if len(prior) > 0 {
		payload["previous"] = json.RawMessage(prior)
	}
	b, _ := json.Marshal(payload)
	return b
}
