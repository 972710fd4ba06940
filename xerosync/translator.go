package xerosync

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mjwconsult/accountsync/models"
	"github.com/shopspring/decimal"
)

const xeroDateFormat = "2006-01-02"

// mapToRemote converts a contribution-with-line-items into the outgoing
// Xero invoice payload. The second return value is false when the push
// alter hook vetoed the record ("do not sync", distinct from an error).
func (s *InvoiceSync) mapToRemote(ctx context.Context, invoiceData *models.ContributionInvoice, accountsInvoiceId *string) (*Invoice, bool, error) {
	// Tax mode starts from the configured default; a non-zero tax amount
	// on any line forces exclusive amounts further down.
	lineAmountTypes := s.settings.TaxMode

	totalAmount := decimal.Zero
	lineItems := make([]InvoiceLine, 0, len(invoiceData.LineItems))
	for _, lineItem := range invoiceData.LineItems {
		line := InvoiceLine{
			// Labels can carry a &nbsp; artifact from the CRM form layer.
			Description: lineItem.DisplayName + " " + strings.ReplaceAll(lineItem.Label, "&nbsp;", " "),
			// Xero does not accept negative quantities, so for a refund the
			// sign moves to the price instead.
			Quantity:    lineItem.Qty.Abs(),
			UnitAmount:  lineItem.UnitPrice,
			AccountCode: lineItem.AccountingCode,
		}
		if lineItem.Qty.IsNegative() {
			line.UnitAmount = lineItem.UnitPrice.Neg()
		}
		if line.AccountCode == "" {
			line.AccountCode = s.settings.DefaultAccountCode
		}
		for _, tracking := range lineItem.Tracking {
			line.Tracking = append(line.Tracking, TrackingAssignment{Name: tracking.Name, Option: tracking.Option})
		}
		lineItems = append(lineItems, line)

		totalAmount = totalAmount.Add(lineItem.Qty.Mul(lineItem.UnitPrice))

		if !lineItem.TaxAmount.IsZero() {
			lineAmountTypes = "Exclusive"
		}
	}

	if totalAmount.IsNegative() {
		for i := range lineItems {
			lineItems[i].UnitAmount = lineItems[i].UnitAmount.Neg()
		}
	}

	// A refund/credit goes out as a positive-amount payable invoice
	// rather than a negative receivable.
	invoiceType := "ACCPAY"
	if totalAmount.IsPositive() {
		invoiceType = "ACCREC"
	}

	receiveDate := invoiceData.ReceiveDate.Format(xeroDateFormat)
	invoice := &Invoice{
		Type:            invoiceType,
		Contact:         &Contact{ContactID: invoiceData.AccountsContactId},
		Date:            receiveDate,
		DueDate:         receiveDate,
		Status:          s.settings.DefaultInvoiceStatus,
		InvoiceNumber:   s.settings.InvoiceNumberPrefix + strconv.Itoa(invoiceData.ID),
		CurrencyCode:    invoiceData.Currency,
		Reference:       invoiceData.DisplayName + " " + invoiceData.ContributionSource,
		LineAmountTypes: lineAmountTypes,
		LineItems:       lineItems,
	}
	if accountsInvoiceId != nil && *accountsInvoiceId != "" {
		invoice.InvoiceID = *accountsInvoiceId
	}

	if due, ok := dueDateFromSettings(invoiceData.ReceiveDate, s.settings); ok {
		invoice.DueDate = due
	}

	if s.pushHook != nil && !s.pushHook(invoiceData, invoice) {
		return nil, false, nil
	}

	if err := s.validatePrerequisites(ctx, invoice); err != nil {
		return nil, true, err
	}
	return invoice, true, nil
}

// dueDateFromSettings applies the configured offset+period; the unset
// period disables it.
func dueDateFromSettings(receiveDate time.Time, settings SyncSettings) (string, bool) {
	if settings.DueDateOffset <= 0 || settings.DueDatePeriod == DueDatePeriodUnset {
		return "", false
	}
	var due time.Time
	switch settings.DueDatePeriod {
	case DueDatePeriodDays:
		due = receiveDate.AddDate(0, 0, settings.DueDateOffset)
	case DueDatePeriodWeeks:
		due = receiveDate.AddDate(0, 0, 7*settings.DueDateOffset)
	case DueDatePeriodMonths:
		due = receiveDate.AddDate(0, settings.DueDateOffset, 0)
	default:
		return "", false
	}
	return due.Format(xeroDateFormat), true
}

// mapCancelled synthesizes the minimal payload that voids an invoice at
// the remote end: a zero-amount draft keyed by the known remote id.
func (s *InvoiceSync) mapCancelled(contributionId int, accountsInvoiceId *string) *Invoice {
	today := time.Now().Format(xeroDateFormat)
	invoice := &Invoice{
		InvoiceNumber:   strconv.Itoa(contributionId),
		Type:            "ACCREC",
		Reference:       "Cancelled",
		Date:            today,
		DueDate:         today,
		Status:          "DRAFT",
		LineAmountTypes: "Exclusive",
		LineItems: []InvoiceLine{
			{
				Description: "Cancelled",
				Quantity:    decimal.Zero,
				UnitAmount:  decimal.Zero,
				AccountCode: s.settings.DefaultAccountCode,
			},
		},
	}
	if accountsInvoiceId != nil {
		invoice.InvoiceID = *accountsInvoiceId
	}
	return invoice
}

// validatePrerequisites checks every tracking assignment on the outgoing
// invoice against the remote-defined categories.
func (s *InvoiceSync) validatePrerequisites(ctx context.Context, invoice *Invoice) error {
	for _, line := range invoice.LineItems {
		for _, tracking := range line.Tracking {
			if err := s.tracking.Validate(ctx, tracking); err != nil {
				return err
			}
		}
	}
	return nil
}
