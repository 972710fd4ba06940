package xerosync

import "github.com/mjwconsult/accountsync/models"

var invoiceStatusMap = map[string]models.InvoiceSyncStatus{
	"PAID":       models.InvoiceSyncStatusCompleted,
	"DELETED":    models.InvoiceSyncStatusCancelled,
	"VOIDED":     models.InvoiceSyncStatusCancelled,
	"DRAFT":      models.InvoiceSyncStatusPending,
	"AUTHORISED": models.InvoiceSyncStatusPending,
	"SUBMITTED":  models.InvoiceSyncStatusPending,
}

// MapInvoiceStatus translates a Xero invoice status into the local
// vocabulary. A status outside the table is an UnmappedStatusError:
// the vocabulary needs extending, silently defaulting would hide it.
func MapInvoiceStatus(status string) (models.InvoiceSyncStatus, error) {
	mapped, ok := invoiceStatusMap[status]
	if !ok {
		return "", &UnmappedStatusError{Status: status}
	}
	return mapped, nil
}

// Choice is a label/value pair for the settings UI.
type Choice struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// InvoiceStatusChoices lists the statuses an outgoing invoice may be
// created with.
func InvoiceStatusChoices() []Choice {
	return []Choice{
		{ID: "DRAFT", Name: "draft", Label: "Draft"},
		{ID: "SUBMITTED", Name: "submitted", Label: "Submitted"},
		{ID: "AUTHORISED", Name: "approved", Label: "Approved"},
	}
}

// TaxModeChoices lists the supported line-amount tax modes.
func TaxModeChoices() []Choice {
	return []Choice{
		{ID: "Inclusive", Name: "inclusive", Label: "Inclusive"},
		{ID: "Exclusive", Name: "exclusive", Label: "Exclusive"},
	}
}
