package models

// InvoiceSyncStatus is the local status vocabulary for mirrored invoices.
type InvoiceSyncStatus string

const (
	InvoiceSyncStatusPending   InvoiceSyncStatus = "pending"
	InvoiceSyncStatusCompleted InvoiceSyncStatus = "completed"
	InvoiceSyncStatusCancelled InvoiceSyncStatus = "cancelled"
)

// ContributionStatus mirrors the CRM contribution status vocabulary.
type ContributionStatus string

const (
	ContributionStatusPending   ContributionStatus = "Pending"
	ContributionStatusCompleted ContributionStatus = "Completed"
	ContributionStatusCancelled ContributionStatus = "Cancelled"
	ContributionStatusFailed    ContributionStatus = "Failed"
)

// IsCancelled reports whether a contribution should be synced as a cancellation.
func (s ContributionStatus) IsCancelled() bool {
	return s == ContributionStatusCancelled || s == ContributionStatusFailed
}
