package xerosync

import "github.com/mjwconsult/accountsync/models"

// PullPreSaveHook runs before a pulled invoice is saved locally. It may
// mutate the candidate record; returning false vetoes the save (the
// invoice is skipped, not an error).
type PullPreSaveHook func(remote *Invoice, candidate *models.AccountInvoice) bool

// PushAlterHook runs after a contribution has been mapped to a remote
// invoice and before it is sent. It may mutate the mapped invoice;
// returning false vetoes the push for this record.
type PushAlterHook func(local *models.ContributionInvoice, mapped *Invoice) bool
