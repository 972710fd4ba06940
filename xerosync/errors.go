package xerosync

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRateLimited aborts a pull or push before any network call when the
// remote API rate-limit cooldown is still active.
var ErrRateLimited = errors.New("xero api rate limit exceeded, try again later")

// RemoteFetchError is fatal to a pull: the remote fetch did not return a
// well-formed invoice collection, so no records were processed.
type RemoteFetchError struct {
	Err error
}

func (e *RemoteFetchError) Error() string {
	if e.Err == nil {
		return "xero invoice fetch returned no usable result"
	}
	return fmt.Sprintf("xero invoice fetch failed: %v", e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// IncompleteSyncError is raised after a batch in which at least one
// record failed. All non-failing records in the batch were still
// committed; Errors carries one message per failure for the job log.
type IncompleteSyncError struct {
	Errors []string
}

func (e *IncompleteSyncError) Error() string {
	return fmt.Sprintf("not all records were saved: %s", strings.Join(e.Errors, "; "))
}

// UnmappedStatusError flags a remote status string outside the known
// vocabulary. This is a contract defect, not a transient condition.
type UnmappedStatusError struct {
	Status string
}

func (e *UnmappedStatusError) Error() string {
	return fmt.Sprintf("unmapped xero invoice status %q", e.Status)
}

// InvalidTrackingCategoryError is a per-record validation failure: a line
// item references a tracking category or option the remote service does
// not define.
type InvalidTrackingCategoryError struct {
	Name   string
	Option string
}

func (e *InvalidTrackingCategoryError) Error() string {
	return fmt.Sprintf("tracking category does not exist: %s %s", e.Name, e.Option)
}
