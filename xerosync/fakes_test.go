package xerosync

import (
	"context"
	"fmt"
	"time"

	"github.com/mjwconsult/accountsync/models"
	"github.com/shopspring/decimal"
)

type fakeClient struct {
	fetchResp  *RemoteResponse
	fetchErr   error
	fetchCalls int

	sendFunc  func(invoices []Invoice) (*RemoteResponse, error)
	sent      [][]Invoice
	sendCalls int

	categories         []TrackingCategory
	categoryFetchCalls int
}

func (c *fakeClient) FetchInvoices(_ context.Context, _ InvoiceFilter, _ *time.Time, _ string) (*RemoteResponse, error) {
	c.fetchCalls++
	return c.fetchResp, c.fetchErr
}

func (c *fakeClient) SendInvoices(_ context.Context, invoices []Invoice) (*RemoteResponse, error) {
	c.sendCalls++
	c.sent = append(c.sent, invoices)
	if c.sendFunc != nil {
		return c.sendFunc(invoices)
	}
	return &RemoteResponse{Status: "OK"}, nil
}

func (c *fakeClient) FetchTrackingCategories(_ context.Context) ([]TrackingCategory, error) {
	c.categoryFetchCalls++
	return c.categories, nil
}

// memStore is an in-memory InvoiceStore with the same selection and
// save semantics as the gorm-backed one.
type memStore struct {
	records map[uint]*models.AccountInvoice
	nextID  uint
	saveErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{records: map[uint]*models.AccountInvoice{}, saveErr: map[string]error{}}
}

func (s *memStore) GetInvoiceByRemoteID(_ context.Context, connectorId int, accountsInvoiceId string) (*models.AccountInvoice, error) {
	for _, record := range s.records {
		if record.ConnectorId == connectorId && record.AccountsInvoiceId != nil && *record.AccountsInvoiceId == accountsInvoiceId {
			clone := *record
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memStore) SelectInvoicesForPush(_ context.Context, connectorId int, contributionId int, limit int) ([]models.AccountInvoice, error) {
	var out []models.AccountInvoice
	for id := uint(1); id < s.nextID+1; id++ {
		record, ok := s.records[id]
		if !ok || record.ConnectorId != connectorId || record.AccountsStatus == models.InvoiceSyncStatusCancelled {
			continue
		}
		if contributionId != 0 {
			if record.ContributionId == nil || *record.ContributionId != contributionId {
				continue
			}
		} else {
			if !record.AccountsNeedsUpdate {
				continue
			}
			if len(record.ErrorData) > 0 && !record.IsErrorResolved {
				continue
			}
		}
		out = append(out, *record)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) SaveInvoice(_ context.Context, record *models.AccountInvoice) error {
	if record.AccountsInvoiceId != nil {
		if err := s.saveErr[*record.AccountsInvoiceId]; err != nil {
			return err
		}
	}
	now := time.Now()
	record.LastSyncDate = &now
	if record.ID == 0 {
		s.nextID++
		record.ID = s.nextID
	} else if record.ID > s.nextID {
		s.nextID = record.ID
	}
	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *memStore) SetInvoiceError(_ context.Context, id uint, errorData []byte, resolved bool) error {
	record, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record %d not found", id)
	}
	record.ErrorData = errorData
	record.IsErrorResolved = resolved
	return nil
}

func (s *memStore) LinkContribution(_ context.Context, id uint, contributionId int) error {
	record, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record %d not found", id)
	}
	record.ContributionId = &contributionId
	return nil
}

type fakeContacts struct {
	mapping map[string]int
}

func (f *fakeContacts) LookupLocalContact(_ context.Context, _ int, accountsContactId string) (int, error) {
	return f.mapping[accountsContactId], nil
}

type recordedPayment struct {
	contributionId int
	amount         decimal.Decimal
}

type fakeContributions struct {
	invoices      map[int]*models.ContributionInvoice
	created       []models.NewContribution
	nextID        int
	payments      []recordedPayment
	statusChanges map[int]models.ContributionStatus
}

func newFakeContributions() *fakeContributions {
	return &fakeContributions{
		invoices:      map[int]*models.ContributionInvoice{},
		nextID:        100,
		statusChanges: map[int]models.ContributionStatus{},
	}
}

func (f *fakeContributions) GetContributionInvoice(_ context.Context, _ int, contributionId int) (*models.ContributionInvoice, error) {
	return f.invoices[contributionId], nil
}

func (f *fakeContributions) CreateContribution(_ context.Context, input *models.NewContribution) (int, error) {
	f.created = append(f.created, *input)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeContributions) UpdateContributionStatus(_ context.Context, contributionId int, status models.ContributionStatus) error {
	f.statusChanges[contributionId] = status
	return nil
}

func (f *fakeContributions) RecordPayment(_ context.Context, contributionId int, amount decimal.Decimal, _ time.Time) error {
	f.payments = append(f.payments, recordedPayment{contributionId: contributionId, amount: amount})
	return nil
}

type fakeGuard struct {
	limited bool
	marked  []time.Duration
}

func (g *fakeGuard) IsRateLimited(_ context.Context) (bool, error) { return g.limited, nil }

func (g *fakeGuard) MarkExceeded(_ context.Context, retryAfter time.Duration) error {
	g.marked = append(g.marked, retryAfter)
	return nil
}

type testEngine struct {
	sync          *InvoiceSync
	client        *fakeClient
	store         *memStore
	contacts      *fakeContacts
	contributions *fakeContributions
	guard         *fakeGuard
}

func newTestEngine(settings SyncSettings, mutate ...func(*Deps)) *testEngine {
	te := &testEngine{
		client:        &fakeClient{},
		store:         newMemStore(),
		contacts:      &fakeContacts{mapping: map[string]int{}},
		contributions: newFakeContributions(),
		guard:         &fakeGuard{},
	}
	deps := Deps{
		ConnectorId:   1,
		Store:         te.store,
		Contacts:      te.contacts,
		Contributions: te.contributions,
		Client:        te.client,
		Guard:         te.guard,
		Settings:      settings,
	}
	for _, m := range mutate {
		m(&deps)
	}
	te.sync = NewInvoiceSync(deps)
	return te
}

func remoteInvoice(id, number, status string) Invoice {
	return Invoice{
		InvoiceID:      id,
		InvoiceNumber:  number,
		Type:           "ACCREC",
		Status:         status,
		Contact:        &Contact{ContactID: "contact-" + id},
		Date:           "2026-08-01T00:00:00",
		UpdatedDateUTC: "/Date(1756100000000+0000)/",
		CurrencyCode:   "GBP",
		Total:          decimal.NewFromInt(50),
	}
}

func localContribution(id int, lines ...models.ContributionInvoiceLine) *models.ContributionInvoice {
	if len(lines) == 0 {
		lines = []models.ContributionInvoiceLine{{
			DisplayName: "Jo Baker",
			Label:       "Membership",
			Qty:         decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(50),
		}}
	}
	return &models.ContributionInvoice{
		ID:                 id,
		DisplayName:        "Jo Baker",
		ContributionSource: "Annual membership",
		Status:             models.ContributionStatusPending,
		AccountsContactId:  "xero-contact-1",
		Currency:           "GBP",
		ReceiveDate:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		LineItems:          lines,
	}
}
