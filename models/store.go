package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// SyncStore is the gorm-backed implementation of the collaborator
// interfaces the sync engine consumes: invoice-record storage, the
// contact mapping and the contribution API.
type SyncStore struct {
	db *gorm.DB
}

func NewSyncStore(db *gorm.DB) *SyncStore {
	return &SyncStore{db: db}
}

// GetInvoiceByRemoteID returns nil when no local record mirrors the
// remote invoice yet.
func (s *SyncStore) GetInvoiceByRemoteID(ctx context.Context, connectorId int, accountsInvoiceId string) (*AccountInvoice, error) {
	var record AccountInvoice
	err := s.db.WithContext(ctx).
		Where("plugin = ? AND connector_id = ? AND accounts_invoice_id = ?", PluginXero, connectorId, accountsInvoiceId).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// SelectInvoicesForPush returns the records due for a push batch. A
// requested contribution overrides the needs-update/error gating so an
// operator can force one record through.
func (s *SyncStore) SelectInvoicesForPush(ctx context.Context, connectorId int, contributionId int, limit int) ([]AccountInvoice, error) {
	q := s.db.WithContext(ctx).
		Where("plugin = ? AND connector_id = ?", PluginXero, connectorId).
		Where("accounts_status != ?", InvoiceSyncStatusCancelled).
		Order("id").
		Limit(limit)
	if contributionId != 0 {
		q = q.Where("contribution_id = ?", contributionId)
	} else {
		q = q.Where("accounts_needs_update = ?", true).
			Where("error_data IS NULL OR is_error_resolved = ?", true)
	}

	var records []AccountInvoice
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// SaveInvoice upserts by local id and stamps last_sync_date with the
// current time, which is why callers clear it first.
func (s *SyncStore) SaveInvoice(ctx context.Context, record *AccountInvoice) error {
	now := time.Now()
	record.LastSyncDate = &now
	if record.ID == 0 {
		err := s.db.WithContext(ctx).Create(record).Error
		if err != nil && isDuplicateKeyErr(err) && record.AccountsInvoiceId != nil {
			// Concurrent pull created the row first. Adopt its id and
			// apply this record's state on top.
			existing, lookupErr := s.GetInvoiceByRemoteID(ctx, record.ConnectorId, *record.AccountsInvoiceId)
			if lookupErr != nil {
				return lookupErr
			}
			if existing == nil {
				return err
			}
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			return s.db.WithContext(ctx).Save(record).Error
		}
		return err
	}
	return s.db.WithContext(ctx).Save(record).Error
}

func (s *SyncStore) SetInvoiceError(ctx context.Context, id uint, errorData []byte, resolved bool) error {
	return s.db.WithContext(ctx).
		Model(&AccountInvoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"error_data":        errorData,
			"is_error_resolved": resolved,
		}).Error
}

func (s *SyncStore) LinkContribution(ctx context.Context, id uint, contributionId int) error {
	return s.db.WithContext(ctx).
		Model(&AccountInvoice{}).
		Where("id = ?", id).
		Update("contribution_id", contributionId).Error
}

// LookupLocalContact returns 0 when the remote contact has no local
// mapping yet.
func (s *SyncStore) LookupLocalContact(ctx context.Context, connectorId int, accountsContactId string) (int, error) {
	var mapping AccountContact
	err := s.db.WithContext(ctx).
		Where("plugin = ? AND connector_id = ? AND accounts_contact_id = ?", PluginXero, connectorId, accountsContactId).
		Take(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return mapping.ContactId, nil
}

// GetContributionInvoice assembles the derived contribution-with-line-items
// shape the translator consumes. Returns nil when the contribution does
// not exist.
func (s *SyncStore) GetContributionInvoice(ctx context.Context, connectorId int, contributionId int) (*ContributionInvoice, error) {
	var contribution Contribution
	err := s.db.WithContext(ctx).
		Preload("LineItems").
		Where("id = ?", contributionId).
		Take(&contribution).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var contact Contact
	if err := s.db.WithContext(ctx).Where("id = ?", contribution.ContactId).Take(&contact).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var accountsContactId string
	var mapping AccountContact
	err = s.db.WithContext(ctx).
		Where("plugin = ? AND connector_id = ? AND contact_id = ?", PluginXero, connectorId, contribution.ContactId).
		Take(&mapping).Error
	if err == nil {
		accountsContactId = mapping.AccountsContactId
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	invoice := &ContributionInvoice{
		ID:                 contribution.ID,
		DisplayName:        contact.DisplayName,
		ContributionSource: contribution.Source,
		Status:             contribution.Status,
		AccountsContactId:  accountsContactId,
		Currency:           contribution.Currency,
		ReceiveDate:        contribution.ReceiveDate,
	}
	for _, line := range contribution.LineItems {
		var tracking []TrackingOption
		if len(line.TrackingJSON) > 0 {
			if err := json.Unmarshal(line.TrackingJSON, &tracking); err != nil {
				return nil, fmt.Errorf("contribution %d: decode line tracking: %w", contributionId, err)
			}
		}
		invoice.LineItems = append(invoice.LineItems, ContributionInvoiceLine{
			DisplayName:    contact.DisplayName,
			Label:          line.Label,
			Qty:            line.Qty,
			UnitPrice:      line.UnitPrice,
			TaxAmount:      line.TaxAmount,
			AccountingCode: line.AccountingCode,
			Tracking:       tracking,
		})
	}
	return invoice, nil
}

func (s *SyncStore) CreateContribution(ctx context.Context, input *NewContribution) (int, error) {
	contribution := Contribution{
		ContactId:     input.ContactId,
		Status:        input.Status,
		FinancialType: input.FinancialType,
		TotalAmount:   input.TotalAmount,
		Currency:      input.Currency,
		ReceiveDate:   input.ReceiveDate,
		Source:        input.Source,
	}
	if err := s.db.WithContext(ctx).Create(&contribution).Error; err != nil {
		return 0, err
	}
	return contribution.ID, nil
}

func (s *SyncStore) UpdateContributionStatus(ctx context.Context, contributionId int, status ContributionStatus) error {
	return s.db.WithContext(ctx).
		Model(&Contribution{}).
		Where("id = ?", contributionId).
		Update("status", status).Error
}

// RecordPayment stores a payment row and completes the contribution.
// No notification side-effects here.
func (s *SyncStore) RecordPayment(ctx context.Context, contributionId int, amount decimal.Decimal, trxnDate time.Time) error {
	payment := ContributionPayment{
		ContributionId: contributionId,
		TotalAmount:    amount,
		TrxnDate:       trxnDate,
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return err
	}
	return s.UpdateContributionStatus(ctx, contributionId, ContributionStatusCompleted)
}
