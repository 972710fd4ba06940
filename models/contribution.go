package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contribution is the CRM financial transaction referenced by the sync
// engine. The generic contribution subsystem owns it; the sync engine
// creates pending rows from pulled invoices and records payments or
// cancellations against them.
type Contribution struct {
	ID            int                `gorm:"primary_key" json:"id"`
	ContactId     int                `gorm:"index;not null" json:"contact_id"`
	Status        ContributionStatus `gorm:"size:20;not null" json:"status"`
	FinancialType string             `gorm:"size:64" json:"financial_type"`
	TotalAmount   decimal.Decimal    `gorm:"type:decimal(20,6)" json:"total_amount"`
	Currency      string             `gorm:"size:3" json:"currency"`
	ReceiveDate   time.Time          `json:"receive_date"`
	Source        string             `gorm:"size:255" json:"source"`
	LineItems     []ContributionLineItem
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ContributionLineItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ContributionId int             `gorm:"index;not null" json:"contribution_id"`
	Label          string          `gorm:"size:255" json:"label"`
	Qty            decimal.Decimal `gorm:"type:decimal(20,6)" json:"qty"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,6)" json:"unit_price"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,6)" json:"tax_amount"`
	AccountingCode string          `gorm:"size:64" json:"accounting_code"`
	TrackingJSON   []byte          `gorm:"type:json" json:"tracking"`
}

// ContributionPayment records money received against a contribution.
type ContributionPayment struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ContributionId int             `gorm:"index;not null" json:"contribution_id"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,6)" json:"total_amount"`
	TrxnDate       time.Time       `json:"trxn_date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TrackingOption is one tracking-category assignment carried on a line
// item, stored as JSON on the row.
type TrackingOption struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

// NewContribution is the input shape for contributions the pull engine
// derives from remote invoices.
type NewContribution struct {
	ContactId     int
	Status        ContributionStatus
	FinancialType string
	TotalAmount   decimal.Decimal
	Currency      string
	ReceiveDate   time.Time
	Source        string
}

// ContributionInvoice is the derived contribution-with-line-items shape
// the record translator consumes when pushing.
type ContributionInvoice struct {
	ID                 int
	DisplayName        string
	ContributionSource string
	Status             ContributionStatus
	AccountsContactId  string
	Currency           string
	ReceiveDate        time.Time
	LineItems          []ContributionInvoiceLine
}

type ContributionInvoiceLine struct {
	DisplayName    string
	Label          string
	Qty            decimal.Decimal
	UnitPrice      decimal.Decimal
	TaxAmount      decimal.Decimal
	AccountingCode string
	Tracking       []TrackingOption
}
