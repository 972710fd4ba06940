package xerosync

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Xero payload shapes. Amounts ride on decimal.Decimal so quantity/price
// arithmetic in the translator is exact.

type Contact struct {
	ContactID string `json:"ContactID,omitempty"`
	Name      string `json:"Name,omitempty"`
}

type TrackingAssignment struct {
	Name   string `json:"Name"`
	Option string `json:"Option"`
}

type InvoiceLine struct {
	Description string               `json:"Description"`
	Quantity    decimal.Decimal      `json:"Quantity"`
	UnitAmount  decimal.Decimal      `json:"UnitAmount"`
	AccountCode string               `json:"AccountCode,omitempty"`
	Tracking    []TrackingAssignment `json:"Tracking,omitempty"`
}

type Invoice struct {
	InvoiceID        string              `json:"InvoiceID,omitempty"`
	InvoiceNumber    string              `json:"InvoiceNumber,omitempty"`
	Type             string              `json:"Type,omitempty"`
	Contact          *Contact            `json:"Contact,omitempty"`
	Date             string              `json:"Date,omitempty"`
	DueDate          string              `json:"DueDate,omitempty"`
	Status           string              `json:"Status,omitempty"`
	Reference        string              `json:"Reference,omitempty"`
	CurrencyCode     string              `json:"CurrencyCode,omitempty"`
	LineAmountTypes  string              `json:"LineAmountTypes,omitempty"`
	Total            decimal.Decimal     `json:"Total,omitempty"`
	UpdatedDateUTC   string              `json:"UpdatedDateUTC,omitempty"`
	LineItems        []InvoiceLine       `json:"LineItems,omitempty"`
	ValidationErrors []ValidationMessage `json:"ValidationErrors,omitempty"`
}

type BankTransaction struct {
	BankTransactionID string              `json:"BankTransactionID,omitempty"`
	Status            string              `json:"Status,omitempty"`
	UpdatedDateUTC    string              `json:"UpdatedDateUTC,omitempty"`
	ValidationErrors  []ValidationMessage `json:"ValidationErrors,omitempty"`
}

type ValidationMessage struct {
	Message string `json:"Message"`
}

// invoiceList tolerates both response shapes: a lone invoice object and
// an invoice array decode to the same sequence.
type invoiceList []Invoice

func (l *invoiceList) UnmarshalJSON(data []byte) error {
	var many []Invoice
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one Invoice
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = []Invoice{one}
	return nil
}

type bankTransactionList []BankTransaction

func (l *bankTransactionList) UnmarshalJSON(data []byte) error {
	var many []BankTransaction
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one BankTransaction
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = []BankTransaction{one}
	return nil
}

// ResponseKind tags which payload variant a remote response carries, so
// the interpreter can dispatch instead of probing ambiguous keys.
type ResponseKind int

const (
	ResponseKindEmpty ResponseKind = iota
	ResponseKindInvoices
	ResponseKindBankTransactions
)

type RemoteResponse struct {
	Status           string              `json:"Status,omitempty"`
	Invoices         invoiceList         `json:"Invoices,omitempty"`
	BankTransactions bankTransactionList `json:"BankTransactions,omitempty"`
}

func (r *RemoteResponse) Kind() ResponseKind {
	switch {
	case len(r.BankTransactions) > 0:
		return ResponseKindBankTransactions
	case len(r.Invoices) > 0:
		return ResponseKindInvoices
	default:
		return ResponseKindEmpty
	}
}

// ValidationMessages collects every element-level validation error in
// the response.
func (r *RemoteResponse) ValidationMessages() []string {
	var messages []string
	for _, invoice := range r.Invoices {
		for _, v := range invoice.ValidationErrors {
			messages = append(messages, v.Message)
		}
	}
	for _, tx := range r.BankTransactions {
		for _, v := range tx.ValidationErrors {
			messages = append(messages, v.Message)
		}
	}
	return messages
}

// InvoiceFilter selects a single remote invoice on pull, by remote id or
// by invoice number. The zero value matches everything.
type InvoiceFilter struct {
	InvoiceID     string
	InvoiceNumber string
}

func (f InvoiceFilter) IsZero() bool {
	return f.InvoiceID == "" && f.InvoiceNumber == ""
}

// RunParams is the JSON blob stored on a queued sync run describing the
// operations it should execute.
type RunParams struct {
	Pull                bool   `json:"pull"`
	Push                bool   `json:"push"`
	XeroInvoiceId       string `json:"xeroInvoiceId,omitempty"`
	InvoiceNumber       string `json:"invoiceNumber,omitempty"`
	StartDate           string `json:"startDate,omitempty"`
	CreateContributions bool   `json:"createContributions,omitempty"`
	ContributionId      int    `json:"contributionId,omitempty"`
	Limit               int    `json:"limit,omitempty"`
}

func DefaultRunParams() RunParams {
	return RunParams{Pull: true, Push: true, Limit: defaultPushLimit}
}

func DecodeRunParams(raw []byte) RunParams {
	if len(raw) == 0 {
		return DefaultRunParams()
	}
	var params RunParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return DefaultRunParams()
	}
	if params.Limit <= 0 {
		params.Limit = defaultPushLimit
	}
	return params
}

func EncodeRunParams(params RunParams) []byte {
	if params.Limit <= 0 {
		params.Limit = defaultPushLimit
	}
	b, _ := json.Marshal(params)
	return b
}

// HTTP DTOs for the trigger/status API.

type ConnectRequest struct {
	TenantId     string `json:"tenantId" validate:"required"`
	Name         string `json:"name"`
	ClientId     string `json:"clientId" validate:"required"`
	ClientSecret string `json:"clientSecret" validate:"required"`
}

type ConnectorResponse struct {
	ID       int    `json:"id"`
	Status   string `json:"status"`
	TenantId string `json:"tenantId"`
	Name     string `json:"name"`
}

type StatusResponse struct {
	Connector         ConnectorResponse `json:"connector"`
	LastSyncAt        *string           `json:"lastSyncAt"`
	LastSuccessSyncAt *string           `json:"lastSuccessSyncAt"`
	Settings          SyncSettings      `json:"settings"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID            uint    `json:"id"`
	Status        string  `json:"status"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
	DurationMs    int64   `json:"durationMs"`
	RecordsSynced int     `json:"recordsSynced"`
	ErrorCount    int     `json:"errorCount"`
	TriggeredBy   string  `json:"triggeredBy"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	Operation  string `json:"operation"`
	ExternalId string `json:"externalId"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	RunId       uint `json:"run_id"`
	ConnectorId int  `json:"connector_id"`
}
