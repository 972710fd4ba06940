package xerosync

import "github.com/mjwconsult/accountsync/utils"

// Due-date period vocabulary. "select" is the unset placeholder the CRM
// settings form stores, so it disables the offset.
const (
	DueDatePeriodUnset  = "select"
	DueDatePeriodDays   = "days"
	DueDatePeriodWeeks  = "weeks"
	DueDatePeriodMonths = "months"
)

// SyncSettings is every business setting the translator and engines
// read, decoded from the connector row in one place so translation logic
// never reaches into ambient configuration.
type SyncSettings struct {
	DefaultAccountCode   string `json:"defaultAccountCode"`
	InvoiceNumberPrefix  string `json:"invoiceNumberPrefix"`
	DefaultInvoiceStatus string `json:"defaultInvoiceStatus"`
	TaxMode              string `json:"taxMode"`
	DueDateOffset        int    `json:"dueDateOffset"`
	DueDatePeriod        string `json:"dueDatePeriod"`
	CreateContributions  bool   `json:"createContributions"`
}

func DefaultSettings() SyncSettings {
	return SyncSettings{
		DefaultAccountCode:   "200",
		DefaultInvoiceStatus: "SUBMITTED",
		TaxMode:              "Inclusive",
		DueDatePeriod:        DueDatePeriodUnset,
	}
}

func NormalizeSettings(s SyncSettings) SyncSettings {
	def := DefaultSettings()
	if s.DefaultAccountCode == "" {
		s.DefaultAccountCode = def.DefaultAccountCode
	}
	if s.DefaultInvoiceStatus == "" {
		s.DefaultInvoiceStatus = def.DefaultInvoiceStatus
	}
	if s.TaxMode == "" {
		s.TaxMode = def.TaxMode
	}
	if s.DueDatePeriod == "" {
		s.DueDatePeriod = def.DueDatePeriod
	}
	return s
}

func DecodeSettings(raw []byte) SyncSettings {
	if len(raw) == 0 {
		return DefaultSettings()
	}
	var s SyncSettings
	if err := utils.UnmarshalFromJSON(raw, &s); err != nil {
		return DefaultSettings()
	}
	return NormalizeSettings(s)
}

func EncodeSettings(s SyncSettings) []byte {
	b, _ := utils.MarshalToJSON(NormalizeSettings(s))
	return []byte(b)
}
