package xerosync

import (
	"context"
	"time"

	"github.com/mjwconsult/accountsync/config"
	"github.com/mjwconsult/accountsync/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPushLimit = 10

// contributionCreateLockName serializes derived-contribution creation
// across overlapping pull invocations.
const contributionCreateLockName = "data.accountsync.createcontribution"

// RemoteClient is the accounts-package API surface the engines consume.
// The production implementation is xeroClient; tests supply fakes.
type RemoteClient interface {
	FetchInvoices(ctx context.Context, filter InvoiceFilter, modifiedSince *time.Time, invoiceType string) (*RemoteResponse, error)
	SendInvoices(ctx context.Context, invoices []Invoice) (*RemoteResponse, error)
	FetchTrackingCategories(ctx context.Context) ([]TrackingCategory, error)
}

// InvoiceStore persists the local mirror records.
type InvoiceStore interface {
	GetInvoiceByRemoteID(ctx context.Context, connectorId int, accountsInvoiceId string) (*models.AccountInvoice, error)
	SelectInvoicesForPush(ctx context.Context, connectorId int, contributionId int, limit int) ([]models.AccountInvoice, error)
	SaveInvoice(ctx context.Context, record *models.AccountInvoice) error
	SetInvoiceError(ctx context.Context, id uint, errorData []byte, resolved bool) error
	LinkContribution(ctx context.Context, id uint, contributionId int) error
}

// ContactMap resolves remote contact ids to local CRM contacts.
// A zero contact id means "no mapping yet".
type ContactMap interface {
	LookupLocalContact(ctx context.Context, connectorId int, accountsContactId string) (int, error)
}

// ContributionAPI is the CRM financial-transaction surface.
type ContributionAPI interface {
	GetContributionInvoice(ctx context.Context, connectorId int, contributionId int) (*models.ContributionInvoice, error)
	CreateContribution(ctx context.Context, input *models.NewContribution) (int, error)
	UpdateContributionStatus(ctx context.Context, contributionId int, status models.ContributionStatus) error
	RecordPayment(ctx context.Context, contributionId int, amount decimal.Decimal, trxnDate time.Time) error
}

// InvoiceSync moves invoices between the CRM contribution ledger and the
// accounts package, in both directions, for one connector.
type InvoiceSync struct {
	connectorId   int
	store         InvoiceStore
	contacts      ContactMap
	contributions ContributionAPI
	client        RemoteClient
	guard         RateLimitGuard
	locks         LockManager
	settings      SyncSettings
	tracking      *TrackingCategoryCache
	pullHook      PullPreSaveHook
	pushHook      PushAlterHook
	logger        *logrus.Logger
}

// Deps wires an InvoiceSync. Nil hooks mean "always proceed"; a nil
// guard never rate-limits; a nil lock manager falls back to in-process
// mutexes.
type Deps struct {
	ConnectorId   int
	Store         InvoiceStore
	Contacts      ContactMap
	Contributions ContributionAPI
	Client        RemoteClient
	Guard         RateLimitGuard
	Locks         LockManager
	Settings      SyncSettings
	PullHook      PullPreSaveHook
	PushHook      PushAlterHook
	Logger        *logrus.Logger
}

func NewInvoiceSync(deps Deps) *InvoiceSync {
	if deps.Locks == nil {
		deps.Locks = NewMemoryLockManager()
	}
	if deps.Guard == nil {
		deps.Guard = noopGuard{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &InvoiceSync{
		connectorId:   deps.ConnectorId,
		store:         deps.Store,
		contacts:      deps.Contacts,
		contributions: deps.Contributions,
		client:        deps.Client,
		guard:         deps.Guard,
		locks:         deps.Locks,
		settings:      NormalizeSettings(deps.Settings),
		tracking:      NewTrackingCategoryCache(deps.Client),
		pullHook:      deps.PullHook,
		pushHook:      deps.PushHook,
		logger:        deps.Logger,
	}
}

// NewInvoiceSyncForConnector builds the production engine for one
// connector row: gorm store, redis rate-limit state, redis named locks
// and the HTTP Xero client.
func NewInvoiceSyncForConnector(db *gorm.DB, conn *models.AccountConnector) (*InvoiceSync, error) {
	client, err := newXeroClient(conn)
	if err != nil {
		return nil, err
	}
	store := models.NewSyncStore(db)
	return NewInvoiceSync(Deps{
		ConnectorId:   conn.ID,
		Store:         store,
		Contacts:      store,
		Contributions: store,
		Client:        client,
		Guard:         NewRedisRateLimitGuard(conn.ID),
		Locks:         NewRedisLockManager(config.GetRedisLock()),
		Settings:      DecodeSettings(conn.SettingsJSON),
		Logger:        config.GetLogger(),
	}), nil
}
