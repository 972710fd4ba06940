package xerosync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mjwconsult/accountsync/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// connectorCredentials is the JSON blob stored in the connector's
// auth_secret_ref column.
type connectorCredentials struct {
	ClientId     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func encodeCredentials(clientId, clientSecret string) string {
	b, _ := json.Marshal(connectorCredentials{ClientId: clientId, ClientSecret: clientSecret})
	return string(b)
}

func decodeCredentials(raw string) (connectorCredentials, error) {
	var creds connectorCredentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return connectorCredentials{}, fmt.Errorf("connector credentials are malformed: %w", err)
	}
	if strings.TrimSpace(creds.ClientId) == "" || strings.TrimSpace(creds.ClientSecret) == "" {
		return connectorCredentials{}, errors.New("connector credentials are empty")
	}
	return creds, nil
}

type xeroClient struct {
	baseURL  string
	tenantId string
	http     *http.Client
	limiter  <-chan time.Time
}

func newXeroClient(conn *models.AccountConnector) (*xeroClient, error) {
	creds, err := decodeCredentials(conn.AuthSecretRef)
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(os.Getenv("XERO_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.xero.com/api.xro/2.0"
	}
	tokenURL := strings.TrimSpace(os.Getenv("XERO_TOKEN_URL"))
	if tokenURL == "" {
		tokenURL = "https://identity.xero.com/connect/token"
	}
	rateLimitPerMin := int64(55)
	if v := strings.TrimSpace(os.Getenv("XERO_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	oauthConfig := clientcredentials.Config{
		ClientID:     creds.ClientId,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"accounting.transactions", "accounting.settings.read"},
	}
	// Token refreshes and API calls share one underlying client with a
	// hard timeout.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 30 * time.Second})

	return &xeroClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tenantId: conn.TenantId,
		http:     oauthConfig.Client(tokenCtx),
		limiter:  time.Tick(interval),
	}, nil
}

func (c *xeroClient) FetchInvoices(ctx context.Context, filter InvoiceFilter, modifiedSince *time.Time, invoiceType string) (*RemoteResponse, error) {
	path := "/Invoices"
	if filter.InvoiceID != "" {
		path = path + "/" + url.PathEscape(filter.InvoiceID)
	}

	var where []string
	if invoiceType != "" {
		where = append(where, fmt.Sprintf("Type==%q", invoiceType))
	}
	if filter.InvoiceID == "" && filter.InvoiceNumber != "" {
		where = append(where, fmt.Sprintf("InvoiceNumber==%q", filter.InvoiceNumber))
	}
	params := url.Values{}
	if len(where) > 0 {
		params.Set("where", strings.Join(where, " AND "))
	}

	body, err := c.do(ctx, http.MethodGet, path, params, nil, modifiedSince)
	if err != nil {
		return nil, err
	}
	var parsed RemoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *xeroClient) SendInvoices(ctx context.Context, invoices []Invoice) (*RemoteResponse, error) {
	payload, err := json.Marshal(map[string][]Invoice{"Invoices": invoices})
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	// Element-level validation errors come back inline instead of
	// failing the whole batch.
	params.Set("SummarizeErrors", "false")

	body, err := c.do(ctx, http.MethodPost, "/Invoices", params, payload, nil)
	if err != nil {
		return nil, err
	}
	var parsed RemoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *xeroClient) FetchTrackingCategories(ctx context.Context) ([]TrackingCategory, error) {
	body, err := c.do(ctx, http.MethodGet, "/TrackingCategories", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		TrackingCategories []TrackingCategory `json:"TrackingCategories"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed.TrackingCategories, nil
}

func (c *xeroClient) do(ctx context.Context, method, path string, params url.Values, payload []byte, modifiedSince *time.Time) ([]byte, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Xero-tenant-id", c.tenantId)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if modifiedSince != nil && !modifiedSince.IsZero() {
		req.Header.Set("If-Modified-Since", modifiedSince.UTC().Format("2006-01-02T15:04:05"))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode == http.StatusNotModified {
		return []byte("{}"), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("xero api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
