// Package registrysdk is a typed client for the AI Programs Registry API.
// It satisfies the record store's backend contract, so a client UI can feed
// its list view straight from this client.
package registrysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

// Client is a minimal registry HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// LoginResult is the login payload.
type LoginResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// ChatStatus mirrors the chat configuration payload.
type ChatStatus struct {
	Configured bool    `json:"configured"`
	Provider   string  `json:"provider,omitempty"`
	LastUsed   *string `json:"last_used,omitempty"`
	UsageCount int     `json:"usage_count"`
}

// Event is an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps event list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Compliance is the document compliance payload.
type Compliance struct {
	InitiativeID         string   `json:"initiative_id"`
	Status               string   `json:"status"`
	CompliancePercentage float64  `json:"compliance_percentage"`
	TotalRequired        int      `json:"total_required"`
	Completed            int      `json:"completed"`
	Missing              []string `json:"missing"`
}

// Login exchanges credentials for a token and remembers it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var resp LoginResult
	err := c.do(ctx, http.MethodPost, "api/login", map[string]any{
		"username": username,
		"password": password,
	}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var resp domain.User
	err := c.do(ctx, http.MethodGet, "api/me", nil, &resp)
	return resp, err
}

// ListInitiatives fetches every visible initiative.
func (c *Client) ListInitiatives(ctx context.Context) ([]domain.Initiative, error) {
	var resp []domain.Initiative
	err := c.do(ctx, http.MethodGet, "api/initiatives", nil, &resp)
	return resp, err
}

// ListOptions are server-side pushdown filters for initiative listings.
type ListOptions struct {
	Department string
	Stage      string
	Risk       string
	Status     string
	Search     string
	SortBy     string
	SortOrder  string
	Limit      int
	Offset     int
}

// ListInitiativesWith fetches initiatives with server-side filtering.
func (c *Client) ListInitiativesWith(ctx context.Context, opts ListOptions) ([]domain.Initiative, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("department", opts.Department)
	set("stage", opts.Stage)
	set("risk", opts.Risk)
	set("status", opts.Status)
	set("search", opts.Search)
	set("sort_by", opts.SortBy)
	set("sort_order", opts.SortOrder)
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", opts.Offset))
	}
	endpoint := "api/initiatives"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []domain.Initiative
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetInitiative fetches one initiative.
func (c *Client) GetInitiative(ctx context.Context, id string) (domain.Initiative, error) {
	var resp domain.Initiative
	err := c.do(ctx, http.MethodGet, "api/initiatives/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateInitiative registers a draft and returns the server-assigned record.
func (c *Client) CreateInitiative(ctx context.Context, draft domain.Initiative) (domain.Initiative, error) {
	body := map[string]any{"title": draft.Title}
	add := func(k, v string) {
		if v != "" {
			body[k] = v
		}
	}
	add("program_owner", draft.ProgramOwner)
	add("department", draft.Department)
	add("background", draft.Background)
	add("goal", draft.Goal)
	add("stage", draft.Stage)
	add("risks", draft.Risks)
	add("vendor_info", draft.VendorInfo)
	add("ai_components", draft.AIComponents)
	add("equity_considerations", draft.EquityConsiderations)
	var resp domain.Initiative
	err := c.do(ctx, http.MethodPost, "api/initiatives", body, &resp)
	return resp, err
}

// UpdateInitiative sends a partial update and returns the updated record.
func (c *Client) UpdateInitiative(ctx context.Context, id string, fields map[string]any) (domain.Initiative, error) {
	var resp domain.Initiative
	err := c.do(ctx, http.MethodPatch, "api/initiatives/"+url.PathEscape(id), fields, &resp)
	return resp, err
}

// DeleteInitiative soft-deletes an initiative.
func (c *Client) DeleteInitiative(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "api/initiatives/"+url.PathEscape(id), nil, nil)
}

// Compliance fetches document compliance for an initiative.
func (c *Client) Compliance(ctx context.Context, initiativeID string) (Compliance, error) {
	var resp Compliance
	err := c.do(ctx, http.MethodGet, "api/initiatives/"+url.PathEscape(initiativeID)+"/compliance", nil, &resp)
	return resp, err
}

// UploadDocument sends raw file content with metadata in the query string.
func (c *Client) UploadDocument(ctx context.Context, initiativeID, libraryType, category, filename string, content []byte, isRequired bool) (domain.Document, error) {
	q := url.Values{}
	if initiativeID != "" {
		q.Set("initiative_id", initiativeID)
	}
	q.Set("library_type", libraryType)
	if category != "" {
		q.Set("category", category)
	}
	q.Set("filename", filename)
	if isRequired {
		q.Set("is_required", "true")
	}
	var resp domain.Document
	err := c.doRaw(ctx, http.MethodPost, "api/documents?"+q.Encode(), content, &resp)
	return resp, err
}

// ListDocuments fetches document metadata.
func (c *Client) ListDocuments(ctx context.Context, initiativeID, libraryType string) ([]domain.Document, error) {
	q := url.Values{}
	if initiativeID != "" {
		q.Set("initiative_id", initiativeID)
	}
	if libraryType != "" {
		q.Set("library_type", libraryType)
	}
	endpoint := "api/documents"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []domain.Document
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ListTemplates fetches the admin template library.
func (c *Client) ListTemplates(ctx context.Context) ([]domain.Document, error) {
	var resp []domain.Document
	err := c.do(ctx, http.MethodGet, "api/documents/templates", nil, &resp)
	return resp, err
}

// InstantiateTemplate copies a template into an initiative's core library.
func (c *Client) InstantiateTemplate(ctx context.Context, templateID, initiativeID string) (domain.Document, error) {
	var resp domain.Document
	err := c.do(ctx, http.MethodPost, "api/documents/instantiate", map[string]any{
		"template_id":   templateID,
		"initiative_id": initiativeID,
	}, &resp)
	return resp, err
}

// DownloadDocument fetches raw file content.
func (c *Client) DownloadDocument(ctx context.Context, id string) ([]byte, error) {
	var out []byte
	err := c.doBytes(ctx, "api/documents/"+url.PathEscape(id)+"/download", &out)
	return out, err
}

// ExportCSV fetches the CSV export of all non-deleted initiatives.
func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	var out []byte
	err := c.doBytes(ctx, "api/export/csv", &out)
	return out, err
}

// ChatSetup stores the caller's LLM API key server-side.
func (c *Client) ChatSetup(ctx context.Context, apiKey string) (ChatStatus, error) {
	var resp ChatStatus
	err := c.do(ctx, http.MethodPost, "api/chat/setup", map[string]any{"api_key": apiKey}, &resp)
	return resp, err
}

// ChatStatus reports the caller's chat configuration.
func (c *Client) ChatStatus(ctx context.Context) (ChatStatus, error) {
	var resp ChatStatus
	err := c.do(ctx, http.MethodGet, "api/chat/status", nil, &resp)
	return resp, err
}

// ChatQuery asks about the named initiatives, or everything when ids is nil.
func (c *Client) ChatQuery(ctx context.Context, query string, initiativeIDs []string) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	body := map[string]any{"query": query}
	if len(initiativeIDs) > 0 {
		body["initiative_ids"] = initiativeIDs
	}
	err := c.do(ctx, http.MethodPost, "api/chat/query", body, &resp)
	return resp.Response, err
}

// ChatDisconnect removes the caller's stored key.
func (c *Client) ChatDisconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "api/chat/key", nil, nil)
}

// Events fetches recent audit events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage fetches audit events with cursor pagination.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "api/events"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+"/"+strings.TrimLeft(endpoint, "/"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out, nil)
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, content []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base()+"/"+strings.TrimLeft(endpoint, "/"), bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return c.send(req, out, nil)
}

func (c *Client) doBytes(ctx context.Context, endpoint string, out *[]byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/"+strings.TrimLeft(endpoint, "/"), nil)
	if err != nil {
		return err
	}
	return c.send(req, nil, out)
}

func (c *Client) send(req *http.Request, out any, raw *[]byte) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if raw != nil {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		*raw = b
		return nil
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
