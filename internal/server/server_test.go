package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/Mdraugelis/ai-programs-registry/internal/chat"
	"github.com/Mdraugelis/ai-programs-registry/internal/config"
	"github.com/Mdraugelis/ai-programs-registry/internal/db"
	"github.com/Mdraugelis/ai-programs-registry/internal/engine"
	"github.com/Mdraugelis/ai-programs-registry/internal/migrate"
)

const testSecret = "test-jwt-secret"

type testServer struct {
	URL        string
	Engine     engine.Engine
	AdminToken string
	UserToken  string
	client     *http.Client
	close      func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("reg-1")
	e := engine.New(conn, cfg, workspace)

	ctx := context.Background()
	if _, err := e.CreateUser(ctx, "admin", "admin@example.org", "admin-pass-1", "admin", "system"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if _, err := e.CreateUser(ctx, "carol", "carol@example.org", "carol-pass-1", "contributor", "system"); err != nil {
		t.Fatalf("seed contributor: %v", err)
	}

	handler, err := New(Config{
		Engine: e,
		Chat:   chat.New(e.Repo, cfg, testSecret),
		Auth:   AuthConfig{JWTSecret: testSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	ts.AdminToken = ts.login(t, "admin", "admin-pass-1")
	ts.UserToken = ts.login(t, "carol", "carol-pass-1")
	return ts
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	res, data := doJSON(t, s.client, http.MethodPost, s.URL+"/api/login", map[string]any{
		"username": username,
		"password": password,
	}, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, res.StatusCode, data)
	}
	var body LoginResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if body.Token == "" {
		t.Fatal("empty token")
	}
	return body.Token
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthIsOpen(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, data)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/initiatives", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, data)
	}
	if !strings.Contains(string(data), `"unauthorized"`) {
		t.Fatalf("envelope missing code: %s", data)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/login", map[string]any{
		"username": "admin",
		"password": "wrong",
	}, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, data)
	}
}

func TestInitiativeCRUD(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/initiatives", map[string]any{
		"title":      "Sepsis Early Warning",
		"department": "Nursing",
		"stage":      "pilot",
		"risks":      "High clinical impact",
	}, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create: %d %s", res.StatusCode, data)
	}
	var created InitiativeResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.ID == "" || created.Status != "active" {
		t.Fatalf("created = %+v", created)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/initiatives/"+created.ID, nil, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/api/initiatives/"+created.ID, map[string]any{
		"stage": "production",
	}, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch: %d %s", res.StatusCode, data)
	}
	var updated InitiativeResponse
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Stage != "production" || updated.Department != "Nursing" {
		t.Fatalf("updated = %+v", updated)
	}

	// contributors cannot delete
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/api/initiatives/"+created.ID, nil, srv.UserToken)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("contributor delete: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/api/initiatives/"+created.ID, nil, srv.AdminToken)
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		t.Fatalf("admin delete: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/initiatives", nil, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, data)
	}
	var listed []InitiativeResponse
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 0 {
		t.Fatalf("soft-deleted initiative still listed: %+v", listed)
	}
}

func TestInitiativeListFilters(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	seed := []map[string]any{
		{"title": "Sepsis Early Warning", "department": "Nursing", "stage": "pilot", "risks": "HIGH impact"},
		{"title": "Claims Triage", "department": "Finance", "stage": "idea"},
		{"title": "Radiology Assist", "department": "Imaging", "stage": "pilot", "risks": "low"},
	}
	for _, body := range seed {
		if res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/initiatives", body, srv.UserToken); res.StatusCode != http.StatusOK {
			t.Fatalf("seed: %d %s", res.StatusCode, data)
		}
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/initiatives?stage=pilot&risk=high", nil, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("filtered list: %d %s", res.StatusCode, data)
	}
	var items []InitiativeResponse
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Sepsis Early Warning" {
		t.Fatalf("filter result: %+v", items)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/initiatives?search=triage", nil, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("search: %d %s", res.StatusCode, data)
	}
	items = nil
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Claims Triage" {
		t.Fatalf("search result: %+v", items)
	}
}

func uploadDocument(t *testing.T, srv *testServer, token, query string, content []byte) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/documents?"+query, bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res.StatusCode, data
}

func TestDocumentUploadDownloadAndCompliance(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/initiatives", map[string]any{
		"title": "Sepsis Early Warning",
		"stage": "proposal",
	}, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create initiative: %d %s", res.StatusCode, data)
	}
	var in InitiativeResponse
	if err := json.Unmarshal(data, &in); err != nil {
		t.Fatal(err)
	}

	status, body := uploadDocument(t, srv, srv.UserToken,
		"initiative_id="+in.ID+"&library_type=core&category=governance&filename=charter.pdf&is_required=true",
		[]byte("charter body"))
	if status != http.StatusOK {
		t.Fatalf("upload: %d %s", status, body)
	}
	var doc DocumentResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Version != 1 || doc.LibraryType != "core" {
		t.Fatalf("doc = %+v", doc)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/documents/"+doc.ID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+srv.UserToken)
	dlRes, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer dlRes.Body.Close()
	got, _ := io.ReadAll(dlRes.Body)
	if dlRes.StatusCode != http.StatusOK || string(got) != "charter body" {
		t.Fatalf("download: %d %q", dlRes.StatusCode, got)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/initiatives/"+in.ID+"/compliance", nil, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("compliance: %d %s", res.StatusCode, data)
	}
	var comp ComplianceResponse
	if err := json.Unmarshal(data, &comp); err != nil {
		t.Fatal(err)
	}
	if comp.TotalRequired == 0 || comp.Completed != 1 {
		t.Fatalf("compliance = %+v", comp)
	}
}

func TestAdminLibraryRequiresAdmin(t *testing.T) {
	srv := newTestServer(t)
	status, body := uploadDocument(t, srv, srv.UserToken,
		"library_type=admin&category=template&filename=tpl.docx&is_template=true",
		[]byte("tpl"))
	if status != http.StatusForbidden {
		t.Fatalf("contributor admin upload: %d %s", status, body)
	}
	status, body = uploadDocument(t, srv, srv.AdminToken,
		"library_type=admin&category=template&filename=tpl.docx&is_template=true",
		[]byte("tpl"))
	if status != http.StatusOK {
		t.Fatalf("admin upload: %d %s", status, body)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/documents/templates", nil, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("templates: %d %s", res.StatusCode, data)
	}
	var tpls []DocumentResponse
	if err := json.Unmarshal(data, &tpls); err != nil {
		t.Fatal(err)
	}
	if len(tpls) != 1 || !tpls[0].IsTemplate {
		t.Fatalf("templates = %+v", tpls)
	}
}

func TestUserManagementRequiresAdmin(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/users", map[string]any{
		"username": "eve", "password": "longenough", "role": "reviewer",
	}, srv.UserToken)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("contributor create user: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/users", map[string]any{
		"username": "eve", "password": "longenough", "role": "reviewer",
	}, srv.AdminToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin create user: %d %s", res.StatusCode, data)
	}
}

func TestMeAndEvents(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/me", nil, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, data)
	}
	var me UserResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatal(err)
	}
	if me.Username != "carol" || me.Role != "contributor" {
		t.Fatalf("me = %+v", me)
	}

	if res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/initiatives", map[string]any{"title": "x"}, srv.UserToken); res.StatusCode != http.StatusOK {
		t.Fatalf("seed: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/events?entity_kind=initiative", nil, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, data)
	}
	var evts paginatedEvents
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatal(err)
	}
	if len(evts.Items) == 0 || evts.Items[0].Type != "initiative.created" {
		t.Fatalf("events = %+v", evts)
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)
	if res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/initiatives", map[string]any{"title": "Exported"}, srv.UserToken); res.StatusCode != http.StatusOK {
		t.Fatalf("seed: %d %s", res.StatusCode, data)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/export/csv", nil)
	req.Header.Set("Authorization", "Bearer "+srv.UserToken)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export: %d %s", res.StatusCode, data)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %s", ct)
	}
	if !strings.Contains(string(data), "Exported") {
		t.Fatalf("csv missing row: %s", data)
	}
}

func TestChatStatusUnconfigured(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/chat/status", nil, srv.UserToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status: %d %s", res.StatusCode, data)
	}
	var st chat.Status
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Configured {
		t.Fatalf("status = %+v", st)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/chat/query", map[string]any{"query": "hi"}, srv.UserToken)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("query without key: %d %s", res.StatusCode, data)
	}
	if !strings.Contains(string(data), "chat_not_configured") {
		t.Fatalf("envelope: %s", data)
	}
}
