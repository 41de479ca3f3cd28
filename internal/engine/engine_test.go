package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Mdraugelis/ai-programs-registry/internal/config"
	"github.com/Mdraugelis/ai-programs-registry/internal/db"
	"github.com/Mdraugelis/ai-programs-registry/internal/engine"
	"github.com/Mdraugelis/ai-programs-registry/internal/migrate"
	"github.com/Mdraugelis/ai-programs-registry/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Dir    string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("reg-1")
	eng := engine.New(conn, cfg, dir)
	eng.Now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background(), Dir: dir}
}

func TestCreateInitiativeDefaults(t *testing.T) {
	env := newTestEnv(t)
	in, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{
		Title:      "Sepsis Early Warning",
		Department: "Nursing",
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if in.ID == "" {
		t.Fatal("expected server-assigned id")
	}
	if in.Stage != "idea" || in.Status != "active" {
		t.Fatalf("unexpected defaults: stage=%s status=%s", in.Stage, in.Status)
	}
	if in.CreatedAt != "2026-03-01T00:00:00Z" || in.UpdatedAt != in.CreatedAt {
		t.Fatalf("unexpected timestamps: %s / %s", in.CreatedAt, in.UpdatedAt)
	}

	got, err := env.Engine.Repo.GetInitiative(env.Ctx, in.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Sepsis Early Warning" || got.Department != "Nursing" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCreateInitiativeRejectsBadStage(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Title: "x", Stage: "launch"}); err == nil {
		t.Fatal("expected stage error")
	}
	if _, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Stage: "idea"}); err == nil {
		t.Fatal("expected title error")
	}
}

func TestUpdateInitiativePartial(t *testing.T) {
	env := newTestEnv(t)
	in, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Title: "a", Department: "IT", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	env.Engine.Now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }
	stage := "pilot"
	got, err := env.Engine.UpdateInitiative(env.Ctx, in.ID, repo.InitiativeUpdate{Stage: &stage}, "tester")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Stage != "pilot" || got.Department != "IT" {
		t.Fatalf("partial update lost fields: %+v", got)
	}
	if got.UpdatedAt != "2026-03-02T00:00:00Z" || got.CreatedAt != in.CreatedAt {
		t.Fatalf("timestamps: created=%s updated=%s", got.CreatedAt, got.UpdatedAt)
	}
}

func TestUpdateMissingInitiative(t *testing.T) {
	env := newTestEnv(t)
	stage := "pilot"
	_, err := env.Engine.UpdateInitiative(env.Ctx, "nope", repo.InitiativeUpdate{Stage: &stage}, "tester")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteInitiativeIsSoft(t *testing.T) {
	env := newTestEnv(t)
	in, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Title: "a", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteInitiative(env.Ctx, in.ID, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := env.Engine.Repo.GetInitiative(env.Ctx, in.ID)
	if err != nil {
		t.Fatalf("row should survive soft delete: %v", err)
	}
	if got.Status != "deleted" {
		t.Fatalf("status = %s", got.Status)
	}
	items, err := env.Engine.Repo.ListInitiatives(env.Ctx, repo.InitiativeFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("deleted initiative still listed: %d", len(items))
	}
}

func TestUserCreateAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.CreateUser(env.Ctx, "alice", "alice@example.org", "correct horse", "admin", "system")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Role != "admin" || u.PasswordHash == "correct horse" {
		t.Fatalf("unexpected user: %+v", u)
	}
	got, err := env.Engine.Authenticate(env.Ctx, "alice", "correct horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.LastLogin == nil {
		t.Fatal("expected last_login to be set")
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "alice", "wrong"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "bob", "whatever"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("unknown user should look like bad password, got %v", err)
	}
}

func TestUploadDocumentAndVersioning(t *testing.T) {
	env := newTestEnv(t)
	in, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Title: "a", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	d1, err := env.Engine.UploadDocument(env.Ctx, engine.DocumentUploadOptions{
		InitiativeID: in.ID,
		LibraryType:  "core",
		Category:     "governance",
		Filename:     "charter.pdf",
		Content:      []byte("v1"),
		IsRequired:   true,
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if d1.Version != 1 {
		t.Fatalf("version = %d", d1.Version)
	}
	full := env.Engine.DocumentFullPath(d1)
	if b, err := os.ReadFile(full); err != nil || string(b) != "v1" {
		t.Fatalf("stored file: %v %q", err, b)
	}
	if !strings.Contains(filepath.ToSlash(d1.FilePath), "core/required") {
		t.Fatalf("required doc landed at %s", d1.FilePath)
	}

	d2, err := env.Engine.UploadDocument(env.Ctx, engine.DocumentUploadOptions{
		InitiativeID: in.ID,
		LibraryType:  "core",
		Category:     "governance",
		Filename:     "charter.pdf",
		Content:      []byte("v2"),
		IsRequired:   true,
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if d2.Version != 2 {
		t.Fatalf("second upload version = %d", d2.Version)
	}
}

func TestUploadDocumentRequiresInitiative(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.UploadDocument(env.Ctx, engine.DocumentUploadOptions{
		LibraryType: "core",
		Filename:    "x.pdf",
		Content:     []byte("x"),
		ActorID:     "tester",
	})
	if err == nil {
		t.Fatal("expected error for core doc without initiative")
	}
}

func TestInstantiateTemplate(t *testing.T) {
	env := newTestEnv(t)
	in, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Title: "a", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	tpl, err := env.Engine.UploadDocument(env.Ctx, engine.DocumentUploadOptions{
		LibraryType: "admin",
		Category:    "template",
		Filename:    "risk-assessment.docx",
		Content:     []byte("fill me in"),
		IsTemplate:  true,
		ActorID:     "admin",
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err := env.Engine.InstantiateTemplate(env.Ctx, tpl.ID, in.ID, "tester")
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if d.TemplateID == nil || *d.TemplateID != tpl.ID {
		t.Fatalf("template link missing: %+v", d)
	}
	if b, err := os.ReadFile(env.Engine.DocumentFullPath(d)); err != nil || string(b) != "fill me in" {
		t.Fatalf("copied content: %v %q", err, b)
	}
}

func TestComplianceAgainstCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Documents.Requirements = []config.DocumentRequirement{
		{Name: "Project Charter", Category: "governance", Stage: "proposal", Mandatory: true},
		{Name: "Risk Assessment", Category: "risk", Stage: "proposal", Mandatory: true},
		{Name: "Go-Live Approval", Category: "approval", Stage: "production", Mandatory: true},
		{Name: "Vendor Evaluation", Category: "vendor", Stage: "proposal", Mandatory: false},
	}
	in, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Title: "a", Stage: "pilot", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}

	c, err := env.Engine.Compliance(env.Ctx, in.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != "non_compliant" || c.TotalRequired != 2 || c.Completed != 0 {
		t.Fatalf("empty library: %+v", c)
	}

	if _, err := env.Engine.UploadDocument(env.Ctx, engine.DocumentUploadOptions{
		InitiativeID: in.ID, LibraryType: "core", Category: "governance",
		Filename: "charter.pdf", Content: []byte("x"), IsRequired: true, ActorID: "tester",
	}); err != nil {
		t.Fatal(err)
	}
	c, err = env.Engine.Compliance(env.Ctx, in.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != "partial" || c.Completed != 1 || c.CompliancePercentage != 50 {
		t.Fatalf("one of two: %+v", c)
	}
	if len(c.Missing) != 1 || c.Missing[0] != "Risk Assessment" {
		t.Fatalf("missing = %v", c.Missing)
	}

	if _, err := env.Engine.UploadDocument(env.Ctx, engine.DocumentUploadOptions{
		InitiativeID: in.ID, LibraryType: "core", Category: "risk",
		Filename: "risk.pdf", Content: []byte("x"), IsRequired: true, ActorID: "tester",
	}); err != nil {
		t.Fatal(err)
	}
	c, err = env.Engine.Compliance(env.Ctx, in.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != "compliant" || c.CompliancePercentage != 100 {
		t.Fatalf("full library: %+v", c)
	}
}

func TestExportCSVSkipsDeleted(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Title: "Keep, me", ActorID: "tester"})
	b, _ := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Title: "Drop me", ActorID: "tester"})
	if err := env.Engine.DeleteInitiative(env.Ctx, b.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	out, err := env.Engine.ExportCSV(env.Ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	body := string(out)
	if !strings.HasPrefix(body, "id,title,program_owner") {
		t.Fatalf("missing header: %q", body[:40])
	}
	if !strings.Contains(body, `"Keep, me"`) {
		t.Fatalf("expected quoted title in %q", body)
	}
	if strings.Contains(body, a.ID) == false || strings.Contains(body, b.ID) {
		t.Fatalf("row selection wrong:\n%s", body)
	}
}

func TestEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	in, err := env.Engine.CreateInitiative(env.Ctx, engine.InitiativeCreateOptions{Title: "a", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteInitiative(env.Ctx, in.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", "initiative", in.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].Type != "initiative.deleted" || evts[1].Type != "initiative.created" {
		t.Fatalf("event order: %s, %s", evts[0].Type, evts[1].Type)
	}
	if evts[0].ActorID != "tester" {
		t.Fatalf("actor = %s", evts[0].ActorID)
	}
}
