package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
	"github.com/Mdraugelis/ai-programs-registry/internal/events"
)

var libraryTypes = map[string]bool{
	"admin": true, "core": true, "ancillary": true,
}

// UploadsDir is the root of the on-disk document tree.
func (e Engine) UploadsDir() string {
	dir := e.Config.Documents.UploadsDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.Workspace, dir)
	}
	return dir
}

// documentDir picks the directory for a document. The admin library splits
// by category; initiative core splits required from optional.
func (e Engine) documentDir(libraryType, category, initiativeID string, isRequired bool) string {
	root := e.UploadsDir()
	switch libraryType {
	case "admin":
		switch category {
		case "policy":
			return filepath.Join(root, "admin", "policies")
		case "template":
			return filepath.Join(root, "admin", "templates")
		case "howto":
			return filepath.Join(root, "admin", "howtos")
		default:
			return filepath.Join(root, "admin")
		}
	case "core":
		tier := "optional"
		if isRequired {
			tier = "required"
		}
		return filepath.Join(root, "initiatives", initiativeID, "core", tier)
	case "ancillary":
		return filepath.Join(root, "initiatives", initiativeID, "ancillary")
	}
	return root
}

// DocumentUploadOptions are parameters for storing a document.
type DocumentUploadOptions struct {
	InitiativeID string
	LibraryType  string
	Category     string
	Filename     string
	Content      []byte
	DocumentType string
	Description  string
	Tags         string
	IsTemplate   bool
	IsRequired   bool
	ActorID      string
}

func (e Engine) UploadDocument(ctx context.Context, opts DocumentUploadOptions) (domain.Document, error) {
	if opts.Filename == "" {
		return domain.Document{}, errors.New("filename is required")
	}
	if !libraryTypes[opts.LibraryType] {
		return domain.Document{}, fmt.Errorf("unknown library type %q", opts.LibraryType)
	}
	if opts.LibraryType != "admin" {
		if opts.InitiativeID == "" {
			return domain.Document{}, errors.New("initiative is required for core and ancillary documents")
		}
		if _, err := e.Repo.GetInitiative(ctx, opts.InitiativeID); err != nil {
			return domain.Document{}, err
		}
	}

	now := e.now().UTC()
	dir := e.documentDir(opts.LibraryType, opts.Category, opts.InitiativeID, opts.IsRequired)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Document{}, err
	}
	stored := fmt.Sprintf("%d_%s", now.UnixNano(), filepath.Base(opts.Filename))
	fullPath := filepath.Join(dir, stored)
	if err := os.WriteFile(fullPath, opts.Content, 0o644); err != nil {
		return domain.Document{}, err
	}
	rel, err := filepath.Rel(e.UploadsDir(), fullPath)
	if err != nil {
		return domain.Document{}, err
	}

	version, err := e.Repo.NextDocumentVersion(ctx, opts.InitiativeID, opts.LibraryType, opts.Filename)
	if err != nil {
		return domain.Document{}, err
	}
	d := domain.Document{
		ID:           uuid.NewString(),
		LibraryType:  opts.LibraryType,
		Category:     opts.Category,
		Filename:     opts.Filename,
		FilePath:     rel,
		FileSize:     int64(len(opts.Content)),
		DocumentType: opts.DocumentType,
		Description:  opts.Description,
		Tags:         opts.Tags,
		IsTemplate:   opts.IsTemplate,
		IsRequired:   opts.IsRequired,
		Version:      version,
		Status:       "active",
		UploadedBy:   opts.ActorID,
		UploadedAt:   now.Format(time.RFC3339),
	}
	if opts.InitiativeID != "" {
		d.InitiativeID = &opts.InitiativeID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertDocument(ctx, tx, d); err != nil {
		return domain.Document{}, err
	}
	if err := e.Events.Append(ctx, tx, "document.uploaded", "document", d.ID, opts.ActorID, events.EventPayload{
		"filename":     d.Filename,
		"library_type": d.LibraryType,
		"version":      d.Version,
	}); err != nil {
		return domain.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// InstantiateTemplate copies an admin template into an initiative's core
// required directory and records the new document against the template.
func (e Engine) InstantiateTemplate(ctx context.Context, templateID, initiativeID, actorID string) (domain.Document, error) {
	tpl, err := e.Repo.GetDocument(ctx, templateID)
	if err != nil {
		return domain.Document{}, err
	}
	if !tpl.IsTemplate {
		return domain.Document{}, fmt.Errorf("document %s is not a template", templateID)
	}
	if _, err := e.Repo.GetInitiative(ctx, initiativeID); err != nil {
		return domain.Document{}, err
	}
	src, err := os.Open(filepath.Join(e.UploadsDir(), tpl.FilePath))
	if err != nil {
		return domain.Document{}, fmt.Errorf("template file: %w", err)
	}
	defer src.Close()
	content, err := io.ReadAll(src)
	if err != nil {
		return domain.Document{}, err
	}

	d, err := e.UploadDocument(ctx, DocumentUploadOptions{
		InitiativeID: initiativeID,
		LibraryType:  "core",
		Category:     tpl.Category,
		Filename:     tpl.Filename,
		Content:      content,
		DocumentType: tpl.DocumentType,
		Description:  tpl.Description,
		Tags:         tpl.Tags,
		IsRequired:   true,
		ActorID:      actorID,
	})
	if err != nil {
		return domain.Document{}, err
	}
	tid := tpl.ID
	d.TemplateID = &tid
	if _, err := e.DB.ExecContext(ctx, `UPDATE documents SET template_id = ? WHERE id = ?`, tid, d.ID); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// DeleteDocument soft-deletes the row and moves the file aside so downloads
// stop resolving while the bytes stay recoverable.
func (e Engine) DeleteDocument(ctx context.Context, id, actorID string) error {
	d, err := e.Repo.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.MarkDocumentDeleted(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "document.deleted", "document", id, actorID, events.EventPayload{
		"filename": d.Filename,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	archiveDir := filepath.Join(e.UploadsDir(), ".archived")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return err
	}
	src := filepath.Join(e.UploadsDir(), d.FilePath)
	dst := filepath.Join(archiveDir, fmt.Sprintf("%d_%s", e.now().UTC().UnixNano(), filepath.Base(d.FilePath)))
	if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DocumentFullPath resolves a stored relative path for download.
func (e Engine) DocumentFullPath(d domain.Document) string {
	return filepath.Join(e.UploadsDir(), d.FilePath)
}
