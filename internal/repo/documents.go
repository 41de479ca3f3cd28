package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

const documentColumns = `id,initiative_id,library_type,COALESCE(category,''),filename,file_path,file_size,COALESCE(document_type,''),COALESCE(description,''),COALESCE(tags,''),is_template,is_required,template_id,version,status,uploaded_by,uploaded_at`

func scanDocument(scan func(dest ...any) error) (domain.Document, error) {
	var d domain.Document
	var initiativeID, templateID sql.NullString
	err := scan(&d.ID, &initiativeID, &d.LibraryType, &d.Category, &d.Filename, &d.FilePath,
		&d.FileSize, &d.DocumentType, &d.Description, &d.Tags, &d.IsTemplate, &d.IsRequired,
		&templateID, &d.Version, &d.Status, &d.UploadedBy, &d.UploadedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if initiativeID.Valid {
		d.InitiativeID = &initiativeID.String
	}
	if templateID.Valid {
		d.TemplateID = &templateID.String
	}
	return d, nil
}

func (r Repo) InsertDocument(ctx context.Context, tx *sql.Tx, d domain.Document) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO documents(id,initiative_id,library_type,category,filename,file_path,file_size,document_type,description,tags,is_template,is_required,template_id,version,status,uploaded_by,uploaded_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, nullableStringPtr(d.InitiativeID), d.LibraryType, nullable(d.Category), d.Filename,
		d.FilePath, d.FileSize, nullable(d.DocumentType), nullable(d.Description), nullable(d.Tags),
		d.IsTemplate, d.IsRequired, nullableStringPtr(d.TemplateID), d.Version, d.Status,
		d.UploadedBy, d.UploadedAt)
	return err
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=?`, id)
	return scanDocument(row.Scan)
}

// DocumentFilters narrow list queries to one library tier, initiative, or
// the admin template catalog.
type DocumentFilters struct {
	InitiativeID string
	LibraryType  string
	Category     string
	Templates    bool
}

func (r Repo) ListDocuments(ctx context.Context, f DocumentFilters) ([]domain.Document, error) {
	clauses := []string{"status != 'deleted'"}
	var args []any
	if f.InitiativeID != "" {
		clauses = append(clauses, "initiative_id=?")
		args = append(args, f.InitiativeID)
	}
	if f.LibraryType != "" {
		clauses = append(clauses, "library_type=?")
		args = append(args, f.LibraryType)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.Templates {
		clauses = append(clauses, "is_template=1")
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := r.DB.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents `+where+` ORDER BY uploaded_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// MarkDocumentDeleted soft-deletes a document row.
func (r Repo) MarkDocumentDeleted(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE documents SET status='deleted' WHERE id=? AND status != 'deleted'`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// NextDocumentVersion returns 1 + the highest version of any document with
// the same initiative, library tier, and filename.
func (r Repo) NextDocumentVersion(ctx context.Context, initiativeID, libraryType, filename string) (int, error) {
	var max sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(version) FROM documents WHERE COALESCE(initiative_id,'')=? AND library_type=? AND filename=?`,
		initiativeID, libraryType, filename).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}
