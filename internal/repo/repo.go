package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const initiativeColumns = `id,title,COALESCE(program_owner,''),COALESCE(department,''),COALESCE(background,''),COALESCE(goal,''),stage,COALESCE(risks,''),COALESCE(vendor_info,''),COALESCE(ai_components,''),COALESCE(equity_considerations,''),status,COALESCE(created_by,''),created_at,updated_at`

func scanInitiative(scan func(dest ...any) error) (domain.Initiative, error) {
	var in domain.Initiative
	err := scan(&in.ID, &in.Title, &in.ProgramOwner, &in.Department, &in.Background, &in.Goal,
		&in.Stage, &in.Risks, &in.VendorInfo, &in.AIComponents, &in.EquityConsiderations,
		&in.Status, &in.CreatedBy, &in.CreatedAt, &in.UpdatedAt)
	if err == sql.ErrNoRows {
		return in, ErrNotFound
	}
	return in, err
}

func (r Repo) InsertInitiative(ctx context.Context, tx *sql.Tx, in domain.Initiative) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO initiatives(id,title,program_owner,department,background,goal,stage,risks,vendor_info,ai_components,equity_considerations,status,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		in.ID, in.Title, nullable(in.ProgramOwner), nullable(in.Department), nullable(in.Background),
		nullable(in.Goal), in.Stage, nullable(in.Risks), nullable(in.VendorInfo), nullable(in.AIComponents),
		nullable(in.EquityConsiderations), in.Status, nullable(in.CreatedBy), in.CreatedAt, in.UpdatedAt)
	return err
}

func (r Repo) GetInitiative(ctx context.Context, id string) (domain.Initiative, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+initiativeColumns+` FROM initiatives WHERE id=?`, id)
	return scanInitiative(row.Scan)
}

// InitiativeUpdate carries the fields of a partial update. Nil pointers
// leave the stored value untouched.
type InitiativeUpdate struct {
	Title                *string
	ProgramOwner         *string
	Department           *string
	Background           *string
	Goal                 *string
	Stage                *string
	Risks                *string
	VendorInfo           *string
	AIComponents         *string
	EquityConsiderations *string
	Status               *string
}

func (r Repo) UpdateInitiative(ctx context.Context, tx *sql.Tx, id string, u InitiativeUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v *string) {
		if v != nil {
			fields = append(fields, col+"=?")
			args = append(args, nullable(*v))
		}
	}
	if u.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *u.Title)
	}
	set("program_owner", u.ProgramOwner)
	set("department", u.Department)
	set("background", u.Background)
	set("goal", u.Goal)
	set("risks", u.Risks)
	set("vendor_info", u.VendorInfo)
	set("ai_components", u.AIComponents)
	set("equity_considerations", u.EquityConsiderations)
	if u.Stage != nil {
		fields = append(fields, "stage=?")
		args = append(args, *u.Stage)
	}
	if u.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *u.Status)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE initiatives SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InitiativeFilters mirror the list query parameters. Search matches a
// lowercase substring across the searchable text columns.
type InitiativeFilters struct {
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

var initiativeSortColumns = map[string]string{
	"title":         "title",
	"program_owner": "program_owner",
	"department":    "department",
	"stage":         "stage",
	"status":        "status",
	"created_at":    "created_at",
	"updated_at":    "updated_at",
}

func (r Repo) ListInitiatives(ctx context.Context, f InitiativeFilters) ([]domain.Initiative, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	} else {
		clauses = append(clauses, "status != 'deleted'")
	}
	if f.Department != "" {
		clauses = append(clauses, "department=?")
		args = append(args, f.Department)
	}
	if f.Stage != "" {
		clauses = append(clauses, "stage=?")
		args = append(args, f.Stage)
	}
	if f.Risk != "" {
		clauses = append(clauses, "LOWER(COALESCE(risks,'')) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Risk)+"%")
	}
	if f.Search != "" {
		needle := "%" + strings.ToLower(f.Search) + "%"
		clauses = append(clauses, `(LOWER(COALESCE(title,'')) LIKE ? OR LOWER(COALESCE(program_owner,'')) LIKE ? OR LOWER(COALESCE(department,'')) LIKE ? OR LOWER(COALESCE(background,'')) LIKE ? OR LOWER(COALESCE(goal,'')) LIKE ?)`)
		args = append(args, needle, needle, needle, needle, needle)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	sortCol, ok := initiativeSortColumns[f.SortBy]
	if !ok {
		sortCol = "updated_at"
	}
	order := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		order = "ASC"
	}
	query := `SELECT ` + initiativeColumns + ` FROM initiatives ` + where +
		fmt.Sprintf(` ORDER BY %s %s, id %s`, sortCol, order, order)
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Initiative
	for rows.Next() {
		in, err := scanInitiative(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

func (r Repo) CountInitiatives(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM initiatives WHERE status != 'deleted'`).Scan(&n)
	return n, err
}

func (r Repo) CountInitiativesByStage(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT stage, count(*) FROM initiatives WHERE status != 'deleted' GROUP BY stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		res[stage] = count
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entID.Valid {
			e.EntityID = entID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
