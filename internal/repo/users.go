package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

const userColumns = `id,username,COALESCE(email,''),role,password_hash,created_at,last_login`

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var lastLogin sql.NullString
	err := scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.String
	}
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	if u.ID == "" {
		return errors.New("id required")
	}
	if u.Username == "" {
		return errors.New("username required")
	}
	if u.PasswordHash == "" {
		return errors.New("password_hash required")
	}
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return r.DB.ExecContext(ctx, query, args...)
	}
	_, err := exec(`INSERT INTO users(id,username,email,role,password_hash,created_at,last_login) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Username, nullable(u.Email), u.Role, u.PasswordHash, u.CreatedAt, nullableStringPtr(u.LastLogin))
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=?`, strings.TrimSpace(username))
	return scanUser(row.Scan)
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) TouchUserLogin(ctx context.Context, id, ts string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET last_login=? WHERE id=?`, ts, id)
	return err
}
