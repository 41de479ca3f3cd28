package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
	"github.com/Mdraugelis/ai-programs-registry/internal/events"
	"github.com/Mdraugelis/ai-programs-registry/internal/repo"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

var userRoles = map[string]bool{
	"admin": true, "reviewer": true, "contributor": true,
}

func (e Engine) CreateUser(ctx context.Context, username, email, password, role, actorID string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, errors.New("username is required")
	}
	if len(password) < 8 {
		return domain.User{}, errors.New("password must be at least 8 characters")
	}
	if role == "" {
		role = "contributor"
	}
	if !userRoles[role] {
		return domain.User{}, fmt.Errorf("unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.created", "user", u.ID, actorID, events.EventPayload{
		"username": u.Username,
		"role":     u.Role,
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate verifies the password and records the login time. Unknown
// usernames and wrong passwords fail identically.
func (e Engine) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.TouchUserLogin(ctx, u.ID, now); err != nil {
		return domain.User{}, err
	}
	u.LastLogin = &now
	return u, nil
}
