package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

// UpsertChatKey stores an encrypted per-user LLM API key. EncryptedKey must
// already contain the ciphertext.
func (r Repo) UpsertChatKey(ctx context.Context, k domain.ChatKey) error {
	if k.UserID == "" {
		return errors.New("user_id required")
	}
	if k.EncryptedKey == "" {
		return errors.New("encrypted_key required")
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO chat_keys(user_id,encrypted_key,provider,created_at,last_used,usage_count) VALUES (?,?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET encrypted_key=excluded.encrypted_key, provider=excluded.provider, created_at=excluded.created_at, last_used=NULL, usage_count=0`,
		k.UserID, k.EncryptedKey, k.Provider, k.CreatedAt, nullableStringPtr(k.LastUsed), k.UsageCount)
	return err
}

func (r Repo) GetChatKey(ctx context.Context, userID string) (domain.ChatKey, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT user_id,encrypted_key,provider,created_at,last_used,usage_count FROM chat_keys WHERE user_id=?`, userID)
	var k domain.ChatKey
	var lastUsed sql.NullString
	err := row.Scan(&k.UserID, &k.EncryptedKey, &k.Provider, &k.CreatedAt, &lastUsed, &k.UsageCount)
	if err == sql.ErrNoRows {
		return domain.ChatKey{}, ErrNotFound
	}
	if err != nil {
		return domain.ChatKey{}, err
	}
	if lastUsed.Valid {
		k.LastUsed = &lastUsed.String
	}
	return k, nil
}

// MarkChatKeyUsed bumps the usage counter and last-used timestamp.
func (r Repo) MarkChatKeyUsed(ctx context.Context, userID, ts string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE chat_keys SET last_used=?, usage_count=usage_count+1 WHERE user_id=?`, ts, userID)
	return err
}

func (r Repo) DeleteChatKey(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM chat_keys WHERE user_id=?`, userID)
	return err
}
