package database

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// keyPrefixLen is the number of plaintext characters kept for display.
const keyPrefixLen = 8

// APIKey is a stored API key. The plaintext is never persisted.
type APIKey struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the key has not been revoked.
func (k *APIKey) Active() bool {
	return k.RevokedAt == nil
}

// NewAPIKey is returned once, at creation, and carries the plaintext key.
type NewAPIKey struct {
	APIKey
	Plaintext string `json:"key"`
}

// CreateAPIKey generates and stores a new key labelled name.
func (db *DB) CreateAPIKey(ctx context.Context, name string) (*NewAPIKey, error) {
	if name == "" {
		return nil, errors.New("api key name is required")
	}

	plaintext, err := generateKey()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	res, err := db.ExecContext(ctx,
		`INSERT INTO api_keys (name, key_hash, key_prefix, created_at) VALUES (?, ?, ?, ?)`,
		name, hashKey(plaintext), plaintext[:keyPrefixLen], now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("api key id: %w", err)
	}

	return &NewAPIKey{
		APIKey: APIKey{
			ID:        id,
			Name:      name,
			Prefix:    plaintext[:keyPrefixLen],
			CreatedAt: now,
		},
		Plaintext: plaintext,
	}, nil
}

// ValidateAPIKey looks up plaintext and records its use. It returns
// ErrNotFound for unknown keys and ErrRevoked for revoked ones.
func (db *DB) ValidateAPIKey(ctx context.Context, plaintext string) (*APIKey, error) {
	key, err := db.scanKey(db.QueryRowContext(ctx,
		`SELECT id, name, key_prefix, created_at, last_used_at, revoked_at
		 FROM api_keys WHERE key_hash = ?`, hashKey(plaintext)))
	if err != nil {
		return nil, err
	}
	if !key.Active() {
		return nil, ErrRevoked
	}

	now := time.Now().UTC().Truncate(time.Second)
	if _, err := db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, now.Format(time.RFC3339), key.ID,
	); err != nil {
		return nil, fmt.Errorf("touch api key: %w", err)
	}
	key.LastUsedAt = &now

	return key, nil
}

// GetAPIKey returns the key with the given id.
func (db *DB) GetAPIKey(ctx context.Context, id int64) (*APIKey, error) {
	return db.scanKey(db.QueryRowContext(ctx,
		`SELECT id, name, key_prefix, created_at, last_used_at, revoked_at
		 FROM api_keys WHERE id = ?`, id))
}

// ListAPIKeys returns all keys, newest first.
func (db *DB) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, key_prefix, created_at, last_used_at, revoked_at
		 FROM api_keys ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		key, err := db.scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks the key as revoked. Revoking twice returns ErrRevoked.
func (db *DB) RevokeAPIKey(ctx context.Context, id int64) error {
	key, err := db.GetAPIKey(ctx, id)
	if err != nil {
		return err
	}
	if !key.Active() {
		return ErrRevoked
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.ExecContext(ctx, `UPDATE api_keys SET revoked_at = ? WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("revoke api key %d: %w", id, err)
	}

	db.logger.Info("api key revoked", "id", id, "name", key.Name)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanKey(row rowScanner) (*APIKey, error) {
	var (
		key                 APIKey
		createdAt           string
		lastUsed, revokedAt sql.NullString
	)

	if err := row.Scan(&key.ID, &key.Name, &key.Prefix, &createdAt, &lastUsed, &revokedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}

	if t := parseTimestamp(sql.NullString{String: createdAt, Valid: true}); t != nil {
		key.CreatedAt = *t
	}
	key.LastUsedAt = parseTimestamp(lastUsed)
	key.RevokedAt = parseTimestamp(revokedAt)

	return &key, nil
}

// parseTimestamp parses a SQLite TEXT timestamp, returning nil for NULL or
// unparseable values.
func parseTimestamp(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return &t
		}
	}
	return nil
}

func generateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
