package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidKey = errors.New("invalid api key")

// Credential is a named first-party API secret. The secret itself is stored
// only as a bcrypt hash; matching therefore costs a slow hash comparison per
// candidate row, which is acceptable at this table's size (a handful of rows).
type Credential struct {
	ID      string
	Name    string
	Scopes  []string
	Active  bool
	Expires *time.Time
}

// CredentialStore authenticates static API keys against api_credentials.
type CredentialStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db, clock: time.Now}
}

// Authenticate compares key against every active, non-expired credential and
// bumps the winner's usage counter. Returns ErrInvalidKey when nothing
// matches.
func (s *CredentialStore) Authenticate(ctx context.Context, key string) (Credential, error) {
	if key == "" {
		return Credential{}, ErrInvalidKey
	}

	now := s.clock().UTC()

	const q = `
SELECT id, name, key_hash, array_to_string(scopes, ','), expires_at
FROM api_credentials
WHERE active = TRUE
  AND (expires_at IS NULL OR expires_at > $1)
`
	rows, err := s.db.QueryContext(ctx, q, now)
	if err != nil {
		return Credential{}, fmt.Errorf("load credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c       Credential
			keyHash string
			scopes  string
			expires sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.Name, &keyHash, &scopes, &expires); err != nil {
			return Credential{}, fmt.Errorf("scan credential: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
			continue
		}
		c.Active = true
		if scopes != "" {
			c.Scopes = strings.Split(scopes, ",")
		}
		if expires.Valid {
			t := expires.Time
			c.Expires = &t
		}
		if err := rows.Close(); err != nil {
			return Credential{}, err
		}
		if err := s.recordUsage(ctx, c.ID, now); err != nil {
			return Credential{}, err
		}
		return c, nil
	}
	if err := rows.Err(); err != nil {
		return Credential{}, fmt.Errorf("iterate credentials: %w", err)
	}

	return Credential{}, ErrInvalidKey
}

func (s *CredentialStore) recordUsage(ctx context.Context, id string, now time.Time) error {
	const q = `
UPDATE api_credentials
SET usage_count = usage_count + 1, last_used_at = $2
WHERE id = $1
`
	if _, err := s.db.ExecContext(ctx, q, id, now); err != nil {
		return fmt.Errorf("record credential usage: %w", err)
	}
	return nil
}

// HashKey produces the bcrypt hash stored in api_credentials.key_hash.
// Used by seed tooling.
func HashKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
