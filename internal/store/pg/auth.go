package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tzurot/tzurot/internal/store"
)

// PGAuthStore implements store.AuthStore backed by Postgres.
type PGAuthStore struct {
	db *sql.DB
}

func NewPGAuthStore(db *sql.DB) *PGAuthStore {
	return &PGAuthStore{db: db}
}

func (s *PGAuthStore) GetUserAuth(ctx context.Context, userID string) (store.UserAuth, bool, error) {
	var auth store.UserAuth
	var verifiedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, token, nsfw_verified, verified_at FROM user_auth WHERE user_id = $1`,
		userID,
	).Scan(&auth.UserID, &auth.Token, &auth.NSFWVerified, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.UserAuth{}, false, nil
	}
	if err != nil {
		return store.UserAuth{}, false, err
	}
	if verifiedAt.Valid {
		auth.VerifiedAt = verifiedAt.Time
	}
	return auth, true, nil
}

func (s *PGAuthStore) SetUserAuth(ctx context.Context, auth store.UserAuth) error {
	var verifiedAt interface{}
	if !auth.VerifiedAt.IsZero() {
		verifiedAt = auth.VerifiedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_auth (id, user_id, token, nsfw_verified, verified_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (user_id) DO UPDATE SET
			token = EXCLUDED.token,
			nsfw_verified = EXCLUDED.nsfw_verified,
			verified_at = EXCLUDED.verified_at,
			updated_at = now()`,
		uuid.Must(uuid.NewV7()), auth.UserID, auth.Token, auth.NSFWVerified, verifiedAt)
	return err
}

func (s *PGAuthStore) RevokeUserAuth(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_auth WHERE user_id = $1`, userID)
	return err
}

func (s *PGAuthStore) RecordProxyIdentity(ctx context.Context, key, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proxy_identities (id, identity_key, user_id, recorded_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity_key) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			recorded_at = EXCLUDED.recorded_at`,
		uuid.Must(uuid.NewV7()), key, userID, time.Now())
	return err
}

func (s *PGAuthStore) LookupProxyIdentity(ctx context.Context, key string) (string, bool, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM proxy_identities WHERE identity_key = $1`, key,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}
