package store

import (
	"context"
	"time"
)

// UserAuth is a user's authentication state with the LLM backend plus
// their NSFW age-verification status.
type UserAuth struct {
	UserID       string    `json:"user_id"`
	Token        string    `json:"token,omitempty"`
	NSFWVerified bool      `json:"nsfw_verified"`
	VerifiedAt   time.Time `json:"verified_at,omitempty"`
}

// Authenticated reports whether the user holds a backend token.
func (a UserAuth) Authenticated() bool { return a.Token != "" }

// AuthStore persists user authentication state and the recorded
// proxy-identity mappings (webhook display identity → real user).
type AuthStore interface {
	GetUserAuth(ctx context.Context, userID string) (UserAuth, bool, error)
	SetUserAuth(ctx context.Context, auth UserAuth) error
	RevokeUserAuth(ctx context.Context, userID string) error

	// Proxy identity mappings: key is the proxy system's display identity
	// (system name + display name), value the real platform user ID.
	RecordProxyIdentity(ctx context.Context, key, userID string) error
	LookupProxyIdentity(ctx context.Context, key string) (string, bool, error)
}
