package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ContextKeyUserID      contextKey = "user_id"
	ContextKeyGoogleToken contextKey = "google_token"
)

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return v, ok
}

// GoogleTokenFromContext returns the provider access token carried in the
// bearer token's claims, when the client supplied one.
func GoogleTokenFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyGoogleToken).(string)
	return v, ok && v != ""
}
