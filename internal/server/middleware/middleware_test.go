package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789"

func signToken(t *testing.T, secret string, claims jwtClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func okHandler(t *testing.T, wantUser uuid.UUID, wantToken string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, wantUser, userID)

		got, ok := GoogleTokenFromContext(r.Context())
		if wantToken == "" {
			assert.False(t, ok)
		} else {
			assert.True(t, ok)
			assert.Equal(t, wantToken, got)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_ValidBearer(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	token := signToken(t, testSecret, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID:      userID.String(),
		GoogleToken: "ya29.token",
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/turns", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	Auth(testSecret)(okHandler(t, userID, "ya29.token")).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_RejectsBadTokens(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{
			name: "wrong secret",
			token: signToken(t, "other-secret", jwtClaims{
				UserID: userID.String(),
			}),
		},
		{
			name: "expired",
			token: signToken(t, testSecret, jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				},
				UserID: userID.String(),
			}),
		},
		{
			name: "bad user id",
			token: signToken(t, testSecret, jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
				UserID: "not-a-uuid",
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/v1/turns", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			Auth(testSecret)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Error("handler must not run")
			})).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_WebsocketQueryToken(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	token := signToken(t, testSecret, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID.String(),
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/session?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")

	Auth(testSecret)(okHandler(t, userID, "")).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The query fallback only applies to upgrade requests.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/turns?token="+token, nil)
	Auth(testSecret)(okHandler(t, userID, "")).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit_PerUser(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimit(ctx, 1, 2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	userA := uuid.New()
	userB := uuid.New()

	do := func(userID uuid.UUID) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/turns", nil)
		req = req.WithContext(context.WithValue(req.Context(), ContextKeyUserID, userID))
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do(userA))
	assert.Equal(t, http.StatusOK, do(userA))
	assert.Equal(t, http.StatusTooManyRequests, do(userA))

	// Another user has an independent budget.
	assert.Equal(t, http.StatusOK, do(userB))
}
