package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/hushh/voicegate/internal/api/v1"
	"github.com/hushh/voicegate/internal/domain"
)

func TestGetProfile(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			profiles: &mockProfileRepo{
				getFunc: func(_ context.Context, uid uuid.UUID) (*domain.Profile, error) {
					assert.Equal(t, userID, uid)
					return &domain.Profile{
						UserID:    uid,
						FullName:  "Dana Park",
						Email:     "dana@example.com",
						Timezone:  "Europe/Berlin",
						UpdatedAt: time.Now().UTC(),
					}, nil
				},
			},
		}
		v1.RegisterProfileRoutes(api, store)

		resp := api.GetCtx(userCtx(userID), "/profile")

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.Profile
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Dana Park", body.FullName)
		assert.Equal(t, "Europe/Berlin", body.Timezone)
	})

	t.Run("no_user_context", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterProfileRoutes(api, &mockDataStore{})

		resp := api.Get("/profile")

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			profiles: &mockProfileRepo{
				getFunc: func(_ context.Context, _ uuid.UUID) (*domain.Profile, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterProfileRoutes(api, store)

		resp := api.GetCtx(userCtx(userID), "/profile")

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestPutProfile(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	_, api := humatest.New(t)
	var saved *domain.Profile
	store := &mockDataStore{
		profiles: &mockProfileRepo{
			upsertFunc: func(_ context.Context, p *domain.Profile) error {
				saved = p
				return nil
			},
		},
	}
	v1.RegisterProfileRoutes(api, store)

	resp := api.PutCtx(userCtx(userID), "/profile", map[string]any{
		"full_name": "Dana Park",
		"email":     "dana@example.com",
		"locale":    "de-DE",
		"timezone":  "Europe/Berlin",
	})

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, saved)
	assert.Equal(t, userID, saved.UserID)
	assert.Equal(t, "de-DE", saved.Locale)
	assert.False(t, saved.UpdatedAt.IsZero())
}
