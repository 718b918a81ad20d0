package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hushh/voicegate/internal/domain"
	"github.com/hushh/voicegate/internal/server/middleware"
)

type GetProfileOutput struct {
	Body *domain.Profile
}

type PutProfileInput struct {
	Body struct {
		FullName string `json:"full_name,omitempty" maxLength:"200" doc:"Display name"`
		Email    string `json:"email,omitempty" format:"email" doc:"Contact email"`
		Phone    string `json:"phone,omitempty" maxLength:"40" doc:"Contact phone"`
		Locale   string `json:"locale,omitempty" maxLength:"20" doc:"BCP 47 locale, e.g. en-US"`
		Timezone string `json:"timezone,omitempty" maxLength:"60" doc:"IANA timezone, e.g. Europe/Berlin"`
	}
}

type PutProfileOutput struct {
	Body *domain.Profile
}

func RegisterProfileRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profile",
		Summary:     "Get the caller's profile",
		Tags:        []string{"Profile"},
	}, func(ctx context.Context, _ *struct{}) (*GetProfileOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		p, err := store.Profiles().Get(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("profile not found")
			}
			return nil, huma.Error500InternalServerError("failed to get profile")
		}
		return &GetProfileOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-profile",
		Method:      http.MethodPut,
		Path:        "/profile",
		Summary:     "Create or replace the caller's profile",
		Tags:        []string{"Profile"},
	}, func(ctx context.Context, input *PutProfileInput) (*PutProfileOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		p := &domain.Profile{
			UserID:    userID,
			FullName:  input.Body.FullName,
			Email:     input.Body.Email,
			Phone:     input.Body.Phone,
			Locale:    input.Body.Locale,
			Timezone:  input.Body.Timezone,
			UpdatedAt: time.Now().UTC(),
		}
		if err := store.Profiles().Upsert(ctx, p); err != nil {
			return nil, huma.Error500InternalServerError("failed to save profile")
		}
		return &PutProfileOutput{Body: p}, nil
	})
}
