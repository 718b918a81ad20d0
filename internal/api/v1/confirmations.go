package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/hushh/voicegate/internal/domain"
)

type CreateConfirmationInput struct {
	Body struct {
		TurnID     uuid.UUID `json:"turn_id" doc:"Turn the pending action belongs to"`
		ActionType string    `json:"action_type" minLength:"1" doc:"Tool name of the gated write"`
		Preview    string    `json:"preview" minLength:"1" doc:"Human-readable summary of the side effect"`
	}
}

type CreateConfirmationOutput struct {
	Body *domain.Confirmation
}

type GetConfirmationInput struct {
	ID uuid.UUID `path:"id" doc:"Confirmation request ID"`
}

type GetConfirmationOutput struct {
	Body *domain.Confirmation
}

type ResolveConfirmationInput struct {
	ID   uuid.UUID `path:"id" doc:"Confirmation request ID"`
	Body struct {
		Decision string `json:"decision" enum:"accept,reject" doc:"Resolution decision"`
	}
}

type ResolveConfirmationOutput struct {
	Body *domain.Confirmation
}

func RegisterConfirmationRoutes(api huma.API, store DataStore, gate ConfirmationGate) {
	huma.Register(api, huma.Operation{
		OperationID: "create-confirmation",
		Method:      http.MethodPost,
		Path:        "/confirmations",
		Summary:     "Create a pending confirmation request",
		Tags:        []string{"Confirmations"},
	}, func(ctx context.Context, input *CreateConfirmationInput) (*CreateConfirmationOutput, error) {
		if _, err := store.Turns().GetByID(ctx, input.Body.TurnID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("turn not found")
			}
			return nil, huma.Error500InternalServerError("failed to validate turn")
		}

		id, err := gate.Request(ctx, input.Body.TurnID, input.Body.ActionType, input.Body.Preview)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to create confirmation")
		}

		c, err := gate.Get(ctx, id)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load confirmation")
		}
		return &CreateConfirmationOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-confirmation",
		Method:      http.MethodGet,
		Path:        "/confirmations/{id}",
		Summary:     "Get a confirmation request",
		Tags:        []string{"Confirmations"},
	}, func(ctx context.Context, input *GetConfirmationInput) (*GetConfirmationOutput, error) {
		c, err := gate.Get(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("confirmation not found")
			}
			return nil, huma.Error500InternalServerError("failed to get confirmation")
		}
		return &GetConfirmationOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-confirmation",
		Method:      http.MethodPost,
		Path:        "/confirmations/{id}/resolve",
		Summary:     "Resolve a confirmation request",
		Description: "Resolution is idempotent: resolving an already resolved request returns the stored row unchanged.",
		Tags:        []string{"Confirmations"},
	}, func(ctx context.Context, input *ResolveConfirmationInput) (*ResolveConfirmationOutput, error) {
		decision := domain.ConfirmationDecisionReject
		if input.Body.Decision == "accept" {
			decision = domain.ConfirmationDecisionAccept
		}

		c, err := gate.Resolve(ctx, input.ID, decision)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("confirmation not found")
			}
			return nil, huma.Error500InternalServerError("failed to resolve confirmation")
		}
		return &ResolveConfirmationOutput{Body: c}, nil
	})
}
