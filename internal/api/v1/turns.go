package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/hushh/voicegate/internal/domain"
)

type GetTurnInput struct {
	ID uuid.UUID `path:"id" doc:"Turn ID"`
}

type GetTurnOutput struct {
	Body *domain.Turn
}

type ListTurnsInput struct {
	SessionID uuid.UUID `query:"session_id" required:"true" doc:"Session ID"`
	Limit     int       `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Maximum turns to return"`
}

type ListTurnsOutput struct {
	Body []*domain.Turn
}

type ListTurnRunsInput struct {
	ID uuid.UUID `path:"id" doc:"Turn ID"`
}

type ListTurnRunsOutput struct {
	Body []*domain.ToolRun
}

func RegisterTurnRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-turn",
		Method:      http.MethodGet,
		Path:        "/turns/{id}",
		Summary:     "Get a turn",
		Tags:        []string{"Turns"},
	}, func(ctx context.Context, input *GetTurnInput) (*GetTurnOutput, error) {
		t, err := store.Turns().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("turn not found")
			}
			return nil, huma.Error500InternalServerError("failed to get turn")
		}
		return &GetTurnOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-turns",
		Method:      http.MethodGet,
		Path:        "/turns",
		Summary:     "List turns for a session",
		Tags:        []string{"Turns"},
	}, func(ctx context.Context, input *ListTurnsInput) (*ListTurnsOutput, error) {
		turns, err := store.Turns().ListBySession(ctx, input.SessionID, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list turns")
		}
		return &ListTurnsOutput{Body: turns}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-turn-runs",
		Method:      http.MethodGet,
		Path:        "/turns/{id}/runs",
		Summary:     "List tool runs recorded for a turn",
		Tags:        []string{"Turns"},
	}, func(ctx context.Context, input *ListTurnRunsInput) (*ListTurnRunsOutput, error) {
		if _, err := store.Turns().GetByID(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("turn not found")
			}
			return nil, huma.Error500InternalServerError("failed to validate turn")
		}

		runs, err := store.ToolRuns().ListByTurn(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tool runs")
		}
		return &ListTurnRunsOutput{Body: runs}, nil
	})
}
