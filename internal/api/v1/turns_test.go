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

func TestGetTurn(t *testing.T) {
	t.Parallel()

	turnID := uuid.New()
	sessionID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			turns: &mockTurnRepo{
				getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Turn, error) {
					assert.Equal(t, turnID, id)
					return &domain.Turn{
						ID:            turnID,
						SessionID:     sessionID,
						InputMode:     domain.InputModeVoice,
						ExecutionMode: domain.ExecutionModeBackendOrchestrated,
						State:         domain.TurnStateDone,
						Outcome:       domain.TurnOutcomeSuccess,
						StartedAt:     time.Now().UTC(),
					}, nil
				},
			},
		}
		v1.RegisterTurnRoutes(api, store)

		resp := api.Get("/turns/" + turnID.String())

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.Turn
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, turnID, body.ID)
		assert.Equal(t, domain.TurnStateDone, body.State)
		assert.Equal(t, domain.TurnOutcomeSuccess, body.Outcome)
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			turns: &mockTurnRepo{
				getByIDFunc: func(_ context.Context, _ uuid.UUID) (*domain.Turn, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterTurnRoutes(api, store)

		resp := api.Get("/turns/" + uuid.NewString())

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestListTurns(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()

	_, api := humatest.New(t)
	store := &mockDataStore{
		turns: &mockTurnRepo{
			listBySessionFunc: func(_ context.Context, sid uuid.UUID, limit int) ([]*domain.Turn, error) {
				assert.Equal(t, sessionID, sid)
				assert.Equal(t, 50, limit)
				return []*domain.Turn{
					{ID: uuid.New(), SessionID: sid, State: domain.TurnStateDone},
					{ID: uuid.New(), SessionID: sid, State: domain.TurnStateCancelled},
				}, nil
			},
		},
	}
	v1.RegisterTurnRoutes(api, store)

	resp := api.Get("/turns?session_id=" + sessionID.String())

	require.Equal(t, http.StatusOK, resp.Code)

	var body []*domain.Turn
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body, 2)
}

func TestListTurnRuns(t *testing.T) {
	t.Parallel()

	turnID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			turns: &mockTurnRepo{
				getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Turn, error) {
					return &domain.Turn{ID: id, State: domain.TurnStateDone}, nil
				},
			},
			toolRuns: &mockToolRunRepo{
				listByTurnFunc: func(_ context.Context, tid uuid.UUID) ([]*domain.ToolRun, error) {
					assert.Equal(t, turnID, tid)
					return []*domain.ToolRun{
						{ID: uuid.New(), TurnID: tid, ToolName: "gmail_search", Status: domain.ToolRunStatusCompleted},
					}, nil
				},
			},
		}
		v1.RegisterTurnRoutes(api, store)

		resp := api.Get("/turns/" + turnID.String() + "/runs")

		require.Equal(t, http.StatusOK, resp.Code)

		var body []*domain.ToolRun
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "gmail_search", body[0].ToolName)
	})

	t.Run("unknown_turn", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			turns: &mockTurnRepo{
				getByIDFunc: func(_ context.Context, _ uuid.UUID) (*domain.Turn, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterTurnRoutes(api, store)

		resp := api.Get("/turns/" + uuid.NewString() + "/runs")

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}
