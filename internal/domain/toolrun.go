package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ToolRunStatus string

const (
	ToolRunStatusQueued               ToolRunStatus = "queued"
	ToolRunStatusRunning              ToolRunStatus = "running"
	ToolRunStatusAwaitingConfirmation ToolRunStatus = "awaiting_confirmation"
	ToolRunStatusCompleted            ToolRunStatus = "completed"
)

// ToolRun is the durable record of one tool invocation. IdempotencyKey is
// unique per logical action: a second run bearing the same key returns the
// first run's output unchanged instead of re-executing the handler.
type ToolRun struct {
	ID             uuid.UUID
	TurnID         uuid.UUID
	StepIndex      int
	ToolName       string
	Status         ToolRunStatus
	IdempotencyKey string
	Input          json.RawMessage
	OutputSummary  json.RawMessage
	StartedAt      time.Time
	FinishedAt     *time.Time
}

type ToolRunRepository interface {
	// Create inserts the run. If a run with the same idempotency key already
	// exists, it returns that run and ErrConflict instead of inserting.
	Create(ctx context.Context, r *ToolRun) (*ToolRun, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*ToolRun, error)
	Complete(ctx context.Context, id uuid.UUID, output json.RawMessage, finishedAt time.Time) error
	ListByTurn(ctx context.Context, turnID uuid.UUID) ([]*ToolRun, error)
}
