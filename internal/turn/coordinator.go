// Package turn owns the durable turn lifecycle. Only the session's own
// worker calls into the coordinator, so the state machine needs no lock; the
// store additionally refuses updates to terminal rows.
package turn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hushh/voicegate/internal/domain"
)

type Coordinator struct {
	turns  domain.TurnRepository
	logger zerolog.Logger
}

func NewCoordinator(turns domain.TurnRepository, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		turns:  turns,
		logger: logger.With().Str("component", "turn").Logger(),
	}
}

// Start creates a turn in the listening state. The routing decision is made
// before the turn exists, so pipeline and execution mode land in the INSERT
// and the durable row never carries empty routing columns.
func (c *Coordinator) Start(ctx context.Context, sessionID, userID uuid.UUID, mode domain.InputMode, pipeline domain.Pipeline, execMode domain.ExecutionMode, requestID string) (*domain.Turn, error) {
	t := &domain.Turn{
		ID:            uuid.New(),
		SessionID:     sessionID,
		UserID:        userID,
		InputMode:     mode,
		ExecutionMode: execMode,
		Pipeline:      pipeline,
		State:         domain.TurnStateListening,
		RequestID:     requestID,
		StartedAt:     time.Now().UTC(),
	}
	if err := c.turns.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("turn.Coordinator.Start: %w", err)
	}

	c.logger.Info().
		Str("turn_id", t.ID.String()).
		Str("session_id", sessionID.String()).
		Str("input_mode", string(mode)).
		Str("execution_mode", string(execMode)).
		Msg("turn started")
	return t, nil
}

// SetState advances the in-memory turn and persists the new state. An
// illegal transition returns domain.ErrInvalidTransition and mutates nothing.
func (c *Coordinator) SetState(ctx context.Context, t *domain.Turn, to domain.TurnState) error {
	if !t.State.ValidTransition(to) {
		return fmt.Errorf("turn.Coordinator.SetState: %s -> %s: %w", t.State, to, domain.ErrInvalidTransition)
	}
	if err := c.turns.UpdateState(ctx, t.ID, to); err != nil {
		return fmt.Errorf("turn.Coordinator.SetState: %w", err)
	}

	c.logger.Debug().
		Str("turn_id", t.ID.String()).
		Str("from", string(t.State)).
		Str("to", string(to)).
		Msg("state change")
	t.State = to
	return nil
}

// Complete moves the turn to done with the given outcome. Terminal rows are
// immutable; completing an already terminal turn is an error.
func (c *Coordinator) Complete(ctx context.Context, t *domain.Turn, outcome domain.TurnOutcome, errorCode string) error {
	if !t.State.ValidTransition(domain.TurnStateDone) {
		return fmt.Errorf("turn.Coordinator.Complete: %s -> done: %w", t.State, domain.ErrInvalidTransition)
	}
	ended := time.Now().UTC()
	if err := c.turns.Complete(ctx, t.ID, domain.TurnStateDone, outcome, errorCode, ended); err != nil {
		return fmt.Errorf("turn.Coordinator.Complete: %w", err)
	}

	t.State = domain.TurnStateDone
	t.Outcome = outcome
	t.ErrorCode = errorCode
	t.EndedAt = &ended

	c.logger.Info().
		Str("turn_id", t.ID.String()).
		Str("outcome", string(outcome)).
		Str("error_code", errorCode).
		Msg("turn completed")
	return nil
}

// Cancel terminates the turn from any non-terminal state. Cancelling an
// already terminal turn is a no-op.
func (c *Coordinator) Cancel(ctx context.Context, t *domain.Turn) error {
	if t.State.Terminal() {
		return nil
	}
	ended := time.Now().UTC()
	if err := c.turns.Complete(ctx, t.ID, domain.TurnStateCancelled, domain.TurnOutcomeCancelled, "", ended); err != nil {
		return fmt.Errorf("turn.Coordinator.Cancel: %w", err)
	}

	t.State = domain.TurnStateCancelled
	t.Outcome = domain.TurnOutcomeCancelled
	t.EndedAt = &ended

	c.logger.Info().Str("turn_id", t.ID.String()).Msg("turn cancelled")
	return nil
}
