package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type TurnState string

const (
	TurnStateListening            TurnState = "listening"
	TurnStateThinking             TurnState = "thinking"
	TurnStateExecutingTools       TurnState = "executing_tools"
	TurnStateAwaitingConfirmation TurnState = "awaiting_confirmation"
	TurnStateSpeaking             TurnState = "speaking"
	TurnStateDone                 TurnState = "done"
	TurnStateCancelled            TurnState = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TurnState) Terminal() bool {
	return s == TurnStateDone || s == TurnStateCancelled
}

// ValidTransition checks if a turn state transition is allowed.
// cancelled is reachable from any non-terminal state; done is reachable from
// any non-terminal state (error completion) and from speaking (success).
func (s TurnState) ValidTransition(to TurnState) bool {
	if s.Terminal() {
		return false
	}
	if to == TurnStateCancelled || to == TurnStateDone {
		return true
	}
	switch s {
	case TurnStateListening:
		return to == TurnStateThinking
	case TurnStateThinking:
		return to == TurnStateExecutingTools || to == TurnStateAwaitingConfirmation || to == TurnStateSpeaking
	case TurnStateAwaitingConfirmation:
		return to == TurnStateExecutingTools
	case TurnStateExecutingTools:
		return to == TurnStateSpeaking || to == TurnStateAwaitingConfirmation
	case TurnStateSpeaking:
		return false // only done/cancelled, handled above
	default:
		return false
	}
}

type InputMode string

const (
	InputModeText  InputMode = "text"
	InputModeVoice InputMode = "voice"
)

type ExecutionMode string

const (
	ExecutionModeDirectResponse      ExecutionMode = "direct_response"
	ExecutionModeBackendOrchestrated ExecutionMode = "backend_orchestrated"
)

type Pipeline string

const (
	PipelineRealtime        Pipeline = "realtime"
	PipelineClassicFallback Pipeline = "classic_fallback"
)

type TurnOutcome string

const (
	TurnOutcomeSuccess   TurnOutcome = "success"
	TurnOutcomeError     TurnOutcome = "error"
	TurnOutcomeCancelled TurnOutcome = "cancelled"
)

// Turn is one user-input-to-final-answer cycle within a session.
type Turn struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	UserID        uuid.UUID
	InputMode     InputMode
	ExecutionMode ExecutionMode
	Pipeline      Pipeline
	State         TurnState
	Outcome       TurnOutcome // empty until terminal
	ErrorCode     string
	RequestID     string
	StartedAt     time.Time
	EndedAt       *time.Time
}

var ErrInvalidTransition = errors.New("turn: invalid state transition")

type TurnRepository interface {
	Create(ctx context.Context, t *Turn) error
	GetByID(ctx context.Context, id uuid.UUID) (*Turn, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Turn, error)
	UpdateState(ctx context.Context, id uuid.UUID, state TurnState) error
	Complete(ctx context.Context, id uuid.UUID, state TurnState, outcome TurnOutcome, errorCode string, endedAt time.Time) error
}
