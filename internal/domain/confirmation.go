package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ConfirmationStatus string

const (
	ConfirmationStatusPending  ConfirmationStatus = "pending"
	ConfirmationStatusAccepted ConfirmationStatus = "accepted"
	ConfirmationStatusRejected ConfirmationStatus = "rejected"
)

// Resolved reports whether the request has left the pending state.
func (s ConfirmationStatus) Resolved() bool {
	return s == ConfirmationStatusAccepted || s == ConfirmationStatusRejected
}

type ConfirmationDecision string

const (
	ConfirmationDecisionAccept ConfirmationDecision = "accept"
	ConfirmationDecisionReject ConfirmationDecision = "reject"
)

// Confirmation is a human-in-the-loop approval record for one write action.
// It is created pending and resolved exactly once; a resolved row never
// changes again.
type Confirmation struct {
	ID         uuid.UUID
	TurnID     uuid.UUID
	ActionType string // tool name, e.g. "gmail_send"
	Preview    string // human-readable summary of the side effect
	Status     ConfirmationStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

type ConfirmationRepository interface {
	Create(ctx context.Context, c *Confirmation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Confirmation, error)
	// Resolve flips a pending row to accepted or rejected. When the row is
	// already resolved it returns the stored row and ErrAlreadyResolved;
	// callers treat that as an idempotent no-op.
	Resolve(ctx context.Context, id uuid.UUID, status ConfirmationStatus, resolvedAt time.Time) (*Confirmation, error)
	ListPendingByTurn(ctx context.Context, turnID uuid.UUID) ([]*Confirmation, error)
}
