package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hushh/voicegate/internal/domain"
)

// Notifier announces a newly pending confirmation to an out-of-band channel
// (Slack in the default wiring). A nil notifier is allowed.
type Notifier interface {
	ConfirmationPending(ctx context.Context, c *domain.Confirmation)
}

// Gate is the mandatory approval checkpoint before any write tool runs.
// There is no bypass: the executor halts on every write step until the gate's
// record reaches accepted.
type Gate struct {
	confirmations domain.ConfirmationRepository
	notifier      Notifier
	logger        zerolog.Logger
}

func NewGate(confirmations domain.ConfirmationRepository, notifier Notifier, logger zerolog.Logger) *Gate {
	return &Gate{
		confirmations: confirmations,
		notifier:      notifier,
		logger:        logger.With().Str("component", "gate").Logger(),
	}
}

// Request persists a pending confirmation for the action. The preview must be
// derived from the same arguments that will execute, so what the user
// approves is exactly what runs.
func (g *Gate) Request(ctx context.Context, turnID uuid.UUID, actionType, preview string) (uuid.UUID, error) {
	c := &domain.Confirmation{
		ID:         uuid.New(),
		TurnID:     turnID,
		ActionType: actionType,
		Preview:    preview,
		Status:     domain.ConfirmationStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := g.confirmations.Create(ctx, c); err != nil {
		return uuid.Nil, fmt.Errorf("orchestrate.Gate.Request: %w", err)
	}

	if g.notifier != nil {
		g.notifier.ConfirmationPending(ctx, c)
	}

	g.logger.Info().
		Str("turn_id", turnID.String()).
		Str("confirmation_id", c.ID.String()).
		Str("action_type", actionType).
		Msg("confirmation pending")
	return c.ID, nil
}

// Resolve flips a pending confirmation exactly once. Resolving an already
// resolved request returns the stored row unchanged, so duplicate decisions
// from a retrying client are no-ops.
func (g *Gate) Resolve(ctx context.Context, id uuid.UUID, decision domain.ConfirmationDecision) (*domain.Confirmation, error) {
	status := domain.ConfirmationStatusRejected
	if decision == domain.ConfirmationDecisionAccept {
		status = domain.ConfirmationStatusAccepted
	}

	c, err := g.confirmations.Resolve(ctx, id, status, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) {
			g.logger.Debug().Str("confirmation_id", id.String()).Msg("duplicate resolution ignored")
			return c, nil
		}
		return nil, fmt.Errorf("orchestrate.Gate.Resolve: %w", err)
	}

	g.logger.Info().
		Str("confirmation_id", id.String()).
		Str("status", string(c.Status)).
		Msg("confirmation resolved")
	return c, nil
}

// Get fetches a confirmation by id.
func (g *Gate) Get(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error) {
	c, err := g.confirmations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("orchestrate.Gate.Get: %w", err)
	}
	return c, nil
}
