package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/hushh/voicegate/internal/domain"
	"github.com/hushh/voicegate/internal/llm"
	"github.com/hushh/voicegate/internal/tool"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Turns() domain.TurnRepository
	ToolRuns() domain.ToolRunRepository
	Profiles() domain.ProfileRepository
}

// ConfirmationGate abstracts the confirmation contract for handler testing.
// *orchestrate.Gate satisfies this interface.
type ConfirmationGate interface {
	Request(ctx context.Context, turnID uuid.UUID, actionType, preview string) (uuid.UUID, error)
	Resolve(ctx context.Context, id uuid.UUID, decision domain.ConfirmationDecision) (*domain.Confirmation, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error)
}

// ToolCatalog abstracts the registry for the catalog endpoint.
// *tool.Registry satisfies this interface.
type ToolCatalog interface {
	Specs() []llm.ToolDef
	ActionLevel(name string) (tool.ActionLevel, bool)
}
