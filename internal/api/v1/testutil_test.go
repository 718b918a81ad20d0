package v1_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hushh/voicegate/internal/domain"
	"github.com/hushh/voicegate/internal/llm"
	"github.com/hushh/voicegate/internal/server/middleware"
	"github.com/hushh/voicegate/internal/tool"
)

// ---------------------------------------------------------------------------
// userCtx injects the authenticated user into context for DoCtx calls.
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return context.WithValue(context.Background(), middleware.ContextKeyUserID, userID)
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	turns    domain.TurnRepository
	toolRuns domain.ToolRunRepository
	profiles domain.ProfileRepository
}

func (m *mockDataStore) Turns() domain.TurnRepository       { return m.turns }
func (m *mockDataStore) ToolRuns() domain.ToolRunRepository { return m.toolRuns }
func (m *mockDataStore) Profiles() domain.ProfileRepository { return m.profiles }

// ---------------------------------------------------------------------------
// Mock TurnRepository
// ---------------------------------------------------------------------------

type mockTurnRepo struct {
	createFunc        func(ctx context.Context, t *domain.Turn) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*domain.Turn, error)
	listBySessionFunc func(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Turn, error)
	updateStateFunc   func(ctx context.Context, id uuid.UUID, state domain.TurnState) error
	completeFunc      func(ctx context.Context, id uuid.UUID, state domain.TurnState, outcome domain.TurnOutcome, errorCode string, endedAt time.Time) error
}

func (m *mockTurnRepo) Create(ctx context.Context, t *domain.Turn) error {
	return m.createFunc(ctx, t)
}

func (m *mockTurnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Turn, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTurnRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Turn, error) {
	return m.listBySessionFunc(ctx, sessionID, limit)
}

func (m *mockTurnRepo) UpdateState(ctx context.Context, id uuid.UUID, state domain.TurnState) error {
	return m.updateStateFunc(ctx, id, state)
}

func (m *mockTurnRepo) Complete(ctx context.Context, id uuid.UUID, state domain.TurnState, outcome domain.TurnOutcome, errorCode string, endedAt time.Time) error {
	return m.completeFunc(ctx, id, state, outcome, errorCode, endedAt)
}

// ---------------------------------------------------------------------------
// Mock ToolRunRepository
// ---------------------------------------------------------------------------

type mockToolRunRepo struct {
	createFunc          func(ctx context.Context, r *domain.ToolRun) (*domain.ToolRun, error)
	getByIdempotencyKey func(ctx context.Context, key string) (*domain.ToolRun, error)
	completeFunc        func(ctx context.Context, id uuid.UUID, output json.RawMessage, finishedAt time.Time) error
	listByTurnFunc      func(ctx context.Context, turnID uuid.UUID) ([]*domain.ToolRun, error)
}

func (m *mockToolRunRepo) Create(ctx context.Context, r *domain.ToolRun) (*domain.ToolRun, error) {
	return m.createFunc(ctx, r)
}

func (m *mockToolRunRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.ToolRun, error) {
	return m.getByIdempotencyKey(ctx, key)
}

func (m *mockToolRunRepo) Complete(ctx context.Context, id uuid.UUID, output json.RawMessage, finishedAt time.Time) error {
	return m.completeFunc(ctx, id, output, finishedAt)
}

func (m *mockToolRunRepo) ListByTurn(ctx context.Context, turnID uuid.UUID) ([]*domain.ToolRun, error) {
	return m.listByTurnFunc(ctx, turnID)
}

// ---------------------------------------------------------------------------
// Mock ProfileRepository
// ---------------------------------------------------------------------------

type mockProfileRepo struct {
	getFunc    func(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	upsertFunc func(ctx context.Context, p *domain.Profile) error
}

func (m *mockProfileRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	return m.getFunc(ctx, userID)
}

func (m *mockProfileRepo) Upsert(ctx context.Context, p *domain.Profile) error {
	return m.upsertFunc(ctx, p)
}

// ---------------------------------------------------------------------------
// Mock ConfirmationGate
// ---------------------------------------------------------------------------

type mockGate struct {
	requestFunc func(ctx context.Context, turnID uuid.UUID, actionType, preview string) (uuid.UUID, error)
	resolveFunc func(ctx context.Context, id uuid.UUID, decision domain.ConfirmationDecision) (*domain.Confirmation, error)
	getFunc     func(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error)
}

func (m *mockGate) Request(ctx context.Context, turnID uuid.UUID, actionType, preview string) (uuid.UUID, error) {
	return m.requestFunc(ctx, turnID, actionType, preview)
}

func (m *mockGate) Resolve(ctx context.Context, id uuid.UUID, decision domain.ConfirmationDecision) (*domain.Confirmation, error) {
	return m.resolveFunc(ctx, id, decision)
}

func (m *mockGate) Get(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error) {
	return m.getFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock ToolCatalog
// ---------------------------------------------------------------------------

type mockCatalog struct {
	specs  []llm.ToolDef
	levels map[string]tool.ActionLevel
}

func (m *mockCatalog) Specs() []llm.ToolDef { return m.specs }

func (m *mockCatalog) ActionLevel(name string) (tool.ActionLevel, bool) {
	level, ok := m.levels[name]
	return level, ok
}
