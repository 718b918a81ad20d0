// Package gateway is the session-facing edge: it owns the envelope protocol,
// per-session sequencing, turn routing and cancellation. Each session's
// events are processed strictly sequentially by its own connection loop, so
// the handler mutates session state without locks.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hushh/voicegate/internal/domain"
	"github.com/hushh/voicegate/internal/llm"
	"github.com/hushh/voicegate/internal/orchestrate"
	redisstore "github.com/hushh/voicegate/internal/store/redis"
	"github.com/hushh/voicegate/internal/tool"
	"github.com/hushh/voicegate/internal/turn"
)

const (
	directSystemPrompt = "You are a concise, helpful voice assistant. Answer briefly and naturally."
	genericFailure     = "I ran into a problem streaming that response."
	emptyAnswer        = "I couldn't generate a response."
)

// EmitFunc delivers one outbound envelope to the client.
type EmitFunc func(Envelope) error

// Publisher mirrors outbound events to a fan-out channel. Nil is allowed.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Gateway routes session events through planning, confirmation and
// execution.
type Gateway struct {
	sessions *Registry
	turns    *turn.Coordinator
	planner  orchestrate.Planner
	executor *orchestrate.Executor
	gate     *orchestrate.Gate
	model    llm.Client
	pub      Publisher
	logger   zerolog.Logger

	streamRetries int
}

func New(sessions *Registry, turns *turn.Coordinator, planner orchestrate.Planner, executor *orchestrate.Executor, gate *orchestrate.Gate, model llm.Client, pub Publisher, logger zerolog.Logger) *Gateway {
	return &Gateway{
		sessions:      sessions,
		turns:         turns,
		planner:       planner,
		executor:      executor,
		gate:          gate,
		model:         model,
		pub:           pub,
		logger:        logger.With().Str("component", "gateway").Logger(),
		streamRetries: 2,
	}
}

// Sessions exposes the live session registry.
func (g *Gateway) Sessions() *Registry { return g.sessions }

// event builds the next outbound envelope for the session.
func (g *Gateway) event(sctx SessionContext, state *SessionState, eventType, role string, payload map[string]any) Envelope {
	env := Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		TS:        time.Now().UTC(),
		SessionID: sctx.SessionID,
		Seq:       state.nextSeq(),
		TurnSeq:   state.nextTurnSeq(),
		Role:      role,
		Payload:   payload,
	}
	if state.turn != nil {
		id := state.turn.ID
		env.TurnID = &id
	}
	return env
}

// send emits the envelope and mirrors it to redis. Turn-scoped events for a
// cancelled turn are discarded, never delivered.
func (g *Gateway) send(ctx context.Context, sctx SessionContext, state *SessionState, env Envelope, emit EmitFunc) error {
	if state.turn != nil && state.turn.State == domain.TurnStateCancelled && env.EventType != EventTurnCancelled {
		g.logger.Debug().
			Str("session_id", sctx.SessionID.String()).
			Str("event_type", env.EventType).
			Msg("dropping event for cancelled turn")
		return nil
	}

	if g.pub != nil {
		if raw, err := json.Marshal(env); err == nil {
			if err := g.pub.Publish(ctx, redisstore.SessionChannel(sctx.SessionID), raw); err != nil {
				g.logger.Warn().Err(err).Msg("mirror publish failed")
			}
		}
	}

	return emit(env)
}

// HandleEvent processes one inbound envelope. The caller guarantees that no
// two events for the same session run concurrently.
func (g *Gateway) HandleEvent(ctx context.Context, sctx SessionContext, raw Envelope, emit EmitFunc) error {
	state := g.sessions.Get(sctx.SessionID)

	g.logger.Info().
		Str("event_type", raw.EventType).
		Str("session_id", sctx.SessionID.String()).
		Str("request_id", sctx.RequestID).
		Msg("event in")

	switch raw.EventType {
	case EventSessionPing:
		return g.send(ctx, sctx, state, g.event(sctx, state, EventStateChange, RoleSystem, map[string]any{
			"from": "idle", "to": "idle", "reason": "ping",
		}), emit)

	case EventUserInterrupt:
		return g.cancelActive(ctx, sctx, state, emit)

	case EventTextInput, EventAudioEnd:
		return g.handleInput(ctx, sctx, state, raw, emit)

	case EventConfirmResponse:
		return g.handleConfirmResponse(ctx, sctx, state, raw, emit)

	default:
		g.logger.Warn().Str("event_type", raw.EventType).Msg("unknown inbound event")
		return nil
	}
}

// cancelActive terminates the session's current turn, announces the
// cancellation, and clears pending state.
func (g *Gateway) cancelActive(ctx context.Context, sctx SessionContext, state *SessionState, emit EmitFunc) error {
	var cancelled *uuid.UUID
	if state.turn != nil {
		id := state.turn.ID
		cancelled = &id
		if err := g.turns.Cancel(ctx, state.turn); err != nil {
			g.logger.Error().Err(err).Str("turn_id", id.String()).Msg("cancel failed")
		}
	}

	env := g.event(sctx, state, EventTurnCancelled, RoleSystem, map[string]any{
		"cancel_turn_id": cancelled,
	})
	if err := g.send(ctx, sctx, state, env, emit); err != nil {
		return err
	}

	state.turn = nil
	state.clearPending()
	return nil
}

func (g *Gateway) handleInput(ctx context.Context, sctx SessionContext, state *SessionState, raw Envelope, emit EmitFunc) error {
	text := strings.TrimSpace(payloadString(raw.Payload, "text"))
	if text == "" {
		return nil
	}

	// A superseding input cancels the active turn before anything else.
	if state.turn != nil && !state.turn.State.Terminal() {
		if err := g.cancelActive(ctx, sctx, state, emit); err != nil {
			return err
		}
	}

	inputMode := domain.InputModeText
	if raw.EventType == EventAudioEnd || payloadString(raw.Payload, "source") == "voice" {
		inputMode = domain.InputModeVoice
	}

	plan := g.planner.BuildPlan(text)
	decision := orchestrate.Choose(orchestrate.Signals{
		RealtimeHealthy: true,
		ToolCount:       plan.ToolCount(),
		HasWrite:        plan.HasWrite(),
	})

	t, err := g.turns.Start(ctx, sctx.SessionID, sctx.UserID, inputMode, decision.Pipeline, decision.ExecutionMode, sctx.RequestID)
	if err != nil {
		return fmt.Errorf("gateway.Gateway.handleInput: %w", err)
	}
	state.resetTurn(t)

	if err := g.turns.SetState(ctx, t, domain.TurnStateThinking); err != nil {
		return fmt.Errorf("gateway.Gateway.handleInput: %w", err)
	}

	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventTurnStart, RoleSystem, map[string]any{
		"input_mode": t.InputMode,
	}), emit); err != nil {
		return err
	}
	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventStateChange, RoleSystem, map[string]any{
		"from": "listening", "to": "thinking", "reason": "route",
	}), emit); err != nil {
		return err
	}

	googleToken := payloadString(raw.Payload, "google_access_token")

	if decision.ExecutionMode == domain.ExecutionModeBackendOrchestrated && plan.HasWrite() {
		return g.requestWriteConfirmation(ctx, sctx, state, text, plan, emit)
	}

	if decision.ExecutionMode == domain.ExecutionModeBackendOrchestrated {
		return g.runOrchestrated(ctx, sctx, state, text, googleToken, false, emit)
	}

	return g.runDirect(ctx, sctx, state, text, googleToken, plan, emit)
}

// requestWriteConfirmation parks the turn behind the gate until the user
// decides.
func (g *Gateway) requestWriteConfirmation(ctx context.Context, sctx SessionContext, state *SessionState, text string, plan orchestrate.Plan, emit EmitFunc) error {
	var writeTools []string
	for _, step := range plan.Steps {
		if step.ActionLevel == tool.ActionWrite {
			writeTools = append(writeTools, step.Tool)
		}
	}
	preview := fmt.Sprintf("This request may run %s on your behalf. Confirm before executing.", strings.Join(writeTools, ", "))

	confirmationID, err := g.gate.Request(ctx, state.turn.ID, strings.Join(writeTools, ","), preview)
	if err != nil {
		return fmt.Errorf("gateway.Gateway.requestWriteConfirmation: %w", err)
	}

	state.pendingPrompt = text
	state.pendingConfirmationID = confirmationID

	if err := g.turns.SetState(ctx, state.turn, domain.TurnStateAwaitingConfirmation); err != nil {
		return fmt.Errorf("gateway.Gateway.requestWriteConfirmation: %w", err)
	}

	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventStateChange, RoleSystem, map[string]any{
		"from": "thinking", "to": "awaiting_confirmation", "reason": "confirm",
	}), emit); err != nil {
		return err
	}
	return g.send(ctx, sctx, state, g.event(sctx, state, EventConfirmationRequest, RoleSystem, map[string]any{
		"confirmation_request_id": confirmationID,
		"action_type":             strings.Join(writeTools, ","),
		"preview":                 preview,
	}), emit)
}

func (g *Gateway) handleConfirmResponse(ctx context.Context, sctx SessionContext, state *SessionState, raw Envelope, emit EmitFunc) error {
	if state.pendingConfirmationID == uuid.Nil && state.turn == nil {
		g.logger.Warn().
			Str("session_id", sctx.SessionID.String()).
			Msg("confirmation response with no pending gate ignored")
		return nil
	}

	// A response must reference the turn's current pending gate; stale ids
	// from cancelled or superseded turns are rejected, not applied.
	if ref := payloadString(raw.Payload, "confirmation_request_id"); ref != "" {
		refID, err := uuid.Parse(ref)
		if err != nil || state.pendingConfirmationID == uuid.Nil || refID != state.pendingConfirmationID {
			g.logger.Warn().
				Str("session_id", sctx.SessionID.String()).
				Str("confirmation_request_id", ref).
				Msg("stale confirmation response rejected")
			return nil
		}
	}

	decision := strings.ToLower(payloadString(raw.Payload, "decision"))
	pendingID := state.pendingConfirmationID

	if decision != "accept" {
		if pendingID != uuid.Nil {
			if _, err := g.gate.Resolve(ctx, pendingID, domain.ConfirmationDecisionReject); err != nil {
				g.logger.Error().Err(err).Msg("reject resolution failed")
			}
		}
		return g.cancelActive(ctx, sctx, state, emit)
	}

	if pendingID != uuid.Nil {
		if _, err := g.gate.Resolve(ctx, pendingID, domain.ConfirmationDecisionAccept); err != nil {
			return fmt.Errorf("gateway.Gateway.handleConfirmResponse: %w", err)
		}
	}

	if state.pendingPrompt == "" || state.turn == nil {
		return g.send(ctx, sctx, state, g.event(sctx, state, EventStateChange, RoleSystem, map[string]any{
			"from": "awaiting_confirmation", "to": "executing_tools", "reason": "confirm",
		}), emit)
	}

	text := state.pendingPrompt
	googleToken := payloadString(raw.Payload, "google_access_token")
	state.clearPending()

	return g.runOrchestrated(ctx, sctx, state, text, googleToken, true, emit)
}

// runOrchestrated executes the model's tool-calling loop and streams the
// composed answer back as sentence chunks.
func (g *Gateway) runOrchestrated(ctx context.Context, sctx SessionContext, state *SessionState, text, googleToken string, writesConfirmed bool, emit EmitFunc) error {
	from := string(state.turn.State)
	if err := g.turns.SetState(ctx, state.turn, domain.TurnStateExecutingTools); err != nil {
		return fmt.Errorf("gateway.Gateway.runOrchestrated: %w", err)
	}
	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventStateChange, RoleSystem, map[string]any{
		"from": from, "to": "executing_tools", "reason": "tools",
	}), emit); err != nil {
		return err
	}

	for _, step := range orchestrate.ProgressPlan(text) {
		if err := g.send(ctx, sctx, state, g.event(sctx, state, EventToolCallProgress, RoleAssistant, map[string]any{
			"message": step, "status": "running",
		}), emit); err != nil {
			return err
		}
	}

	started := time.Now()
	res, err := g.executor.RunLoop(ctx, state.turn.ID, []llm.Message{
		{Role: llm.RoleSystem, Content: directSystemPrompt},
		{Role: llm.RoleUser, Content: text},
	}, tool.Context{
		UserID:      sctx.UserID,
		GoogleToken: googleToken,
		RequestID:   sctx.RequestID,
	}, writesConfirmed)

	g.logger.Info().
		Str("turn_id", state.turn.ID.String()).
		Dur("elapsed", time.Since(started)).
		Err(err).
		Msg("orchestrated query completed")

	if err != nil {
		return g.failTurn(ctx, sctx, state, "orchestration_failed", emit)
	}

	reply := strings.TrimSpace(res.Text)
	if reply == "" {
		reply = emptyAnswer
	}

	if err := g.turns.SetState(ctx, state.turn, domain.TurnStateSpeaking); err != nil {
		return fmt.Errorf("gateway.Gateway.runOrchestrated: %w", err)
	}
	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventStateChange, RoleSystem, map[string]any{
		"from": "executing_tools", "to": "speaking", "reason": "answer",
	}), emit); err != nil {
		return err
	}

	for _, chunk := range chunkText(reply) {
		if err := g.send(ctx, sctx, state, g.event(sctx, state, EventAssistantTextDelta, RoleAssistant, map[string]any{
			"text": chunk,
		}), emit); err != nil {
			return err
		}
	}

	return g.finishTurn(ctx, sctx, state, reply, emit)
}

// runDirect answers on the low-latency path. Planned read steps still execute
// exactly once through the durable run store; their outputs ground the
// streamed answer. Write plans never reach this branch.
func (g *Gateway) runDirect(ctx context.Context, sctx SessionContext, state *SessionState, text, googleToken string, plan orchestrate.Plan, emit EmitFunc) error {
	var grounding string
	if len(plan.Steps) > 0 {
		for _, msg := range orchestrate.ProgressPlan(text) {
			if err := g.send(ctx, sctx, state, g.event(sctx, state, EventToolCallProgress, RoleAssistant, map[string]any{
				"message": msg, "status": "running",
			}), emit); err != nil {
				return err
			}
		}

		outcome, err := g.executor.ExecutePlan(ctx, state.turn.ID, plan, 0, -1, tool.Context{
			UserID:      sctx.UserID,
			GoogleToken: googleToken,
			RequestID:   sctx.RequestID,
		})
		if err != nil {
			return g.failTurn(ctx, sctx, state, "tool_execution_failed", emit)
		}
		if raw, merr := json.Marshal(outcome.Results); merr == nil {
			grounding = string(raw)
		}
	}

	if err := g.turns.SetState(ctx, state.turn, domain.TurnStateSpeaking); err != nil {
		return fmt.Errorf("gateway.Gateway.runDirect: %w", err)
	}
	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventStateChange, RoleSystem, map[string]any{
		"from": "thinking", "to": "speaking", "reason": "answer",
	}), emit); err != nil {
		return err
	}

	var full strings.Builder
	emitDelta := func(delta string) error {
		full.WriteString(delta)
		return g.send(ctx, sctx, state, g.event(sctx, state, EventAssistantTextDelta, RoleAssistant, map[string]any{
			"text": delta,
		}), emit)
	}

	if err := g.streamDirect(ctx, text, grounding, emitDelta); err != nil {
		return err
	}

	return g.finishTurn(ctx, sctx, state, full.String(), emit)
}

// streamDirect streams a completion with bounded retries, falling back to a
// non-streaming call and finally to a generic failure message.
func (g *Gateway) streamDirect(ctx context.Context, text, grounding string, emitDelta func(string) error) error {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: directSystemPrompt},
	}
	if grounding != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Tool results for this request: " + grounding,
		})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	req := llm.CompletionRequest{
		Messages:    messages,
		Temperature: 0.6,
		MaxTokens:   500,
	}

	var lastErr error
	for attempt := 0; attempt <= g.streamRetries; attempt++ {
		err := g.model.Stream(ctx, req, llm.StreamFunc(emitDelta))
		if err == nil {
			return nil
		}
		lastErr = err
		g.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("streaming chat failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 350 * time.Millisecond):
		}
	}

	completion, err := g.model.Complete(ctx, req)
	if err == nil && strings.TrimSpace(completion.Content) != "" {
		return emitDelta(completion.Content)
	}
	g.logger.Error().Err(err).AnErr("stream_error", lastErr).Msg("fallback chat failed after stream errors")

	return emitDelta(genericFailure)
}

// finishTurn emits the terminal events and persists the success outcome.
func (g *Gateway) finishTurn(ctx context.Context, sctx SessionContext, state *SessionState, display string, emit EmitFunc) error {
	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventAssistantTextFinal, RoleAssistant, map[string]any{
		"speech": renderSpeech(display),
	}), emit); err != nil {
		return err
	}
	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventTurnEnd, RoleSystem, map[string]any{
		"outcome": "success", "error_code": nil,
	}), emit); err != nil {
		return err
	}

	if err := g.turns.Complete(ctx, state.turn, domain.TurnOutcomeSuccess, ""); err != nil {
		g.logger.Error().Err(err).Msg("complete turn failed")
	}
	return nil
}

// failTurn ends the turn with a stable error code and a generic user-facing
// message; internal detail stays in the durable records.
func (g *Gateway) failTurn(ctx context.Context, sctx SessionContext, state *SessionState, errorCode string, emit EmitFunc) error {
	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventAssistantTextDelta, RoleAssistant, map[string]any{
		"text": genericFailure,
	}), emit); err != nil {
		return err
	}
	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventAssistantTextFinal, RoleAssistant, map[string]any{
		"speech": genericFailure,
	}), emit); err != nil {
		return err
	}
	if err := g.send(ctx, sctx, state, g.event(sctx, state, EventTurnEnd, RoleSystem, map[string]any{
		"outcome": "error", "error_code": errorCode,
	}), emit); err != nil {
		return err
	}

	if state.turn != nil && state.turn.State.ValidTransition(domain.TurnStateDone) {
		if err := g.turns.Complete(ctx, state.turn, domain.TurnOutcomeError, errorCode); err != nil {
			g.logger.Error().Err(err).Msg("complete turn failed")
		}
	}
	return nil
}
