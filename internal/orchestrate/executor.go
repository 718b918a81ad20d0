package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hushh/voicegate/internal/domain"
	"github.com/hushh/voicegate/internal/llm"
	"github.com/hushh/voicegate/internal/tool"
)

// DefaultMaxToolSteps bounds the model's tool-calling loop per turn.
const DefaultMaxToolSteps = 6

// ErrStepBudgetExhausted is returned when the model keeps requesting tools
// past the per-turn round ceiling.
var ErrStepBudgetExhausted = errors.New("orchestrate: tool step budget exhausted")

// StepResult is the outcome of one executed plan step.
type StepResult struct {
	StepIndex int             `json:"step_index"`
	Tool      string          `json:"tool"`
	Cached    bool            `json:"cached"`
	Output    json.RawMessage `json:"output"`
}

// PlanOutcome aggregates a plan walk. When Halted is true the walk stopped at
// a write step: ConfirmationID identifies the pending gate and ResumeIndex is
// the step to re-enter at after acceptance.
type PlanOutcome struct {
	Results        []StepResult
	Halted         bool
	ConfirmationID uuid.UUID
	ResumeIndex    int
}

// Executor runs plan steps and the model's tool-calling loop with
// at-most-once semantics backed by the durable run store.
type Executor struct {
	registry *tool.Registry
	runs     domain.ToolRunRepository
	gate     *Gate
	model    llm.Client
	maxSteps int
	logger   zerolog.Logger
}

func NewExecutor(registry *tool.Registry, runs domain.ToolRunRepository, gate *Gate, model llm.Client, maxSteps int, logger zerolog.Logger) *Executor {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxToolSteps
	}
	return &Executor{
		registry: registry,
		runs:     runs,
		gate:     gate,
		model:    model,
		maxSteps: maxSteps,
		logger:   logger.With().Str("component", "executor").Logger(),
	}
}

// ExecutePlan walks steps strictly in order starting at startIndex. A write
// step opens the confirmation gate and halts; the resumed call after
// acceptance re-enters at the same step with a pre-acknowledged index.
// confirmedIndex marks a single write step whose confirmation was already
// accepted (-1 when none).
func (e *Executor) ExecutePlan(ctx context.Context, turnID uuid.UUID, plan Plan, startIndex, confirmedIndex int, tc tool.Context) (*PlanOutcome, error) {
	out := &PlanOutcome{}

	for i := startIndex; i < len(plan.Steps); i++ {
		step := plan.Steps[i]

		if step.ActionLevel == tool.ActionWrite && i != confirmedIndex {
			preview := previewFor(step)
			confirmationID, err := e.gate.Request(ctx, turnID, step.Tool, preview)
			if err != nil {
				return nil, fmt.Errorf("orchestrate.Executor.ExecutePlan: %w", err)
			}
			out.Halted = true
			out.ConfirmationID = confirmationID
			out.ResumeIndex = i
			return out, nil
		}

		key := step.CallID
		if key == "" {
			key = fmt.Sprintf("%s:%s:%d", turnID, step.Tool, i)
		}

		output, cached, err := e.runOnce(ctx, turnID, i, step.Tool, key, step.Args, tc)
		if err != nil {
			return nil, fmt.Errorf("orchestrate.Executor.ExecutePlan: %w", err)
		}
		out.Results = append(out.Results, StepResult{
			StepIndex: i,
			Tool:      step.Tool,
			Cached:    cached,
			Output:    output,
		})
	}

	return out, nil
}

// runOnce executes one tool call at most once under the idempotency key. A
// key that already maps to a completed run returns the stored output without
// re-invoking the handler.
func (e *Executor) runOnce(ctx context.Context, turnID uuid.UUID, stepIndex int, name, key string, args json.RawMessage, tc tool.Context) (json.RawMessage, bool, error) {
	run := &domain.ToolRun{
		ID:             uuid.New(),
		TurnID:         turnID,
		StepIndex:      stepIndex,
		ToolName:       name,
		Status:         domain.ToolRunStatusRunning,
		IdempotencyKey: key,
		Input:          args,
		StartedAt:      time.Now().UTC(),
	}

	stored, err := e.runs.Create(ctx, run)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			if stored.Status == domain.ToolRunStatusCompleted {
				e.logger.Debug().
					Str("tool", name).
					Str("idempotency_key", key).
					Msg("idempotent replay served from run store")
				return stored.OutputSummary, true, nil
			}
			// A non-completed duplicate means a concurrent or crashed run.
			// Take over its row: dispatch and complete under the stored id.
		} else {
			return nil, false, fmt.Errorf("create run: %w", err)
		}
	}

	res := e.registry.Dispatch(ctx, name, args, tc)
	output, mErr := json.Marshal(res)
	if mErr != nil {
		return nil, false, fmt.Errorf("encode result: %w", mErr)
	}

	runID := run.ID
	if stored != nil {
		runID = stored.ID
	}
	if err := e.runs.Complete(ctx, runID, output, time.Now().UTC()); err != nil {
		return nil, false, fmt.Errorf("complete run: %w", err)
	}

	return output, false, nil
}

// previewFor renders the human-readable approval text from the exact
// arguments that will execute.
func previewFor(step PlanStep) string {
	if len(step.Args) == 0 {
		return fmt.Sprintf("Run %s", step.Tool)
	}
	var args map[string]any
	if err := json.Unmarshal(step.Args, &args); err != nil {
		return fmt.Sprintf("Run %s", step.Tool)
	}
	switch step.Tool {
	case "gmail_send":
		return fmt.Sprintf("Send email to %v with subject %q", args["to"], args["subject"])
	case "calendar_create_event":
		return fmt.Sprintf("Create event %q from %v to %v", args["summary"], args["start"], args["end"])
	default:
		return fmt.Sprintf("Run %s with %s", step.Tool, step.Args)
	}
}

// LoopResult is the outcome of the model's tool-calling loop.
type LoopResult struct {
	Text   string
	Rounds int
}

// RunLoop drives the model's own tool selection: up to maxSteps rounds of
// tool calls, each result (success or structured failure) fed back as a tool
// message so the model can explain failures in its own words. Write tools are
// blocked with read_only_blocked unless allowWrites is set, which the caller
// only does after an accepted confirmation.
func (e *Executor) RunLoop(ctx context.Context, turnID uuid.UUID, messages []llm.Message, tc tool.Context, allowWrites bool) (*LoopResult, error) {
	transcript := make([]llm.Message, len(messages))
	copy(transcript, messages)

	for round := 0; round < e.maxSteps; round++ {
		completion, err := e.model.Complete(ctx, llm.CompletionRequest{
			Messages: transcript,
			Tools:    e.registry.Specs(),
		})
		if err != nil {
			return nil, fmt.Errorf("orchestrate.Executor.RunLoop: %w", err)
		}

		if len(completion.ToolCalls) == 0 {
			return &LoopResult{Text: completion.Content, Rounds: round}, nil
		}

		transcript = append(transcript, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range transcript[len(transcript)-1].ToolCalls {
			output := e.execCall(ctx, turnID, round, call, tc, allowWrites)
			transcript = append(transcript, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    string(output),
			})
		}
	}

	return nil, fmt.Errorf("orchestrate.Executor.RunLoop: %w", ErrStepBudgetExhausted)
}

func (e *Executor) execCall(ctx context.Context, turnID uuid.UUID, round int, call llm.ToolCall, tc tool.Context, allowWrites bool) json.RawMessage {
	level, known := e.registry.ActionLevel(call.Name)
	if known && level == tool.ActionWrite && !allowWrites {
		res := tool.Fail(tool.CodeReadOnlyBlocked, call.Name+" requires user confirmation and cannot run on this path")
		out, _ := json.Marshal(res)
		return out
	}

	key := call.ID
	if key == "" {
		key = fmt.Sprintf("%s:%s:%d", turnID, call.Name, round)
	}

	output, _, err := e.runOnce(ctx, turnID, round, call.Name, key, call.Arguments, tc)
	if err != nil {
		e.logger.Error().Err(err).
			Str("tool", call.Name).
			Str("turn_id", turnID.String()).
			Msg("tool run store failure")
		res := tool.Fail(tool.CodeToolError, call.Name+" failed")
		out, _ := json.Marshal(res)
		return out
	}
	return output
}
