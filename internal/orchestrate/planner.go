package orchestrate

import (
	"encoding/json"
	"strings"

	"github.com/hushh/voicegate/internal/tool"
)

// PlanStep is one candidate tool invocation. CallID, when supplied by the
// caller, becomes the step's idempotency key.
type PlanStep struct {
	Tool        string
	ActionLevel tool.ActionLevel
	Args        json.RawMessage
	CallID      string
}

// Plan is an ordered list of candidate steps, reads before writes. It is a
// cheap estimate feeding the selector; the model performs the actual tool
// selection during orchestrated execution.
type Plan struct {
	Steps []PlanStep
}

func (p Plan) ToolCount() int { return len(p.Steps) }

func (p Plan) HasWrite() bool {
	for _, s := range p.Steps {
		if s.ActionLevel == tool.ActionWrite {
			return true
		}
	}
	return false
}

// Planner estimates the tool work a user input implies. Isolated behind an
// interface so a model-driven planner can replace the keyword heuristic
// without touching the executor.
type Planner interface {
	BuildPlan(userText string) Plan
}

var (
	mailKeywords     = []string{"gmail", "email", "inbox", "mail"}
	calendarKeywords = []string{"calendar", "meeting", "schedule", "event", "appointment"}
	sendKeywords     = []string{"send", "reply", "respond", "forward"}
	scheduleKeywords = []string{"schedule", "create", "book", "set up", "invite"}
)

// KeywordPlanner matches capability keyword sets against the lowered input.
type KeywordPlanner struct{}

func NewKeywordPlanner() KeywordPlanner { return KeywordPlanner{} }

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// BuildPlan emits read steps first so a write can be informed by a preceding
// search when both are implicated.
func (KeywordPlanner) BuildPlan(userText string) Plan {
	lower := strings.ToLower(userText)

	mail := containsAny(lower, mailKeywords)
	calendar := containsAny(lower, calendarKeywords)

	// "email" in verb position reads as an instruction to send, not a
	// request to check the inbox.
	sendIntent := containsAny(lower, sendKeywords) ||
		strings.HasPrefix(strings.TrimSpace(lower), "email ") ||
		strings.Contains(lower, "write to ")

	var reads, writes []PlanStep
	if mail {
		reads = append(reads, PlanStep{Tool: "gmail_search", ActionLevel: tool.ActionRead})
		if sendIntent {
			writes = append(writes, PlanStep{Tool: "gmail_send", ActionLevel: tool.ActionWrite})
		}
	}
	if calendar {
		reads = append(reads, PlanStep{Tool: "calendar_list_events", ActionLevel: tool.ActionRead})
		if containsAny(lower, scheduleKeywords) {
			writes = append(writes, PlanStep{Tool: "calendar_create_event", ActionLevel: tool.ActionWrite})
		}
	}

	return Plan{Steps: append(reads, writes...)}
}

// ProgressPlan derives the user-visible progress messages for the matched
// capability domains.
func ProgressPlan(userText string) []string {
	lower := strings.ToLower(userText)

	var steps []string
	if containsAny(lower, mailKeywords) {
		steps = append(steps, "Checking your inbox...", "Reading recent emails...")
	}
	if containsAny(lower, calendarKeywords) {
		steps = append(steps, "Looking at your calendar...", "Finding free slots...")
	}
	if strings.Contains(lower, "reply") || strings.Contains(lower, "respond") {
		steps = append(steps, "Drafting a reply...")
	}
	if len(steps) == 0 {
		steps = append(steps, "Working on that...")
	}
	return steps
}
