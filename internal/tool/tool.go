// Package tool defines the closed tool catalog exposed to the model and the
// registry that dispatches its calls. Handlers never propagate panics or raw
// provider errors past the registry boundary; every failure is normalized to
// a Result carrying one of a closed set of error codes.
package tool

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// ActionLevel classifies a tool's side effects. Write tools must pass the
// confirmation gate before dispatch.
type ActionLevel string

const (
	ActionRead  ActionLevel = "read"
	ActionWrite ActionLevel = "write"
)

// Closed error codes surfaced from tool handlers.
const (
	CodeMissingGoogleToken = "missing_google_token"
	CodeInvalidArguments   = "invalid_arguments"
	CodeInvalidEmail       = "invalid_email"
	CodeSendFailed         = "send_failed"
	CodeUnknownTool        = "unknown_tool"
	CodeReadOnlyBlocked    = "read_only_blocked"
	CodeToolError          = "tool_error"
)

// Context carries per-call identity and tracing info into handlers.
type Context struct {
	UserID      uuid.UUID
	GoogleToken string
	UserEmail   string
	Locale      string
	Timezone    string
	RequestID   string
}

// Error is a structured handler failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform handler outcome.
type Result struct {
	OK   bool            `json:"ok"`
	Data json.RawMessage `json:"data,omitempty"`
	Err  *Error          `json:"error,omitempty"`
}

// Ok wraps v as a successful result. A value that fails to marshal is a
// programming error and comes back as tool_error.
func Ok(v any) Result {
	data, err := json.Marshal(v)
	if err != nil {
		return Fail(CodeToolError, "encode result: "+err.Error())
	}
	return Result{OK: true, Data: data}
}

// Fail builds a failed result with a closed error code.
func Fail(code, message string) Result {
	return Result{OK: false, Err: &Error{Code: code, Message: message}}
}

// Handler executes one tool call. Args is the raw JSON argument object from
// the model or the planner.
type Handler func(ctx context.Context, args json.RawMessage, tc Context) Result

// Spec describes one registered tool. Parameters is a JSON-schema object and
// doubles as the function-calling specification sent to the model.
type Spec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	ActionLevel ActionLevel
	Handler     Handler
}
