package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hushh/voicegate/internal/llm"
)

// Registry is the single source of truth for callable tools. It is populated
// at startup and read-only afterwards, but guarded anyway so tests can build
// registries concurrently.
type Registry struct {
	mu     sync.RWMutex
	specs  map[string]Spec
	logger zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		specs:  make(map[string]Spec),
		logger: logger.With().Str("component", "tool").Logger(),
	}
}

// Register adds a tool. Re-registering a name replaces the previous spec.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("tool.Registry.Register: empty name")
	}
	if spec.Handler == nil {
		return fmt.Errorf("tool.Registry.Register: %s: nil handler", spec.Name)
	}
	if spec.ActionLevel != ActionRead && spec.ActionLevel != ActionWrite {
		return fmt.Errorf("tool.Registry.Register: %s: bad action level %q", spec.Name, spec.ActionLevel)
	}

	r.mu.Lock()
	r.specs[spec.Name] = spec
	r.mu.Unlock()
	return nil
}

// ActionLevel reports the registered level for name; false if unknown.
func (r *Registry) ActionLevel(name string) (ActionLevel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec.ActionLevel, ok
}

// Dispatch runs the named tool. It never panics and never returns a Go
// error: every failure mode maps onto a Result with a closed code.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage, tc Context) (res Result) {
	r.mu.RLock()
	spec, ok := r.specs[name]
	r.mu.RUnlock()

	if !ok {
		return Fail(CodeUnknownTool, fmt.Sprintf("no tool named %q", name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("tool", name).
				Str("request_id", tc.RequestID).
				Interface("panic", rec).
				Msg("tool handler panicked")
			res = Fail(CodeToolError, fmt.Sprintf("%s failed", name))
		}
	}()

	r.logger.Debug().
		Str("tool", name).
		Str("request_id", tc.RequestID).
		Str("action_level", string(spec.ActionLevel)).
		Msg("dispatch")

	return spec.Handler(ctx, args, tc)
}

// Specs exports the catalog as the function-calling definitions sent to the
// model, sorted by name for a stable wire order.
func (r *Registry) Specs() []llm.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDef, 0, len(r.specs))
	for _, spec := range r.specs {
		defs = append(defs, llm.ToolDef{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
