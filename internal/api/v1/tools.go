package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// ToolCatalogEntry is one advertised tool with its argument schema and the
// action level deciding whether a confirmation gates it.
type ToolCatalogEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
	ActionLevel string          `json:"action_level" enum:"read,write"`
}

type ListToolsOutput struct {
	Body []ToolCatalogEntry
}

func RegisterToolRoutes(api huma.API, catalog ToolCatalog) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tools",
		Method:      http.MethodGet,
		Path:        "/tools",
		Summary:     "List the registered tool catalog",
		Tags:        []string{"Tools"},
	}, func(ctx context.Context, _ *struct{}) (*ListToolsOutput, error) {
		specs := catalog.Specs()
		entries := make([]ToolCatalogEntry, 0, len(specs))
		for _, def := range specs {
			level, _ := catalog.ActionLevel(def.Name)
			entries = append(entries, ToolCatalogEntry{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
				ActionLevel: string(level),
			})
		}
		return &ListToolsOutput{Body: entries}, nil
	})
}
