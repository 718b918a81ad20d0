package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hushh/voicegate/internal/domain"
)

// RegisterProfile wires the profile lookup tool into the registry.
func RegisterProfile(reg *Registry, profiles domain.ProfileRepository) error {
	spec := Spec{
		Name:        "profile_get",
		Description: "Fetch the user's stored profile: name, email, locale and timezone.",
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		ActionLevel: ActionRead,
		Handler: func(ctx context.Context, _ json.RawMessage, tc Context) Result {
			p, err := profiles.Get(ctx, tc.UserID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return Ok(map[string]any{"profile": nil})
				}
				return Fail(CodeToolError, "profile lookup failed")
			}
			return Ok(map[string]any{"profile": map[string]string{
				"full_name": p.FullName,
				"email":     p.Email,
				"phone":     p.Phone,
				"locale":    p.Locale,
				"timezone":  p.Timezone,
			}})
		},
	}
	if err := reg.Register(spec); err != nil {
		return fmt.Errorf("tool.RegisterProfile: %w", err)
	}
	return nil
}
