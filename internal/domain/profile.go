package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Profile is the thin per-user profile record consumed by tools and the
// profile REST surface.
type Profile struct {
	UserID    uuid.UUID
	FullName  string
	Email     string
	Phone     string
	Locale    string
	Timezone  string
	UpdatedAt time.Time
}

type ProfileRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Upsert(ctx context.Context, p *Profile) error
}
