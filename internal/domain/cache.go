package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CacheDomain identifies which provider view a cache row belongs to.
type CacheDomain string

const (
	CacheDomainMail     CacheDomain = "mail"
	CacheDomainCalendar CacheDomain = "calendar"
)

// CacheState tracks per-user, per-domain sync position. Mail uses an opaque
// history cursor; calendar uses an opaque sync token. Only the synchronizer
// mutates it, and only after a successful refresh.
type CacheState struct {
	UserID      uuid.UUID
	Domain      CacheDomain
	LastSyncAt  time.Time
	Cursor      string // mail history cursor
	SyncToken   string // calendar sync token
	RecordCount int
}

// CachedMessage is a denormalized copy of one provider mail message, keyed by
// (user_id, provider_id). Superseded rows are overwritten by sync, not purged.
type CachedMessage struct {
	UserID     uuid.UUID
	ProviderID string
	ThreadID   string
	FromName   string
	FromEmail  string
	Subject    string
	Snippet    string
	InternalAt time.Time
	SyncedAt   time.Time
}

// CachedEvent is a denormalized copy of one provider calendar event.
type CachedEvent struct {
	UserID     uuid.UUID
	ProviderID string
	Summary    string
	Start      string // provider datetime or all-day date, lexically ordered
	End        string
	Location   string
	Attendees  []string
	HTMLLink   string
	SyncedAt   time.Time
}

type CacheRepository interface {
	GetState(ctx context.Context, userID uuid.UUID, dom CacheDomain) (*CacheState, error)
	UpsertState(ctx context.Context, s *CacheState) error
	UpsertMessages(ctx context.Context, userID uuid.UUID, msgs []*CachedMessage) error
	ListMessages(ctx context.Context, userID uuid.UUID, limit int) ([]*CachedMessage, error)
	PruneMessages(ctx context.Context, userID uuid.UUID, keep int) error
	UpsertEvents(ctx context.Context, userID uuid.UUID, events []*CachedEvent) error
	ListEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*CachedEvent, error)
	PruneEvents(ctx context.Context, userID uuid.UUID, keep int) error
}
