// Package cachesync keeps per-user mail and calendar caches correct. Read
// tools serve from cache when fresh; incremental sync (history cursor for
// mail, sync token for calendar) keeps refresh cost proportional to change
// volume, with a bounded full fetch as the fallback.
package cachesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hushh/voicegate/internal/domain"
	"github.com/hushh/voicegate/internal/provider/google"
	redisstore "github.com/hushh/voicegate/internal/store/redis"
)

// Publisher is the subset of the redis store the synchronizer uses to announce
// completed background refreshes.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Options tune freshness and fetch bounds. Zero values fall back to defaults.
type Options struct {
	MailTTL       time.Duration // default 120s
	CalendarTTL   time.Duration // default 120s
	RefreshMargin time.Duration // refresh-ahead window before expiry, default 30s
	MailMax       int           // bounded mail fetch size, default 60
	CalendarMax   int           // bounded calendar fetch size, default 250
	WindowBack    time.Duration // calendar window start offset, default 14 days
	WindowForward time.Duration // calendar window end offset, default 60 days
}

func (o *Options) applyDefaults() {
	if o.MailTTL <= 0 {
		o.MailTTL = 120 * time.Second
	}
	if o.CalendarTTL <= 0 {
		o.CalendarTTL = 120 * time.Second
	}
	if o.RefreshMargin <= 0 {
		o.RefreshMargin = 30 * time.Second
	}
	if o.MailMax <= 0 {
		o.MailMax = 60
	}
	if o.CalendarMax <= 0 {
		o.CalendarMax = 250
	}
	if o.WindowBack <= 0 {
		o.WindowBack = 14 * 24 * time.Hour
	}
	if o.WindowForward <= 0 {
		o.WindowForward = 60 * 24 * time.Hour
	}
}

// Synchronizer serves cache-first reads and refreshes stale caches.
type Synchronizer struct {
	cache  domain.CacheRepository
	client *google.Client
	pub    Publisher
	opts   Options
	logger zerolog.Logger

	now func() time.Time

	mu       sync.Mutex
	inflight map[string]bool
}

func New(cache domain.CacheRepository, client *google.Client, pub Publisher, opts Options, logger zerolog.Logger) *Synchronizer {
	opts.applyDefaults()
	return &Synchronizer{
		cache:    cache,
		client:   client,
		pub:      pub,
		opts:     opts,
		logger:   logger.With().Str("component", "cachesync").Logger(),
		now:      time.Now,
		inflight: make(map[string]bool),
	}
}

func (s *Synchronizer) ttl(dom domain.CacheDomain) time.Duration {
	if dom == domain.CacheDomainCalendar {
		return s.opts.CalendarTTL
	}
	return s.opts.MailTTL
}

// IsFresh reports whether the user's cache for the domain is within TTL.
// A missing cache state counts as stale.
func (s *Synchronizer) IsFresh(ctx context.Context, userID uuid.UUID, dom domain.CacheDomain) (bool, error) {
	state, err := s.cache.GetState(ctx, userID, dom)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("cachesync.Synchronizer.IsFresh: %w", err)
	}
	return s.now().Sub(state.LastSyncAt) < s.ttl(dom), nil
}

// nearExpiry reports that the cache is fresh but inside the refresh-ahead
// margin.
func (s *Synchronizer) nearExpiry(state *domain.CacheState, dom domain.CacheDomain) bool {
	age := s.now().Sub(state.LastSyncAt)
	ttl := s.ttl(dom)
	return age < ttl && ttl-age <= s.opts.RefreshMargin
}

// Messages serves the read path for mail: fresh cache is returned directly
// (with a detached refresh-ahead when close to expiry); a stale cache is
// refreshed synchronously first.
func (s *Synchronizer) Messages(ctx context.Context, userID uuid.UUID, token, query string, limit int) ([]*domain.CachedMessage, error) {
	if limit <= 0 || limit > s.opts.MailMax {
		limit = s.opts.MailMax
	}

	state, err := s.cache.GetState(ctx, userID, domain.CacheDomainMail)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("cachesync.Synchronizer.Messages: %w", err)
	}

	fresh := state != nil && s.now().Sub(state.LastSyncAt) < s.opts.MailTTL
	if !fresh {
		if err := s.RefreshMail(ctx, userID, token, query); err != nil {
			return nil, fmt.Errorf("cachesync.Synchronizer.Messages: %w", err)
		}
	} else if s.nearExpiry(state, domain.CacheDomainMail) {
		s.refreshAhead(userID, domain.CacheDomainMail, func(bg context.Context) error {
			return s.RefreshMail(bg, userID, token, "")
		})
	}

	msgs, err := s.cache.ListMessages(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("cachesync.Synchronizer.Messages: %w", err)
	}
	return msgs, nil
}

// Events serves the read path for calendar, mirroring Messages.
func (s *Synchronizer) Events(ctx context.Context, userID uuid.UUID, token string, limit int) ([]*domain.CachedEvent, error) {
	if limit <= 0 || limit > s.opts.CalendarMax {
		limit = s.opts.CalendarMax
	}

	state, err := s.cache.GetState(ctx, userID, domain.CacheDomainCalendar)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("cachesync.Synchronizer.Events: %w", err)
	}

	fresh := state != nil && s.now().Sub(state.LastSyncAt) < s.opts.CalendarTTL
	if !fresh {
		if err := s.RefreshCalendar(ctx, userID, token); err != nil {
			return nil, fmt.Errorf("cachesync.Synchronizer.Events: %w", err)
		}
	} else if s.nearExpiry(state, domain.CacheDomainCalendar) {
		s.refreshAhead(userID, domain.CacheDomainCalendar, func(bg context.Context) error {
			return s.RefreshCalendar(bg, userID, token)
		})
	}

	events, err := s.cache.ListEvents(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("cachesync.Synchronizer.Events: %w", err)
	}
	return events, nil
}

// refreshAhead runs a refresh on a detached context so it survives the
// request that triggered it, then announces completion on the user's cache
// channel. At most one refresh per user and domain runs at a time;
// concurrent near-expiry reads do not stampede the provider.
func (s *Synchronizer) refreshAhead(userID uuid.UUID, dom domain.CacheDomain, refresh func(context.Context) error) {
	key := userID.String() + ":" + string(dom)

	s.mu.Lock()
	if s.inflight[key] {
		s.mu.Unlock()
		return
	}
	s.inflight[key] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
		}()

		bg, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := refresh(bg); err != nil {
			s.logger.Warn().Err(err).
				Str("user_id", userID.String()).
				Str("domain", string(dom)).
				Msg("refresh-ahead failed")
			return
		}
		if s.pub != nil {
			payload := []byte(fmt.Sprintf(`{"domain":%q,"refreshed_at":%q}`, dom, s.now().UTC().Format(time.RFC3339)))
			if err := s.pub.Publish(bg, redisstore.CacheChannel(userID), payload); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("publish cache refresh")
			}
		}
	}()
}

// RefreshMail refreshes the mail cache: incremental via the stored history
// cursor when one exists and no ad-hoc query narrows the fetch, otherwise a
// bounded recent fetch. A rejected cursor falls back to the bounded fetch.
func (s *Synchronizer) RefreshMail(ctx context.Context, userID uuid.UUID, token, query string) error {
	state, err := s.cache.GetState(ctx, userID, domain.CacheDomainMail)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("cachesync.Synchronizer.RefreshMail: %w", err)
	}

	var msgs []*google.Message
	incremental := state != nil && state.Cursor != "" && query == ""

	if incremental {
		ids, nextCursor, histErr := s.client.ListHistory(ctx, token, state.Cursor, s.opts.MailMax)
		switch {
		case histErr == nil:
			if len(ids) > 0 {
				msgs, err = s.client.FetchMessages(ctx, token, ids)
				if err != nil {
					return fmt.Errorf("cachesync.Synchronizer.RefreshMail: %w", err)
				}
			}
			return s.commitMail(ctx, userID, state, msgs, nextCursor)
		case errors.Is(histErr, google.ErrCursorRejected):
			s.logger.Info().Str("user_id", userID.String()).Msg("mail cursor rejected, falling back to bounded fetch")
		default:
			return fmt.Errorf("cachesync.Synchronizer.RefreshMail: %w", histErr)
		}
	}

	q := query
	if q == "" && state != nil && !state.LastSyncAt.IsZero() {
		// Narrow the bounded fetch to messages after the last sync date.
		q = "after:" + state.LastSyncAt.UTC().Format("2006/01/02")
	}

	msgs, err = s.client.ListRecent(ctx, token, q, s.opts.MailMax)
	if err != nil {
		return fmt.Errorf("cachesync.Synchronizer.RefreshMail: %w", err)
	}

	cursor, err := s.client.ProfileCursor(ctx, token)
	if err != nil {
		return fmt.Errorf("cachesync.Synchronizer.RefreshMail: %w", err)
	}

	return s.commitMail(ctx, userID, state, msgs, cursor)
}

func (s *Synchronizer) commitMail(ctx context.Context, userID uuid.UUID, prev *domain.CacheState, msgs []*google.Message, cursor string) error {
	now := s.now().UTC()

	if len(msgs) > 0 {
		rows := make([]*domain.CachedMessage, 0, len(msgs))
		for _, m := range msgs {
			rows = append(rows, &domain.CachedMessage{
				UserID:     userID,
				ProviderID: m.ID,
				ThreadID:   m.ThreadID,
				FromName:   m.FromName,
				FromEmail:  m.FromEmail,
				Subject:    m.Subject,
				Snippet:    m.Snippet,
				InternalAt: m.InternalAt,
				SyncedAt:   now,
			})
		}
		if err := s.cache.UpsertMessages(ctx, userID, rows); err != nil {
			return fmt.Errorf("cachesync.Synchronizer.commitMail: %w", err)
		}
		// Retention stays bounded; superseded rows go at commit time.
		if err := s.cache.PruneMessages(ctx, userID, s.opts.MailMax); err != nil {
			return fmt.Errorf("cachesync.Synchronizer.commitMail: %w", err)
		}
	}

	next := &domain.CacheState{
		UserID:      userID,
		Domain:      domain.CacheDomainMail,
		LastSyncAt:  now,
		Cursor:      cursor,
		RecordCount: len(msgs),
	}
	if cursor == "" && prev != nil {
		next.Cursor = prev.Cursor
	}
	if err := s.cache.UpsertState(ctx, next); err != nil {
		return fmt.Errorf("cachesync.Synchronizer.commitMail: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID.String()).
		Int("records", len(msgs)).
		Msg("mail cache refreshed")
	return nil
}

// RefreshCalendar refreshes the calendar cache: delta view via the stored
// sync token; when the provider rejects the token the synchronizer falls back
// to a bounded window fetch and discards the stale token.
func (s *Synchronizer) RefreshCalendar(ctx context.Context, userID uuid.UUID, token string) error {
	state, err := s.cache.GetState(ctx, userID, domain.CacheDomainCalendar)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("cachesync.Synchronizer.RefreshCalendar: %w", err)
	}

	syncToken := ""
	if state != nil {
		syncToken = state.SyncToken
	}

	now := s.now()
	from := now.Add(-s.opts.WindowBack)
	to := now.Add(s.opts.WindowForward)

	res, err := s.client.ListEvents(ctx, token, syncToken, from, to, s.opts.CalendarMax)
	if err != nil {
		if !errors.Is(err, google.ErrSyncTokenRejected) {
			return fmt.Errorf("cachesync.Synchronizer.RefreshCalendar: %w", err)
		}
		s.logger.Info().Str("user_id", userID.String()).Msg("calendar sync token rejected, falling back to window fetch")
		res, err = s.client.ListEvents(ctx, token, "", from, to, s.opts.CalendarMax)
		if err != nil {
			return fmt.Errorf("cachesync.Synchronizer.RefreshCalendar: %w", err)
		}
	}

	ts := s.now().UTC()
	if len(res.Events) > 0 {
		rows := make([]*domain.CachedEvent, 0, len(res.Events))
		for _, ev := range res.Events {
			rows = append(rows, &domain.CachedEvent{
				UserID:     userID,
				ProviderID: ev.ID,
				Summary:    ev.Summary,
				Start:      ev.Start,
				End:        ev.End,
				Location:   ev.Location,
				Attendees:  ev.Attendees,
				HTMLLink:   ev.HangoutLink,
				SyncedAt:   ts,
			})
		}
		if err := s.cache.UpsertEvents(ctx, userID, rows); err != nil {
			return fmt.Errorf("cachesync.Synchronizer.RefreshCalendar: %w", err)
		}
		if err := s.cache.PruneEvents(ctx, userID, s.opts.CalendarMax); err != nil {
			return fmt.Errorf("cachesync.Synchronizer.RefreshCalendar: %w", err)
		}
	}

	next := &domain.CacheState{
		UserID:      userID,
		Domain:      domain.CacheDomainCalendar,
		LastSyncAt:  ts,
		SyncToken:   res.SyncToken,
		RecordCount: len(res.Events),
	}
	if err := s.cache.UpsertState(ctx, next); err != nil {
		return fmt.Errorf("cachesync.Synchronizer.RefreshCalendar: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID.String()).
		Int("records", len(res.Events)).
		Msg("calendar cache refreshed")
	return nil
}
