package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hushh/voicegate/internal/domain"
)

type CacheRepo struct {
	pool *pgxpool.Pool
}

func NewCacheRepo(pool *pgxpool.Pool) *CacheRepo {
	return &CacheRepo{pool: pool}
}

func (r *CacheRepo) GetState(ctx context.Context, userID uuid.UUID, dom domain.CacheDomain) (*domain.CacheState, error) {
	var s domain.CacheState

	err := r.pool.QueryRow(ctx,
		`SELECT user_id, domain, last_sync_at, cursor, sync_token, record_count
		 FROM cache_state WHERE user_id = $1 AND domain = $2`,
		userID, dom,
	).Scan(&s.UserID, &s.Domain, &s.LastSyncAt, &s.Cursor, &s.SyncToken, &s.RecordCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cacheRepo.GetState: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cacheRepo.GetState: %w", err)
	}

	return &s, nil
}

// UpsertState is last-writer-wins on the (user_id, domain) key.
func (r *CacheRepo) UpsertState(ctx context.Context, s *domain.CacheState) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO cache_state (user_id, domain, last_sync_at, cursor, sync_token, record_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, domain) DO UPDATE SET
		   last_sync_at = EXCLUDED.last_sync_at,
		   cursor = EXCLUDED.cursor,
		   sync_token = EXCLUDED.sync_token,
		   record_count = EXCLUDED.record_count`,
		s.UserID, s.Domain, s.LastSyncAt, s.Cursor, s.SyncToken, s.RecordCount,
	)
	if err != nil {
		return fmt.Errorf("cacheRepo.UpsertState: %w", err)
	}

	return nil
}

func (r *CacheRepo) UpsertMessages(ctx context.Context, userID uuid.UUID, msgs []*domain.CachedMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(
			`INSERT INTO mail_message_index (user_id, provider_id, thread_id, from_name, from_email, subject, snippet, internal_at, synced_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (user_id, provider_id) DO UPDATE SET
			   thread_id = EXCLUDED.thread_id,
			   from_name = EXCLUDED.from_name,
			   from_email = EXCLUDED.from_email,
			   subject = EXCLUDED.subject,
			   snippet = EXCLUDED.snippet,
			   internal_at = EXCLUDED.internal_at,
			   synced_at = EXCLUDED.synced_at`,
			userID, m.ProviderID, m.ThreadID, m.FromName, m.FromEmail,
			m.Subject, m.Snippet, m.InternalAt, m.SyncedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range msgs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("cacheRepo.UpsertMessages: %w", err)
		}
	}

	return nil
}

func (r *CacheRepo) ListMessages(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.CachedMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, provider_id, thread_id, from_name, from_email, subject, snippet, internal_at, synced_at
		 FROM mail_message_index WHERE user_id = $1
		 ORDER BY internal_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("cacheRepo.ListMessages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.CachedMessage
	for rows.Next() {
		var m domain.CachedMessage
		if scanErr := rows.Scan(
			&m.UserID, &m.ProviderID, &m.ThreadID, &m.FromName, &m.FromEmail,
			&m.Subject, &m.Snippet, &m.InternalAt, &m.SyncedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("cacheRepo.ListMessages: scan: %w", scanErr)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cacheRepo.ListMessages: rows: %w", err)
	}

	return msgs, nil
}

// PruneMessages drops everything beyond the keep newest messages so the
// index stays bounded across refreshes.
func (r *CacheRepo) PruneMessages(ctx context.Context, userID uuid.UUID, keep int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM mail_message_index
		 WHERE user_id = $1 AND provider_id NOT IN (
		   SELECT provider_id FROM mail_message_index
		   WHERE user_id = $1
		   ORDER BY internal_at DESC
		   LIMIT $2)`,
		userID, keep,
	)
	if err != nil {
		return fmt.Errorf("cacheRepo.PruneMessages: %w", err)
	}

	return nil
}

func (r *CacheRepo) UpsertEvents(ctx context.Context, userID uuid.UUID, events []*domain.CachedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(
			`INSERT INTO calendar_event_index (user_id, provider_id, summary, start_at, end_at, location, attendees, html_link, synced_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (user_id, provider_id) DO UPDATE SET
			   summary = EXCLUDED.summary,
			   start_at = EXCLUDED.start_at,
			   end_at = EXCLUDED.end_at,
			   location = EXCLUDED.location,
			   attendees = EXCLUDED.attendees,
			   html_link = EXCLUDED.html_link,
			   synced_at = EXCLUDED.synced_at`,
			userID, e.ProviderID, e.Summary, e.Start, e.End,
			e.Location, e.Attendees, e.HTMLLink, e.SyncedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("cacheRepo.UpsertEvents: %w", err)
		}
	}

	return nil
}

func (r *CacheRepo) ListEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.CachedEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, provider_id, summary, start_at, end_at, location, attendees, html_link, synced_at
		 FROM calendar_event_index WHERE user_id = $1
		 ORDER BY start_at
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("cacheRepo.ListEvents: %w", err)
	}
	defer rows.Close()

	var events []*domain.CachedEvent
	for rows.Next() {
		var e domain.CachedEvent
		if scanErr := rows.Scan(
			&e.UserID, &e.ProviderID, &e.Summary, &e.Start, &e.End,
			&e.Location, &e.Attendees, &e.HTMLLink, &e.SyncedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("cacheRepo.ListEvents: scan: %w", scanErr)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cacheRepo.ListEvents: rows: %w", err)
	}

	return events, nil
}

// PruneEvents keeps the latest keep events by start time, shedding the
// oldest past entries first.
func (r *CacheRepo) PruneEvents(ctx context.Context, userID uuid.UUID, keep int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM calendar_event_index
		 WHERE user_id = $1 AND provider_id NOT IN (
		   SELECT provider_id FROM calendar_event_index
		   WHERE user_id = $1
		   ORDER BY start_at DESC
		   LIMIT $2)`,
		userID, keep,
	)
	if err != nil {
		return fmt.Errorf("cacheRepo.PruneEvents: %w", err)
	}

	return nil
}
