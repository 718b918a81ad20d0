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

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile

	err := r.pool.QueryRow(ctx,
		`SELECT user_id, full_name, email, phone, locale, timezone, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.FullName, &p.Email, &p.Phone, &p.Locale, &p.Timezone, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profileRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("profileRepo.Get: %w", err)
	}

	return &p, nil
}

func (r *ProfileRepo) Upsert(ctx context.Context, p *domain.Profile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, full_name, email, phone, locale, timezone, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   full_name = EXCLUDED.full_name,
		   email = EXCLUDED.email,
		   phone = EXCLUDED.phone,
		   locale = EXCLUDED.locale,
		   timezone = EXCLUDED.timezone,
		   updated_at = EXCLUDED.updated_at`,
		p.UserID, p.FullName, p.Email, p.Phone, p.Locale, p.Timezone, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("profileRepo.Upsert: %w", err)
	}

	return nil
}
