package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hushh/voicegate/internal/domain"
)

type Store struct {
	pool          *pgxpool.Pool
	turns         *TurnRepo
	confirmations *ConfirmationRepo
	toolRuns      *ToolRunRepo
	cache         *CacheRepo
	profiles      *ProfileRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:          pool,
		turns:         NewTurnRepo(pool),
		confirmations: NewConfirmationRepo(pool),
		toolRuns:      NewToolRunRepo(pool),
		cache:         NewCacheRepo(pool),
		profiles:      NewProfileRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Turns() domain.TurnRepository                 { return s.turns }
func (s *Store) Confirmations() domain.ConfirmationRepository { return s.confirmations }
func (s *Store) ToolRuns() domain.ToolRunRepository           { return s.toolRuns }
func (s *Store) Cache() domain.CacheRepository                { return s.cache }
func (s *Store) Profiles() domain.ProfileRepository           { return s.profiles }
