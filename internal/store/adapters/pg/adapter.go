// Package pg implementa el adapter PostgreSQL del User Directory sobre pgxpool.
package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/questions/internal/domain/repository"
	"github.com/dropDatabas3/questions/internal/store"
	"github.com/dropDatabas3/questions/migrations/postgres"
)

// AdapterName es el valor de storage.driver que selecciona este adapter.
const AdapterName = "postgres"

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return AdapterName }

func (a *postgresAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pg: %w", repository.ErrNoDatabase)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	poolCfg.MaxConns = 10
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolCfg.MinConns = 2
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = poolCfg.MaxConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}

	// El arranque aborta si la DB no responde.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	return &pgConnection{pool: pool, users: &userRepo{pool: pool}}, nil
}

// pgConnection representa una conexión activa a PostgreSQL.
type pgConnection struct {
	pool  *pgxpool.Pool
	users *userRepo
}

func (c *pgConnection) Name() string { return AdapterName }

func (c *pgConnection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *pgConnection) Close() error {
	c.pool.Close()
	return nil
}

func (c *pgConnection) Users() repository.UserRepository { return c.users }

// Pool expone el pool para el collector de métricas.
func (c *pgConnection) Pool() *pgxpool.Pool { return c.pool }

// Migrate aplica las migraciones embebidas de migrations/postgres.
func (c *pgConnection) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	m := store.NewMigrator(postgres.PostgresFS, postgres.PostgresDir)
	res, err := m.Run(ctx, c.pool)
	if err != nil {
		return res, fmt.Errorf("pg: migrate: %w", err)
	}
	return res, nil
}
