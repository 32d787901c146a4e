package attendance

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"geoattend/internal/store"
)

// Backend is an opened Store plus the resources behind it.
type Backend struct {
	Store Store
	// Pool is nil for the memory backend.
	Pool *pgxpool.Pool
}

// OpenBackend opens the named backend ("memory" or "postgres"). With
// migrate set, pending migrations run before the store is returned.
func OpenBackend(ctx context.Context, name string, pc store.PoolConfig, migrate bool) (*Backend, error) {
	switch name {
	case "memory":
		return &Backend{Store: NewMemoryStore()}, nil
	case "postgres":
		pool, err := store.NewPool(ctx, pc)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &Backend{Store: NewRepository(pool), Pool: pool}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", name)
	}
}

// Healthy pings the database when there is one.
func (b *Backend) Healthy(ctx context.Context) bool {
	if b.Pool == nil {
		return true
	}
	return b.Pool.Ping(ctx) == nil
}

// Close releases the pool.
func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
}
