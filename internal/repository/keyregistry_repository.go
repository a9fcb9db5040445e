package repository

import (
	"context"
	"fmt"

	"empleo-dw/internal/database"
	"empleo-dw/internal/infrastructure/cache"
	"empleo-dw/internal/warehouse"
)

// KeyRegistryRepository reads the persisted surrogate key registry. Writes
// happen inside the load transaction, through WarehouseRepository.
type KeyRegistryRepository interface {
	// ResolveExisting returns persisted mappings for the given business
	// keys of one entity type. Keys without a mapping are absent.
	ResolveExisting(ctx context.Context, entity warehouse.EntityType, businessKeys []string) (map[string]int64, error)
	// MaxSurrogate returns the highest surrogate key ever issued for the
	// entity type, 0 when none.
	MaxSurrogate(ctx context.Context, entity warehouse.EntityType) (int64, error)
}

type PostgresKeyRegistryRepository struct {
	db    database.DB
	cache *cache.Redis
}

func NewPostgresKeyRegistryRepository(db database.DB, c *cache.Redis) *PostgresKeyRegistryRepository {
	return &PostgresKeyRegistryRepository{db: db, cache: c}
}

func cacheKey(entity warehouse.EntityType, businessKey string) string {
	return fmt.Sprintf("etlreg:%s:%s", entity, businessKey)
}

func (r *PostgresKeyRegistryRepository) ResolveExisting(ctx context.Context, entity warehouse.EntityType, businessKeys []string) (map[string]int64, error) {
	out := map[string]int64{}
	if len(businessKeys) == 0 {
		return out, nil
	}

	// Cache first; only the misses hit Postgres.
	ckeys := make([]string, len(businessKeys))
	for i, bk := range businessKeys {
		ckeys[i] = cacheKey(entity, bk)
	}
	cached := r.cache.GetKeys(ctx, ckeys)

	misses := make([]string, 0, len(businessKeys))
	for i, bk := range businessKeys {
		if sk, ok := cached[ckeys[i]]; ok {
			out[bk] = sk
		} else {
			misses = append(misses, bk)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT business_key, surrogate_key FROM etl_key_registry WHERE entity_type = $1 AND business_key = ANY($2)`,
		string(entity), misses,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fill := map[string]int64{}
	for rows.Next() {
		var bk string
		var sk int64
		if err := rows.Scan(&bk, &sk); err != nil {
			return nil, err
		}
		out[bk] = sk
		fill[cacheKey(entity, bk)] = sk
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.cache.SetKeys(ctx, fill)
	return out, nil
}

func (r *PostgresKeyRegistryRepository) MaxSurrogate(ctx context.Context, entity warehouse.EntityType) (int64, error) {
	var max int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(surrogate_key), 0) FROM etl_key_registry WHERE entity_type = $1`,
		string(entity),
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max, nil
}
