// Package loader applies built row-sets to the warehouse: one transaction,
// dimensions before facts, whole-batch rollback on any failure.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"empleo-dw/internal/config"
	"empleo-dw/internal/database"
	"empleo-dw/internal/repository"
	"empleo-dw/internal/warehouse"

	"github.com/cenkalti/backoff/v4"
)

type Loader struct {
	db   database.DB
	repo repository.WarehouseRepository
	log  *slog.Logger

	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

func New(db database.DB, repo repository.WarehouseRepository, cfg config.ETLConfig, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{
		db:              db,
		repo:            repo,
		log:             log,
		maxRetries:      cfg.LoadMaxRetries,
		initialInterval: cfg.LoadInitialInterval,
		maxInterval:     cfg.LoadMaxInterval,
	}
}

// Load applies the batch. Transient store failures retry the whole batch
// with exponential backoff; constraint violations and other permanent
// errors fail immediately. Either every row-set commits or none does.
func (l *Loader) Load(ctx context.Context, dims *warehouse.Dimensions, facts *warehouse.Facts, mappings []warehouse.KeyMapping) (repository.LoadStats, error) {
	if dims == nil || facts == nil {
		return nil, fmt.Errorf("nil row-sets")
	}

	var stats repository.LoadStats
	attempt := 0

	op := func() error {
		attempt++
		s, err := l.loadOnce(ctx, dims, facts, mappings)
		if err == nil {
			stats = s
			return nil
		}
		if IsTransient(err) {
			l.log.Warn("load attempt failed, will retry", "attempt", attempt, "err", err)
			return err
		}
		return backoff.Permanent(err)
	}

	exp := backoff.NewExponentialBackOff()
	if l.initialInterval > 0 {
		exp.InitialInterval = l.initialInterval
	}
	if l.maxInterval > 0 {
		exp.MaxInterval = l.maxInterval
	}

	retries := l.maxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(retries))

	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("load failed after %d attempt(s): %w", attempt, err)
	}
	return stats, nil
}

// loadOnce is one transactional pass: registry mappings, then dimensions in
// dependency order, then full fact replacement. Rollback runs on every
// non-commit exit path.
func (l *Loader) loadOnce(ctx context.Context, dims *warehouse.Dimensions, facts *warehouse.Facts, mappings []warehouse.KeyMapping) (repository.LoadStats, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.Background())
		}
	}()

	persisted, err := l.repo.PersistKeyMappings(ctx, tx, mappings)
	if err != nil {
		return nil, fmt.Errorf("persist key mappings: %w", classify(err))
	}

	dimStats, err := l.repo.InsertDimensions(ctx, tx, dims)
	if err != nil {
		return nil, fmt.Errorf("insert dimensions: %w", classify(err))
	}

	factStats, err := l.repo.ReplaceFacts(ctx, tx, facts)
	if err != nil {
		return nil, fmt.Errorf("replace facts: %w", classify(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true

	stats := repository.LoadStats{}
	for t, s := range dimStats {
		stats[t] = s
	}
	for t, s := range factStats {
		stats[t] = s
	}

	l.log.Info("batch committed", "key_mappings_persisted", persisted)
	for _, t := range []string{
		"dim_tiempo", "dim_ubicacion", "dim_postulante", "dim_carrera",
		"dim_institucion", "dim_vacante", "dim_empresa", "dim_competencia",
		warehouse.FactApplicantCore, warehouse.FactEducation, warehouse.FactExperience,
		warehouse.FactJobCore, warehouse.FactSkillRequirement,
	} {
		s := stats[t]
		l.log.Info("table loaded", "table", t, "inserted", s.Inserted, "skipped_existing", s.SkippedExisting, "deleted", s.Deleted)
	}

	return stats, nil
}
