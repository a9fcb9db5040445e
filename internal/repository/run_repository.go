package repository

import (
	"context"
	"encoding/json"
	"time"

	"empleo-dw/internal/database"

	"github.com/google/uuid"
)

// Run statuses recorded in etl_runs.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunRepository persists the batch audit trail. A run row is written before
// the batch starts and finished with its outcome and counts, so a partial
// run is never mistaken for a full success.
type RunRepository interface {
	Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	Finish(ctx context.Context, runID uuid.UUID, status string, detail any) error
}

type PostgresRunRepository struct {
	db database.DB
}

func NewPostgresRunRepository(db database.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func (r *PostgresRunRepository) Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO etl_runs (run_id, started_at, status) VALUES ($1, $2, $3)`,
		runID, startedAt.UTC(), RunStatusRunning,
	)
	return err
}

func (r *PostgresRunRepository) Finish(ctx context.Context, runID uuid.UUID, status string, detail any) error {
	var payload []byte
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		payload = b
	}

	_, err := r.db.Exec(ctx,
		`UPDATE etl_runs SET finished_at = $2, status = $3, detail = $4 WHERE run_id = $1`,
		runID, time.Now().UTC(), status, payload,
	)
	return err
}
