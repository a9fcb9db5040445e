package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"empleo-dw/internal/config"
	"empleo-dw/internal/database"
	"empleo-dw/internal/extract"
	"empleo-dw/internal/loader"
	"empleo-dw/internal/repository"
	"empleo-dw/internal/warehouse"

	"github.com/google/uuid"
)

type fakeTx struct{}

func (fakeTx) Exec(ctx context.Context, query string, args ...any) (int64, error) { return 0, nil }
func (fakeTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return nil, fmt.Errorf("not implemented")
}
func (fakeTx) QueryRow(ctx context.Context, query string, args ...any) database.Row { return nil }
func (fakeTx) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}
func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeDB struct{}

func (fakeDB) Ping(ctx context.Context) error { return nil }
func (fakeDB) Close() error                   { return nil }
func (fakeDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return 0, nil
}
func (fakeDB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return nil, fmt.Errorf("not implemented")
}
func (fakeDB) QueryRow(ctx context.Context, query string, args ...any) database.Row { return nil }
func (fakeDB) Begin(ctx context.Context) (database.Tx, error)                       { return fakeTx{}, nil }
func (fakeDB) SQLDB() *sql.DB                                                       { return nil }

type fakeRegistryRepo struct {
	stored map[warehouse.EntityType]map[string]int64
	max    map[warehouse.EntityType]int64
}

func (r *fakeRegistryRepo) ResolveExisting(ctx context.Context, entity warehouse.EntityType, businessKeys []string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, bk := range businessKeys {
		if sk, ok := r.stored[entity][bk]; ok {
			out[bk] = sk
		}
	}
	return out, nil
}

func (r *fakeRegistryRepo) MaxSurrogate(ctx context.Context, entity warehouse.EntityType) (int64, error) {
	return r.max[entity], nil
}

type fakeRunRepo struct {
	started      bool
	finishStatus string
}

func (r *fakeRunRepo) Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	r.started = true
	return nil
}

func (r *fakeRunRepo) Finish(ctx context.Context, runID uuid.UUID, status string, detail any) error {
	r.finishStatus = status
	return nil
}

type fakeWarehouseRepo struct {
	mappings []warehouse.KeyMapping
	dims     *warehouse.Dimensions
	facts    *warehouse.Facts
}

func (r *fakeWarehouseRepo) PersistKeyMappings(ctx context.Context, tx database.Tx, mappings []warehouse.KeyMapping) (int64, error) {
	r.mappings = mappings
	return int64(len(mappings)), nil
}

func (r *fakeWarehouseRepo) InsertDimensions(ctx context.Context, tx database.Tx, dims *warehouse.Dimensions) (repository.LoadStats, error) {
	r.dims = dims
	return repository.LoadStats{}, nil
}

func (r *fakeWarehouseRepo) ReplaceFacts(ctx context.Context, tx database.Tx, facts *warehouse.Facts) (repository.LoadStats, error) {
	r.facts = facts
	return repository.LoadStats{}, nil
}

func writeBatchData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"postulante_clean.csv": "ID_POSTULANTE,EDAD,SEXO,UBIGEO,DEPARTAMENTO,PROVINCIA,DISTRITO\n" +
			"A1,30,F,150101,LIMA,LIMA,LIMA\n" +
			"A2,25,M,,,,\n",
		"empresas_clean.csv": "IDEMPRESA\nE1\n",
		"vacantes_clean.csv": "AVISOID,IDEMPRESA,NOMBREAVISO,VACANTES,FECHACREACION,ACTIVO\n" +
			"V1,E1,Analista de Datos,2,2024-05-02,SI\n" +
			"V2,E404,Contador,1,2024-05-03,SI\n",
		"competencias_clean.csv": "AVISOID,NOMBRECOMPETENCIA\n" +
			"V1,Excel Avanzado\n" +
			"V999,Excel Avanzado\n",
		"educacion_clean.csv": "ID_POSTULANTE,NIVEL_EDUCATIVO,CARRERA,INSTITUCION,FECHAINICIO,FECHAFIN\n" +
			"A1,UNIVERSITARIO,Derecho,UNMSM,2015-03-01,2020-12-15\n",
		"experiencias_clean.csv": "ID_POSTULANTE\nA1\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func newTestBatch(t *testing.T, dir string, reg *fakeRegistryRepo, runs *fakeRunRepo, wh *fakeWarehouseRepo) *Batch {
	t.Helper()
	cfg := config.ETLConfig{
		DataDir:             dir,
		NormalizeWorkers:    2,
		LoadMaxRetries:      1,
		LoadInitialInterval: time.Millisecond,
		LoadMaxInterval:     time.Millisecond,
	}
	ld := loader.New(fakeDB{}, wh, cfg, nil)
	return NewBatch(cfg, extract.NewExtractor(dir, nil), reg, runs, ld, nil)
}

func TestBatchRun(t *testing.T) {
	dir := writeBatchData(t)
	reg := &fakeRegistryRepo{}
	runs := &fakeRunRepo{}
	wh := &fakeWarehouseRepo{}

	report, err := newTestBatch(t, dir, reg, runs, wh).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if !runs.started || runs.finishStatus != repository.RunStatusSucceeded {
		t.Fatalf("run audit wrong: started=%v status=%q", runs.started, runs.finishStatus)
	}

	wantDims := map[string]int{
		"dim_tiempo":      4, // 2 posting dates + 2 education dates
		"dim_ubicacion":   2, // 150101 plus the unknown-geocode sentinel
		"dim_postulante":  2,
		"dim_carrera":     1,
		"dim_institucion": 1,
		"dim_vacante":     2,
		"dim_empresa":     1,
		"dim_competencia": 1,
	}
	for table, want := range wantDims {
		if got := report.DimensionRows[table]; got != want {
			t.Errorf("%s: got %d rows, want %d", table, got, want)
		}
	}

	if report.FactRows[warehouse.FactApplicantCore] != 2 {
		t.Errorf("expected 2 applicant facts, got %d", report.FactRows[warehouse.FactApplicantCore])
	}
	if report.FactRows[warehouse.FactJobCore] != 1 {
		t.Errorf("posting with unknown company must be rejected, got %d job facts", report.FactRows[warehouse.FactJobCore])
	}
	if report.FactRejected[warehouse.FactJobCore] != 1 {
		t.Errorf("missing job rejection: %v", report.FactRejected)
	}
	if report.FactRejected[warehouse.FactSkillRequirement] != 1 {
		t.Errorf("orphan requirement must be rejected: %v", report.FactRejected)
	}

	if wh.dims == nil || wh.facts == nil {
		t.Fatalf("loader did not receive the row-sets")
	}
	if len(wh.mappings) == 0 {
		t.Fatalf("fresh key mappings must be persisted")
	}
	if report.CareerGroups != 1 || report.SkillGroups != 1 {
		t.Fatalf("normalization groups wrong: %+v", report)
	}
}

func TestBatchReusesPersistedKeys(t *testing.T) {
	dir := writeBatchData(t)
	reg := &fakeRegistryRepo{
		stored: map[warehouse.EntityType]map[string]int64{
			warehouse.EntityApplicant: {"A1": 9},
		},
		max: map[warehouse.EntityType]int64{
			warehouse.EntityApplicant: 40,
		},
	}
	runs := &fakeRunRepo{}
	wh := &fakeWarehouseRepo{}

	if _, err := newTestBatch(t, dir, reg, runs, wh).Run(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var a1, a2 int64
	for _, row := range wh.dims.Applicants {
		switch row.ID {
		case "A1":
			a1 = row.SK
		case "A2":
			a2 = row.SK
		}
	}
	if a1 != 9 {
		t.Fatalf("A1 must keep its persisted key, got %d", a1)
	}
	if a2 <= 40 {
		t.Fatalf("fresh keys must clear the store's maximum, got %d", a2)
	}
	for _, m := range wh.mappings {
		if m.Entity == warehouse.EntityApplicant && m.BusinessKey == "A1" {
			t.Fatalf("persisted mapping must not be re-persisted: %+v", m)
		}
	}
}

func TestBatchFailureRecordedInAudit(t *testing.T) {
	dir := writeBatchData(t)
	if err := os.Remove(filepath.Join(dir, "empresas_clean.csv")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	runs := &fakeRunRepo{}

	_, err := newTestBatch(t, dir, &fakeRegistryRepo{}, runs, &fakeWarehouseRepo{}).Run(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if runs.finishStatus != repository.RunStatusFailed {
		t.Fatalf("failed run must be recorded, got %q", runs.finishStatus)
	}
}
