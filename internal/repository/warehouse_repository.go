package repository

import (
	"context"

	"empleo-dw/internal/database"
	"empleo-dw/internal/warehouse"
)

// TableStat is the per-table outcome of one load.
type TableStat struct {
	Inserted        int64
	SkippedExisting int64
	Deleted         int64
}

type LoadStats map[string]TableStat

// WarehouseRepository writes row-sets inside a caller-owned transaction:
// the loader decides the phase order and the commit/rollback, this type
// only knows the SQL.
//
// Dimensions are insert-if-new on the unique business key column; existing
// rows are never updated implicitly (an attribute change needs an explicit
// re-key). Facts are fully replaced.
type WarehouseRepository interface {
	PersistKeyMappings(ctx context.Context, tx database.Tx, mappings []warehouse.KeyMapping) (int64, error)
	InsertDimensions(ctx context.Context, tx database.Tx, dims *warehouse.Dimensions) (LoadStats, error)
	ReplaceFacts(ctx context.Context, tx database.Tx, facts *warehouse.Facts) (LoadStats, error)
}

type PostgresWarehouseRepository struct{}

func NewPostgresWarehouseRepository() *PostgresWarehouseRepository {
	return &PostgresWarehouseRepository{}
}

func (PostgresWarehouseRepository) PersistKeyMappings(ctx context.Context, tx database.Tx, mappings []warehouse.KeyMapping) (int64, error) {
	var inserted int64
	for _, m := range mappings {
		n, err := tx.Exec(ctx,
			`INSERT INTO etl_key_registry (entity_type, business_key, surrogate_key)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (entity_type, business_key) DO NOTHING`,
			string(m.Entity), m.BusinessKey, m.SurrogateKey,
		)
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

// InsertDimensions applies the eight dimension row-sets in dependency order:
// shared dimensions first, then the star-specific ones.
func (PostgresWarehouseRepository) InsertDimensions(ctx context.Context, tx database.Tx, dims *warehouse.Dimensions) (LoadStats, error) {
	stats := LoadStats{}

	steps := []struct {
		table string
		fn    func() (int64, int64, error)
	}{
		{"dim_tiempo", func() (int64, int64, error) { return insertTime(ctx, tx, dims.Time) }},
		{"dim_ubicacion", func() (int64, int64, error) { return insertLocations(ctx, tx, dims.Locations) }},
		{"dim_postulante", func() (int64, int64, error) { return insertApplicants(ctx, tx, dims.Applicants) }},
		{"dim_carrera", func() (int64, int64, error) { return insertCareers(ctx, tx, dims.Careers) }},
		{"dim_institucion", func() (int64, int64, error) { return insertInstitutions(ctx, tx, dims.Institutions) }},
		{"dim_vacante", func() (int64, int64, error) { return insertPostings(ctx, tx, dims.Postings) }},
		{"dim_empresa", func() (int64, int64, error) { return insertCompanies(ctx, tx, dims.Companies) }},
		{"dim_competencia", func() (int64, int64, error) { return insertSkills(ctx, tx, dims.Skills) }},
	}

	for _, s := range steps {
		inserted, skipped, err := s.fn()
		if err != nil {
			return stats, err
		}
		stats[s.table] = TableStat{Inserted: inserted, SkippedExisting: skipped}
	}
	return stats, nil
}

// ReplaceFacts rewrites the five fact tables for the run scope:
// delete-then-insert inside the surrounding transaction, so no stale fact
// row can survive a corrected re-run.
func (PostgresWarehouseRepository) ReplaceFacts(ctx context.Context, tx database.Tx, facts *warehouse.Facts) (LoadStats, error) {
	stats := LoadStats{}

	steps := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{
			table:   warehouse.FactApplicantCore,
			columns: []string{"postulante_sk", "ubicacion_sk", "fecha_registro_sk"},
			rows:    applicantCoreRows(facts.ApplicantCore),
		},
		{
			table:   warehouse.FactEducation,
			columns: []string{"postulante_sk", "carrera_sk", "institucion_sk"},
			rows:    educationRows(facts.Education),
		},
		{
			table:   warehouse.FactExperience,
			columns: []string{"postulante_sk"},
			rows:    experienceRows(facts.Experience),
		},
		{
			table:   warehouse.FactJobCore,
			columns: []string{"vacante_sk", "ubicacion_sk", "empresa_sk", "fecha_publicacion_sk", "activo"},
			rows:    jobCoreRows(facts.JobCore),
		},
		{
			table:   warehouse.FactSkillRequirement,
			columns: []string{"vacante_sk", "competencia_sk"},
			rows:    skillRequirementRows(facts.SkillRequirements),
		},
	}

	for _, s := range steps {
		deleted, err := tx.Exec(ctx, `DELETE FROM `+s.table)
		if err != nil {
			return stats, err
		}
		var inserted int64
		if len(s.rows) > 0 {
			inserted, err = tx.CopyFrom(ctx, s.table, s.columns, s.rows)
			if err != nil {
				return stats, err
			}
		}
		stats[s.table] = TableStat{Inserted: inserted, Deleted: deleted}
	}
	return stats, nil
}

func insertTime(ctx context.Context, tx database.Tx, rows []warehouse.TimeRow) (int64, int64, error) {
	var inserted int64
	for _, r := range rows {
		n, err := tx.Exec(ctx,
			`INSERT INTO dim_tiempo (fecha_sk, fecha, anio, mes, dia, trimestre, semestre, dia_semana, nombre_mes, nombre_dia, es_fin_semana)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (fecha) DO NOTHING`,
			r.SK, r.Date, r.Year, r.Month, r.Day, r.Quarter, r.Semester, r.Weekday, r.MonthName, r.DayName, r.Weekend,
		)
		if err != nil {
			return inserted, 0, err
		}
		inserted += n
	}
	return inserted, int64(len(rows)) - inserted, nil
}

func insertLocations(ctx context.Context, tx database.Tx, rows []warehouse.LocationRow) (int64, int64, error) {
	var inserted int64
	for _, r := range rows {
		n, err := tx.Exec(ctx,
			`INSERT INTO dim_ubicacion (ubicacion_sk, ubigeo, departamento, provincia, distrito, fuente)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (ubigeo) DO NOTHING`,
			r.SK, r.Ubigeo, r.Department, r.Province, r.District, r.Source,
		)
		if err != nil {
			return inserted, 0, err
		}
		inserted += n
	}
	return inserted, int64(len(rows)) - inserted, nil
}

func insertApplicants(ctx context.Context, tx database.Tx, rows []warehouse.ApplicantRow) (int64, int64, error) {
	var inserted int64
	for _, r := range rows {
		n, err := tx.Exec(ctx,
			`INSERT INTO dim_postulante (postulante_sk, id_postulante_original, edad, sexo, ubigeo, estado_conadis)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id_postulante_original) DO NOTHING`,
			r.SK, r.ID, r.Age, r.Sex, r.Ubigeo, r.Conadis,
		)
		if err != nil {
			return inserted, 0, err
		}
		inserted += n
	}
	return inserted, int64(len(rows)) - inserted, nil
}

func insertCareers(ctx context.Context, tx database.Tx, rows []warehouse.CareerRow) (int64, int64, error) {
	var inserted int64
	for _, r := range rows {
		n, err := tx.Exec(ctx,
			`INSERT INTO dim_carrera (carrera_sk, nombre_carrera, grado)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (nombre_carrera) DO NOTHING`,
			r.SK, r.Name, r.Level,
		)
		if err != nil {
			return inserted, 0, err
		}
		inserted += n
	}
	return inserted, int64(len(rows)) - inserted, nil
}

func insertInstitutions(ctx context.Context, tx database.Tx, rows []warehouse.InstitutionRow) (int64, int64, error) {
	var inserted int64
	for _, r := range rows {
		n, err := tx.Exec(ctx,
			`INSERT INTO dim_institucion (institucion_sk, nombre_institucion)
			 VALUES ($1, $2)
			 ON CONFLICT (nombre_institucion) DO NOTHING`,
			r.SK, r.Name,
		)
		if err != nil {
			return inserted, 0, err
		}
		inserted += n
	}
	return inserted, int64(len(rows)) - inserted, nil
}

func insertPostings(ctx context.Context, tx database.Tx, rows []warehouse.PostingRow) (int64, int64, error) {
	var inserted int64
	for _, r := range rows {
		n, err := tx.Exec(ctx,
			`INSERT INTO dim_vacante (vacante_sk, id_vacante_original, nombre_aviso, num_vacantes, sector, ubigeo, sin_experiencia, tiempo_experiencia)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id_vacante_original) DO NOTHING`,
			r.SK, r.ID, r.Title, r.Openings, r.Sector, r.Ubigeo, r.NoExperience, r.ExperienceMonths,
		)
		if err != nil {
			return inserted, 0, err
		}
		inserted += n
	}
	return inserted, int64(len(rows)) - inserted, nil
}

func insertCompanies(ctx context.Context, tx database.Tx, rows []warehouse.CompanyRow) (int64, int64, error) {
	var inserted int64
	for _, r := range rows {
		n, err := tx.Exec(ctx,
			`INSERT INTO dim_empresa (empresa_sk, id_empresa_original)
			 VALUES ($1, $2)
			 ON CONFLICT (id_empresa_original) DO NOTHING`,
			r.SK, r.ID,
		)
		if err != nil {
			return inserted, 0, err
		}
		inserted += n
	}
	return inserted, int64(len(rows)) - inserted, nil
}

func insertSkills(ctx context.Context, tx database.Tx, rows []warehouse.SkillRow) (int64, int64, error) {
	var inserted int64
	for _, r := range rows {
		n, err := tx.Exec(ctx,
			`INSERT INTO dim_competencia (competencia_sk, nombre_competencia)
			 VALUES ($1, $2)
			 ON CONFLICT (nombre_competencia) DO NOTHING`,
			r.SK, r.Name,
		)
		if err != nil {
			return inserted, 0, err
		}
		inserted += n
	}
	return inserted, int64(len(rows)) - inserted, nil
}

func applicantCoreRows(rows []warehouse.ApplicantCoreRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.ApplicantSK, r.LocationSK, r.RegistrationDateSK})
	}
	return out
}

func educationRows(rows []warehouse.EducationFactRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.ApplicantSK, r.CareerSK, r.InstitutionSK})
	}
	return out
}

func experienceRows(rows []warehouse.ExperienceFactRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.ApplicantSK})
	}
	return out
}

func jobCoreRows(rows []warehouse.JobCoreRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.PostingSK, r.LocationSK, r.CompanySK, r.PublicationDateSK, r.Active})
	}
	return out
}

func skillRequirementRows(rows []warehouse.SkillRequirementRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.PostingSK, r.SkillSK})
	}
	return out
}
