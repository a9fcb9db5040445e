package extract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// File names produced by the cleaning stage, one per dataset.
var expectedFiles = map[string]string{
	DatasetApplicants:  "postulante_clean.csv",
	DatasetCompanies:   "empresas_clean.csv",
	DatasetPostings:    "vacantes_clean.csv",
	DatasetSkillReqs:   "competencias_clean.csv",
	DatasetEducation:   "educacion_clean.csv",
	DatasetExperiences: "experiencias_clean.csv",
}

// Extractor reads the cleaned CSV extracts from a directory. Rows missing a
// required natural key or failing a type constraint are rejected and
// counted, never silently dropped.
type Extractor struct {
	dir string
	log *slog.Logger
}

func NewExtractor(dir string, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{dir: dir, log: log}
}

func (e *Extractor) ExtractAll() (*Datasets, *Summary, error) {
	if e == nil {
		return nil, nil, fmt.Errorf("nil extractor")
	}

	for name, file := range expectedFiles {
		if _, err := os.Stat(filepath.Join(e.dir, file)); err != nil {
			return nil, nil, fmt.Errorf("dataset %s: %w", name, err)
		}
	}

	ds := &Datasets{}
	sum := &Summary{Counts: map[string]DatasetCount{}}

	steps := []struct {
		name string
		fn   func(*Datasets, *Summary) error
	}{
		{DatasetApplicants, e.readApplicants},
		{DatasetCompanies, e.readCompanies},
		{DatasetPostings, e.readPostings},
		{DatasetSkillReqs, e.readSkillReqs},
		{DatasetEducation, e.readEducation},
		{DatasetExperiences, e.readExperiences},
	}
	for _, s := range steps {
		if err := s.fn(ds, sum); err != nil {
			return nil, nil, err
		}
		c := sum.Counts[s.name]
		e.log.Info("dataset extracted", "dataset", s.name, "read", c.Read, "rejected", c.Rejected)
	}

	for _, rej := range sum.Rejected {
		e.log.Warn("record rejected", "dataset", rej.Dataset, "line", rej.Line, "field", rej.Field, "reason", rej.Reason)
	}

	return ds, sum, nil
}

func (e *Extractor) open(dataset string, required ...string) (*table, func(), error) {
	f, err := os.Open(filepath.Join(e.dir, expectedFiles[dataset]))
	if err != nil {
		return nil, nil, err
	}
	t, err := openTable(dataset, f, required...)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return t, func() { f.Close() }, nil
}

// forEachRow drives the per-row parse loop and does the read/reject
// bookkeeping shared by all six datasets.
func forEachRow(t *table, sum *Summary, parse func(row) *MalformedRecordError) error {
	count := DatasetCount{}
	for {
		fields, err := t.next()
		if err != nil {
			return err
		}
		if fields == nil {
			break
		}
		count.Read++
		if rejErr := parse(row{t: t, fields: fields}); rejErr != nil {
			count.Rejected++
			sum.Rejected = append(sum.Rejected, rejErr)
		}
	}
	sum.Counts[t.dataset] = count
	return nil
}

func (e *Extractor) readApplicants(ds *Datasets, sum *Summary) error {
	t, done, err := e.open(DatasetApplicants, "ID_POSTULANTE")
	if err != nil {
		return err
	}
	defer done()

	return forEachRow(t, sum, func(r row) *MalformedRecordError {
		id, rej := r.requiredStr("ID_POSTULANTE")
		if rej != nil {
			return rej
		}
		age, rej := r.intOr("EDAD", 0)
		if rej != nil {
			return rej
		}
		ds.Applicants = append(ds.Applicants, ApplicantRecord{
			ID:         id,
			Age:        age,
			Sex:        r.str("SEXO"),
			Conadis:    r.str("ESTADO_CONADIS"),
			Ubigeo:     r.str("UBIGEO"),
			Department: r.str("DEPARTAMENTO"),
			Province:   r.str("PROVINCIA"),
			District:   r.str("DISTRITO"),
		})
		return nil
	})
}

func (e *Extractor) readCompanies(ds *Datasets, sum *Summary) error {
	t, done, err := e.open(DatasetCompanies, "IDEMPRESA")
	if err != nil {
		return err
	}
	defer done()

	return forEachRow(t, sum, func(r row) *MalformedRecordError {
		id, rej := r.requiredStr("IDEMPRESA")
		if rej != nil {
			return rej
		}
		ds.Companies = append(ds.Companies, CompanyRecord{ID: id})
		return nil
	})
}

func (e *Extractor) readPostings(ds *Datasets, sum *Summary) error {
	t, done, err := e.open(DatasetPostings, "AVISOID")
	if err != nil {
		return err
	}
	defer done()

	return forEachRow(t, sum, func(r row) *MalformedRecordError {
		id, rej := r.requiredStr("AVISOID")
		if rej != nil {
			return rej
		}
		openings, rej := r.intOr("VACANTES", 0)
		if rej != nil {
			return rej
		}
		months, rej := r.intOr("TIEMPOEXPERIENCIA", 0)
		if rej != nil {
			return rej
		}
		start, rej := r.dateOr("FECHAINICIO")
		if rej != nil {
			return rej
		}
		end, rej := r.dateOr("FECHAFIN")
		if rej != nil {
			return rej
		}
		created, rej := r.dateOr("FECHACREACION")
		if rej != nil {
			return rej
		}
		if openings < 0 {
			openings = 0
		}
		if months < 0 {
			months = 0
		}
		ds.Postings = append(ds.Postings, PostingRecord{
			ID:               id,
			Title:            r.str("NOMBREAVISO"),
			Openings:         openings,
			Sector:           r.str("SECTOR"),
			Ubigeo:           r.str("UBIGEO"),
			Department:       r.str("DEPARTAMENTO"),
			Province:         r.str("PROVINCIA"),
			District:         r.str("DISTRITO"),
			NoExperience:     r.boolOr("SINEXPERIENCIA", false),
			ExperienceMonths: months,
			CompanyID:        r.str("IDEMPRESA"),
			StartDate:        start,
			EndDate:          end,
			CreatedDate:      created,
			Active:           r.boolOr("ACTIVO", true),
		})
		return nil
	})
}

func (e *Extractor) readSkillReqs(ds *Datasets, sum *Summary) error {
	t, done, err := e.open(DatasetSkillReqs, "AVISOID", "NOMBRECOMPETENCIA")
	if err != nil {
		return err
	}
	defer done()

	return forEachRow(t, sum, func(r row) *MalformedRecordError {
		id, rej := r.requiredStr("AVISOID")
		if rej != nil {
			return rej
		}
		skill, rej := r.requiredStr("NOMBRECOMPETENCIA")
		if rej != nil {
			return rej
		}
		ds.SkillReqs = append(ds.SkillReqs, SkillRequirementRecord{PostingID: id, Skill: skill})
		return nil
	})
}

func (e *Extractor) readEducation(ds *Datasets, sum *Summary) error {
	t, done, err := e.open(DatasetEducation, "ID_POSTULANTE")
	if err != nil {
		return err
	}
	defer done()

	return forEachRow(t, sum, func(r row) *MalformedRecordError {
		id, rej := r.requiredStr("ID_POSTULANTE")
		if rej != nil {
			return rej
		}
		start, rej := r.dateOr("FECHAINICIO")
		if rej != nil {
			return rej
		}
		end, rej := r.dateOr("FECHAFIN")
		if rej != nil {
			return rej
		}
		ds.Education = append(ds.Education, EducationRecord{
			ApplicantID: id,
			Level:       r.str("NIVEL_EDUCATIVO"),
			Career:      r.str("CARRERA"),
			Institution: r.str("INSTITUCION"),
			StartDate:   start,
			EndDate:     end,
		})
		return nil
	})
}

func (e *Extractor) readExperiences(ds *Datasets, sum *Summary) error {
	t, done, err := e.open(DatasetExperiences, "ID_POSTULANTE")
	if err != nil {
		return err
	}
	defer done()

	return forEachRow(t, sum, func(r row) *MalformedRecordError {
		id, rej := r.requiredStr("ID_POSTULANTE")
		if rej != nil {
			return rej
		}
		ds.Experiences = append(ds.Experiences, ExperienceRecord{ApplicantID: id})
		return nil
	})
}
