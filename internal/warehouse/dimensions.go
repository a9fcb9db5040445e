package warehouse

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"empleo-dw/internal/extract"
	"empleo-dw/internal/normalize"
)

const dateKeyLayout = "2006-01-02"

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

var dayNames = [...]string{
	"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo",
}

// BuildInput couples the accepted extract rows with the normalized entity
// groupings produced for this run.
type BuildInput struct {
	Data         *extract.Datasets
	Careers      *normalize.Grouping
	Institutions *normalize.Grouping
	Skills       *normalize.Grouping
}

// DimensionBuilder emits one row per canonical business key per dimension.
// Surrogate keys come from the registry, so building the same business key
// twice (in one run or across runs) collapses to one row with one key.
type DimensionBuilder struct {
	reg *KeyRegistry
	log *slog.Logger
}

func NewDimensionBuilder(reg *KeyRegistry, log *slog.Logger) *DimensionBuilder {
	if log == nil {
		log = slog.Default()
	}
	return &DimensionBuilder{reg: reg, log: log}
}

func (b *DimensionBuilder) Build(in BuildInput) (*Dimensions, error) {
	if in.Data == nil {
		return nil, fmt.Errorf("nil datasets")
	}

	dims := &Dimensions{}
	var err error

	if dims.Time, err = b.buildTime(in.Data); err != nil {
		return nil, err
	}
	if dims.Locations, err = b.buildLocations(in.Data); err != nil {
		return nil, err
	}
	if dims.Applicants, err = b.buildApplicants(in.Data.Applicants); err != nil {
		return nil, err
	}
	if dims.Careers, err = b.buildCareers(in.Careers, in.Data.Education); err != nil {
		return nil, err
	}
	if dims.Institutions, err = b.buildInstitutions(in.Institutions); err != nil {
		return nil, err
	}
	if dims.Postings, err = b.buildPostings(in.Data.Postings); err != nil {
		return nil, err
	}
	if dims.Companies, err = b.buildCompanies(in.Data.Companies); err != nil {
		return nil, err
	}
	if dims.Skills, err = b.buildSkills(in.Skills); err != nil {
		return nil, err
	}

	b.log.Info("dimensions built",
		"tiempo", len(dims.Time),
		"ubicacion", len(dims.Locations),
		"postulante", len(dims.Applicants),
		"carrera", len(dims.Careers),
		"institucion", len(dims.Institutions),
		"vacante", len(dims.Postings),
		"empresa", len(dims.Companies),
		"competencia", len(dims.Skills),
	)

	return dims, nil
}

// DateKey is the business key of a time dimension row.
func DateKey(d time.Time) string {
	return d.Format(dateKeyLayout)
}

// DefaultUbigeo substitutes the unknown-geocode sentinel for a blank code.
// Non-blank codes pass through verbatim, resolvable or not.
func DefaultUbigeo(ubigeo string) string {
	if ubigeo == "" {
		return UnknownUbigeo
	}
	return ubigeo
}

func (b *DimensionBuilder) buildTime(ds *extract.Datasets) ([]TimeRow, error) {
	seen := map[string]time.Time{}
	add := func(d time.Time) {
		if d.IsZero() {
			return
		}
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		seen[DateKey(day)] = day
	}

	for _, p := range ds.Postings {
		add(p.StartDate)
		add(p.EndDate)
		add(p.CreatedDate)
	}
	for _, e := range ds.Education {
		add(e.StartDate)
		add(e.EndDate)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]TimeRow, 0, len(keys))
	for _, k := range keys {
		d := seen[k]
		sk, err := b.reg.Resolve(EntityTime, k)
		if err != nil {
			return nil, err
		}

		weekday := int(d.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday
		}
		quarter := (int(d.Month())-1)/3 + 1
		semester := 1
		if quarter > 2 {
			semester = 2
		}

		rows = append(rows, TimeRow{
			SK:        sk,
			Date:      d,
			Year:      d.Year(),
			Month:     int(d.Month()),
			Day:       d.Day(),
			Quarter:   quarter,
			Semester:  semester,
			Weekday:   weekday,
			MonthName: monthNames[d.Month()-1],
			DayName:   dayNames[weekday-1],
			Weekend:   weekday >= 6,
		})
	}

	return rows, nil
}

func (b *DimensionBuilder) buildLocations(ds *extract.Datasets) ([]LocationRow, error) {
	rows := []LocationRow{}
	built := map[string]bool{}

	sentinel := func(v string) string {
		if v == "" {
			return Unspecified
		}
		return v
	}

	add := func(ubigeo, dept, prov, dist, source string) error {
		ubigeo = DefaultUbigeo(ubigeo)
		if built[ubigeo] {
			return nil
		}
		built[ubigeo] = true

		sk, err := b.reg.Resolve(EntityLocation, ubigeo)
		if err != nil {
			return err
		}
		rows = append(rows, LocationRow{
			SK:         sk,
			Ubigeo:     ubigeo,
			Department: sentinel(dept),
			Province:   sentinel(prov),
			District:   sentinel(dist),
			Source:     source,
		})
		return nil
	}

	// Applicant locations first, then posting locations: for a geocode both
	// stars reference, the first contributing star sets the provenance but
	// the surrogate key is one and the same.
	for _, a := range ds.Applicants {
		if err := add(a.Ubigeo, a.Department, a.Province, a.District, SourceApplicant); err != nil {
			return nil, err
		}
	}
	for _, p := range ds.Postings {
		if err := add(p.Ubigeo, p.Department, p.Province, p.District, SourcePosting); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

// DedupeApplicants collapses duplicate applicant ids, last record winning,
// preserving first-seen order. The fact assembler relies on the same
// collapse so the 1:1 center invariant holds.
func DedupeApplicants(records []extract.ApplicantRecord) []extract.ApplicantRecord {
	idx := map[string]int{}
	out := []extract.ApplicantRecord{}
	for _, rec := range records {
		if i, ok := idx[rec.ID]; ok {
			out[i] = rec
			continue
		}
		idx[rec.ID] = len(out)
		out = append(out, rec)
	}
	return out
}

// DedupePostings mirrors DedupeApplicants for the labor-demand center.
func DedupePostings(records []extract.PostingRecord) []extract.PostingRecord {
	idx := map[string]int{}
	out := []extract.PostingRecord{}
	for _, rec := range records {
		if i, ok := idx[rec.ID]; ok {
			out[i] = rec
			continue
		}
		idx[rec.ID] = len(out)
		out = append(out, rec)
	}
	return out
}

func (b *DimensionBuilder) buildApplicants(records []extract.ApplicantRecord) ([]ApplicantRow, error) {
	deduped := DedupeApplicants(records)
	if n := len(records) - len(deduped); n > 0 {
		b.log.Warn("duplicate applicant ids collapsed", "count", n)
	}

	rows := make([]ApplicantRow, 0, len(deduped))
	for _, rec := range deduped {
		sk, err := b.reg.Resolve(EntityApplicant, rec.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, ApplicantRow{
			SK:      sk,
			ID:      rec.ID,
			Age:     rec.Age,
			Sex:     rec.Sex,
			Ubigeo:  rec.Ubigeo,
			Conadis: rec.Conadis,
		})
	}
	return rows, nil
}

func (b *DimensionBuilder) buildCareers(g *normalize.Grouping, education []extract.EducationRecord) ([]CareerRow, error) {
	// Education level is a descriptive attribute: first observed level per
	// canonical career wins, matching the cleaning stage's behavior.
	levels := map[string]string{}
	for _, e := range education {
		canon, ok := g.Canonical(e.Career)
		if !ok || e.Level == "" {
			continue
		}
		if _, have := levels[canon]; !have {
			levels[canon] = e.Level
		}
	}

	rows := make([]CareerRow, 0, len(g.Groups()))
	for _, grp := range g.Groups() {
		sk, err := b.reg.Resolve(EntityCareer, grp.Canonical)
		if err != nil {
			return nil, err
		}
		rows = append(rows, CareerRow{SK: sk, Name: grp.Canonical, Level: levels[grp.Canonical]})
	}
	return rows, nil
}

func (b *DimensionBuilder) buildInstitutions(g *normalize.Grouping) ([]InstitutionRow, error) {
	rows := make([]InstitutionRow, 0, len(g.Groups()))
	for _, grp := range g.Groups() {
		sk, err := b.reg.Resolve(EntityInstitution, grp.Canonical)
		if err != nil {
			return nil, err
		}
		rows = append(rows, InstitutionRow{SK: sk, Name: grp.Canonical})
	}
	return rows, nil
}

func (b *DimensionBuilder) buildPostings(records []extract.PostingRecord) ([]PostingRow, error) {
	deduped := DedupePostings(records)
	if n := len(records) - len(deduped); n > 0 {
		b.log.Warn("duplicate posting ids collapsed", "count", n)
	}

	rows := make([]PostingRow, 0, len(deduped))
	for _, rec := range deduped {
		sk, err := b.reg.Resolve(EntityPosting, rec.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, PostingRow{
			SK:               sk,
			ID:               rec.ID,
			Title:            rec.Title,
			Openings:         rec.Openings,
			Sector:           rec.Sector,
			Ubigeo:           rec.Ubigeo,
			NoExperience:     rec.NoExperience,
			ExperienceMonths: rec.ExperienceMonths,
		})
	}
	return rows, nil
}

func (b *DimensionBuilder) buildCompanies(records []extract.CompanyRecord) ([]CompanyRow, error) {
	rows := []CompanyRow{}
	seen := map[string]bool{}
	for _, rec := range records {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		sk, err := b.reg.Resolve(EntityCompany, rec.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, CompanyRow{SK: sk, ID: rec.ID})
	}
	return rows, nil
}

func (b *DimensionBuilder) buildSkills(g *normalize.Grouping) ([]SkillRow, error) {
	rows := make([]SkillRow, 0, len(g.Groups()))
	for _, grp := range g.Groups() {
		sk, err := b.reg.Resolve(EntitySkill, grp.Canonical)
		if err != nil {
			return nil, err
		}
		rows = append(rows, SkillRow{SK: sk, Name: grp.Canonical})
	}
	return rows, nil
}
