// Package pipeline orchestrates one warehouse build: extract, normalize,
// key resolution, dimension and fact assembly, then the transactional load.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"empleo-dw/internal/config"
	"empleo-dw/internal/extract"
	"empleo-dw/internal/loader"
	"empleo-dw/internal/normalize"
	"empleo-dw/internal/repository"
	"empleo-dw/internal/warehouse"

	"github.com/google/uuid"
)

// Report summarizes one completed batch. It is also what the run audit
// stores as the finish detail.
type Report struct {
	RunID    uuid.UUID `json:"run_id"`
	Duration string    `json:"duration"`

	Extracted map[string]extract.DatasetCount `json:"extracted"`

	CareerGroups      int `json:"career_groups"`
	InstitutionGroups int `json:"institution_groups"`
	SkillGroups       int `json:"skill_groups"`

	DimensionRows map[string]int `json:"dimension_rows"`
	FactRows      map[string]int `json:"fact_rows"`
	FactRejected  map[string]int `json:"fact_rejected"`

	LoadStats repository.LoadStats `json:"load_stats"`
}

type Batch struct {
	cfg       config.ETLConfig
	extractor *extract.Extractor
	registry  repository.KeyRegistryRepository
	runs      repository.RunRepository
	loader    *loader.Loader
	log       *slog.Logger
}

func NewBatch(
	cfg config.ETLConfig,
	extractor *extract.Extractor,
	registry repository.KeyRegistryRepository,
	runs repository.RunRepository,
	ld *loader.Loader,
	log *slog.Logger,
) *Batch {
	if log == nil {
		log = slog.Default()
	}
	return &Batch{
		cfg:       cfg,
		extractor: extractor,
		registry:  registry,
		runs:      runs,
		loader:    ld,
		log:       log,
	}
}

// Run executes the whole batch. Every stage failure aborts the run and is
// recorded in the audit trail; the warehouse only changes if the final
// load commits.
func (b *Batch) Run(ctx context.Context) (*Report, error) {
	runID := uuid.New()
	started := time.Now().UTC()

	if err := b.runs.Start(ctx, runID, started); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}
	b.log.Info("batch started", "run_id", runID)

	report, err := b.run(ctx, runID, started)
	if err != nil {
		b.finish(ctx, runID, repository.RunStatusFailed, map[string]string{"error": err.Error()})
		return nil, err
	}

	b.finish(ctx, runID, repository.RunStatusSucceeded, report)
	b.log.Info("batch finished", "run_id", runID, "duration", report.Duration)
	return report, nil
}

func (b *Batch) finish(ctx context.Context, runID uuid.UUID, status string, detail any) {
	if err := b.runs.Finish(ctx, runID, status, detail); err != nil {
		b.log.Error("record run finish", "run_id", runID, "status", status, "err", err)
	}
}

func (b *Batch) run(ctx context.Context, runID uuid.UUID, started time.Time) (*Report, error) {
	data, summary, err := b.extractor.ExtractAll()
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	careers, institutions, skills, err := b.normalizeNames(ctx, data)
	if err != nil {
		return nil, err
	}

	reg := warehouse.NewKeyRegistry()
	if err := b.seedRegistry(ctx, reg, data, careers, institutions, skills); err != nil {
		return nil, fmt.Errorf("seed key registry: %w", err)
	}

	in := warehouse.BuildInput{
		Data:         data,
		Careers:      careers,
		Institutions: institutions,
		Skills:       skills,
	}

	dims, err := warehouse.NewDimensionBuilder(reg, b.log).Build(in)
	if err != nil {
		return nil, fmt.Errorf("build dimensions: %w", err)
	}

	facts, assembly, err := warehouse.NewFactAssembler(reg, b.log).Build(in, dims)
	if err != nil {
		return nil, fmt.Errorf("assemble facts: %w", err)
	}

	stats, err := b.loader.Load(ctx, dims, facts, reg.FreshAllocations())
	if err != nil {
		return nil, err
	}

	return &Report{
		RunID:             runID,
		Duration:          time.Since(started).Round(time.Millisecond).String(),
		Extracted:         summary.Counts,
		CareerGroups:      len(careers.Groups()),
		InstitutionGroups: len(institutions.Groups()),
		SkillGroups:       len(skills.Groups()),
		DimensionRows: map[string]int{
			"dim_tiempo":      len(dims.Time),
			"dim_ubicacion":   len(dims.Locations),
			"dim_postulante":  len(dims.Applicants),
			"dim_carrera":     len(dims.Careers),
			"dim_institucion": len(dims.Institutions),
			"dim_vacante":     len(dims.Postings),
			"dim_empresa":     len(dims.Companies),
			"dim_competencia": len(dims.Skills),
		},
		FactRows:     assembly.Built,
		FactRejected: assembly.RejectedByFact(),
		LoadStats:    stats,
	}, nil
}

// normalizeNames clusters the three free-text name columns concurrently.
// Career names drop Spanish connective words before comparison; the other
// two keep them, matching how the source extracts were cleaned.
func (b *Batch) normalizeNames(ctx context.Context, data *extract.Datasets) (careers, institutions, skills *normalize.Grouping, err error) {
	careerNames := make([]string, 0, len(data.Education))
	instNames := make([]string, 0, len(data.Education))
	for _, e := range data.Education {
		careerNames = append(careerNames, e.Career)
		instNames = append(instNames, e.Institution)
	}
	skillNames := make([]string, 0, len(data.SkillReqs))
	for _, s := range data.SkillReqs {
		skillNames = append(skillNames, s.Skill)
	}

	careerOpts := normalize.DefaultOptions()
	careerOpts.DropConnectives = true

	// Workers must be draining before anything is submitted: Submit blocks
	// once the task buffer fills.
	pool := NewWorkerPool(b.cfg.NormalizeWorkers, 3)
	out := pool.Run(ctx)
	go func() {
		defer pool.Close()
		pool.Submit(func(context.Context) error {
			careers = normalize.Cluster(careerNames, careerOpts)
			return nil
		})
		pool.Submit(func(context.Context) error {
			institutions = normalize.Cluster(instNames, normalize.DefaultOptions())
			return nil
		})
		pool.Submit(func(context.Context) error {
			skills = normalize.Cluster(skillNames, normalize.DefaultOptions())
			return nil
		})
	}()

	for res := range out {
		if res.Err != nil {
			return nil, nil, nil, fmt.Errorf("normalize: %w", res.Err)
		}
	}
	if ctx.Err() != nil {
		return nil, nil, nil, ctx.Err()
	}
	if careers == nil || institutions == nil || skills == nil {
		return nil, nil, nil, fmt.Errorf("normalize: interrupted")
	}

	b.log.Info("names normalized",
		"careers", len(careers.Groups()),
		"institutions", len(institutions.Groups()),
		"skills", len(skills.Groups()),
	)
	return careers, institutions, skills, nil
}

// seedRegistry loads the persisted mapping for every business key this run
// will reference and raises each counter past the store's maximum, so fresh
// allocations never collide with keys issued by earlier runs.
func (b *Batch) seedRegistry(ctx context.Context, reg *warehouse.KeyRegistry, data *extract.Datasets, careers, institutions, skills *normalize.Grouping) error {
	for entity, keys := range referencedKeys(data, careers, institutions, skills) {
		existing, err := b.registry.ResolveExisting(ctx, entity, keys)
		if err != nil {
			return fmt.Errorf("%s: %w", entity, err)
		}
		reg.Seed(entity, existing)

		max, err := b.registry.MaxSurrogate(ctx, entity)
		if err != nil {
			return fmt.Errorf("%s: %w", entity, err)
		}
		reg.Advance(entity, max+1)

		b.log.Debug("registry seeded", "entity", entity, "referenced", len(keys), "existing", len(existing), "max_issued", max)
	}
	return nil
}

// referencedKeys enumerates the business keys each dimension builder will
// resolve, per entity type.
func referencedKeys(data *extract.Datasets, careers, institutions, skills *normalize.Grouping) map[warehouse.EntityType][]string {
	out := map[warehouse.EntityType][]string{}
	add := func(entity warehouse.EntityType, seen map[string]bool, key string) {
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out[entity] = append(out[entity], key)
	}

	dates := map[string]bool{}
	addDate := func(d time.Time) {
		if !d.IsZero() {
			add(warehouse.EntityTime, dates, warehouse.DateKey(d))
		}
	}
	for _, p := range data.Postings {
		addDate(p.StartDate)
		addDate(p.EndDate)
		addDate(p.CreatedDate)
	}
	for _, e := range data.Education {
		addDate(e.StartDate)
		addDate(e.EndDate)
	}

	ubigeos := map[string]bool{}
	for _, a := range data.Applicants {
		add(warehouse.EntityLocation, ubigeos, warehouse.DefaultUbigeo(a.Ubigeo))
	}
	for _, p := range data.Postings {
		add(warehouse.EntityLocation, ubigeos, warehouse.DefaultUbigeo(p.Ubigeo))
	}

	applicants := map[string]bool{}
	for _, a := range data.Applicants {
		add(warehouse.EntityApplicant, applicants, a.ID)
	}
	postings := map[string]bool{}
	for _, p := range data.Postings {
		add(warehouse.EntityPosting, postings, p.ID)
	}
	companies := map[string]bool{}
	for _, c := range data.Companies {
		add(warehouse.EntityCompany, companies, c.ID)
	}

	grouped := func(entity warehouse.EntityType, g *normalize.Grouping) {
		seen := map[string]bool{}
		for _, grp := range g.Groups() {
			add(entity, seen, grp.Canonical)
		}
	}
	grouped(warehouse.EntityCareer, careers)
	grouped(warehouse.EntityInstitution, institutions)
	grouped(warehouse.EntitySkill, skills)

	return out
}
