package warehouse

import (
	"fmt"
	"log/slog"

	"empleo-dw/internal/normalize"
)

// Fact table names, also used as the Fact field of rejection errors.
const (
	FactApplicantCore    = "hechos_postulante"
	FactEducation        = "hechos_formacion"
	FactExperience       = "hechos_experiencia"
	FactJobCore          = "hechos_vacante"
	FactSkillRequirement = "hechos_competencia_requerida"
)

// AssemblyReport carries the per-fact rejection outcome of one run. A
// rejected row never reaches the loader; it is reported, not substituted
// with a null foreign key.
type AssemblyReport struct {
	Built    map[string]int
	Rejected []*UnresolvedReferenceError
}

func (r *AssemblyReport) reject(err *UnresolvedReferenceError) {
	r.Rejected = append(r.Rejected, err)
}

// RejectedByFact counts rejections per fact table.
func (r *AssemblyReport) RejectedByFact() map[string]int {
	out := map[string]int{}
	for _, e := range r.Rejected {
		out[e.Fact]++
	}
	return out
}

// FactAssembler resolves business keys to surrogate keys through the
// registry and emits fact rows. It only ever looks keys up: the dimension
// builder must already have populated the registry for this run, so every
// emitted foreign key references a dimension row by construction.
type FactAssembler struct {
	reg *KeyRegistry
	log *slog.Logger
}

func NewFactAssembler(reg *KeyRegistry, log *slog.Logger) *FactAssembler {
	if log == nil {
		log = slog.Default()
	}
	return &FactAssembler{reg: reg, log: log}
}

func (a *FactAssembler) Build(in BuildInput, dims *Dimensions) (*Facts, *AssemblyReport, error) {
	if in.Data == nil || dims == nil {
		return nil, nil, fmt.Errorf("nil input")
	}

	facts := &Facts{}
	report := &AssemblyReport{Built: map[string]int{}}

	a.buildApplicantCore(in, dims, facts, report)
	a.buildEducation(in, facts, report)
	a.buildExperience(in, facts, report)
	a.buildJobCore(in, dims, facts, report)
	a.buildSkillRequirements(in, facts, report)

	a.log.Info("facts built",
		"hechos_postulante", len(facts.ApplicantCore),
		"hechos_formacion", len(facts.Education),
		"hechos_experiencia", len(facts.Experience),
		"hechos_vacante", len(facts.JobCore),
		"hechos_competencia_requerida", len(facts.SkillRequirements),
		"rejected", len(report.Rejected),
	)
	for fact, n := range report.RejectedByFact() {
		a.log.Warn("fact rows rejected", "fact", fact, "count", n)
	}

	return facts, report, nil
}

// earliestDateSK returns the key of the oldest date in the run's time
// dimension. The applicant extract carries no registration date, so every
// applicant is pinned to it, the same convention the source system used.
func earliestDateSK(dims *Dimensions) (int64, bool) {
	if len(dims.Time) == 0 {
		return 0, false
	}
	return dims.Time[0].SK, true
}

func (a *FactAssembler) buildApplicantCore(in BuildInput, dims *Dimensions, facts *Facts, report *AssemblyReport) {
	regDate, haveDate := earliestDateSK(dims)

	for _, rec := range DedupeApplicants(in.Data.Applicants) {
		appSK, ok := a.reg.Lookup(EntityApplicant, rec.ID)
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactApplicantCore, Entity: EntityApplicant, BusinessKey: rec.ID})
			continue
		}
		locSK, ok := a.reg.Lookup(EntityLocation, DefaultUbigeo(rec.Ubigeo))
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactApplicantCore, Entity: EntityLocation, BusinessKey: rec.Ubigeo})
			continue
		}
		if !haveDate {
			report.reject(&UnresolvedReferenceError{Fact: FactApplicantCore, Entity: EntityTime, BusinessKey: rec.ID})
			continue
		}
		facts.ApplicantCore = append(facts.ApplicantCore, ApplicantCoreRow{
			ApplicantSK:        appSK,
			LocationSK:         locSK,
			RegistrationDateSK: regDate,
		})
	}
	report.Built[FactApplicantCore] = len(facts.ApplicantCore)
}

func (a *FactAssembler) buildEducation(in BuildInput, facts *Facts, report *AssemblyReport) {
	for _, rec := range in.Data.Education {
		appSK, ok := a.reg.Lookup(EntityApplicant, rec.ApplicantID)
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactEducation, Entity: EntityApplicant, BusinessKey: rec.ApplicantID})
			continue
		}

		careerSK, ok := a.lookupGrouped(in.Careers, EntityCareer, rec.Career)
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactEducation, Entity: EntityCareer, BusinessKey: rec.Career})
			continue
		}
		instSK, ok := a.lookupGrouped(in.Institutions, EntityInstitution, rec.Institution)
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactEducation, Entity: EntityInstitution, BusinessKey: rec.Institution})
			continue
		}

		facts.Education = append(facts.Education, EducationFactRow{
			ApplicantSK:   appSK,
			CareerSK:      careerSK,
			InstitutionSK: instSK,
		})
	}
	report.Built[FactEducation] = len(facts.Education)
}

func (a *FactAssembler) buildExperience(in BuildInput, facts *Facts, report *AssemblyReport) {
	for _, rec := range in.Data.Experiences {
		appSK, ok := a.reg.Lookup(EntityApplicant, rec.ApplicantID)
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactExperience, Entity: EntityApplicant, BusinessKey: rec.ApplicantID})
			continue
		}
		facts.Experience = append(facts.Experience, ExperienceFactRow{ApplicantSK: appSK})
	}
	report.Built[FactExperience] = len(facts.Experience)
}

func (a *FactAssembler) buildJobCore(in BuildInput, dims *Dimensions, facts *Facts, report *AssemblyReport) {
	fallbackDate, haveDate := earliestDateSK(dims)

	for _, rec := range DedupePostings(in.Data.Postings) {
		postSK, ok := a.reg.Lookup(EntityPosting, rec.ID)
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactJobCore, Entity: EntityPosting, BusinessKey: rec.ID})
			continue
		}
		locSK, ok := a.reg.Lookup(EntityLocation, DefaultUbigeo(rec.Ubigeo))
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactJobCore, Entity: EntityLocation, BusinessKey: rec.Ubigeo})
			continue
		}
		// A posting referencing a company absent from the company extract
		// is rejected outright; the registry never allocates here.
		compSK, ok := a.reg.Lookup(EntityCompany, rec.CompanyID)
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactJobCore, Entity: EntityCompany, BusinessKey: rec.CompanyID})
			continue
		}

		dateSK := int64(0)
		if !rec.CreatedDate.IsZero() {
			if sk, ok := a.reg.Lookup(EntityTime, DateKey(rec.CreatedDate)); ok {
				dateSK = sk
			}
		}
		if dateSK == 0 {
			if !haveDate {
				report.reject(&UnresolvedReferenceError{Fact: FactJobCore, Entity: EntityTime, BusinessKey: rec.ID})
				continue
			}
			dateSK = fallbackDate
		}

		facts.JobCore = append(facts.JobCore, JobCoreRow{
			PostingSK:         postSK,
			LocationSK:        locSK,
			CompanySK:         compSK,
			PublicationDateSK: dateSK,
			Active:            rec.Active,
		})
	}
	report.Built[FactJobCore] = len(facts.JobCore)
}

func (a *FactAssembler) buildSkillRequirements(in BuildInput, facts *Facts, report *AssemblyReport) {
	for _, rec := range in.Data.SkillReqs {
		// Orphan requirements (posting id never seen in the posting
		// extract) are rejected and surface in the report.
		postSK, ok := a.reg.Lookup(EntityPosting, rec.PostingID)
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactSkillRequirement, Entity: EntityPosting, BusinessKey: rec.PostingID})
			continue
		}
		skillSK, ok := a.lookupGrouped(in.Skills, EntitySkill, rec.Skill)
		if !ok {
			report.reject(&UnresolvedReferenceError{Fact: FactSkillRequirement, Entity: EntitySkill, BusinessKey: rec.Skill})
			continue
		}
		facts.SkillRequirements = append(facts.SkillRequirements, SkillRequirementRow{
			PostingSK: postSK,
			SkillSK:   skillSK,
		})
	}
	report.Built[FactSkillRequirement] = len(facts.SkillRequirements)
}

// lookupGrouped resolves a raw name through its normalization grouping to
// the canonical business key, then through the registry.
func (a *FactAssembler) lookupGrouped(g *normalize.Grouping, entity EntityType, raw string) (int64, bool) {
	canon, ok := g.Canonical(raw)
	if !ok {
		return 0, false
	}
	return a.reg.Lookup(entity, canon)
}
