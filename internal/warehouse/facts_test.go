package warehouse

import (
	"testing"
	"time"

	"empleo-dw/internal/extract"
)

func assemble(t *testing.T, ds *extract.Datasets) (*Facts, *AssemblyReport, *Dimensions) {
	t.Helper()
	reg := NewKeyRegistry()
	in := buildInput(ds)
	dims, err := NewDimensionBuilder(reg, nil).Build(in)
	if err != nil {
		t.Fatalf("build dimensions: %v", err)
	}
	facts, report, err := NewFactAssembler(reg, nil).Build(in, dims)
	if err != nil {
		t.Fatalf("assemble facts: %v", err)
	}
	return facts, report, dims
}

func TestApplicantCoreOneRowPerApplicant(t *testing.T) {
	ds := &extract.Datasets{
		Applicants: []extract.ApplicantRecord{
			{ID: "A1", Age: 30, Ubigeo: "150101"},
			{ID: "A2", Age: 25},
			{ID: "A1", Age: 31, Ubigeo: "150101"}, // duplicate, last wins
		},
		Postings: []extract.PostingRecord{
			{ID: "V1", CompanyID: "E1", CreatedDate: day(2024, time.January, 10)},
		},
		Companies: []extract.CompanyRecord{{ID: "E1"}},
	}

	facts, report, dims := assemble(t, ds)
	if len(facts.ApplicantCore) != 2 {
		t.Fatalf("expected one center row per applicant, got %d", len(facts.ApplicantCore))
	}
	if len(report.Rejected) != 0 {
		t.Fatalf("unexpected rejections: %v", report.Rejected)
	}
	for _, row := range facts.ApplicantCore {
		if row.RegistrationDateSK != dims.Time[0].SK {
			t.Fatalf("registration date must be the earliest time key: %+v", row)
		}
	}
}

func TestJobCoreUnknownCompanyRejected(t *testing.T) {
	ds := &extract.Datasets{
		Postings: []extract.PostingRecord{
			{ID: "V1", CompanyID: "E1", CreatedDate: day(2024, time.May, 2)},
			{ID: "V2", CompanyID: "E404", CreatedDate: day(2024, time.May, 2)},
		},
		Companies: []extract.CompanyRecord{{ID: "E1"}},
	}

	facts, report, _ := assemble(t, ds)
	if len(facts.JobCore) != 1 {
		t.Fatalf("expected 1 job row, got %d", len(facts.JobCore))
	}
	rej := report.RejectedByFact()
	if rej[FactJobCore] != 1 {
		t.Fatalf("expected 1 job rejection, got %v", rej)
	}
	if report.Rejected[0].Entity != EntityCompany || report.Rejected[0].BusinessKey != "E404" {
		t.Fatalf("wrong rejection: %+v", report.Rejected[0])
	}
}

func TestJobCoreMissingCreatedDateFallsBack(t *testing.T) {
	ds := &extract.Datasets{
		Postings: []extract.PostingRecord{
			{ID: "V1", CompanyID: "E1", StartDate: day(2024, time.February, 1)},
		},
		Companies: []extract.CompanyRecord{{ID: "E1"}},
	}

	facts, _, dims := assemble(t, ds)
	if len(facts.JobCore) != 1 {
		t.Fatalf("expected 1 job row, got %d", len(facts.JobCore))
	}
	if facts.JobCore[0].PublicationDateSK != dims.Time[0].SK {
		t.Fatalf("missing creation date must fall back to the earliest time key")
	}
}

func TestOrphanSkillRequirementsRejected(t *testing.T) {
	ds := &extract.Datasets{
		Postings: []extract.PostingRecord{
			{ID: "V1", CompanyID: "E1", CreatedDate: day(2024, time.May, 2)},
		},
		Companies: []extract.CompanyRecord{{ID: "E1"}},
		SkillReqs: []extract.SkillRequirementRecord{
			{PostingID: "V1", Skill: "EXCEL"},
			{PostingID: "V999", Skill: "EXCEL"},
		},
	}

	facts, report, _ := assemble(t, ds)
	if len(facts.SkillRequirements) != 1 {
		t.Fatalf("expected 1 requirement row, got %d", len(facts.SkillRequirements))
	}
	if report.RejectedByFact()[FactSkillRequirement] != 1 {
		t.Fatalf("orphan requirement must be rejected: %v", report.Rejected)
	}
}

func TestEducationResolvesThroughCanonicalNames(t *testing.T) {
	ds := &extract.Datasets{
		Applicants: []extract.ApplicantRecord{{ID: "A1"}},
		Postings: []extract.PostingRecord{
			{ID: "V1", CompanyID: "E1", CreatedDate: day(2024, time.January, 1)},
		},
		Companies: []extract.CompanyRecord{{ID: "E1"}},
		Education: []extract.EducationRecord{
			{ApplicantID: "A1", Career: "Ingeniería de Sistemas", Institution: "UNMSM"},
			{ApplicantID: "A1", Career: "INGENIERIA SISTEMAS", Institution: "UNMSM"},
		},
	}

	facts, report, _ := assemble(t, ds)
	if len(facts.Education) != 2 {
		t.Fatalf("detail facts are append-only, got %d rows", len(facts.Education))
	}
	if facts.Education[0].CareerSK != facts.Education[1].CareerSK {
		t.Fatalf("career variants must resolve to one surrogate key")
	}
	if len(report.Rejected) != 0 {
		t.Fatalf("unexpected rejections: %v", report.Rejected)
	}
}

func TestEducationUnknownApplicantRejected(t *testing.T) {
	ds := &extract.Datasets{
		Postings: []extract.PostingRecord{
			{ID: "V1", CompanyID: "E1", CreatedDate: day(2024, time.January, 1)},
		},
		Companies: []extract.CompanyRecord{{ID: "E1"}},
		Education: []extract.EducationRecord{
			{ApplicantID: "GHOST", Career: "DERECHO", Institution: "UNMSM"},
		},
	}

	facts, report, _ := assemble(t, ds)
	if len(facts.Education) != 0 {
		t.Fatalf("row with unknown applicant must not be emitted")
	}
	if report.Rejected[0].Entity != EntityApplicant {
		t.Fatalf("wrong rejection entity: %+v", report.Rejected[0])
	}
}

func TestExperienceCountsPerApplicant(t *testing.T) {
	ds := &extract.Datasets{
		Applicants: []extract.ApplicantRecord{{ID: "A1"}},
		Postings: []extract.PostingRecord{
			{ID: "V1", CompanyID: "E1", CreatedDate: day(2024, time.January, 1)},
		},
		Companies: []extract.CompanyRecord{{ID: "E1"}},
		Experiences: []extract.ExperienceRecord{
			{ApplicantID: "A1"},
			{ApplicantID: "A1"},
			{ApplicantID: "GHOST"},
		},
	}

	facts, report, _ := assemble(t, ds)
	if len(facts.Experience) != 2 {
		t.Fatalf("expected 2 experience rows, got %d", len(facts.Experience))
	}
	if report.RejectedByFact()[FactExperience] != 1 {
		t.Fatalf("unknown applicant experience must be rejected")
	}
}

func TestReferentialClosure(t *testing.T) {
	ds := &extract.Datasets{
		Applicants: []extract.ApplicantRecord{{ID: "A1", Ubigeo: "150101"}, {ID: "A2"}},
		Postings: []extract.PostingRecord{
			{ID: "V1", CompanyID: "E1", Ubigeo: "040101", CreatedDate: day(2024, time.March, 1)},
		},
		Companies: []extract.CompanyRecord{{ID: "E1"}},
		SkillReqs: []extract.SkillRequirementRecord{{PostingID: "V1", Skill: "SQL"}},
		Education: []extract.EducationRecord{
			{ApplicantID: "A1", Career: "DERECHO", Institution: "UNMSM", StartDate: day(2019, time.March, 1)},
		},
	}

	facts, _, dims := assemble(t, ds)

	timeSKs := map[int64]bool{}
	for _, r := range dims.Time {
		timeSKs[r.SK] = true
	}
	locSKs := map[int64]bool{}
	for _, r := range dims.Locations {
		locSKs[r.SK] = true
	}
	appSKs := map[int64]bool{}
	for _, r := range dims.Applicants {
		appSKs[r.SK] = true
	}

	for _, f := range facts.ApplicantCore {
		if !appSKs[f.ApplicantSK] || !locSKs[f.LocationSK] || !timeSKs[f.RegistrationDateSK] {
			t.Fatalf("applicant fact references missing dimension row: %+v", f)
		}
	}
	for _, f := range facts.JobCore {
		if !locSKs[f.LocationSK] || !timeSKs[f.PublicationDateSK] {
			t.Fatalf("job fact references missing dimension row: %+v", f)
		}
	}
}
