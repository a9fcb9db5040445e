package extract

import (
	"fmt"
	"time"
)

// Dataset names, one per cleaned source extract.
const (
	DatasetApplicants  = "postulantes"
	DatasetCompanies   = "empresas"
	DatasetPostings    = "vacantes"
	DatasetSkillReqs   = "competencias"
	DatasetEducation   = "educacion"
	DatasetExperiences = "experiencias"
)

// MalformedRecordError marks a source row that is missing a required field or
// carries a value that fails a basic type constraint. The row is excluded
// from all downstream stages but stays visible in the rejection counts.
type MalformedRecordError struct {
	Dataset string
	Line    int
	Field   string
	Reason  string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: dataset=%s line=%d field=%s: %s", e.Dataset, e.Line, e.Field, e.Reason)
}

type ApplicantRecord struct {
	ID         string
	Age        int
	Sex        string
	Conadis    string
	Ubigeo     string
	Department string
	Province   string
	District   string
}

type CompanyRecord struct {
	ID string
}

type PostingRecord struct {
	ID               string
	Title            string
	Openings         int
	Sector           string
	Ubigeo           string
	Department       string
	Province         string
	District         string
	NoExperience     bool
	ExperienceMonths int
	CompanyID        string
	StartDate        time.Time
	EndDate          time.Time
	CreatedDate      time.Time
	Active           bool
}

type SkillRequirementRecord struct {
	PostingID string
	Skill     string
}

type EducationRecord struct {
	ApplicantID string
	Level       string
	Career      string
	Institution string
	StartDate   time.Time
	EndDate     time.Time
}

type ExperienceRecord struct {
	ApplicantID string
}

// Datasets holds every accepted row of the six cleaned extracts.
type Datasets struct {
	Applicants  []ApplicantRecord
	Companies   []CompanyRecord
	Postings    []PostingRecord
	SkillReqs   []SkillRequirementRecord
	Education   []EducationRecord
	Experiences []ExperienceRecord
}

// DatasetCount reports rows read versus rejected for one extract.
type DatasetCount struct {
	Read     int
	Rejected int
}

type Summary struct {
	Counts map[string]DatasetCount
	// Rejected keeps the individual errors for logging; rows are never
	// dropped without leaving a trace here.
	Rejected []*MalformedRecordError
}
