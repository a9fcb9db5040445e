// Package warehouse builds the constellation's dimension and fact row-sets
// from cleaned extracts and normalized entity groups.
package warehouse

import "time"

// EntityType namespaces business keys inside the surrogate key registry.
// Values double as the entity_type column in etl_key_registry.
type EntityType string

const (
	EntityTime        EntityType = "tiempo"
	EntityLocation    EntityType = "ubicacion"
	EntityApplicant   EntityType = "postulante"
	EntityCareer      EntityType = "carrera"
	EntityInstitution EntityType = "institucion"
	EntityPosting     EntityType = "vacante"
	EntityCompany     EntityType = "empresa"
	EntitySkill       EntityType = "competencia"
)

// Location provenance values, recording which star contributed the row.
const (
	SourceApplicant = "postulante"
	SourcePosting   = "vacante"
)

// Sentinel for location subcomponents the source could not resolve, and for
// the geocode of records that carry none at all.
const (
	Unspecified   = "SIN_ESPECIFICAR"
	UnknownUbigeo = "000000"
)

type TimeRow struct {
	SK        int64
	Date      time.Time
	Year      int
	Month     int
	Day       int
	Quarter   int
	Semester  int
	Weekday   int // 1=Monday .. 7=Sunday
	MonthName string
	DayName   string
	Weekend   bool
}

type LocationRow struct {
	SK         int64
	Ubigeo     string
	Department string
	Province   string
	District   string
	Source     string
}

type ApplicantRow struct {
	SK      int64
	ID      string
	Age     int
	Sex     string
	Ubigeo  string
	Conadis string
}

type CareerRow struct {
	SK    int64
	Name  string
	Level string
}

type InstitutionRow struct {
	SK   int64
	Name string
}

type PostingRow struct {
	SK               int64
	ID               string
	Title            string
	Openings         int
	Sector           string
	Ubigeo           string
	NoExperience     bool
	ExperienceMonths int
}

type CompanyRow struct {
	SK int64
	ID string
}

type SkillRow struct {
	SK   int64
	Name string
}

// Dimensions holds the eight dimension row-sets of one run, in load order.
type Dimensions struct {
	Time         []TimeRow
	Locations    []LocationRow
	Applicants   []ApplicantRow
	Careers      []CareerRow
	Institutions []InstitutionRow
	Postings     []PostingRow
	Companies    []CompanyRow
	Skills       []SkillRow
}

type ApplicantCoreRow struct {
	ApplicantSK        int64
	LocationSK         int64
	RegistrationDateSK int64
}

type EducationFactRow struct {
	ApplicantSK   int64
	CareerSK      int64
	InstitutionSK int64
}

type ExperienceFactRow struct {
	ApplicantSK int64
}

type JobCoreRow struct {
	PostingSK         int64
	LocationSK        int64
	CompanySK         int64
	PublicationDateSK int64
	Active            bool
}

type SkillRequirementRow struct {
	PostingSK int64
	SkillSK   int64
}

// Facts holds the five fact row-sets of one run.
type Facts struct {
	ApplicantCore     []ApplicantCoreRow
	Education         []EducationFactRow
	Experience        []ExperienceFactRow
	JobCore           []JobCoreRow
	SkillRequirements []SkillRequirementRow
}
