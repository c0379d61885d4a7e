package studies

import "time"

// Recruiting is the estado_protocolo value (after folding) that keeps a
// study in the matchable catalog.
const Recruiting = "reclutando"

// ClinicalStudy is a trial catalog entry. Rule fields are declared as
// interface{} because legacy documents carry them as strings, booleans or
// numbers interchangeably; the matcher degrades gracefully over all of
// them. Persisted field names are part of the external contract.
type ClinicalStudy struct {
	ID                string      `bson:"_id,omitempty" json:"id,omitempty"`
	Protocolo         string      `bson:"protocolo" json:"protocolo"`
	Enfermedad        string      `bson:"enfermedad" json:"enfermedad"`
	TipoEnfermedad    string      `bson:"tipo_enfermedad,omitempty" json:"tipo_enfermedad,omitempty"`
	Subtipo           string      `bson:"subtipo,omitempty" json:"subtipo,omitempty"`
	SubtipoEnfermedad string      `bson:"subtipo_enfermedad,omitempty" json:"subtipo_enfermedad,omitempty"`
	CentrosProtocolo  []string    `bson:"centros_protocolo" json:"centros_protocolo"`
	Metastasis        interface{} `bson:"metastasis,omitempty" json:"metastasis,omitempty"`
	Cirugia           interface{} `bson:"cirugia,omitempty" json:"cirugia,omitempty"`
	Tratamiento       interface{} `bson:"tratamiento,omitempty" json:"tratamiento,omitempty"`
	Quimioterapia     interface{} `bson:"quimioterapia,omitempty" json:"quimioterapia,omitempty"`
	Radioterapia      interface{} `bson:"radioterapia,omitempty" json:"radioterapia,omitempty"`
	Inmunoterapia     interface{} `bson:"inmunoterapia,omitempty" json:"inmunoterapia,omitempty"`
	TerapiaHormonal   interface{} `bson:"terapia_hormonal,omitempty" json:"terapia_hormonal,omitempty"`
	TerapiaDirigida   interface{} `bson:"terapia_dirigida,omitempty" json:"terapia_dirigida,omitempty"`
	EcogMin           interface{} `bson:"ecog_min,omitempty" json:"ecog_min,omitempty"`
	EcogMax           interface{} `bson:"ecog_max,omitempty" json:"ecog_max,omitempty"`
	FaseProtocolo     interface{} `bson:"fase_protocolo,omitempty" json:"fase_protocolo,omitempty"`
	EstadoProtocolo   string      `bson:"estado_protocolo" json:"estado_protocolo"`
	CodClinicalTrials string      `bson:"cod_clinical_trials_protocolo,omitempty" json:"cod_clinical_trials_protocolo,omitempty"`
	URLClinicalTrials string      `bson:"url_clinical_trials_protocolo,omitempty" json:"url_clinical_trials_protocolo,omitempty"`
	CreatedAt         time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// Patient is the matcher's view of a normalized intake record. The intake
// pipeline maps its canonical record onto this before matching.
type Patient struct {
	Enfermedad        *string
	TipoEnfermedad    *string
	SubtipoEnfermedad *string
	Centro            []string
	Metastasis        *string
	Cirugia           *string
	Tratamiento       *string
	TratamientoTipo   []string
	EcogDolor         *string
	EcogDescanso      *string
	EcogAyuda         *string
}

// MatchedStudy is the compact projection returned for an eligible study.
type MatchedStudy struct {
	ID                string   `bson:"id" json:"id"`
	Protocolo         string   `bson:"protocolo" json:"protocolo"`
	Enfermedad        string   `bson:"enfermedad" json:"enfermedad"`
	Subtipo           string   `bson:"subtipo" json:"subtipo"`
	FaseProtocolo     *float64 `bson:"fase_protocolo" json:"fase_protocolo"`
	EstadoProtocolo   string   `bson:"estado_protocolo" json:"estado_protocolo"`
	CodClinicalTrials string   `bson:"cod_clinical_trials_protocolo" json:"cod_clinical_trials_protocolo"`
	URLClinicalTrials string   `bson:"url_clinical_trials_protocolo" json:"url_clinical_trials_protocolo"`
	CentrosProtocolo  []string `bson:"centros_protocolo" json:"centros_protocolo"`
}

// MatchResult is the outcome of one matching pass.
type MatchResult struct {
	EcogScore    *float64       `bson:"ecog_score" json:"ecog_score"`
	TotalMatches int            `bson:"total_matches" json:"total_matches"`
	Studies      []MatchedStudy `bson:"studies" json:"studies"`
}

// CrossCenterResult compares the all-centers pass against the patient's
// declared centers: studies_other_centers holds the matches whose trial
// centers do not intersect the declared centers at all.
type CrossCenterResult struct {
	EcogScore           *float64       `bson:"ecog_score" json:"ecog_score"`
	TotalAllCenters     int            `bson:"total_matches" json:"total_matches"`
	StudiesOtherCenters []MatchedStudy `bson:"studies_other_centers" json:"studies_other_centers"`
}

// StudyTrace is the per-study entry in the diagnostic trace.
type StudyTrace struct {
	ID        string   `bson:"id" json:"id"`
	Protocolo string   `bson:"protocolo" json:"protocolo"`
	Eligible  bool     `bson:"eligible" json:"eligible"`
	Reasons   []string `bson:"reasons" json:"reasons"`
}

// ReasonCount aggregates how many studies failed for a given reason.
type ReasonCount struct {
	Reason string `bson:"reason" json:"reason"`
	Count  int    `bson:"count" json:"count"`
}

// PatientSnapshot is the matcher input echoed into the debug trace.
type PatientSnapshot struct {
	Disease        *string  `bson:"disease" json:"disease"`
	Subtype        *string  `bson:"subtype" json:"subtype"`
	Centers        []string `bson:"centers" json:"centers"`
	TreatmentTypes []string `bson:"treatment_types" json:"treatment_types"`
	EcogScore      *float64 `bson:"ecog_score" json:"ecog_score"`
}

// DebugTrace is the full diagnostic output of one matching pass.
type DebugTrace struct {
	Patient    PatientSnapshot `bson:"patient" json:"patient"`
	Evaluated  int             `bson:"evaluated" json:"evaluated"`
	Studies    []StudyTrace    `bson:"studies" json:"studies"`
	TopReasons []ReasonCount   `bson:"top_reasons" json:"top_reasons"`
}
