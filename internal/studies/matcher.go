package studies

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/filtroclientes/api/internal/textutil"
)

// Failure reason codes recorded in the diagnostic trace. Hard gates record
// exactly one reason and stop evaluating the study; soft rules accumulate.
const (
	ReasonNotRecruiting     = "not_recruiting"
	ReasonDiseaseMismatch   = "disease_mismatch"
	ReasonSubtypeMismatch   = "subtype_mismatch"
	ReasonCenterMismatch    = "center_mismatch"
	ReasonMetastasis        = "metastasis_mismatch"
	ReasonCirugia           = "cirugia_mismatch"
	ReasonTratamiento       = "tratamiento_mismatch"
	ReasonEcogOutOfRange    = "ecog_out_of_range"
	reasonTreatmentExcluded = "treatment_type_excluded:" // + canonical tipo
)

// ECOG sub-score weights. The final score is the weighted sum minus one,
// mapping the 1..4 ordinal triple onto a continuous 0..3 scale.
const (
	ecogWeightDolor    = 0.25
	ecogWeightDescanso = 0.30
	ecogWeightAyuda    = 0.45
)

var ecogDolorTable = map[string]int{
	"no tengo dolor": 1,
	"dolor leve":     2,
	"dolor moderado": 3,
	"dolor severo":   4,
	"dolor intenso":  4,
}

var ecogDescansoTable = map[string]int{
	"no descanso en cama":    1,
	"solo en la noche":       2,
	"solo en la noche.":      2,
	"algunas horas al dia":   3,
	"varias horas al dia":    3,
	"la mayor parte del dia": 4,
}

var ecogAyudaTable = map[string]int{
	"no necesito ayuda":           1,
	"necesito poca ayuda":         2,
	"necesito ayuda":              3,
	"necesito ayuda frecuente":    3,
	"dependo totalmente de otros": 4,
	"necesito ayuda total":        4,
}

// genericDiseaseTerms are study-side labels too broad to count as a match
// target when the patient supplied a specific disease type.
var genericDiseaseTerms = map[string]bool{
	"cancer":     true,
	"tumor":      true,
	"neoplasia":  true,
	"oncologia":  true,
	"oncologico": true,
}

// treatmentFields maps a folded patient-reported treatment type to the
// study's per-treatment yes/no field.
func (s *ClinicalStudy) treatmentField(tipo string) (interface{}, bool) {
	switch tipo {
	case "quimioterapia":
		return s.Quimioterapia, true
	case "radioterapia":
		return s.Radioterapia, true
	case "inmunoterapia":
		return s.Inmunoterapia, true
	case "terapia hormonal":
		return s.TerapiaHormonal, true
	case "terapia dirigida":
		return s.TerapiaDirigida, true
	}
	return nil, false
}

// valueText renders a loosely-typed study field as text for folding.
func valueText(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", v)
	}
}

// parseYesNo folds a loosely-typed answer onto "si"/"no". Other non-empty
// answers pass through folded (e.g. "no relevante").
func parseYesNo(v interface{}) string {
	folded := textutil.Fold(valueText(v))
	switch folded {
	case "":
		return ""
	case "si", "yes", "true", "1":
		return "si"
	case "no", "false", "0":
		return "no"
	}
	return folded
}

// toNumber mirrors a loose numeric coercion: nil for anything that does
// not parse to a finite number.
func toNumber(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

// leadingInt parses an integer prefix ("2 - dolor moderado" -> 2).
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i {
		return 0, false
	}
	n, err := strconv.Atoi(s[:j])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseScale resolves an ordinal self-report answer: numeric answers parse
// directly, known phrasings resolve through the lookup table, anything
// else is unresolved.
func parseScale(value *string, table map[string]int) *int {
	if value == nil {
		return nil
	}
	if n, ok := leadingInt(*value); ok {
		return &n
	}
	if n, ok := table[textutil.Fold(*value)]; ok {
		return &n
	}
	return nil
}

// EcogScore derives the continuous frailty score from the three ordinal
// self-report fields. The score exists only when all three resolve.
func EcogScore(p *Patient) *float64 {
	dolor := parseScale(p.EcogDolor, ecogDolorTable)
	descanso := parseScale(p.EcogDescanso, ecogDescansoTable)
	ayuda := parseScale(p.EcogAyuda, ecogAyudaTable)
	if dolor == nil || descanso == nil || ayuda == nil {
		return nil
	}
	sum := float64(*dolor)*ecogWeightDolor + float64(*descanso)*ecogWeightDescanso + float64(*ayuda)*ecogWeightAyuda
	score := math.Round((sum-1)*100) / 100
	return &score
}

func (s *ClinicalStudy) isRecruiting() bool {
	return textutil.Fold(s.EstadoProtocolo) == Recruiting
}

// diseaseCandidates returns the study's non-empty disease labels.
func (s *ClinicalStudy) diseaseCandidates() []string {
	out := []string{}
	for _, c := range []string{s.Enfermedad, s.TipoEnfermedad} {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *ClinicalStudy) subtypeCandidates() []string {
	out := []string{}
	for _, c := range []string{s.Subtipo, s.SubtipoEnfermedad} {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func isGeneric(label string) bool {
	return genericDiseaseTerms[textutil.FoldCollapse(label)]
}

// matchDisease is the disease hard gate. A patient-supplied disease type
// must exactly equal a non-generic study label; free-text disease falls
// back to bidirectional substring matching. Studies carrying only generic
// labels (or none) pass permissively.
func matchDisease(s *ClinicalStudy, p *Patient) bool {
	candidates := s.diseaseCandidates()
	if len(candidates) == 0 {
		return true
	}

	nonGeneric := []string{}
	for _, c := range candidates {
		if !isGeneric(c) {
			nonGeneric = append(nonGeneric, c)
		}
	}
	if len(nonGeneric) == 0 {
		return true
	}

	if p.TipoEnfermedad != nil {
		want := textutil.FoldCollapse(*p.TipoEnfermedad)
		for _, c := range nonGeneric {
			if textutil.FoldCollapse(c) == want {
				return true
			}
		}
		return false
	}

	if p.Enfermedad == nil {
		return true
	}
	for _, c := range candidates {
		// either side may be the more specific label
		if textutil.ContainsFold(c, *p.Enfermedad) || textutil.ContainsFold(*p.Enfermedad, c) {
			return true
		}
	}
	return false
}

// matchSubtype is the subtype hard gate: permissive when either side has
// no subtype data, bidirectional substring otherwise.
func matchSubtype(s *ClinicalStudy, p *Patient) bool {
	if p.SubtipoEnfermedad == nil {
		return true
	}
	candidates := s.subtypeCandidates()
	if len(candidates) == 0 {
		return true
	}
	for _, c := range candidates {
		if textutil.ContainsFold(c, *p.SubtipoEnfermedad) || textutil.ContainsFold(*p.SubtipoEnfermedad, c) {
			return true
		}
	}
	return false
}

// matchCenter is the center hard gate. An empty scope list passes
// unconditionally; that is the all-centers comparison pass.
func matchCenter(s *ClinicalStudy, centers []string) bool {
	if len(centers) == 0 {
		return true
	}
	studyCenters := map[string]bool{}
	for _, c := range s.CentrosProtocolo {
		studyCenters[textutil.Fold(c)] = true
	}
	for _, c := range centers {
		if studyCenters[textutil.Fold(c)] {
			return true
		}
	}
	return false
}

// yesNoRuleOK enforces a study's yes/no requirement only when it is a
// definite si/no: "no relevante" (or missing) study values always pass,
// and a missing patient answer always passes.
func yesNoRuleOK(studyValue interface{}, patientValue *string) bool {
	study := parseYesNo(studyValue)
	if study == "" || study == "no relevante" {
		return true
	}
	if patientValue == nil {
		return true
	}
	return parseYesNo(*patientValue) == study
}

// evaluate runs the gate sequence for one study and returns the failure
// reasons. Hard gates short-circuit with a single reason; soft rules all
// run and accumulate. An empty result means eligible.
func evaluate(s *ClinicalStudy, p *Patient, centers []string, ecog *float64) []string {
	if !s.isRecruiting() {
		return []string{ReasonNotRecruiting}
	}
	if !matchDisease(s, p) {
		return []string{ReasonDiseaseMismatch}
	}
	if !matchSubtype(s, p) {
		return []string{ReasonSubtypeMismatch}
	}
	if !matchCenter(s, centers) {
		return []string{ReasonCenterMismatch}
	}

	reasons := []string{}
	if !yesNoRuleOK(s.Metastasis, p.Metastasis) {
		reasons = append(reasons, ReasonMetastasis)
	}
	if !yesNoRuleOK(s.Cirugia, p.Cirugia) {
		reasons = append(reasons, ReasonCirugia)
	}
	if !yesNoRuleOK(s.Tratamiento, p.Tratamiento) {
		reasons = append(reasons, ReasonTratamiento)
	}
	for _, tipo := range p.TratamientoTipo {
		folded := textutil.Fold(tipo)
		value, known := s.treatmentField(folded)
		if !known {
			continue
		}
		if parseYesNo(value) == "no" {
			reasons = append(reasons, reasonTreatmentExcluded+folded)
		}
	}
	if ecog != nil {
		min := toNumber(s.EcogMin)
		max := toNumber(s.EcogMax)
		if (min != nil && *ecog < *min) || (max != nil && *ecog > *max) {
			reasons = append(reasons, ReasonEcogOutOfRange)
		}
	}
	return reasons
}

func (s *ClinicalStudy) project() MatchedStudy {
	centros := s.CentrosProtocolo
	if centros == nil {
		centros = []string{}
	}
	return MatchedStudy{
		ID:                s.ID,
		Protocolo:         s.Protocolo,
		Enfermedad:        s.Enfermedad,
		Subtipo:           s.Subtipo,
		FaseProtocolo:     toNumber(s.FaseProtocolo),
		EstadoProtocolo:   s.EstadoProtocolo,
		CodClinicalTrials: s.CodClinicalTrials,
		URLClinicalTrials: s.URLClinicalTrials,
		CentrosProtocolo:  centros,
	}
}

// Match evaluates every catalog study against the patient record with the
// given center scope. It is a pure, deterministic function of its inputs:
// identical snapshots produce identical results and traces.
func Match(catalog []*ClinicalStudy, p *Patient, centers []string) (*MatchResult, *DebugTrace) {
	ecog := EcogScore(p)

	disease := p.TipoEnfermedad
	if disease == nil {
		disease = p.Enfermedad
	}

	matched := []MatchedStudy{}
	traces := make([]StudyTrace, 0, len(catalog))
	counts := map[string]int{}
	for _, s := range catalog {
		reasons := evaluate(s, p, centers, ecog)
		eligible := len(reasons) == 0
		if eligible {
			matched = append(matched, s.project())
		}
		for _, r := range reasons {
			counts[r]++
		}
		traces = append(traces, StudyTrace{
			ID:        s.ID,
			Protocolo: s.Protocolo,
			Eligible:  eligible,
			Reasons:   reasons,
		})
	}

	top := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		top = append(top, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Reason < top[j].Reason
	})

	scope := centers
	if scope == nil {
		scope = []string{}
	}
	treatments := p.TratamientoTipo
	if treatments == nil {
		treatments = []string{}
	}

	result := &MatchResult{
		EcogScore:    ecog,
		TotalMatches: len(matched),
		Studies:      matched,
	}
	debug := &DebugTrace{
		Patient: PatientSnapshot{
			Disease:        disease,
			Subtype:        p.SubtipoEnfermedad,
			Centers:        scope,
			TreatmentTypes: treatments,
			EcogScore:      ecog,
		},
		Evaluated:  len(catalog),
		Studies:    traces,
		TopReasons: top,
	}
	return result, debug
}

// MatchUntraced runs the same eligibility pass as Match without building
// the diagnostic trace. Used for the all-centers pass, where only the
// matched set feeds the cross-center comparison.
func MatchUntraced(catalog []*ClinicalStudy, p *Patient, centers []string) *MatchResult {
	ecog := EcogScore(p)
	matched := []MatchedStudy{}
	for _, s := range catalog {
		if len(evaluate(s, p, centers, ecog)) == 0 {
			matched = append(matched, s.project())
		}
	}
	return &MatchResult{
		EcogScore:    ecog,
		TotalMatches: len(matched),
		Studies:      matched,
	}
}

// CrossCenter derives the trials available elsewhere: all-centers matches
// whose trial centers do not intersect the patient's declared centers.
// With no declared centers the comparison is empty by construction.
func CrossCenter(allCenters *MatchResult, declared []string) *CrossCenterResult {
	out := &CrossCenterResult{
		EcogScore:           allCenters.EcogScore,
		TotalAllCenters:     allCenters.TotalMatches,
		StudiesOtherCenters: []MatchedStudy{},
	}
	if len(declared) == 0 {
		return out
	}
	declaredSet := map[string]bool{}
	for _, c := range declared {
		declaredSet[textutil.Fold(c)] = true
	}
	for _, study := range allCenters.Studies {
		intersects := false
		for _, c := range study.CentrosProtocolo {
			if declaredSet[textutil.Fold(c)] {
				intersects = true
				break
			}
		}
		if !intersects {
			out.StudiesOtherCenters = append(out.StudiesOtherCenters, study)
		}
	}
	return out
}
