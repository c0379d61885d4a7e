package studies

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func recruitingStudy(id, protocolo string) *ClinicalStudy {
	return &ClinicalStudy{
		ID:               id,
		Protocolo:        protocolo,
		Enfermedad:       "Cáncer de Pulmón",
		Subtipo:          "células no pequeñas",
		CentrosProtocolo: []string{"saga", "pfizer"},
		EstadoProtocolo:  "Reclutando",
	}
}

func ecogPatient() *Patient {
	return &Patient{
		EcogDolor:    strPtr("No tengo dolor"),
		EcogDescanso: strPtr("Solo en la noche"),
		EcogAyuda:    strPtr("No necesito ayuda"),
	}
}

func TestEcogScore(t *testing.T) {
	// (1*0.25 + 2*0.30 + 1*0.45) - 1 = 0.3
	score := EcogScore(ecogPatient())
	require.NotNil(t, score)
	require.InDelta(t, 0.3, *score, 1e-9)
}

func TestEcogScoreMissingSubScore(t *testing.T) {
	p := ecogPatient()
	p.EcogAyuda = nil
	require.Nil(t, EcogScore(p))

	p = ecogPatient()
	p.EcogDescanso = strPtr("a veces") // not a known phrasing
	require.Nil(t, EcogScore(p))
}

func TestEcogScoreNumericAnswers(t *testing.T) {
	p := &Patient{
		EcogDolor:    strPtr("4"),
		EcogDescanso: strPtr("4 - la mayor parte del día"),
		EcogAyuda:    strPtr("4"),
	}
	score := EcogScore(p)
	require.NotNil(t, score)
	require.InDelta(t, 3.0, *score, 1e-9)
}

func TestNotRecruitingNeverEligible(t *testing.T) {
	s := recruitingStudy("s1", "P-001")
	s.EstadoProtocolo = "Cerrado"
	p := &Patient{Enfermedad: strPtr("cáncer de pulmón"), Centro: []string{"saga"}}

	result, debug := Match([]*ClinicalStudy{s}, p, p.Centro)
	require.Equal(t, 0, result.TotalMatches)
	require.Equal(t, []string{ReasonNotRecruiting}, debug.Studies[0].Reasons)
}

func TestDiseaseGateSubstringBothDirections(t *testing.T) {
	s := recruitingStudy("s1", "P-001")
	p := &Patient{Enfermedad: strPtr("pulmón")} // patient less specific

	result, _ := Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches)

	p = &Patient{Enfermedad: strPtr("cáncer de pulmón avanzado")} // patient more specific
	result, _ = Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches)

	p = &Patient{Enfermedad: strPtr("mama")}
	result, debug := Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 0, result.TotalMatches)
	require.Equal(t, []string{ReasonDiseaseMismatch}, debug.Studies[0].Reasons)
}

func TestDiseaseGateSpecificTypeExactMatch(t *testing.T) {
	s := recruitingStudy("s1", "P-001")
	s.Enfermedad = "cáncer" // generic, not a valid target for a specific type
	s.TipoEnfermedad = "Cáncer  de Pulmón"

	p := &Patient{TipoEnfermedad: strPtr("cáncer de pulmón")}
	result, _ := Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches, "whitespace-collapsed exact match expected")

	p = &Patient{TipoEnfermedad: strPtr("cáncer de pulmón metastásico")}
	result, _ = Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 0, result.TotalMatches, "substring is not enough for a specific type")
}

func TestDiseaseGateAllGenericPassesPermissively(t *testing.T) {
	s := recruitingStudy("s1", "P-001")
	s.Enfermedad = "Cáncer"
	s.Subtipo = ""

	p := &Patient{TipoEnfermedad: strPtr("cáncer de mama")}
	result, _ := Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches)
}

func TestSubtypeGate(t *testing.T) {
	s := recruitingStudy("s1", "P-001")

	// patient without subtype passes
	p := &Patient{Enfermedad: strPtr("pulmón")}
	result, _ := Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches)

	// mismatching subtype fails
	p = &Patient{Enfermedad: strPtr("pulmón"), SubtipoEnfermedad: strPtr("células pequeñas y algo más")}
	result, debug := Match([]*ClinicalStudy{s}, p, nil)
	if result.TotalMatches != 0 {
		t.Fatalf("expected subtype mismatch, got %+v", debug.Studies)
	}

	// study without subtype data passes permissively
	s.Subtipo = ""
	p = &Patient{Enfermedad: strPtr("pulmón"), SubtipoEnfermedad: strPtr("lobulillar")}
	result, _ = Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches)
}

func TestCenterGate(t *testing.T) {
	s := recruitingStudy("s1", "P-001")
	p := &Patient{Enfermedad: strPtr("pulmón")}

	result, debug := Match([]*ClinicalStudy{s}, p, []string{"bh"})
	require.Equal(t, 0, result.TotalMatches)
	require.Equal(t, []string{ReasonCenterMismatch}, debug.Studies[0].Reasons)

	// empty scope passes unconditionally (all-centers pass)
	result, _ = Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches)
}

func TestSoftRulesAccumulate(t *testing.T) {
	s := recruitingStudy("s1", "P-001")
	s.Metastasis = "no"
	s.Cirugia = "si"
	s.Quimioterapia = "no"
	s.EcogMin = 0
	s.EcogMax = 0.5

	p := ecogPatient() // score 0.3, inside bounds
	p.Enfermedad = strPtr("pulmón")
	p.Metastasis = strPtr("sí")
	p.Cirugia = strPtr("no")
	p.TratamientoTipo = []string{"Quimioterapia"}

	result, debug := Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 0, result.TotalMatches)
	require.ElementsMatch(t, []string{
		ReasonMetastasis,
		ReasonCirugia,
		"treatment_type_excluded:quimioterapia",
	}, debug.Studies[0].Reasons)
}

func TestYesNoRuleTolerance(t *testing.T) {
	// "no relevante" study value always passes
	require.True(t, yesNoRuleOK("No relevante", strPtr("si")))
	// missing patient answer always passes
	require.True(t, yesNoRuleOK("si", nil))
	// typed variants fold onto si/no
	require.True(t, yesNoRuleOK(true, strPtr("sí")))
	require.True(t, yesNoRuleOK("0", strPtr("no")))
	require.False(t, yesNoRuleOK("si", strPtr("no")))
}

func TestEcogBounds(t *testing.T) {
	s := recruitingStudy("s1", "P-001")
	s.EcogMin = "0"
	s.EcogMax = 1.5

	p := ecogPatient() // 0.3
	p.Enfermedad = strPtr("pulmón")
	result, _ := Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches)

	p.EcogAyuda = strPtr("necesito ayuda") // raises score to 1.2
	result, debug := Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches, "1.2 still within max 1.5: %+v", debug.Studies)

	s.EcogMax = 1
	result, debug = Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 0, result.TotalMatches)
	require.Contains(t, debug.Studies[0].Reasons, ReasonEcogOutOfRange)

	// absent bounds impose no constraint
	s.EcogMin = nil
	s.EcogMax = nil
	result, _ = Match([]*ClinicalStudy{s}, p, nil)
	require.Equal(t, 1, result.TotalMatches)
}

func TestMatchIdempotent(t *testing.T) {
	catalog := []*ClinicalStudy{
		recruitingStudy("s1", "P-001"),
		recruitingStudy("s2", "P-002"),
	}
	catalog[1].EstadoProtocolo = "cerrado"
	p := ecogPatient()
	p.Enfermedad = strPtr("pulmón")
	p.Centro = []string{"saga"}

	r1, d1 := Match(catalog, p, p.Centro)
	r2, d2 := Match(catalog, p, p.Centro)
	require.Equal(t, r1, r2)
	require.Equal(t, d1.TopReasons, d2.TopReasons)
	require.Equal(t, d1.Studies, d2.Studies)
}

func TestTopReasonsSorted(t *testing.T) {
	catalog := []*ClinicalStudy{}
	for i := 0; i < 3; i++ {
		s := recruitingStudy("s", "P")
		s.EstadoProtocolo = "cerrado"
		catalog = append(catalog, s)
	}
	mismatch := recruitingStudy("s4", "P-004")
	mismatch.Enfermedad = "melanoma"
	catalog = append(catalog, mismatch)

	p := &Patient{Enfermedad: strPtr("pulmón")}
	_, debug := Match(catalog, p, nil)
	require.Equal(t, []ReasonCount{
		{Reason: ReasonNotRecruiting, Count: 3},
		{Reason: ReasonDiseaseMismatch, Count: 1},
	}, debug.TopReasons)
}

func TestMatchUntracedAgreesWithMatch(t *testing.T) {
	here := recruitingStudy("s1", "P-001")
	elsewhere := recruitingStudy("s2", "P-002")
	elsewhere.CentrosProtocolo = []string{"bh"}
	catalog := []*ClinicalStudy{here, elsewhere}

	p := ecogPatient()
	p.Enfermedad = strPtr("pulmón")

	traced, _ := Match(catalog, p, nil)
	untraced := MatchUntraced(catalog, p, nil)
	require.Equal(t, traced, untraced)
}

func TestCrossCenterPartition(t *testing.T) {
	here := recruitingStudy("s1", "P-001")
	elsewhere := recruitingStudy("s2", "P-002")
	elsewhere.CentrosProtocolo = []string{"bh"}
	catalog := []*ClinicalStudy{here, elsewhere}

	p := &Patient{Enfermedad: strPtr("pulmón"), Centro: []string{"saga"}}

	scoped, _ := Match(catalog, p, p.Centro)
	all, _ := Match(catalog, p, nil)
	cross := CrossCenter(all, p.Centro)

	require.Equal(t, 1, scoped.TotalMatches)
	require.Equal(t, 2, cross.TotalAllCenters)
	require.Len(t, cross.StudiesOtherCenters, 1)
	require.Equal(t, "s2", cross.StudiesOtherCenters[0].ID)

	// partition: nothing in the scoped set appears in the other-centers set
	for _, m := range scoped.Studies {
		for _, o := range cross.StudiesOtherCenters {
			require.NotEqual(t, m.ID, o.ID)
		}
	}

	// the all-centers count serializes under the same name as the scoped one
	raw, err := json.Marshal(cross)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"total_matches":2`)
}

func TestCrossCenterEmptyDeclared(t *testing.T) {
	s := recruitingStudy("s1", "P-001")
	p := &Patient{Enfermedad: strPtr("pulmón")}
	all, _ := Match([]*ClinicalStudy{s}, p, nil)

	cross := CrossCenter(all, nil)
	require.Empty(t, cross.StudiesOtherCenters)
	require.Equal(t, 1, cross.TotalAllCenters)
}
