package intake

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/filtroclientes/api/internal/studies"
	"github.com/filtroclientes/api/internal/textutil"
)

// centroSynonyms corrects known misspellings of center names to their
// canonical codes. Loaded once; never mutated at runtime.
var centroSynonyms = map[string]string{
	"faizer":  "pfizer",
	"pfaizer": "pfizer",
}

var unicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

// NormalizedIntake is the canonical record derived from a raw submission.
// Absent or empty text fields are null, never empty strings; list fields
// are empty lists, never null. Field names are external contract.
type NormalizedIntake struct {
	Derivador          *string  `bson:"derivador" json:"derivador"`
	Enfermedad         *string  `bson:"enfermedad" json:"enfermedad"`
	TipoEnfermedad     *string  `bson:"tipo_enfermedad" json:"tipo_enfermedad"`
	SubtipoEnfermedad  *string  `bson:"subtipo_enfermedad" json:"subtipo_enfermedad"`
	SubtipoClave       *string  `bson:"subtipo_clave" json:"subtipo_clave"`
	Sexo               *string  `bson:"sexo" json:"sexo"`
	Region             *string  `bson:"region" json:"region"`
	Ciudad             *string  `bson:"ciudad" json:"ciudad"`
	Metastasis         *string  `bson:"metastasis" json:"metastasis"`
	Cirugia            *string  `bson:"cirugia" json:"cirugia"`
	CirugiaFecha       *string  `bson:"cirugia_fecha" json:"cirugia_fecha"`
	CirugiaDescripcion *string  `bson:"cirugia_descripcion" json:"cirugia_descripcion"`
	Tratamiento        *string  `bson:"tratamiento" json:"tratamiento"`
	TratamientoTipo    []string `bson:"tratamiento_tipo" json:"tratamiento_tipo"`
	EcogDolor          *string  `bson:"ecog_dolor" json:"ecog_dolor"`
	EcogDescanso       *string  `bson:"ecog_descanso" json:"ecog_descanso"`
	EcogAyuda          *string  `bson:"ecog_ayuda" json:"ecog_ayuda"`
	ContactoNombre     *string  `bson:"contacto_nombre" json:"contacto_nombre"`
	ContactoEmail      *string  `bson:"contacto_email" json:"contacto_email"`
	ContactoTelefono   *string  `bson:"contacto_telefono" json:"contacto_telefono"`
	Consentimiento     *string  `bson:"consentimiento" json:"consentimiento"`
	EntryID            *float64 `bson:"entry_id" json:"entry_id"`
	FormID             *string  `bson:"form_id" json:"form_id"`
	EntryDate          *string  `bson:"entry_date" json:"entry_date"`
	UserID             *float64 `bson:"user_id" json:"user_id"`
	UserRef            *string  `bson:"user_ref" json:"user_ref"`
	UserIP             *string  `bson:"user_ip" json:"user_ip"`
	Centro             []string `bson:"centro" json:"centro"`
}

// Patient maps the canonical record onto the matcher's input shape.
func (n *NormalizedIntake) Patient() *studies.Patient {
	return &studies.Patient{
		Enfermedad:        n.Enfermedad,
		TipoEnfermedad:    n.TipoEnfermedad,
		SubtipoEnfermedad: n.SubtipoEnfermedad,
		Centro:            n.Centro,
		Metastasis:        n.Metastasis,
		Cirugia:           n.Cirugia,
		Tratamiento:       n.Tratamiento,
		TratamientoTipo:   n.TratamientoTipo,
		EcogDolor:         n.EcogDolor,
		EcogDescanso:      n.EcogDescanso,
		EcogAyuda:         n.EcogAyuda,
	}
}

// decodeEscapedText resolves literal \uXXXX sequences and unescapes
// slashes; form exports double-escape both.
func decodeEscapedText(s string) string {
	s = unicodeEscape.ReplaceAllStringFunc(s, func(m string) string {
		code, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(code))
	})
	return strings.ReplaceAll(s, `\/`, "/")
}

func cleanText(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return textutil.NFC(strings.TrimSpace(decodeEscapedText(s)))
}

func toNullableString(v interface{}) *string {
	cleaned, ok := cleanText(v).(string)
	if !ok || cleaned == "" {
		return nil
	}
	return &cleaned
}

func toNullableNumber(v interface{}) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return &t
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		if t == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	}
	return nil
}

// toUserRef keeps a non-numeric string user_id as an external reference.
// Numeric-looking values mean a plain numeric id, so the reference is null.
func toUserRef(v interface{}) *string {
	s := toNullableString(v)
	if s == nil {
		// non-string values are numeric ids or absent
		return nil
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(*s), 64); err == nil {
		return nil
	}
	return s
}

func splitCSV(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		out := []string{}
		for _, item := range t {
			if s := toNullableString(item); s != nil {
				out = append(out, *s)
			}
		}
		return out
	case string:
		out := []string{}
		for _, part := range strings.Split(t, ",") {
			if s := toNullableString(part); s != nil {
				out = append(out, *s)
			}
		}
		return out
	}
	return []string{}
}

func splitCSVLower(v interface{}) []string {
	parts := splitCSV(v)
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return parts
}

// normalizeCentro lowercases each center and applies the synonym table,
// preserving order.
func normalizeCentro(v interface{}) []string {
	parts := splitCSVLower(v)
	for i, p := range parts {
		if canonical, ok := centroSynonyms[p]; ok {
			parts[i] = canonical
		}
	}
	return parts
}

// Normalize transforms a raw submission into the canonical record. It is a
// pure function: malformed fields degrade to nulls, never to errors.
func Normalize(payload *Payload) *NormalizedIntake {
	// first subtipo_* key with a non-empty string value wins; the key name
	// is retained for traceability of which dynamic field fired
	var subtipo, subtipoClave *string
	for _, key := range payload.Keys() {
		if !strings.HasPrefix(key, "subtipo_") {
			continue
		}
		value, _ := payload.Get(key)
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		subtipo = toNullableString(s)
		k := key
		subtipoClave = &k
		break
	}

	get := func(key string) interface{} {
		v, _ := payload.Get(key)
		return v
	}

	return &NormalizedIntake{
		Derivador:          toNullableString(get("derivador")),
		Enfermedad:         toNullableString(get("enfermedad")),
		TipoEnfermedad:     toNullableString(get("tipo_enfermedad")),
		SubtipoEnfermedad:  subtipo,
		SubtipoClave:       subtipoClave,
		Sexo:               toNullableString(get("sexo")),
		Region:             toNullableString(get("region")),
		Ciudad:             toNullableString(get("ciudad")),
		Metastasis:         toNullableString(get("metastasis")),
		Cirugia:            toNullableString(get("cirugia")),
		CirugiaFecha:       toNullableString(get("cirugia_fecha")),
		CirugiaDescripcion: toNullableString(get("cirugia_descripcion")),
		Tratamiento:        toNullableString(get("tratamiento")),
		TratamientoTipo:    splitCSVLower(get("tratamiento_tipo")),
		EcogDolor:          toNullableString(get("ecog_dolor")),
		EcogDescanso:       toNullableString(get("ecog_descanso")),
		EcogAyuda:          toNullableString(get("ecog_ayuda")),
		ContactoNombre:     toNullableString(get("contacto_nombre")),
		ContactoEmail:      toNullableString(get("contacto_email")),
		ContactoTelefono:   toNullableString(get("contacto_telefono")),
		Consentimiento:     toNullableString(get("consentimiento")),
		EntryID:            toNullableNumber(get("entry_id")),
		FormID:             toNullableString(get("form_id")),
		EntryDate:          toNullableString(get("entry_date")),
		UserID:             toNullableNumber(get("user_id")),
		UserRef:            toUserRef(get("user_id")),
		UserIP:             toNullableString(get("user_ip")),
		Centro:             normalizeCentro(get("centro")),
	}
}
