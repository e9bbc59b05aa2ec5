// Package keyvalue extracts clinical content from generic JSON objects
// whose fields follow common Spanish or English key names.
package keyvalue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/extractors/scan"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Key aliases, checked in order.
var (
	admissionKeys = []string{"fecha_ingreso", "fecha_admision", "admission_date"}
	dischargeKeys = []string{"fecha_egreso", "fecha_alta", "discharge_date"}
	typeKeys      = []string{"tipo_alta", "discharge_type"}
	ageKeys       = []string{"edad", "age"}
	sexKeys       = []string{"sexo", "sex"}
	motiveKeys    = []string{"motivo_consulta", "motivo_ingreso", "admission_reason"}
	diagnosisKeys = []string{"diagnosticos", "diagnostico", "diagnoses"}
	drugKeys      = []string{"farmaco", "nombre", "name"}
	textKeys      = []string{"text", "texto", "evolucion", "historia", "historia_clinica", "narrative", "notas", "notes", "resumen", "content"}
)

// Extractor handles key_value episodes.
type Extractor struct {
	scanner *scan.Scanner
}

// New creates a key-value extractor.
func New(scanner *scan.Scanner) *Extractor {
	return &Extractor{scanner: scanner}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "keyvalue"
}

// SourceTypes returns the source types this extractor handles.
func (e *Extractor) SourceTypes() []domain.SourceType {
	return []domain.SourceType{domain.SourceKeyValue}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 70
}

// Extract decodes the object and reads known keys. Anything the keys do
// not cover is scanned from the narrative text.
func (e *Extractor) Extract(_ context.Context, episode *domain.ClinicalEpisode) (*domain.ExtractedContent, error) {
	if episode == nil {
		return nil, domain.ErrInvalidInput
	}
	var root map[string]any
	if err := json.Unmarshal(episode.Raw, &root); err != nil {
		return nil, fmt.Errorf("decode key-value episode: %w", err)
	}
	fields := root
	if st, ok := root["structured"].(map[string]any); ok {
		fields = st
	}

	content := &domain.ExtractedContent{
		EpisodeID:         episode.ID,
		SourceType:        episode.SourceType,
		Text:              longestText(root, fields),
		DischargeTypeCode: str(fields, typeKeys...),
		AdmissionReason:   str(fields, motiveKeys...),
		Diagnoses:         strs(fields, diagnosisKeys...),
		Confidence:        domain.ConfidenceFull,
	}

	content.Patient.Sex = scan.NormalizeSex(str(fields, sexKeys...))
	if n, err := strconv.Atoi(str(fields, ageKeys...)); err == nil {
		content.Patient.Age = n
	}
	if d, _, ok := rules.ParseDateTime(str(fields, admissionKeys...)); ok {
		content.Patient.AdmissionDate = d
	}
	if d, _, ok := rules.ParseDateTime(str(fields, dischargeKeys...)); ok {
		content.Patient.DischargeDate = d
	}

	for _, obj := range objects(fields, "medicacion") {
		m := domain.MedicationMention{
			Name:               str(obj, drugKeys...),
			Dose:               str(obj, "dosis", "dose"),
			Route:              str(obj, "via", "route"),
			Frequency:          str(obj, "frecuencia", "frequency"),
			DeclaredProvenance: rules.ParseProvenance(str(obj, "tipo", "provenance")),
		}
		if m.Name == "" {
			continue
		}
		m.RawContext = strings.Join(strings.Fields(m.Name+" "+m.Dose+" "+m.Route+" "+m.Frequency), " ")
		content.Medications = append(content.Medications, m)
	}

	content.Events = append(content.Events, events(fields, "procedimientos", domain.EventProcedure)...)
	content.Events = append(content.Events, events(fields, "interconsultas", domain.EventConsultation)...)
	content.Events = append(content.Events, events(fields, "laboratorios", domain.EventLab)...)

	e.scanner.Fill(content)
	return content, nil
}

func events(fields map[string]any, key string, kind domain.EventKind) []domain.ClinicalEvent {
	var out []domain.ClinicalEvent
	for _, obj := range objects(fields, key) {
		ev := domain.ClinicalEvent{
			Kind:        kind,
			Description: str(obj, "descripcion", "description"),
			Specialty:   str(obj, "especialidad", "specialty"),
		}
		if d, clock, ok := rules.ParseDateTime(str(obj, "fecha", "date")); ok {
			ev.Date, ev.Time = d, clock
		}
		if h := str(obj, "hora", "time"); h != "" {
			if t, ok := clockTime(h); ok {
				ev.Time = t
			}
		}
		out = append(out, ev)
	}
	return out
}

func clockTime(s string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	if len(parts) < 2 {
		return "", false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

// longestText picks the longest known narrative field.
func longestText(maps ...map[string]any) string {
	best := ""
	for _, m := range maps {
		for _, k := range textKeys {
			if v := str(m, k); len(v) > len(best) {
				best = v
			}
		}
	}
	return best
}

// str returns the first non-empty scalar under any of the keys.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// strs returns a string list under any of the keys. A single string is
// split on semicolons.
func strs(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case []any:
			var out []string
			for _, item := range v {
				switch it := item.(type) {
				case string:
					if s := strings.TrimSpace(it); s != "" {
						out = append(out, s)
					}
				case map[string]any:
					if s := str(it, "descripcion", "description", "nombre", "name"); s != "" {
						out = append(out, s)
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			var out []string
			for _, s := range strings.Split(v, ";") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func objects(m map[string]any, key string) []map[string]any {
	list, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
