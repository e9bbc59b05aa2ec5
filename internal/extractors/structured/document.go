package structured

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Registry types of the external history system.
const (
	typeAdmission      = "INGRESO DE PACIENTE"
	typeConsultation   = "EVOLUCION DE INTERCONSULTA"
	typeOrder          = "INDICACION"
	typeNursingControl = "CONTROL DE ENFERMERIA"
	typeFluidBalance   = "BALANCE HIDROELECTROLITICO"
)

// document is the external-system export. The payload may sit under an
// "ainstein" key or at the top level.
type document struct {
	ID       string   `json:"_id"`
	Ainstein *payload `json:"ainstein"`
	payload
}

type payload struct {
	Episodio *episode `json:"episodio"`
	Historia []entry  `json:"historia"`
}

type episode struct {
	Age           flexInt `json:"paciEdad"`
	Sex           string  `json:"paciSexo"`
	AdmittedAt    string  `json:"inteFechaIngreso"`
	DischargedAt  string  `json:"inteFechaEgreso"`
	StayDays      flexInt `json:"inteDiasEstada"`
	DischargeType string  `json:"taltDescripcion"`
}

type entry struct {
	Type        string       `json:"entrTipoRegistro"`
	AttendedAt  string       `json:"entrFechaAtencion"`
	Progress    string       `json:"entrEvolucion"`
	Motive      string       `json:"entrMotivoConsulta"`
	Diagnoses   []diagnosis  `json:"diagnosticos"`
	Medications []medication `json:"indicacionFarmacologica"`
	Procedures  []procedure  `json:"indicacionProcedimientos"`
	Templates   []template   `json:"plantillas"`
}

type diagnosis struct {
	Description string `json:"diagDescripcion"`
}

type medication struct {
	Drug      string     `json:"geneDescripcion"`
	Dose      flexString `json:"enmeDosis"`
	Unit      string     `json:"tumeDescripcion"`
	Route     string     `json:"meviDescripcion"`
	Frequency string     `json:"mefrDescripcion"`
}

type procedure struct {
	Description string `json:"procDescripcion"`
	Note        string `json:"enprObservacion"`
}

type template struct {
	Group      string     `json:"grupDescripcion"`
	Properties []property `json:"propiedades"`
}

type property struct {
	Label string     `json:"grprDescripcion"`
	Value flexString `json:"engpValor"`
}

func (d *document) body() payload {
	if d.Ainstein != nil && (d.Ainstein.Episodio != nil || len(d.Ainstein.Historia) > 0) {
		return *d.Ainstein
	}
	return d.payload
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil //nolint:nilerr // non-numeric values are treated as absent
	}
	*f = flexInt(n)
	return nil
}

// flexString accepts a JSON string, number or boolean.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*f = ""
		return nil
	}
	*f = flexString(raw)
	return nil
}
