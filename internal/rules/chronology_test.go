package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

func TestChronology_GroupsUntimedLabs(t *testing.T) {
	e := newTestEngine(t)
	names := []string{"Hemograma", "Urea", "Creatinina", "Ionograma", "Hepatograma"}
	var events []domain.ClinicalEvent
	for _, n := range names {
		events = append(events, domain.ClinicalEvent{Kind: domain.EventLab, Date: day(2025, 3, 10), Description: n})
	}

	chron := e.Chronology(events)

	require.Len(t, chron.Procedures, 1)
	group := chron.Procedures[0]
	assert.Equal(t, "10/03/2025 (hora no registrada) - Laboratorio (5 estudios)", group.Render())
	assert.Equal(t, 5, group.Count)
	assert.Equal(t, names, group.Details)
	assert.Len(t, chron.LabDetails, 5)
}

func TestChronology_OrderingAndDedupe(t *testing.T) {
	e := newTestEngine(t)
	events := []domain.ClinicalEvent{
		{Kind: domain.EventProcedure, Date: day(2025, 3, 11), Description: "Ecografía"},
		{Kind: domain.EventProcedure, Date: day(2025, 3, 10), Description: "Radiografía"},
		{Kind: domain.EventProcedure, Date: day(2025, 3, 10), Time: "18:00", Description: "TAC"},
		{Kind: domain.EventProcedure, Date: day(2025, 3, 10), Time: "08:00", Description: "ECG"},
		{Kind: domain.EventProcedure, Date: day(2025, 3, 10), Time: "08:00", Description: "ECG"},
		{Kind: domain.EventLab, Date: day(2025, 3, 10), Time: "07:00", Description: "Gasometría"},
		{Kind: domain.EventProcedure, Description: "Sin fecha"},
	}

	chron := e.Chronology(events)

	var got []string
	for _, p := range chron.Procedures {
		got = append(got, p.Render())
	}
	assert.Equal(t, []string{
		"10/03/2025 07:00 - Gasometría",
		"10/03/2025 08:00 - ECG",
		"10/03/2025 18:00 - TAC",
		"10/03/2025 (hora no registrada) - Radiografía",
		"11/03/2025 (hora no registrada) - Ecografía",
	}, got)
	assert.True(t, IsSorted(chron.Procedures))
	require.Len(t, chron.Rejected, 1)
	assert.Equal(t, "Sin fecha", chron.Rejected[0].Description)
}

func TestGroupLabs_SingleKeepsName(t *testing.T) {
	out := GroupLabs([]domain.SectionItem{{Date: day(2025, 3, 10), Description: "Hemograma"}})

	require.Len(t, out, 1)
	assert.Equal(t, "Hemograma", out[0].Description)
	assert.Zero(t, out[0].Count)
	assert.Nil(t, out[0].Details)
}

func TestDedupeItems(t *testing.T) {
	items := []domain.SectionItem{
		{Date: day(2025, 3, 10), Description: "TAC"},
		{Date: day(2025, 3, 10), Description: "tac "},
		{Date: day(2025, 3, 10), Time: "10:00", Description: "TAC"},
	}

	out, removed := DedupeItems(items)

	assert.Len(t, out, 2)
	assert.Len(t, removed, 1)
}

func TestParseItem(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name      string
		line      string
		date      string
		time      string
		specialty string
		desc      string
	}{
		{"rendered", "29/07/2025 10:00 - Cardiología: ajuste de dosis", "29/07/2025", "10:00", "Cardiología", "ajuste de dosis"},
		{"bracket short date", "- [28/07] Infectología: rota antibiótico", "28/07/2025", "", "Infectología", "rota antibiótico"},
		{"untimed rendered", "27/07/2025 (hora no registrada) - Nefrología: control", "27/07/2025", "", "Nefrología", "control"},
		{"undated", "Cardiología: evaluación", "", "", "Cardiología", "evaluación"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := e.ParseItem(tt.line, 2025)
			if tt.date == "" {
				assert.False(t, item.HasDate())
			} else {
				assert.Equal(t, tt.date, item.Date.Format(domain.DisplayDateLayout))
			}
			assert.Equal(t, tt.time, item.Time)
			assert.Equal(t, tt.specialty, item.Specialty)
			assert.Equal(t, tt.desc, item.Description)
		})
	}
}

func TestParseItem_RoundTrip(t *testing.T) {
	e := newTestEngine(t)
	item := domain.SectionItem{Date: day(2025, 7, 29), Time: "10:00", Description: "ajuste", Specialty: "Cardiología"}

	parsed := e.ParseItem(item.Render(), 0)

	assert.Equal(t, item.Render(), parsed.Render())
}

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		in    string
		date  string
		clock string
		ok    bool
	}{
		{"2025-07-29T22:00:00", "29/07/2025", "22:00", true},
		{"2025-07-29T22:00:00Z", "29/07/2025", "22:00", true},
		{"2025-07-29 08:15:00", "29/07/2025", "08:15", true},
		{"2025-07-29", "29/07/2025", "", true},
		{"29/07/2025", "29/07/2025", "", true},
		{"29/07/2025 10:30", "29/07/2025", "10:30", true},
		{"ayer", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			date, clock, ok := ParseDateTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.date, date.Format(domain.DisplayDateLayout))
				assert.Equal(t, tt.clock, clock)
			}
		})
	}
}
