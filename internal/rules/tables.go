package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

//go:embed tables/default.toml
var defaultTables []byte

// Tables is the versioned rule data. Terms are plain words; matching folds
// case and accents.
type Tables struct {
	Version string `toml:"version"`

	Death struct {
		Phrases        []string `toml:"phrases"`
		DischargeCodes []string `toml:"discharge_codes"`
		Window         int      `toml:"window"`
	} `toml:"death"`

	Contradictions struct {
		Phrases []string `toml:"phrases"`
	} `toml:"contradictions"`

	Medication struct {
		ParenteralRoutes []string            `toml:"parenteral_routes"`
		Chronic          map[string][]string `toml:"chronic"`
		Acute            map[string][]string `toml:"acute"`
	} `toml:"medication"`

	Events struct {
		LabKeywords     []string `toml:"lab_keywords"`
		NursingKeywords []string `toml:"nursing_keywords"`
	} `toml:"events"`

	Specialties map[string]string `toml:"specialties"`
}

// DefaultTables returns the embedded rule tables.
func DefaultTables() (*Tables, error) {
	return ParseTables(defaultTables)
}

// LoadTables reads rule tables from a TOML file.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule tables: %w", err)
	}
	return ParseTables(data)
}

// ParseTables decodes and checks rule tables.
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse rule tables: %w", err)
	}
	if t.Version == "" {
		return nil, fmt.Errorf("parse rule tables: missing version")
	}
	if len(t.Death.Phrases) == 0 {
		return nil, fmt.Errorf("parse rule tables %s: no death phrases", t.Version)
	}
	if t.Death.Window <= 0 {
		t.Death.Window = 150
	}
	return &t, nil
}

// flatten merges a family map into one term list with a stable order.
func flatten(families map[string][]string) []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		out = append(out, families[name]...)
	}
	return out
}
