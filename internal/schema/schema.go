// Package schema defines the extraction field schema: field names, value
// types, aliases used to locate values in source text, and criticality.
package schema

import (
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldType is the closed set of value types a field can declare.
type FieldType string

const (
	TypeInteger FieldType = "integer"
	TypeDecimal FieldType = "decimal"
	TypeYear    FieldType = "year"
)

// Year bounds accepted by ParseYear.
const (
	MinYear = 1900
	MaxYear = 2100
)

// ParseText converts human-entered text into the typed value for this
// field type. Returns an error when the text does not parse or, for
// years, falls outside the accepted range.
func (t FieldType) ParseText(s string) (any, error) {
	switch t {
	case TypeInteger:
		return ParseInteger(s)
	case TypeDecimal:
		return ParseDecimal(s)
	case TypeYear:
		return ParseYear(s)
	default:
		return nil, eris.Errorf("schema: unknown field type %q", string(t))
	}
}

// Valid reports whether t is one of the declared field types.
func (t FieldType) Valid() bool {
	switch t {
	case TypeInteger, TypeDecimal, TypeYear:
		return true
	}
	return false
}

// stripSpaces removes every Unicode space rune. Filings and text copied
// from PDFs separate thousands with NBSP or narrow NBSP, not just ASCII
// spaces.
func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ParseInteger parses an integer field value. Thousands separators
// (any space rune) are tolerated.
func ParseInteger(s string) (int64, error) {
	n, err := strconv.ParseInt(stripSpaces(s), 10, 64)
	if err != nil {
		return 0, eris.Errorf("schema: %q is not an integer", s)
	}
	return n, nil
}

// ParseDecimal parses a decimal field value. Space runes are stripped
// and a comma decimal separator is accepted alongside a dot.
func ParseDecimal(s string) (float64, error) {
	cleaned := strings.ReplaceAll(stripSpaces(s), ",", ".")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, eris.Errorf("schema: %q is not a decimal", s)
	}
	return f, nil
}

// ParseYear parses a four-digit year and enforces the 1900-2100 range.
func ParseYear(s string) (int64, error) {
	n, err := ParseInteger(s)
	if err != nil {
		return 0, eris.Errorf("schema: %q is not a year", s)
	}
	if n < MinYear || n > MaxYear {
		return 0, eris.Errorf("schema: year %d out of range %d-%d", n, MinYear, MaxYear)
	}
	return n, nil
}

// FieldSpec is one static schema entry, loaded once at startup and
// immutable thereafter.
type FieldSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Aliases  []string  `yaml:"aliases" json:"aliases"`
	Critical bool      `yaml:"critical" json:"critical"`
}

// Registry is an indexed collection of field specs.
type Registry struct {
	Fields   []FieldSpec
	byName   map[string]*FieldSpec
	critical []string
}

// NewRegistry indexes the given specs. Returns an error for duplicate
// names or unknown field types, since a bad schema must fail at startup.
func NewRegistry(fields []FieldSpec) (*Registry, error) {
	r := &Registry{
		Fields: fields,
		byName: make(map[string]*FieldSpec, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		if f.Name == "" {
			return nil, eris.New("schema: field with empty name")
		}
		if !f.Type.Valid() {
			return nil, eris.Errorf("schema: field %s has unknown type %q", f.Name, string(f.Type))
		}
		if _, dup := r.byName[f.Name]; dup {
			return nil, eris.Errorf("schema: duplicate field %s", f.Name)
		}
		r.byName[f.Name] = f
		if f.Critical {
			r.critical = append(r.critical, f.Name)
		}
	}
	return r, nil
}

// ByName returns the spec for the given field name, or nil.
func (r *Registry) ByName(name string) *FieldSpec {
	return r.byName[name]
}

// Names returns field names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Critical returns the names of critical fields in declaration order.
func (r *Registry) Critical() []string {
	return r.critical
}

// IsCritical reports whether the named field is critical. Unknown
// fields are not critical.
func (r *Registry) IsCritical(name string) bool {
	f := r.byName[name]
	return f != nil && f.Critical
}

// LoadFile reads a field schema from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	var doc struct {
		Fields []FieldSpec `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "schema: parse %s", path)
	}
	if len(doc.Fields) == 0 {
		return nil, eris.Errorf("schema: %s defines no fields", path)
	}
	return NewRegistry(doc.Fields)
}
