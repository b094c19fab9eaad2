package schema

import (
	"encoding/json"
	"strings"
	"time"
)

// DraftVersion is the current shape version of persisted draft documents.
const DraftVersion = 2

// Section is the field map of one named draft section.
type Section map[string]any

// DraftRecord holds every answer collected for one listing-in-progress.
// It is owned by a single wizard controller for the duration of a session.
type DraftRecord struct {
	ID        string             `json:"id,omitempty"`
	Version   int                `json:"version"`
	Sections  map[string]Section `json:"sections"`
	LastStep  string             `json:"lastStep,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt,omitempty"`
}

// NewDraftRecord returns an empty draft at the current version.
func NewDraftRecord(id string) *DraftRecord {
	return &DraftRecord{
		ID:       id,
		Version:  DraftVersion,
		Sections: make(map[string]Section),
	}
}

// Field returns the value stored at section.field.
func (d *DraftRecord) Field(section, field string) (any, bool) {
	if d == nil || d.Sections == nil {
		return nil, false
	}
	sec, ok := d.Sections[section]
	if !ok || sec == nil {
		return nil, false
	}
	v, ok := sec[field]
	return v, ok
}

// String returns the value at section.field if it is a string, or "".
func (d *DraftRecord) String(section, field string) string {
	v, _ := d.Field(section, field)
	s, _ := v.(string)
	return s
}

// SetField writes value at section.field, creating the section if needed.
func (d *DraftRecord) SetField(section, field string, value any) {
	if d.Sections == nil {
		d.Sections = make(map[string]Section)
	}
	sec, ok := d.Sections[section]
	if !ok || sec == nil {
		sec = make(Section)
		d.Sections[section] = sec
	}
	sec[field] = value
}

// ClearField removes section.field and drops the section once it is empty.
// It reports whether a value was removed.
func (d *DraftRecord) ClearField(section, field string) bool {
	sec, ok := d.Sections[section]
	if !ok {
		return false
	}
	if _, ok := sec[field]; !ok {
		return false
	}
	delete(sec, field)
	if len(sec) == 0 {
		delete(d.Sections, section)
	}
	return true
}

// HasSection reports whether the named section object exists.
func (d *DraftRecord) HasSection(name string) bool {
	if d == nil || d.Sections == nil {
		return false
	}
	_, ok := d.Sections[name]
	return ok
}

// SetSection attaches a whole section object, replacing any previous one.
func (d *DraftRecord) SetSection(name string, sec Section) {
	if d.Sections == nil {
		d.Sections = make(map[string]Section)
	}
	d.Sections[name] = sec
}

// SectionNames returns the names of populated sections.
func (d *DraftRecord) SectionNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.Sections))
	for k := range d.Sections {
		names = append(names, k)
	}
	return names
}

// Env returns the sections as a plain map for expression evaluation.
func (d *DraftRecord) Env() map[string]any {
	env := make(map[string]any)
	if d == nil {
		return env
	}
	for name, sec := range d.Sections {
		m := make(map[string]any, len(sec))
		for k, v := range sec {
			m[k] = v
		}
		env[name] = m
	}
	return env
}

// Clone returns a deep copy of the draft. Values are copied through JSON
// so callers never share nested maps or slices with the owner.
func (d *DraftRecord) Clone() *DraftRecord {
	if d == nil {
		return nil
	}
	cp := &DraftRecord{
		ID:        d.ID,
		Version:   d.Version,
		LastStep:  d.LastStep,
		UpdatedAt: d.UpdatedAt,
		Sections:  make(map[string]Section, len(d.Sections)),
	}
	for name, sec := range d.Sections {
		cs := make(Section, len(sec))
		for k, v := range sec {
			cs[k] = cloneValue(v)
		}
		cp.Sections[name] = cs
	}
	return cp
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, x := range val {
			m[k] = cloneValue(x)
		}
		return m
	case Section:
		m := make(Section, len(val))
		for k, x := range val {
			m[k] = cloneValue(x)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, x := range val {
			s[i] = cloneValue(x)
		}
		return s
	case []string:
		s := make([]string, len(val))
		copy(s, val)
		return s
	case *Address:
		if val == nil {
			return val
		}
		a := *val
		return &a
	default:
		return v
	}
}

// Address is the value captured by address-input steps.
type Address struct {
	Line1      string   `json:"line1"`
	Line2      string   `json:"line2,omitempty"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	PostalCode string   `json:"postalCode"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// Valid reports whether the address has enough parts to identify a parcel.
func (a Address) Valid() bool {
	return strings.TrimSpace(a.Line1) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.PostalCode) != ""
}

// AddressFrom interprets an answer value as an Address. Maps decoded from
// JSON are accepted alongside Address values.
func AddressFrom(v any) (Address, bool) {
	switch val := v.(type) {
	case Address:
		return val, true
	case *Address:
		if val == nil {
			return Address{}, false
		}
		return *val, true
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return Address{}, false
		}
		var a Address
		if err := json.Unmarshal(b, &a); err != nil {
			return Address{}, false
		}
		return a, true
	}
	return Address{}, false
}
