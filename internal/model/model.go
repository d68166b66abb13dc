// ABOUTME: Model metadata and record abstractions for admin-registered data
// ABOUTME: Defines Meta, Field, Record, Row, and the lazy QuerySet sequence

package model

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier is returned when a table or column name is not a plain SQL identifier.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// identRegex restricts table and column names to plain SQL identifiers
var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Field describes one declared column of a model
type Field struct {
	Name string
	Type string // declared SQL type, informational only
}

// Meta describes a model type registered with the admin
type Meta struct {
	AppLabel    string
	ObjectName  string // e.g. "Foo"
	Table       string
	PK          string // primary key column, defaults to "id"
	Fields      []Field
	Ordering    []string // column names, "-" prefix for descending
	VerboseName string
	Description string // markdown shown on the changelist
}

// ModelName returns the lowercased object name.
func (m *Meta) ModelName() string {
	return strings.ToLower(m.ObjectName)
}

// Label returns "app_label.model_name", the qualified name used for
// registration keys and default export filenames.
func (m *Meta) Label() string {
	return m.AppLabel + "." + m.ModelName()
}

// PrimaryKey returns the primary key column name.
func (m *Meta) PrimaryKey() string {
	if m.PK == "" {
		return "id"
	}
	return m.PK
}

// FieldNames returns the declared field names in declaration order.
func (m *Meta) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// HasField reports whether name is a declared field.
func (m *Meta) HasField(name string) bool {
	for _, f := range m.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Name returns the human-readable name for the model.
func (m *Meta) Name() string {
	if m.VerboseName != "" {
		return m.VerboseName
	}
	return m.ObjectName
}

// Validate checks that the metadata is complete and that every identifier
// that will be interpolated into SQL is safe.
func (m *Meta) Validate() error {
	if m.AppLabel == "" {
		return fmt.Errorf("model app_label is required")
	}
	if m.ObjectName == "" {
		return fmt.Errorf("model name is required")
	}
	if !identRegex.MatchString(m.Table) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, m.Table)
	}
	if !identRegex.MatchString(m.PrimaryKey()) {
		return fmt.Errorf("%w: pk %q", ErrInvalidIdentifier, m.PrimaryKey())
	}
	for _, f := range m.Fields {
		if !identRegex.MatchString(f.Name) {
			return fmt.Errorf("%w: field %q", ErrInvalidIdentifier, f.Name)
		}
	}
	for _, o := range m.Ordering {
		if !identRegex.MatchString(strings.TrimPrefix(o, "-")) {
			return fmt.Errorf("%w: ordering %q", ErrInvalidIdentifier, o)
		}
	}
	return nil
}

// ValidIdentifier reports whether s can be used as a table or column name.
func ValidIdentifier(s string) bool {
	return identRegex.MatchString(s)
}

// Record is one persisted entity instance whose attributes can be looked up by name.
// The second return value is false when the record has no such attribute.
type Record interface {
	Value(name string) (any, bool)
}

// Row is a Record backed by a column-name map
type Row map[string]any

// Value returns the named column.
func (r Row) Value(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

// QuerySet is a lazily-evaluated, single-pass sequence of records.
// A non-nil error ends iteration.
type QuerySet = iter.Seq2[Record, error]

// Collect returns a QuerySet over an in-memory slice of records.
func Collect(records ...Record) QuerySet {
	return func(yield func(Record, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}
