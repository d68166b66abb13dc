// ABOUTME: Attaches the export action to individual model admins
// ABOUTME: Optional capability interfaces let an admin customise columns, filename, and access

package csvexport

import (
	"github.com/2389/csvexport/internal/admin"
	"github.com/2389/csvexport/internal/auth"
	"github.com/2389/csvexport/internal/model"
)

// FieldLister overrides the exported columns.
type FieldLister interface {
	CSVFields() []string
}

// Filenamer overrides the download filename.
type Filenamer interface {
	CSVFilename() string
}

// PermissionChecker decides who may export when RequirePerm is off.
type PermissionChecker interface {
	HasCSVPermission(p *auth.Principal) bool
}

// ColumnResolver supplies values for columns the record itself lacks.
// The value may be one of the callable forms accepted by Lookup.
type ColumnResolver interface {
	CSVColumn(name string) (any, bool)
}

// Attached wraps a model admin and adds the export action to its table.
type Attached struct {
	admin.ModelAdmin
	exporter *Exporter
}

var (
	_ FieldLister       = (*Attached)(nil)
	_ Filenamer         = (*Attached)(nil)
	_ PermissionChecker = (*Attached)(nil)
	_ ColumnResolver    = (*Attached)(nil)
)

// Attach returns ma with the export action added to its own action table.
func (e *Exporter) Attach(ma admin.ModelAdmin) *Attached {
	if a, ok := ma.(*Attached); ok && a.exporter == e {
		return a
	}
	return &Attached{ModelAdmin: ma, exporter: e}
}

// Register attaches the export action to ma and registers it on site.
func (e *Exporter) Register(site *admin.Site, ma admin.ModelAdmin) error {
	return site.Register(e.Attach(ma))
}

// Unwrap returns the wrapped admin.
func (a *Attached) Unwrap() admin.ModelAdmin {
	return a.ModelAdmin
}

// Actions returns the wrapped admin's actions, plus the export action when
// p passes the permission gate.
func (a *Attached) Actions(p *auth.Principal) []admin.Action {
	inner := a.ModelAdmin.Actions(p)
	actions := make([]admin.Action, 0, len(inner)+1)
	actions = append(actions, inner...)
	if a.exporter.HasCSVPermission(a, p) {
		actions = append(actions, a.exporter.Action())
	}
	return actions
}

// HasCSVPermission delegates to the wrapped admin when it has its own
// check. Otherwise it requires the model's export permission under
// RequirePerm and allows everyone when it is off.
func (a *Attached) HasCSVPermission(p *auth.Principal) bool {
	if pc, ok := a.ModelAdmin.(PermissionChecker); ok {
		return pc.HasCSVPermission(p)
	}
	if a.exporter.opts.RequirePerm {
		return p.HasPerm(PermissionCode(a.Meta()))
	}
	return true
}

func (a *Attached) CSVFields() []string {
	if fl, ok := a.ModelAdmin.(FieldLister); ok {
		return fl.CSVFields()
	}
	return nil
}

func (a *Attached) CSVFilename() string {
	if f, ok := a.ModelAdmin.(Filenamer); ok {
		return f.CSVFilename()
	}
	return ""
}

func (a *Attached) CSVColumn(name string) (any, bool) {
	if cr, ok := a.ModelAdmin.(ColumnResolver); ok {
		return cr.CSVColumn(name)
	}
	return nil, false
}

// ModelAdmin is a ready-made admin carrying every export option as a field.
// Register it through Exporter.Register to get the export action.
type ModelAdmin struct {
	*admin.Base

	// Fields lists the exported columns. Empty exports every model field.
	Fields []string

	// Filename overrides the download name. FilenameFunc wins when set.
	Filename     string
	FilenameFunc func() string

	// Columns supplies values, or callables computing them, for columns
	// the records lack.
	Columns map[string]any

	// Permission replaces the default access check when RequirePerm is off.
	Permission func(p *auth.Principal) bool
}

// NewModelAdmin returns a ModelAdmin for meta with default export options.
func NewModelAdmin(meta *model.Meta) *ModelAdmin {
	return &ModelAdmin{Base: admin.NewBase(meta)}
}

func (m *ModelAdmin) CSVFields() []string {
	return m.Fields
}

func (m *ModelAdmin) CSVFilename() string {
	if m.FilenameFunc != nil {
		return m.FilenameFunc()
	}
	return m.Filename
}

func (m *ModelAdmin) CSVColumn(name string) (any, bool) {
	v, ok := m.Columns[name]
	return v, ok
}

func (m *ModelAdmin) HasCSVPermission(p *auth.Principal) bool {
	if m.Permission != nil {
		return m.Permission(p)
	}
	return true
}
