// ABOUTME: CSV export admin action: permission gate, orchestration, and site install
// ABOUTME: Exporter is built once from Options and shared by every model admin

package csvexport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/csvexport/internal/admin"
	"github.com/2389/csvexport/internal/auth"
	"github.com/2389/csvexport/internal/metrics"
	"github.com/2389/csvexport/internal/model"
)

const (
	// ActionName is the name the export action is registered under.
	ActionName = "export_as_csv"

	// ShortDescription labels the action in the admin action menu.
	ShortDescription = "Export selected object(s) as CSV file"

	// ContentType is the media type of every export response.
	ContentType = "text/csv"
)

// Options are the process-wide export settings, fixed at construction.
type Options struct {
	// RequirePerm restricts exports to principals holding
	// "<app_label>.csv_<model_name>" for the exported model.
	RequirePerm bool

	// GlobalEnabled offers the export action on every registered model.
	GlobalEnabled bool
}

// Exporter runs CSV exports for admin-registered models.
type Exporter struct {
	opts    Options
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates an Exporter. A nil collector disables metrics.
func New(opts Options, collector *metrics.Collector) *Exporter {
	return &Exporter{
		opts:    opts,
		metrics: collector,
		logger:  slog.Default().With("component", "csvexport"),
	}
}

// Action returns the export as an admin action table entry.
func (e *Exporter) Action() admin.Action {
	return admin.Action{
		Name:        ActionName,
		Description: ShortDescription,
		Func:        e.ExportAsCSV,
	}
}

// Install adds the export action site-wide when GlobalEnabled is set.
func (e *Exporter) Install(site *admin.Site) {
	if !e.opts.GlobalEnabled {
		return
	}
	site.AddAction(e.Action())
}

// PermissionCode returns the permission that guards exports of a model
// when RequirePerm is set, e.g. "shop.csv_order".
func PermissionCode(meta *model.Meta) string {
	return meta.AppLabel + ".csv_" + meta.ModelName()
}

// HasCSVPermission reports whether p may export ma's records.
//
// With RequirePerm set only the permission code counts. Otherwise the
// admin's own PermissionChecker decides, and without one everybody may export.
func (e *Exporter) HasCSVPermission(ma admin.ModelAdmin, p *auth.Principal) bool {
	if e.opts.RequirePerm {
		return p.HasPerm(PermissionCode(ma.Meta()))
	}
	if pc, ok := ma.(PermissionChecker); ok {
		return pc.HasCSVPermission(p)
	}
	return true
}

// ExportAsCSV is the export admin action. It answers 403 with an empty body
// when the gate refuses the request principal. Otherwise it writes the
// selected records as a CSV attachment. Resolution errors are returned
// before anything is written so the caller can respond with a 500.
func (e *Exporter) ExportAsCSV(w http.ResponseWriter, r *http.Request, ma admin.ModelAdmin, qs model.QuerySet) error {
	start := time.Now()
	label := ma.Meta().Label()
	p := auth.FromContext(r.Context())

	if !e.HasCSVPermission(ma, p) {
		e.logger.Warn("csv export forbidden", "model", label, "user", username(p))
		e.metrics.RecordExport(label, metrics.OutcomeForbidden, 0, 0)
		w.WriteHeader(http.StatusForbidden)
		return nil
	}

	var buf bytes.Buffer
	rows, err := WriteCSV(&buf, ma, qs)
	if err != nil {
		e.metrics.RecordExport(label, metrics.OutcomeFailed, rows, time.Since(start))
		return fmt.Errorf("exporting %s: %w", label, err)
	}

	NewResponse(w, ma)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		// Headers are out; nothing left to tell the client.
		e.logger.Debug("client went away during csv export", "model", label, "error", err)
	}

	e.metrics.RecordExport(label, metrics.OutcomeExported, rows, time.Since(start))
	e.logger.Info("csv export", "model", label, "rows", rows, "user", username(p), "duration", time.Since(start))
	return nil
}

// WriteCSV writes the header row and one row per record to w in RFC 4180
// form. It returns the number of data rows written. The records are iterated
// exactly once.
func WriteCSV(w io.Writer, ma admin.ModelAdmin, qs model.QuerySet) (int, error) {
	fields := FieldNames(ma)

	writer := csv.NewWriter(w)
	writer.UseCRLF = true
	if err := writer.Write(fields); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	rows := 0
	row := make([]string, len(fields))
	for rec, err := range qs {
		if err != nil {
			return rows, err
		}
		for i, field := range fields {
			v, err := Value(ma, rec, field)
			if err != nil {
				return rows, fmt.Errorf("row %d field %s: %w", rows+1, field, err)
			}
			row[i] = v
		}
		if err := writer.Write(row); err != nil {
			return rows, fmt.Errorf("writing row %d: %w", rows+1, err)
		}
		rows++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return rows, fmt.Errorf("flushing csv: %w", err)
	}
	return rows, nil
}

func username(p *auth.Principal) string {
	if p == nil {
		return "anonymous"
	}
	return p.Username
}
