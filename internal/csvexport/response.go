// ABOUTME: Response envelope for CSV downloads
// ABOUTME: Computes the attachment filename and sets Content-Type/Content-Disposition

package csvexport

import (
	"mime"
	"net/http"
	"strings"

	"github.com/2389/csvexport/internal/admin"
)

// Filename returns the download filename for ma. The default is the model
// label with dots replaced by underscores, e.g. "app_foo.csv". A Filenamer
// override wins when it returns a non-empty name; ".csv" is appended if missing.
func Filename(ma admin.ModelAdmin) string {
	if f, ok := ma.(Filenamer); ok {
		if name := strings.TrimSpace(f.CSVFilename()); name != "" {
			if !strings.HasSuffix(strings.ToLower(name), ".csv") {
				name += ".csv"
			}
			return name
		}
	}
	return strings.ReplaceAll(ma.Meta().Label(), ".", "_") + ".csv"
}

// SetContentDisposition marks the response as an attachment named filename.
// Names that are not plain tokens are quoted or RFC 2231 encoded.
func SetContentDisposition(h http.Header, filename string) {
	value := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if value == "" {
		value = "attachment"
	}
	h.Set("Content-Disposition", value)
}

// NewResponse prepares w for a CSV download of ma.
func NewResponse(w http.ResponseWriter, ma admin.ModelAdmin) {
	w.Header().Set("Content-Type", ContentType)
	SetContentDisposition(w.Header(), Filename(ma))
}
