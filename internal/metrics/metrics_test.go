package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordExport(t *testing.T) {
	c := NewCollector(nil)

	c.RecordExport("app.foo", OutcomeExported, 3, 10*time.Millisecond)
	c.RecordExport("app.foo", OutcomeExported, 2, 10*time.Millisecond)
	c.RecordExport("app.foo", OutcomeForbidden, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.exportsTotal.WithLabelValues("app.foo", OutcomeExported)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.exportsTotal.WithLabelValues("app.foo", OutcomeForbidden)))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.rowsTotal.WithLabelValues("app.foo")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordExport("app.foo", OutcomeExported, 1, time.Millisecond)
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(nil)
	c.RecordExport("app.foo", OutcomeFailed, 1, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "csvexport_exports_total"), "body should expose export counter")
	assert.True(t, strings.Contains(body, `outcome="failed"`))
}
