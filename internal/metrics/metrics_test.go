package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPipeline(reg)

	p.DocumentsIngested.Inc()
	p.DuplicateHits.Inc()
	p.DuplicateHits.Inc()
	p.IngestDuration.Observe(0.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.DocumentsIngested))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.DuplicateHits))
	assert.Equal(t, 1, testutil.CollectAndCount(p.IngestDuration))
}

func TestNewWatcher_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := NewWatcher(reg)

	w.FilesSucceeded.Inc()
	w.FilesFailed.Inc()
	w.RetriesTotal.Inc()
	w.QueueDepth.Set(3)
	w.QueueDepth.Dec()

	assert.Equal(t, 1.0, testutil.ToFloat64(w.FilesSucceeded))
	assert.Equal(t, 2.0, testutil.ToFloat64(w.QueueDepth))
}

func TestHTTPMiddleware_RecordsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)

	r := chi.NewRouter()
	r.Use(h.Middleware)
	r.Get("/v1/works/{workID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	for _, id := range []string{"w-1", "w-2"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/works/"+id, http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Both requests land on one series labelled by the route pattern.
	count := testutil.ToFloat64(h.requestsTotal.WithLabelValues("GET", "/v1/works/{workID}", "200"))
	assert.Equal(t, 2.0, count)
	assert.Equal(t, 1, testutil.CollectAndCount(h.requestDuration))
}

func TestHTTPMiddleware_CapturesStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)

	r := chi.NewRouter()
	r.Use(h.Middleware)
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	count := testutil.ToFloat64(h.requestsTotal.WithLabelValues("GET", "/missing", "404"))
	assert.Equal(t, 1.0, count)
}
