package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KaramelBytes/surveylens/internal/cache"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, p := range []string{"/api/items/1", "/api/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	got := testutil.ToFloat64(m.RequestCounter.WithLabelValues(http.MethodGet, "/api/items/{id}", "418"))
	if got != 2 {
		t.Fatalf("expected 2 requests on the route pattern, got %v", got)
	}
}

func TestLoadAndLookupCounters(t *testing.T) {
	m := New()
	m.Load(12, nil)
	m.Load(0, errors.New("boom"))
	m.Lookup("found")
	m.Lookup("found")

	if v := testutil.ToFloat64(m.DatasetLoads.WithLabelValues("failure")); v != 1 {
		t.Fatalf("expected one failed load, got %v", v)
	}
	if v := testutil.ToFloat64(m.DatasetRows); v != 12 {
		t.Fatalf("failed load must not reset row gauge, got %v", v)
	}
	if v := testutil.ToFloat64(m.Lookups.WithLabelValues("found")); v != 2 {
		t.Fatalf("expected 2 found lookups, got %v", v)
	}
}

func TestHandlerExposesCacheCounters(t *testing.T) {
	m := New()
	m.ObserveCache(func() cache.Stats { return cache.Stats{Hits: 5, Misses: 2} })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"surveylens_cache_hits_total 5", "surveylens_cache_misses_total 2"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
