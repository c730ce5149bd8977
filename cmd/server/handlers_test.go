package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/rdf2rest"
	"github.com/brunobiangulo/rdf2rest/loader"
	"github.com/brunobiangulo/rdf2rest/rdf"
	"github.com/brunobiangulo/rdf2rest/store"
)

var (
	vType     = rdf.IRI("http://vocab.example.org/Service")
	vContains = rdf.IRI("http://vocab.example.org/contains")
	vName     = rdf.IRI("http://vocab.example.org/name")
)

// fakeEngine projects a fixed resource "item" and records the base URLs it
// was asked for.
type fakeEngine struct {
	bases []string
	err   error
}

func (f *fakeEngine) Load(context.Context, string, ...rdf2rest.LoadOption) (*loader.Job, error) {
	return nil, nil
}

func (f *fakeEngine) LoadStatus() loader.Status {
	return loader.Status{JobID: "job-1", Source: "/data/set.ttl", Triples: 12}
}

func (f *fakeEngine) Resource(_ context.Context, base, id string) (*rdf.Graph, error) {
	f.bases = append(f.bases, base)
	if f.err != nil {
		return nil, f.err
	}
	if id != "item" {
		return nil, rdf2rest.NotFound("Resource "+id+" not found", nil)
	}
	g := rdf.NewGraph()
	g.Add(rdf.Triple{S: rdf.IRI(base + id), P: vName, O: rdf.Literal("an item")})
	return g, nil
}

func (f *fakeEngine) Service(_ context.Context, base string) (*rdf.Graph, error) {
	f.bases = append(f.bases, base)
	g := rdf.NewGraph()
	g.Add(rdf.Triple{S: rdf.IRI(base), P: rdf.Type, O: vType})
	g.Add(rdf.Triple{S: rdf.IRI(base), P: vContains, O: rdf.IRI(base + "item")})
	return g, nil
}

func (f *fakeEngine) Stats(context.Context) (*store.Stats, error) {
	return &store.Stats{Triples: 12, Roots: 1}, nil
}

func (f *fakeEngine) Namespaces() rdf.Namespaces { return rdf.DefaultNamespaces() }
func (f *fakeEngine) Store() *store.Store        { return nil }
func (f *fakeEngine) Close() error               { return nil }

type countingObserver struct {
	routes map[string]int
}

func (c *countingObserver) ObserveRequest(route string, code int, _ time.Duration) {
	c.routes[route+" "+http.StatusText(code)]++
}

func newTestServer(e rdf2rest.Engine, publicURL string, obs requestObserver) http.Handler {
	h := newHandler(e, publicURL)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("GET /{$}", h.handleService)
	mux.HandleFunc("GET /{id...}", h.handleResource)
	return recoveryMiddleware(logMiddleware(metricsMiddleware(obs, mux)))
}

func get(t *testing.T, srv http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestServiceDocument(t *testing.T) {
	e := &fakeEngine{}
	obs := &countingObserver{routes: map[string]int{}}
	srv := newTestServer(e, "", obs)

	rec := get(t, srv, "http://api.example.org/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/turtle; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<http://api.example.org/item>")
	assert.Equal(t, []string{"http://api.example.org/"}, e.bases)
	assert.Equal(t, 1, obs.routes["GET /{$} OK"])
}

func TestResourceNegotiation(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, "https://public.example.org/api", &countingObserver{routes: map[string]int{}})

	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{"default", "", "text/turtle; charset=utf-8"},
		{"wildcard", "*/*", "text/turtle; charset=utf-8"},
		{"ntriples", "application/n-triples", "application/n-triples; charset=utf-8"},
		{"first supported wins", "text/html, application/n-triples;q=0.9, text/turtle", "application/n-triples; charset=utf-8"},
		{"unsupported falls back", "application/ld+json", "text/turtle; charset=utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, "/item", http.Header{"Accept": {tt.accept}})
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Content-Type"))
		})
	}

	rec := get(t, srv, "/item", http.Header{"Accept": {"application/n-triples"}})
	assert.Equal(t, "<https://public.example.org/api/item> <http://vocab.example.org/name> \"an item\" .\n", rec.Body.String())
}

func TestResourceNotFound(t *testing.T) {
	obs := &countingObserver{routes: map[string]int{}}
	srv := newTestServer(&fakeEngine{}, "", obs)

	rec := get(t, srv, "/nested/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Resource nested/missing not found", body["message"])
	assert.Equal(t, 1, obs.routes["GET /{id...} Not Found"])
}

func TestOperationalRoutesShadowOnlyExactIDs(t *testing.T) {
	e := &fakeEngine{}
	srv := newTestServer(e, "", &countingObserver{routes: map[string]int{}})

	rec := get(t, srv, "/status", nil)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"load"`)
	assert.Empty(t, e.bases, "/status never reaches the projector")

	rec = get(t, srv, "/status/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Resource status/1 not found")
}

func TestEngineFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"conflict", rdf2rest.Conflict("busy", map[string]any{"job_id": "j"}), http.StatusConflict},
		{"closed", rdf2rest.ErrStoreClosed, http.StatusServiceUnavailable},
		{"other", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeEngine{err: tt.err}, "", &countingObserver{routes: map[string]int{}})
			rec := get(t, srv, "/item", nil)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"message"`)
		})
	}
}

func TestBaseURL(t *testing.T) {
	h := newHandler(&fakeEngine{}, "")

	req := httptest.NewRequest(http.MethodGet, "http://api.local:8080/x", nil)
	assert.Equal(t, "http://api.local:8080/", h.baseURL(req))

	req.TLS = &tls.ConnectionState{}
	assert.Equal(t, "https://api.local:8080/", h.baseURL(req))

	req = httptest.NewRequest(http.MethodGet, "http://api.local/x", nil)
	req.Header.Set("X-Forwarded-Proto", "https, http")
	assert.Equal(t, "https://api.local/", h.baseURL(req))

	h = newHandler(&fakeEngine{}, "https://public.example.org")
	assert.Equal(t, "https://public.example.org/", h.baseURL(req))
}

func TestStatusAndHealth(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, "", &countingObserver{routes: map[string]int{}})

	rec := get(t, srv, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, srv, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Load  loader.Status `json:"load"`
		Store store.Stats   `json:"store"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-1", body.Load.JobID)
	assert.Equal(t, 12, body.Store.Triples)
}

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := authMiddleware("secret", next)

	rec := get(t, h, "/item", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, h, "/item", http.Header{"Authorization": {"Bearer secret"}})
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = get(t, h, "/health", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, http.StatusTeapot, get(t, authMiddleware("", next), "/item", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := corsMiddleware("https://ui.example.org", next)

	req := httptest.NewRequest(http.MethodOptions, "/item", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ui.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "GET"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := get(t, h, "/item", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"internal server error"}`, rec.Body.String())
}
