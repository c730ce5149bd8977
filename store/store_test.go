//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brunobiangulo/rdf2rest/rdf"
)

const ex = "http://example.org/"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTriples() []rdf.Triple {
	a, b := rdf.IRI(ex+"a"), rdf.IRI(ex+"b")
	return []rdf.Triple{
		{S: a, P: rdf.Type, O: rdf.IRI(ex + "Thing")},
		{S: a, P: rdf.IRI(ex + "link"), O: b},
		{S: a, P: rdf.IRI(ex + "name"), O: rdf.LangLiteral("A", "en")},
		{S: b, P: rdf.IRI(ex + "count"), O: rdf.TypedLiteral("3", rdf.XSDNS+"integer")},
		{S: b, P: rdf.IRI(ex + "owner"), O: rdf.Blank("x1")},
		{S: rdf.Blank("x1"), P: rdf.IRI(ex + "name"), O: rdf.Literal("anon")},
	}
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestOpen(t *testing.T) {
	s := newTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("schema version: got %d, want %d", v, len(migrations))
	}
}

func TestOpenIsReentrant(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "store")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := s.AddTriples(context.Background(), sampleTriples()); err != nil {
		t.Fatalf("AddTriples: %v", err)
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()
	stats, err := s2.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Triples != len(sampleTriples()) {
		t.Errorf("triples after reopen: got %d, want %d", stats.Triples, len(sampleTriples()))
	}
}

// ---------------------------------------------------------------------------
// Triples
// ---------------------------------------------------------------------------

func TestAddTriplesDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.AddTriples(ctx, sampleTriples())
	if err != nil {
		t.Fatalf("AddTriples: %v", err)
	}
	if n != len(sampleTriples()) {
		t.Fatalf("added: got %d, want %d", n, len(sampleTriples()))
	}

	n, err = s.AddTriples(ctx, sampleTriples())
	if err != nil {
		t.Fatalf("AddTriples (again): %v", err)
	}
	if n != 0 {
		t.Errorf("re-adding should insert nothing, got %d", n)
	}
}

func TestFindRoundTripsTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.AddTriples(ctx, sampleTriples()); err != nil {
		t.Fatalf("AddTriples: %v", err)
	}

	all, err := s.Find(ctx, rdf.Pattern{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	g := rdf.NewGraph()
	g.AddAll(all)
	for _, want := range sampleTriples() {
		if !g.Has(want) {
			t.Errorf("missing %s", want)
		}
	}

	b := rdf.IRI(ex + "b")
	got, err := s.Find(ctx, rdf.Pattern{S: &b})
	if err != nil {
		t.Fatalf("Find by subject: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("triples of b: got %d, want 2", len(got))
	}

	unknown := rdf.IRI(ex + "nope")
	got, err = s.Find(ctx, rdf.Pattern{S: &unknown})
	if err != nil || len(got) != 0 {
		t.Errorf("unknown subject: got %v, %v", got, err)
	}
}

func TestExistsAndSubjects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	roots := []rdf.Triple{
		rdf.RootMarker(rdf.IRI(ex + "r2")),
		rdf.RootMarker(rdf.IRI(ex + "r1")),
	}
	if _, err := s.AddTriples(ctx, append(sampleTriples(), roots...)); err != nil {
		t.Fatalf("AddTriples: %v", err)
	}

	a := rdf.IRI(ex + "a")
	ok, err := s.Exists(ctx, rdf.Pattern{S: &a, P: rdf.Ref(rdf.Type)})
	if err != nil || !ok {
		t.Errorf("Exists(a rdf:type ?): got %v, %v", ok, err)
	}
	b := rdf.IRI(ex + "b")
	ok, err = s.Exists(ctx, rdf.Pattern{S: &b, P: rdf.Ref(rdf.Type)})
	if err != nil || ok {
		t.Errorf("Exists(b rdf:type ?): got %v, %v", ok, err)
	}

	subjects, err := s.Subjects(ctx, rdf.Type, rdf.PartitionRoot)
	if err != nil {
		t.Fatalf("Subjects: %v", err)
	}
	if len(subjects) != 2 || subjects[0] != rdf.IRI(ex+"r1") || subjects[1] != rdf.IRI(ex+"r2") {
		t.Errorf("Subjects: got %v", subjects)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Roots != 2 {
		t.Errorf("roots: got %d, want 2", stats.Roots)
	}
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := rdf.IRI(ex + "p")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			batch := make([]rdf.Triple, 0, 50)
			for j := 0; j < 50; j++ {
				batch = append(batch, rdf.Triple{
					S: rdf.IRI(ex + "s"),
					P: p,
					O: rdf.TypedLiteral(time.Duration(i*50+j).String(), ""),
				})
			}
			if _, err := s.AddTriples(ctx, batch); err != nil {
				t.Errorf("AddTriples: %v", err)
				return
			}
		}
	}()

	last := 0
	for i := 0; i < 20; i++ {
		got, err := s.Find(ctx, rdf.Pattern{P: &p})
		if err != nil {
			t.Fatalf("Find during writes: %v", err)
		}
		if len(got)%50 != 0 {
			t.Fatalf("observed a partial batch: %d triples", len(got))
		}
		if len(got) < last {
			t.Fatalf("store shrank from %d to %d", last, len(got))
		}
		last = len(got)
	}
	wg.Wait()
}

// ---------------------------------------------------------------------------
// Namespaces and loads
// ---------------------------------------------------------------------------

func TestNamespaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.BindNamespaces(ctx, rdf.Namespaces{"ex": ex, "foaf": "http://xmlns.com/foaf/0.1/"}); err != nil {
		t.Fatalf("BindNamespaces: %v", err)
	}
	if err := s.BindNamespaces(ctx, rdf.Namespaces{"ex": "http://other.org/"}); err != nil {
		t.Fatalf("BindNamespaces (again): %v", err)
	}
	ns, err := s.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces: %v", err)
	}
	if ns["ex"] != ex {
		t.Errorf("first binding should win, got %q", ns["ex"])
	}
	if len(ns) != 2 {
		t.Errorf("expected 2 bindings, got %v", ns)
	}
}

func TestLoadRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateLoad(ctx, Load{ID: "l1", Source: "/data/a.ttl", ContentHash: "abc", Format: "ttl"}); err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	if _, err := s.LatestLoad(ctx, "/data/a.ttl", "abc"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("pending load should not count as ready, got %v", err)
	}

	if err := s.FinishLoad(ctx, "l1", LoadReady, 42, 1500*time.Millisecond, ""); err != nil {
		t.Fatalf("FinishLoad: %v", err)
	}
	got, err := s.LatestLoad(ctx, "/data/a.ttl", "abc")
	if err != nil {
		t.Fatalf("LatestLoad: %v", err)
	}
	if got.Triples != 42 || got.DurationMs != 1500 || got.Status != LoadReady {
		t.Errorf("unexpected load record: %+v", got)
	}

	if err := s.CreateLoad(ctx, Load{ID: "l2", Source: "/data/b.ttl", ContentHash: "def", Format: "ttl"}); err != nil {
		t.Fatalf("CreateLoad: %v", err)
	}
	if err := s.FinishLoad(ctx, "l2", LoadFailed, 3, time.Second, "boom"); err != nil {
		t.Fatalf("FinishLoad: %v", err)
	}
	loads, err := s.ListLoads(ctx)
	if err != nil {
		t.Fatalf("ListLoads: %v", err)
	}
	if len(loads) != 2 {
		t.Fatalf("ListLoads: got %d, want 2", len(loads))
	}
	if loads[0].ID != "l2" || loads[0].Error != "boom" {
		t.Errorf("newest load first with its error: got %+v", loads[0])
	}
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t)
	s.Close()
	if _, err := s.Find(context.Background(), rdf.Pattern{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Find on closed store: got %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
