package partition

import (
	"context"
	"slices"
	"strings"

	"github.com/brunobiangulo/rdf2rest/rdf"
)

// Query selects the root resources of a partition.
type Query interface {
	// Roots returns the candidate roots in src. The extractor deduplicates
	// and sorts them before paging.
	Roots(ctx context.Context, src *rdf.Graph) ([]rdf.Term, error)

	// Name is the stem used for default output filenames.
	Name(ns rdf.Namespaces) string
}

// ByType selects every resource declared with rdf:type Type (?r a Type).
type ByType struct {
	Type rdf.Term
}

func (q ByType) Roots(_ context.Context, src *rdf.Graph) ([]rdf.Term, error) {
	return resources(src.Subjects(rdf.Type, q.Type)), nil
}

func (q ByType) Name(ns rdf.Namespaces) string { return stem(ns, q.Type) }

// ByLink selects every resource reachable through Predicate from any
// subject (?a Predicate ?r). Literal objects never become roots.
type ByLink struct {
	Predicate rdf.Term
}

func (q ByLink) Roots(_ context.Context, src *rdf.Graph) ([]rdf.Term, error) {
	ts := src.Match(rdf.Pattern{P: &q.Predicate})
	out := make([]rdf.Term, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.O)
	}
	return resources(out), nil
}

func (q ByLink) Name(ns rdf.Namespaces) string { return stem(ns, q.Predicate) }

// resources keeps the IRIs of ts. Blank nodes and literals never root a
// partition.
func resources(ts []rdf.Term) []rdf.Term {
	out := ts[:0:0]
	for _, t := range ts {
		if t.IsIRI() {
			out = append(out, t)
		}
	}
	return out
}

// stem renders a term as a filesystem-friendly name: the qualified name with
// ':' replaced by '_', or the last IRI segment when no prefix is bound.
func stem(ns rdf.Namespaces, t rdf.Term) string {
	if q := ns.QName(t.Value); q != "" {
		return strings.ReplaceAll(q, ":", "_")
	}
	v := strings.TrimRight(t.Value, "/#")
	if i := strings.LastIndexAny(v, "/#"); i >= 0 {
		v = v[i+1:]
	}
	if v == "" {
		return "partition"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', '?', '*', '<', '>', '|', '"':
			return '_'
		}
		return r
	}, v)
}

// page deduplicates, sorts and applies offset/limit. A limit <= 0 means no
// limit.
func page(roots []rdf.Term, limit, offset int) []rdf.Term {
	roots = slices.Clone(roots)
	slices.SortFunc(roots, rdf.Compare)
	roots = slices.Compact(roots)
	if offset > 0 {
		if offset >= len(roots) {
			return nil
		}
		roots = roots[offset:]
	}
	if limit > 0 && limit < len(roots) {
		roots = roots[:limit]
	}
	return roots
}
