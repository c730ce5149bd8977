package rdf

import (
	"context"
	"slices"
	"sync"
)

// Triple is a single (subject, predicate, object) fact.
type Triple struct {
	S Term
	P Term
	O Term
}

// String renders the triple as one N-Triples statement without newline.
func (t Triple) String() string {
	return t.S.String() + " " + t.P.String() + " " + t.O.String() + " ."
}

// CompareTriples orders triples by subject, predicate and object.
func CompareTriples(a, b Triple) int {
	if c := Compare(a.S, b.S); c != 0 {
		return c
	}
	if c := Compare(a.P, b.P); c != 0 {
		return c
	}
	return Compare(a.O, b.O)
}

// Pattern selects triples. A nil position is a wildcard.
type Pattern struct {
	S *Term
	P *Term
	O *Term
}

// Ref returns a pointer to t for building patterns inline.
func Ref(t Term) *Term { return &t }

// Matches reports whether tr satisfies the pattern.
func (p Pattern) Matches(tr Triple) bool {
	if p.S != nil && *p.S != tr.S {
		return false
	}
	if p.P != nil && *p.P != tr.P {
		return false
	}
	if p.O != nil && *p.O != tr.O {
		return false
	}
	return true
}

// PO is a predicate/object pair of some subject.
type PO struct {
	P Term
	O Term
}

// Graph is an in-memory set of triples indexed by subject and object.
// It is safe for concurrent readers alongside a single writer.
type Graph struct {
	mu        sync.RWMutex
	set       map[Triple]struct{}
	bySubject map[Term][]Triple
	byObject  map[Term][]Triple

	Namespaces Namespaces
}

// NewGraph returns an empty graph with no namespace bindings.
func NewGraph() *Graph {
	return &Graph{
		set:        make(map[Triple]struct{}),
		bySubject:  make(map[Term][]Triple),
		byObject:   make(map[Term][]Triple),
		Namespaces: Namespaces{},
	}
}

// Add inserts t. It reports whether the triple was new.
func (g *Graph) Add(t Triple) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(t)
}

// AddAll inserts every triple and returns how many were new.
func (g *Graph) AddAll(ts []Triple) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, t := range ts {
		if g.addLocked(t) {
			n++
		}
	}
	return n
}

func (g *Graph) addLocked(t Triple) bool {
	if _, ok := g.set[t]; ok {
		return false
	}
	g.set[t] = struct{}{}
	g.bySubject[t.S] = append(g.bySubject[t.S], t)
	g.byObject[t.O] = append(g.byObject[t.O], t)
	return true
}

// Has reports membership.
func (g *Graph) Has(t Triple) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.set[t]
	return ok
}

// Len returns the number of triples.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.set)
}

// HasSubject reports whether s has at least one triple.
func (g *Graph) HasSubject(s Term) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.bySubject[s]) > 0
}

// Match returns the triples satisfying pat in unspecified order.
func (g *Graph) Match(pat Pattern) []Triple {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var candidates []Triple
	switch {
	case pat.S != nil:
		candidates = g.bySubject[*pat.S]
	case pat.O != nil:
		candidates = g.byObject[*pat.O]
	default:
		candidates = make([]Triple, 0, len(g.set))
		for t := range g.set {
			candidates = append(candidates, t)
		}
	}

	out := make([]Triple, 0, len(candidates))
	for _, t := range candidates {
		if pat.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// PredicateObjects returns every (p, o) pair with s as subject.
func (g *Graph) PredicateObjects(s Term) []PO {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ts := g.bySubject[s]
	out := make([]PO, len(ts))
	for i, t := range ts {
		out[i] = PO{P: t.P, O: t.O}
	}
	return out
}

// Subjects returns the distinct subjects of triples matching (?, p, o).
func (g *Graph) Subjects(p, o Term) []Term {
	return distinct(g.Match(Pattern{P: &p, O: &o}), func(t Triple) Term { return t.S })
}

// Objects returns the distinct objects of triples matching (s, p, ?).
func (g *Graph) Objects(s, p Term) []Term {
	return distinct(g.Match(Pattern{S: &s, P: &p}), func(t Triple) Term { return t.O })
}

// Triples returns all triples sorted by subject, predicate and object.
func (g *Graph) Triples() []Triple {
	out := g.Match(Pattern{})
	slices.SortFunc(out, CompareTriples)
	return out
}

// Exists reports whether any triple matches pat. Together with Find it lets
// an in-memory graph stand in for the persistent store.
func (g *Graph) Exists(_ context.Context, pat Pattern) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var candidates []Triple
	switch {
	case pat.S != nil:
		candidates = g.bySubject[*pat.S]
	case pat.O != nil:
		candidates = g.byObject[*pat.O]
	default:
		for t := range g.set {
			if pat.Matches(t) {
				return true, nil
			}
		}
		return false, nil
	}
	for _, t := range candidates {
		if pat.Matches(t) {
			return true, nil
		}
	}
	return false, nil
}

// Find is Match with the store's signature.
func (g *Graph) Find(_ context.Context, pat Pattern) ([]Triple, error) {
	return g.Match(pat), nil
}

func distinct(ts []Triple, pick func(Triple) Term) []Term {
	seen := make(map[Term]struct{}, len(ts))
	out := make([]Term, 0, len(ts))
	for _, t := range ts {
		v := pick(t)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.SortFunc(out, Compare)
	return out
}
