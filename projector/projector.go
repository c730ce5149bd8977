// Package projector turns stored resources into REST representations,
// rewriting identifiers into local API URLs or external service URLs.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/brunobiangulo/rdf2rest/rdf"
)

var (
	// ErrNotFound is returned by Resource for an identifier without triples.
	ErrNotFound = errors.New("projector: resource not found")

	// ErrMisconfigured is returned by New when a required term is missing.
	ErrMisconfigured = errors.New("projector: invalid configuration")
)

// Reader is the read side of a triple store. Both *store.Store and
// *rdf.Graph implement it.
type Reader interface {
	Find(ctx context.Context, pat rdf.Pattern) ([]rdf.Triple, error)
	Exists(ctx context.Context, pat rdf.Pattern) (bool, error)
}

// Config is built once at startup.
type Config struct {
	// URIPrefix is prepended to request ids to form stored subjects and
	// stripped from stored identifiers to form request ids.
	URIPrefix string

	ServiceType     rdf.Term
	ContainmentLink rdf.Term

	// ServiceLinks maps predicates whose objects belong to another service
	// onto that service's base URL.
	ServiceLinks map[rdf.Term]string

	Namespaces rdf.Namespaces
}

// Projector answers resource and service requests.
type Projector struct {
	r   Reader
	cfg Config
}

// New validates cfg and returns a projector over r.
func New(r Reader, cfg Config) (*Projector, error) {
	if cfg.ServiceType.IsZero() || cfg.ServiceType.Value == "" {
		return nil, fmt.Errorf("%w: no service type is defined", ErrMisconfigured)
	}
	if cfg.ContainmentLink.IsZero() || cfg.ContainmentLink.Value == "" {
		return nil, fmt.Errorf("%w: no containment link is defined", ErrMisconfigured)
	}
	return &Projector{r: r, cfg: cfg}, nil
}

// Resource projects the stored subject URIPrefix+id under base. Object
// identifiers are rewritten in two steps: a described object (one with any
// rdf:type) becomes its local URL, then a service-link predicate replaces
// the object with the external base plus the object's id, overriding the
// first step.
func (p *Projector) Resource(ctx context.Context, base, id string) (*rdf.Graph, error) {
	subject := rdf.IRI(p.cfg.URIPrefix + id)
	ts, err := p.r.Find(ctx, rdf.Pattern{S: &subject})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", subject.Value, err)
	}
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: resource %s not found", ErrNotFound, id)
	}

	me := rdf.IRI(LocalURL(base, id))
	g := p.newGraph()
	for _, t := range ts {
		if t.O == rdf.PartitionRoot {
			continue
		}
		o := t.O
		if o.IsIRI() && p.described(ctx, o) {
			o = rdf.IRI(LocalURL(base, p.localID(o.Value)))
		}
		if ext, ok := p.cfg.ServiceLinks[t.P]; ok && t.O.IsIRI() {
			o = rdf.IRI(ext + p.localID(t.O.Value))
		}
		g.Add(rdf.Triple{S: me, P: t.P, O: o})
	}
	return g, nil
}

// Service describes the service at base: its type and one containment link
// per partition root. Store failures yield a description without links.
func (p *Projector) Service(ctx context.Context, base string) *rdf.Graph {
	me := rdf.IRI(base)
	g := p.newGraph()
	g.Add(rdf.Triple{S: me, P: rdf.Type, O: p.cfg.ServiceType})

	ts, err := p.r.Find(ctx, rdf.Pattern{P: rdf.Ref(rdf.Type), O: rdf.Ref(rdf.PartitionRoot)})
	if err != nil {
		slog.Warn("projector: listing partition roots", "error", err)
		return g
	}
	for _, t := range ts {
		if !t.S.IsIRI() {
			continue
		}
		root := rdf.IRI(LocalURL(base, p.localID(t.S.Value)))
		g.Add(rdf.Triple{S: me, P: p.cfg.ContainmentLink, O: root})
	}
	return g
}

// described reports whether o carries any rdf:type. Lookup failures make o
// an opaque reference.
func (p *Projector) described(ctx context.Context, o rdf.Term) bool {
	ok, err := p.r.Exists(ctx, rdf.Pattern{S: &o, P: rdf.Ref(rdf.Type)})
	if err != nil {
		slog.Debug("projector: type lookup failed", "object", o.Value, "error", err)
		return false
	}
	return ok
}

func (p *Projector) localID(iri string) string {
	return strings.TrimPrefix(iri, p.cfg.URIPrefix)
}

func (p *Projector) newGraph() *rdf.Graph {
	g := rdf.NewGraph()
	g.Namespaces = rdf.DefaultNamespaces()
	for prefix, iri := range p.cfg.Namespaces {
		g.Namespaces.Bind(prefix, iri)
	}
	return g
}

// LocalURL joins base and a resource id, escaping each path segment.
func LocalURL(base, id string) string {
	segs := strings.Split(id, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segs, "/")
}
