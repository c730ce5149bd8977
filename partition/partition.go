// Package partition carves reachability-closed subgraphs out of a source
// graph, starting from a set of root resources.
package partition

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/brunobiangulo/rdf2rest/rdf"
)

// Options tune an extraction run.
type Options struct {
	// Ignore lists predicates that are copied but never followed.
	Ignore []rdf.Term

	// Limit and Offset page the sorted root selection before any
	// exploration. Limit <= 0 selects every root.
	Limit  int
	Offset int

	// Filename overrides the derived output name.
	Filename string

	// Namespaces are bound on the destination graph in addition to the
	// source graph's own bindings.
	Namespaces rdf.Namespaces
}

// Result is a computed partition.
type Result struct {
	Graph *rdf.Graph

	// Roots is the number of selected roots; Linked counts the resources
	// pulled in transitively, excluding the roots.
	Roots  int
	Linked int

	Filename string
}

// Size is the total number of resources in the partition.
func (r *Result) Size() int { return r.Roots + r.Linked }

// Extract computes the partition of src rooted at the resources selected by q.
func Extract(ctx context.Context, src *rdf.Graph, q Query, opts Options) (*Result, error) {
	candidates, err := q.Roots(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("selecting roots: %w", err)
	}
	roots := page(candidates, opts.Limit, opts.Offset)

	dst := rdf.NewGraph()
	dst.Namespaces = rdf.DefaultNamespaces()
	dst.Namespaces.Merge(src.Namespaces)
	dst.Namespaces.Merge(opts.Namespaces)

	for _, r := range roots {
		dst.Add(rdf.RootMarker(r))
		for _, ty := range src.Objects(r, rdf.Type) {
			dst.Add(rdf.Triple{S: r, P: rdf.Type, O: ty})
		}
	}

	x := newExplorer(src, dst, opts.Ignore)
	linked := 0
	for _, r := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := x.explore(ctx, r)
		if err != nil {
			return nil, err
		}
		slog.Info("partition: explored root", "root", r.Value, "linked", n)
		linked += n
	}

	res := &Result{
		Graph:    dst,
		Roots:    len(roots),
		Linked:   linked,
		Filename: Filename(opts),
	}
	slog.Info("partition: created",
		"roots", res.Roots, "resources", res.Size(), "triples", dst.Len())
	return res, nil
}

// ExtractByType partitions around every resource of type ty. The filename
// defaults to "<qname>_partition.ttl".
func ExtractByType(ctx context.Context, src *rdf.Graph, ty rdf.Term, opts Options) (*Result, error) {
	return extractNamed(ctx, src, ByType{Type: ty}, opts)
}

// ExtractByLink partitions around every object of predicate p.
func ExtractByLink(ctx context.Context, src *rdf.Graph, p rdf.Term, opts Options) (*Result, error) {
	return extractNamed(ctx, src, ByLink{Predicate: p}, opts)
}

func extractNamed(ctx context.Context, src *rdf.Graph, q Query, opts Options) (*Result, error) {
	if opts.Filename == "" {
		opts.Filename = q.Name(src.Namespaces) + "_partition"
	}
	return Extract(ctx, src, q, opts)
}

// Filename derives the output file name: an explicit name (with ".ttl"
// appended when it has no extension), else "partition" followed by the
// non-default limit and offset.
func Filename(opts Options) string {
	if opts.Filename != "" {
		if filepath.Ext(opts.Filename) == "" {
			return opts.Filename + ".ttl"
		}
		return opts.Filename
	}
	name := "partition"
	if opts.Limit > 0 {
		name += "-" + strconv.Itoa(opts.Limit)
	}
	if opts.Offset > 0 {
		name += "-" + strconv.Itoa(opts.Offset)
	}
	return name + ".ttl"
}

// explorer holds the state shared by every root of one run.
type explorer struct {
	src    *rdf.Graph
	dst    *rdf.Graph
	ignore map[rdf.Term]bool

	// Arena of resources: ids index terms, explored holds ids.
	ids      map[rdf.Term]uint32
	terms    []rdf.Term
	explored *roaring.Bitmap
}

func newExplorer(src, dst *rdf.Graph, ignore []rdf.Term) *explorer {
	x := &explorer{
		src:      src,
		dst:      dst,
		ignore:   make(map[rdf.Term]bool, len(ignore)),
		ids:      make(map[rdf.Term]uint32),
		explored: roaring.New(),
	}
	for _, p := range ignore {
		x.ignore[p] = true
	}
	return x
}

func (x *explorer) id(t rdf.Term) uint32 {
	if id, ok := x.ids[t]; ok {
		return id
	}
	id := uint32(len(x.terms))
	x.ids[t] = id
	x.terms = append(x.terms, t)
	return id
}

// visit marks t explored and reports whether it was new.
func (x *explorer) visit(t rdf.Term) bool {
	return x.explored.CheckedAdd(x.id(t))
}

// explore walks everything owned by root and returns the number of newly
// explored resources other than root. A root already reached from an earlier
// root contributes nothing.
func (x *explorer) explore(ctx context.Context, root rdf.Term) (int, error) {
	if !x.visit(root) {
		return 0, nil
	}
	stack := []uint32{x.id(root)}
	linked := 0
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return linked, err
		}
		res := x.terms[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		for _, po := range x.src.PredicateObjects(res) {
			x.dst.Add(rdf.Triple{S: res, P: po.P, O: po.O})
			if po.P == rdf.Type || !po.O.IsIRI() || x.ignore[po.P] {
				continue
			}
			if x.explored.Contains(x.id(po.O)) || !x.owned(res, po.P, po.O) {
				continue
			}
			x.visit(po.O)
			stack = append(stack, x.id(po.O))
			linked++
		}
	}
	return linked, nil
}

// owned reports whether o belongs to res: no other subject of the source
// graph points at o through p, or o is already described in the destination.
func (x *explorer) owned(res, p, o rdf.Term) bool {
	for _, s := range x.src.Subjects(p, o) {
		if s != res {
			return x.dst.HasSubject(o)
		}
	}
	return true
}
