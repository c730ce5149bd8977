// Package parser decodes serialized RDF files into triples.
package parser

import (
	"context"
	"io"

	"github.com/brunobiangulo/rdf2rest/rdf"
)

// ParseResult summarises a completed parse.
type ParseResult struct {
	Triples    int            // Statements emitted
	Format     string         // Registry key of the parser used
	Namespaces rdf.Namespaces // @prefix / PREFIX declarations seen in the input
}

// Handler receives each decoded triple. Returning an error aborts the parse.
type Handler func(rdf.Triple) error

// Options tune a single parse.
type Options struct {
	// BlankScope is prepended to every blank node label so labels from
	// independent files never collide once merged into one store.
	BlankScope string
}

// Parser can decode a specific serialization.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, opts Options, emit Handler) (*ParseResult, error)
	SupportedFormats() []string
}

// ParseGraph decodes r completely into g, merging prefix declarations
// into g.Namespaces.
func ParseGraph(ctx context.Context, p Parser, r io.Reader, opts Options, g *rdf.Graph) (*ParseResult, error) {
	res, err := p.Parse(ctx, r, opts, func(t rdf.Triple) error {
		g.Add(t)
		return nil
	})
	if res != nil {
		g.Namespaces.Merge(res.Namespaces)
	}
	return res, err
}
