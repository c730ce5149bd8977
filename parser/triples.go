package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	knakk "github.com/knakk/rdf"

	"github.com/brunobiangulo/rdf2rest/rdf"
)

// ctxCheckEvery bounds how many statements are decoded between context checks.
const ctxCheckEvery = 1024

// TripleParser decodes Turtle and N-Triples.
type TripleParser struct {
	name    string
	format  knakk.Format
	formats []string
}

func (p *TripleParser) SupportedFormats() []string { return p.formats }

func (p *TripleParser) Parse(ctx context.Context, r io.Reader, opts Options, emit Handler) (*ParseResult, error) {
	sniff := newPrefixSniffer()
	dec := knakk.NewTripleDecoder(io.TeeReader(r, sniff), p.format)

	res := &ParseResult{Format: p.name}
	defer func() { res.Namespaces = sniff.namespaces() }()

	for {
		if res.Triples%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		kt, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("decoding %s after %d triples: %w", p.name, res.Triples, err)
		}

		t, err := convertTriple(kt, opts.BlankScope)
		if err != nil {
			return res, err
		}
		if err := emit(t); err != nil {
			return res, err
		}
		res.Triples++
	}
}

func convertTriple(kt knakk.Triple, scope string) (rdf.Triple, error) {
	s, err := convertTerm(kt.Subj, scope)
	if err != nil {
		return rdf.Triple{}, err
	}
	p, err := convertTerm(kt.Pred, scope)
	if err != nil {
		return rdf.Triple{}, err
	}
	o, err := convertTerm(kt.Obj, scope)
	if err != nil {
		return rdf.Triple{}, err
	}
	return rdf.Triple{S: s, P: p, O: o}, nil
}

func convertTerm(t knakk.Term, scope string) (rdf.Term, error) {
	switch v := t.(type) {
	case knakk.IRI:
		return rdf.IRI(v.String()), nil
	case knakk.Blank:
		return rdf.Blank(scope + strings.TrimPrefix(v.String(), "_:")), nil
	case knakk.Literal:
		if lang := v.Lang(); lang != "" {
			return rdf.LangLiteral(v.String(), lang), nil
		}
		return rdf.TypedLiteral(v.String(), v.DataType.String()), nil
	default:
		return rdf.Term{}, fmt.Errorf("unsupported term %T", t)
	}
}
