package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	knakk "github.com/knakk/rdf"
)

// ErrUnknownFormat is returned when no parser is registered for a format.
var ErrUnknownFormat = errors.New("parser: unknown format")

type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	// Register built-in parsers
	turtle := &TripleParser{name: "ttl", format: knakk.Turtle, formats: []string{"ttl", "turtle"}}
	ntriples := &TripleParser{name: "nt", format: knakk.NTriples, formats: []string{"nt", "ntriples"}}

	for _, p := range []Parser{turtle, ntriples} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return p, nil
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// ForPath returns the parser for a file name such as "data.ttl" or
// "dump.nt.gz".
func (r *Registry) ForPath(path string) (Parser, error) {
	return r.Get(FormatOf(path))
}

// FormatOf returns the registry key implied by a file name, looking past a
// compression suffix.
func FormatOf(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if c := compressionOf(base); c != "" {
		base = strings.TrimSuffix(base, "."+c)
	}
	return strings.TrimPrefix(filepath.Ext(base), ".")
}
