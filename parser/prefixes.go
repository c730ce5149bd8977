package parser

import (
	"bytes"
	"regexp"

	"github.com/brunobiangulo/rdf2rest/rdf"
)

// maxSniffLine caps the buffered partial line; prefix declarations are short.
const maxSniffLine = 4096

var prefixDecl = regexp.MustCompile(`(?i)^\s*@?prefix\s+([A-Za-z][\w.-]*)?:\s*<([^>]*)>`)

// prefixSniffer collects @prefix / PREFIX declarations from the raw byte
// stream as it flows to the decoder.
type prefixSniffer struct {
	line []byte
	ns   rdf.Namespaces
}

func newPrefixSniffer() *prefixSniffer {
	return &prefixSniffer{ns: rdf.Namespaces{}}
}

func (s *prefixSniffer) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if len(s.line) < maxSniffLine {
				s.line = append(s.line, p...)
			}
			break
		}
		s.line = append(s.line, p[:i]...)
		s.scan()
		p = p[i+1:]
	}
	return n, nil
}

func (s *prefixSniffer) scan() {
	if m := prefixDecl.FindSubmatch(s.line); m != nil {
		s.ns.Bind(string(m[1]), string(m[2]))
	}
	s.line = s.line[:0]
}

func (s *prefixSniffer) namespaces() rdf.Namespaces {
	if len(s.line) > 0 {
		s.scan()
	}
	return s.ns
}
