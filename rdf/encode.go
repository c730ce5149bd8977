package rdf

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format specifies a triple serialization.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"
)

// FormatInfo provides metadata about a serialization format.
type FormatInfo struct {
	Name      Format
	MIMEType  string
	Extension string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatTurtle: {
		Name:      FormatTurtle,
		MIMEType:  "text/turtle",
		Extension: ".ttl",
	},
	FormatNTriples: {
		Name:      FormatNTriples,
		MIMEType:  "application/n-triples",
		Extension: ".nt",
	},
}

// FormatForMIME returns the format registered for a media type.
func FormatForMIME(mime string) (Format, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for f, info := range FormatRegistry {
		if info.MIMEType == mime {
			return f, true
		}
	}
	return "", false
}

// FormatForPath picks a format from a file name, ignoring a trailing
// compression suffix. Unknown extensions fall back to Turtle.
func FormatForPath(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gz", ".zst", ".lz4":
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	}
	if ext == ".nt" {
		return FormatNTriples
	}
	return FormatTurtle
}

// Encode writes g to w in the given format. Output is sorted so equal
// graphs serialize to identical bytes.
func Encode(w io.Writer, g *Graph, format Format) error {
	bw := bufio.NewWriter(w)
	var err error
	switch format {
	case FormatTurtle:
		err = writeTurtle(bw, g)
	case FormatNTriples:
		err = writeNTriples(bw, g.Triples())
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

// Serialize is Encode into a string.
func Serialize(g *Graph, format Format) (string, error) {
	var sb strings.Builder
	if err := Encode(&sb, g, format); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeNTriples(w *bufio.Writer, ts []Triple) error {
	for _, t := range ts {
		if _, err := w.WriteString(t.String() + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// writeTurtle writes prefix declarations followed by one block per subject.
func writeTurtle(w *bufio.Writer, g *Graph) error {
	ns := g.Namespaces
	if ns == nil {
		ns = Namespaces{}
	}
	for _, p := range ns.Prefixes() {
		if _, err := fmt.Fprintf(w, "@prefix %s: <%s> .\n", p, escapeIRI(ns[p])); err != nil {
			return err
		}
	}
	if len(ns) > 0 {
		w.WriteString("\n")
	}

	ts := g.Triples()
	for i := 0; i < len(ts); {
		subj := ts[i].S
		j := i
		for j < len(ts) && ts[j].S == subj {
			j++
		}
		writeSubjectBlock(w, ns, typesFirst(ts[i:j]))
		w.WriteString("\n")
		i = j
	}
	return nil
}

func writeSubjectBlock(w *bufio.Writer, ns Namespaces, ts []Triple) {
	w.WriteString(turtleTerm(ns, ts[0].S))
	for i := 0; i < len(ts); {
		pred := ts[i].P
		j := i
		for j < len(ts) && ts[j].P == pred {
			j++
		}
		if i == 0 {
			w.WriteString(" ")
		} else {
			w.WriteString(" ;\n    ")
		}
		if pred == Type {
			w.WriteString("a")
		} else {
			w.WriteString(turtleTerm(ns, pred))
		}
		for k := i; k < j; k++ {
			if k == i {
				w.WriteString(" ")
			} else {
				w.WriteString(",\n        ")
			}
			w.WriteString(turtleTerm(ns, ts[k].O))
		}
		i = j
	}
	w.WriteString(" .\n")
}

func turtleTerm(ns Namespaces, t Term) string {
	switch t.Kind {
	case KindIRI:
		if q := ns.QName(t.Value); q != "" {
			return q
		}
		return t.String()
	case KindLiteral:
		s := `"` + EscapeLiteral(t.Value) + `"`
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" {
			if q := ns.QName(t.Datatype); q != "" {
				return s + "^^" + q
			}
			return s + "^^<" + escapeIRI(t.Datatype) + ">"
		}
		return s
	default:
		return t.String()
	}
}

// typesFirst moves rdf:type statements to the front of a subject block,
// keeping the remaining order.
func typesFirst(ts []Triple) []Triple {
	out := make([]Triple, 0, len(ts))
	for _, t := range ts {
		if t.P == Type {
			out = append(out, t)
		}
	}
	for _, t := range ts {
		if t.P != Type {
			out = append(out, t)
		}
	}
	return out
}
