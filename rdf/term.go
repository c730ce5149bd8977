// Package rdf holds the data model shared by the store, the partition
// extractor and the resource projector: terms, triples, in-memory graphs
// and namespace bindings.
package rdf

import (
	"strings"
)

// Kind tags the variant held by a Term.
type Kind uint8

const (
	KindIRI Kind = iota + 1
	KindLiteral
	KindBlank
)

func (k Kind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindLiteral:
		return "literal"
	case KindBlank:
		return "blank"
	default:
		return "invalid"
	}
}

// Term is an RDF term. It is comparable and can be used as a map key.
// Datatype and Lang are only meaningful for literals.
type Term struct {
	Kind     Kind
	Value    string
	Datatype string
	Lang     string
}

// IRI returns a resource identifier term.
func IRI(v string) Term { return Term{Kind: KindIRI, Value: v} }

// Blank returns a blank node term with the given label (without "_:").
func Blank(label string) Term { return Term{Kind: KindBlank, Value: strings.TrimPrefix(label, "_:")} }

// Literal returns a plain string literal.
func Literal(v string) Term { return Term{Kind: KindLiteral, Value: v} }

// TypedLiteral returns a literal with an explicit datatype IRI.
// xsd:string is folded into the plain form.
func TypedLiteral(v, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: v, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal.
func LangLiteral(v, lang string) Term {
	return Term{Kind: KindLiteral, Value: v, Lang: strings.ToLower(lang)}
}

func (t Term) IsIRI() bool     { return t.Kind == KindIRI }
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }
func (t Term) IsBlank() bool   { return t.Kind == KindBlank }
func (t Term) IsZero() bool    { return t.Kind == 0 }

// IsResource reports whether the term names a node (IRI or blank node)
// rather than a value.
func (t Term) IsResource() bool { return t.Kind == KindIRI || t.Kind == KindBlank }

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + escapeIRI(t.Value) + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := `"` + EscapeLiteral(t.Value) + `"`
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" {
			return s + "^^<" + escapeIRI(t.Datatype) + ">"
		}
		return s
	default:
		return ""
	}
}

// Compare orders terms by kind, then value, datatype and language.
func Compare(a, b Term) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	if c := strings.Compare(a.Datatype, b.Datatype); c != 0 {
		return c
	}
	return strings.Compare(a.Lang, b.Lang)
}

// EscapeLiteral escapes a lexical form for use between double quotes.
func EscapeLiteral(s string) string {
	if !strings.ContainsAny(s, "\\\"\n\r\t") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func escapeIRI(s string) string {
	if !strings.ContainsAny(s, "<>\"{}|^`\\ ") {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '<', '>', '"', '{', '}', '|', '^', '`', '\\', ' ':
			sb.WriteString(percentEncode(r))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func percentEncode(r rune) string {
	const hex = "0123456789ABCDEF"
	b := byte(r)
	return string([]byte{'%', hex[b>>4], hex[b&0x0f]})
}
