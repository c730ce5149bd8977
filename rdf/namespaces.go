package rdf

import (
	"sort"
	"strings"
)

// Namespaces maps short prefixes to namespace IRIs. Bindings only affect
// serialization; they never change term identity.
type Namespaces map[string]string

// DefaultNamespaces returns the bindings every serialized graph carries.
func DefaultNamespaces() Namespaces {
	return Namespaces{
		"rdf":       RDFNS,
		"rdfs":      RDFSNS,
		"xsd":       XSDNS,
		"partition": PartitionNS,
	}
}

// Bind adds or replaces a binding.
func (ns Namespaces) Bind(prefix, iri string) {
	ns[prefix] = iri
}

// Merge copies other's bindings into ns; existing prefixes are kept.
func (ns Namespaces) Merge(other Namespaces) {
	for p, iri := range other {
		if _, ok := ns[p]; !ok {
			ns[p] = iri
		}
	}
}

// Clone returns an independent copy.
func (ns Namespaces) Clone() Namespaces {
	out := make(Namespaces, len(ns))
	for p, iri := range ns {
		out[p] = iri
	}
	return out
}

// Prefixes returns the bound prefixes in sorted order.
func (ns Namespaces) Prefixes() []string {
	out := make([]string, 0, len(ns))
	for p := range ns {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Compact splits iri into a bound prefix and a local name. The longest
// matching namespace wins. ok is false when no binding applies or the
// local part is not a valid Turtle local name.
func (ns Namespaces) Compact(iri string) (prefix, local string, ok bool) {
	best := -1
	for p, base := range ns {
		if base == "" || !strings.HasPrefix(iri, base) {
			continue
		}
		if len(base) > best || (len(base) == best && p < prefix) {
			best = len(base)
			prefix = p
		}
	}
	if best < 0 {
		return "", "", false
	}
	local = iri[best:]
	if !validLocalName(local) {
		return "", "", false
	}
	return prefix, local, true
}

// QName returns the prefixed name of iri, or "" when it cannot be compacted.
func (ns Namespaces) QName(iri string) string {
	p, l, ok := ns.Compact(iri)
	if !ok {
		return ""
	}
	return p + ":" + l
}

// Expand resolves a term written as <iri>, prefix:local or a bare absolute
// IRI. ok is false for an unbound prefix.
func (ns Namespaces) Expand(s string) (Term, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		return IRI(s[1 : len(s)-1]), true
	}
	if s == "a" {
		return Type, true
	}
	if strings.Contains(s, "://") || strings.HasPrefix(s, "urn:") {
		return IRI(s), true
	}
	prefix, local, found := strings.Cut(s, ":")
	if !found {
		return Term{}, false
	}
	base, ok := ns[prefix]
	if !ok {
		return Term{}, false
	}
	return IRI(base + local), true
}

func validLocalName(s string) bool {
	if s == "" {
		return true
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r > 0x7f:
		case r == '-' && i > 0:
		case r == '.' && i > 0 && i < len(s)-1:
		default:
			return false
		}
	}
	return true
}
