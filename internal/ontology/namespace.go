package ontology

import (
	"sort"
	"strconv"
	"strings"
)

// WellKnownNamespaces maps canonical prefixes to their namespace IRIs.
var WellKnownNamespaces = map[string]string{
	"rdf":     "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs":    "http://www.w3.org/2000/01/rdf-schema#",
	"owl":     "http://www.w3.org/2002/07/owl#",
	"xsd":     "http://www.w3.org/2001/XMLSchema#",
	"dc":      "http://purl.org/dc/elements/1.1/",
	"dcterms": "http://purl.org/dc/terms/",
	"skos":    "http://www.w3.org/2004/02/skos/core#",
	"foaf":    "http://xmlns.com/foaf/0.1/",
}

var canonicalPrefix = func() map[string]string {
	m := make(map[string]string, len(WellKnownNamespaces))
	for prefix, ns := range WellKnownNamespaces {
		m[ns] = prefix
	}
	return m
}()

// minNamespaceMembers is how many elements must share a namespace before it
// earns a prefix.
const minNamespaceMembers = 2

// SplitIRI splits iri at the last '#', else the last '/'. The separator
// stays with the namespace. An IRI with neither is all local name.
func SplitIRI(iri string) (namespace, localName string) {
	if i := strings.LastIndexByte(iri, '#'); i >= 0 {
		return iri[:i+1], iri[i+1:]
	}
	if i := strings.LastIndexByte(iri, '/'); i >= 0 {
		return iri[:i+1], iri[i+1:]
	}
	return "", iri
}

// BuildNamespaces assigns prefixes to namespaces shared by at least two of
// the given element namespaces. Generated prefixes ns1, ns2, ... follow the
// order in which namespaces first appear; a well-known namespace keeps its
// number slot but is published under its canonical prefix.
func BuildNamespaces(namespaces []string) map[string]string {
	counts := map[string]int{}
	var order []string
	for _, ns := range namespaces {
		if ns == "" {
			continue
		}
		if counts[ns] == 0 {
			order = append(order, ns)
		}
		counts[ns]++
	}

	table := map[string]string{}
	n := 0
	for _, ns := range order {
		if counts[ns] < minNamespaceMembers {
			continue
		}
		n++
		prefix := "ns" + strconv.Itoa(n)
		if canonical, ok := canonicalPrefix[ns]; ok {
			prefix = canonical
		}
		table[prefix] = ns
	}
	return table
}

// PrefixFor returns the prefix bound to namespace in table.
func PrefixFor(table map[string]string, namespace string) (string, bool) {
	for prefix, ns := range table {
		if ns == namespace {
			return prefix, true
		}
	}
	return "", false
}

// Expand resolves a prefixed name such as "ns1:Person" against table, then
// against the well-known prefixes.
func Expand(table map[string]string, curie string) (string, bool) {
	prefix, local, ok := strings.Cut(curie, ":")
	if !ok || strings.HasPrefix(local, "//") {
		return "", false
	}
	if ns, ok := table[prefix]; ok {
		return ns + local, true
	}
	if ns, ok := WellKnownNamespaces[prefix]; ok {
		return ns + local, true
	}
	return "", false
}

// Compact renders iri as prefix:local when its namespace has a prefix.
func Compact(table map[string]string, iri string) string {
	ns, local := SplitIRI(iri)
	if prefix, ok := PrefixFor(table, ns); ok {
		return prefix + ":" + local
	}
	return iri
}

// SortedPrefixes returns the prefixes of table in display order.
func SortedPrefixes(table map[string]string) []string {
	out := make([]string, 0, len(table))
	for p := range table {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
