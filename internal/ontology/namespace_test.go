package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitIRI(t *testing.T) {
	tests := []struct {
		iri, ns, local string
	}{
		{"http://example.org/ont#Person", "http://example.org/ont#", "Person"},
		{"http://example.org/ont/Person", "http://example.org/ont/", "Person"},
		{"http://example.org/a#b/c", "http://example.org/a#", "b/c"},
		{"urn:isbn:123", "", "urn:isbn:123"},
		{"http://example.org/", "http://example.org/", ""},
	}
	for _, tt := range tests {
		ns, local := SplitIRI(tt.iri)
		assert.Equal(t, tt.ns, ns, tt.iri)
		assert.Equal(t, tt.local, local, tt.iri)
	}
}

func TestBuildNamespaces_SharedNamespaceGetsNs1(t *testing.T) {
	got := BuildNamespaces([]string{"http://example.org/ont#", "http://example.org/ont#"})
	assert.Equal(t, map[string]string{"ns1": "http://example.org/ont#"}, got)
}

func TestBuildNamespaces_ThresholdAndOrder(t *testing.T) {
	rdfs := WellKnownNamespaces["rdfs"]
	got := BuildNamespaces([]string{
		"http://b.org/", "http://a.org/#", rdfs, "http://a.org/#",
		"http://lonely.org/", rdfs, "http://b.org/", "",
	})
	assert.Equal(t, map[string]string{
		"ns1":  "http://b.org/",
		"ns2":  "http://a.org/#",
		"rdfs": rdfs,
	}, got)
}

func TestBuildNamespaces_WellKnownBelowThreshold(t *testing.T) {
	got := BuildNamespaces([]string{WellKnownNamespaces["owl"]})
	assert.Empty(t, got)
}

func TestExpandAndCompact(t *testing.T) {
	table := map[string]string{"ns1": "http://example.org/ont#"}

	iri, ok := Expand(table, "ns1:Person")
	assert.True(t, ok)
	assert.Equal(t, "http://example.org/ont#Person", iri)

	iri, ok = Expand(table, "skos:Concept")
	assert.True(t, ok)
	assert.Equal(t, "http://www.w3.org/2004/02/skos/core#Concept", iri)

	_, ok = Expand(table, "http://example.org/ont#Person")
	assert.False(t, ok)
	_, ok = Expand(table, "nope:Person")
	assert.False(t, ok)

	assert.Equal(t, "ns1:Person", Compact(table, "http://example.org/ont#Person"))
	assert.Equal(t, "http://other.org/X", Compact(table, "http://other.org/X"))
}
