package sparql

import (
	"encoding/json"
	"fmt"
)

// Term is one RDF term in a SPARQL JSON results binding.
type Term struct {
	Type     string `json:"type"` // "uri", "literal", "bnode" or "typed-literal"
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// IsIRI reports whether the term is an IRI.
func (t Term) IsIRI() bool { return t.Type == "uri" }

// Results is the application/sparql-results+json document.
type Results struct {
	Head struct {
		Vars []string `json:"vars"`
		Link []string `json:"link,omitempty"`
	} `json:"head"`
	Results *struct {
		Bindings []map[string]Term `json:"bindings"`
	} `json:"results,omitempty"`
	Boolean *bool `json:"boolean,omitempty"`
}

// ParseResults decodes a SPARQL JSON results document. A document carrying
// neither a bindings table nor a boolean is rejected.
func ParseResults(data []byte) (*Results, error) {
	var r Results
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding sparql results: %w", err)
	}
	if r.Results == nil && r.Boolean == nil {
		return nil, fmt.Errorf("sparql results document has neither bindings nor boolean")
	}
	return &r, nil
}

// Bindings returns the solution rows, or nil for an ASK result.
func (r *Results) Bindings() []map[string]Term {
	if r.Results == nil {
		return nil
	}
	return r.Results.Bindings
}

// Len is the number of solutions, or 1 for an ASK result.
func (r *Results) Len() int {
	if r.Results == nil {
		return 1
	}
	return len(r.Results.Bindings)
}

// Value returns the lexical value bound to name in row, if any.
func Value(row map[string]Term, name string) (string, bool) {
	t, ok := row[name]
	if !ok || t.Value == "" {
		return "", false
	}
	return t.Value, true
}
