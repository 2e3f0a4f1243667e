package ontology

import (
	"strings"

	"github.com/bdgould/shiny-sub001/internal/sparql"
)

const (
	owlNS = "http://www.w3.org/2002/07/owl#"
	xsdNS = "http://www.w3.org/2001/XMLSchema#"
)

// iriSet keeps distinct values in insertion order.
type iriSet struct {
	items []string
	seen  map[string]bool
}

func (s *iriSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

func (s *iriSet) has(v string) bool { return s.seen[v] }

type propertyDraft struct {
	Property
	types, domain, rng iriSet
}

type individualDraft struct {
	Individual
	classes iriSet
}

// accumulator merges discovery rows into elements keyed by IRI. Elements
// keep the order in which their IRI was first seen.
type accumulator struct {
	classes     []*Class
	properties  []*propertyDraft
	individuals []*individualDraft

	classByIRI      map[string]*Class
	propertyByIRI   map[string]*propertyDraft
	individualByIRI map[string]*individualDraft
}

func newAccumulator() *accumulator {
	return &accumulator{
		classByIRI:      map[string]*Class{},
		propertyByIRI:   map[string]*propertyDraft{},
		individualByIRI: map[string]*individualDraft{},
	}
}

func (a *accumulator) total() int {
	return len(a.classes) + len(a.properties) + len(a.individuals)
}

// add merges rows for phase and returns how many rows carried an IRI.
func (a *accumulator) add(phase Phase, rows []map[string]sparql.Term) int {
	usable := 0
	for _, row := range rows {
		iri, ok := iriValue(row, "iri")
		if !ok {
			continue
		}
		usable++

		switch phase {
		case PhaseClasses:
			c, ok := a.classByIRI[iri]
			if !ok {
				c = &Class{Resource: Resource{IRI: iri}}
				a.classByIRI[iri] = c
				a.classes = append(a.classes, c)
				setScalars(&c.Resource, row)
			}

		case PhaseProperties:
			p, ok := a.propertyByIRI[iri]
			if !ok {
				p = &propertyDraft{Property: Property{Resource: Resource{IRI: iri}}}
				a.propertyByIRI[iri] = p
				a.properties = append(a.properties, p)
				setScalars(&p.Resource, row)
			}
			if v, ok := iriValue(row, "type"); ok {
				p.types.add(v)
			}
			if v, ok := iriValue(row, "domain"); ok {
				p.domain.add(v)
			}
			if v, ok := iriValue(row, "range"); ok {
				p.rng.add(v)
			}

		case PhaseIndividuals:
			ind, ok := a.individualByIRI[iri]
			if !ok {
				ind = &individualDraft{Individual: Individual{Resource: Resource{IRI: iri}}}
				a.individualByIRI[iri] = ind
				a.individuals = append(a.individuals, ind)
				setScalars(&ind.Resource, row)
			}
			if v, ok := iriValue(row, "class"); ok {
				ind.classes.add(v)
			}
		}
	}
	return usable
}

// build finalises the elements, deriving namespace and local name.
func (a *accumulator) build() ([]Class, []Property, []Individual) {
	classes := make([]Class, 0, len(a.classes))
	for _, c := range a.classes {
		out := *c
		splitResource(&out.Resource)
		classes = append(classes, out)
	}

	properties := make([]Property, 0, len(a.properties))
	for _, d := range a.properties {
		out := d.Property
		out.Domain = d.domain.items
		out.Range = d.rng.items
		out.PropertyType = inferPropertyType(&d.types, d.rng.items)
		splitResource(&out.Resource)
		properties = append(properties, out)
	}

	individuals := make([]Individual, 0, len(a.individuals))
	for _, d := range a.individuals {
		out := d.Individual
		out.Classes = d.classes.items
		splitResource(&out.Resource)
		individuals = append(individuals, out)
	}
	return classes, properties, individuals
}

// inferPropertyType prefers an explicit OWL type, then guesses from the
// range: any XSD datatype makes it a datatype property.
func inferPropertyType(types *iriSet, ranges []string) PropertyType {
	switch {
	case types.has(owlNS + "ObjectProperty"):
		return ObjectProperty
	case types.has(owlNS + "DatatypeProperty"):
		return DatatypeProperty
	case types.has(owlNS + "AnnotationProperty"):
		return AnnotationProperty
	}
	for _, r := range ranges {
		if strings.HasPrefix(r, xsdNS) {
			return DatatypeProperty
		}
	}
	return ObjectProperty
}

// setScalars copies label and description from the first row seen for an
// IRI. Later rows never change them, even when the first left them empty.
func setScalars(r *Resource, row map[string]sparql.Term) {
	if v, ok := sparql.Value(row, "label"); ok {
		r.Label = v
	}
	if v, ok := sparql.Value(row, "description"); ok {
		r.Description = v
	}
}

func splitResource(r *Resource) {
	r.Namespace, r.LocalName = SplitIRI(r.IRI)
}

// iriValue returns a non-blank-node value bound to name.
func iriValue(row map[string]sparql.Term, name string) (string, bool) {
	t, ok := row[name]
	if !ok || t.Type == "bnode" {
		return "", false
	}
	v := strings.TrimSpace(t.Value)
	return v, v != ""
}
