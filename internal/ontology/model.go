// Package ontology builds a searchable snapshot of a backend's schema from
// three discovery queries: classes, properties and individuals.
package ontology

import (
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever the cache layout changes.
const SchemaVersion = 1

// ElementType names one of the three element kinds.
type ElementType string

const (
	TypeClass      ElementType = "class"
	TypeProperty   ElementType = "property"
	TypeIndividual ElementType = "individual"
)

// AllElementTypes returns the element kinds in lookup order.
func AllElementTypes() []ElementType {
	return []ElementType{TypeClass, TypeProperty, TypeIndividual}
}

// ParseElementType accepts singular or plural names.
func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "class", "classes":
		return TypeClass, nil
	case "property", "properties":
		return TypeProperty, nil
	case "individual", "individuals":
		return TypeIndividual, nil
	}
	return "", fmt.Errorf("unknown element type %q (want class, property or individual)", s)
}

// PropertyType is the OWL flavour of a property.
type PropertyType string

const (
	ObjectProperty     PropertyType = "object"
	DatatypeProperty   PropertyType = "datatype"
	AnnotationProperty PropertyType = "annotation"
)

// Resource holds the fields every element carries. IRI is the identity.
type Resource struct {
	IRI         string `json:"iri" yaml:"iri"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Namespace   string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	LocalName   string `json:"localName,omitempty" yaml:"localName,omitempty"`
}

// Class is an owl:Class or rdfs:Class.
type Class struct {
	Resource `yaml:",inline"`
}

// Property is an RDF property with its accumulated domain and range.
type Property struct {
	Resource     `yaml:",inline"`
	PropertyType PropertyType `json:"propertyType" yaml:"propertyType"`
	Domain       []string     `json:"domain,omitempty" yaml:"domain,omitempty"`
	Range        []string     `json:"range,omitempty" yaml:"range,omitempty"`
}

// Individual is a named instance of one or more classes.
type Individual struct {
	Resource `yaml:",inline"`
	Classes  []string `json:"classes,omitempty" yaml:"classes,omitempty"`
}

// Element is a *Class, *Property or *Individual.
type Element interface {
	Base() *Resource
	Type() ElementType
}

func (r *Resource) Base() *Resource { return r }

func (*Class) Type() ElementType      { return TypeClass }
func (*Property) Type() ElementType   { return TypeProperty }
func (*Individual) Type() ElementType { return TypeIndividual }

// Stats summarises a cache. TotalCount is the sum of the three element
// counts.
type Stats struct {
	ClassCount      int `json:"classCount" yaml:"classCount"`
	PropertyCount   int `json:"propertyCount" yaml:"propertyCount"`
	IndividualCount int `json:"individualCount" yaml:"individualCount"`
	NamespaceCount  int `json:"namespaceCount" yaml:"namespaceCount"`
	TotalCount      int `json:"totalCount" yaml:"totalCount"`
}

// Metadata describes when and how a cache was built.
type Metadata struct {
	BackendID     string        `json:"backendId" yaml:"backendId"`
	LastUpdated   time.Time     `json:"lastUpdated" yaml:"lastUpdated"`
	TTL           time.Duration `json:"ttl" yaml:"ttl"`
	SchemaVersion int           `json:"schemaVersion" yaml:"schemaVersion"`
	Stats         Stats         `json:"stats" yaml:"stats"`
}

// ExpiresAt is the instant the cache turns stale.
func (m Metadata) ExpiresAt() time.Time { return m.LastUpdated.Add(m.TTL) }

// Cache is the complete schema snapshot of one backend.
type Cache struct {
	Metadata    Metadata          `json:"metadata" yaml:"metadata"`
	Classes     []Class           `json:"classes" yaml:"classes"`
	Properties  []Property        `json:"properties" yaml:"properties"`
	Individuals []Individual      `json:"individuals" yaml:"individuals"`
	Namespaces  map[string]string `json:"namespaces" yaml:"namespaces"`
}

// ComputeStats derives Stats from the cache contents.
func (c *Cache) ComputeStats() Stats {
	s := Stats{
		ClassCount:      len(c.Classes),
		PropertyCount:   len(c.Properties),
		IndividualCount: len(c.Individuals),
		NamespaceCount:  len(c.Namespaces),
	}
	s.TotalCount = s.ClassCount + s.PropertyCount + s.IndividualCount
	return s
}

// Elements returns pointers to the elements of the given types, in the
// order classes, properties, individuals. No types means all of them.
func (c *Cache) Elements(types ...ElementType) []Element {
	if len(types) == 0 {
		types = AllElementTypes()
	}
	want := map[ElementType]bool{}
	for _, t := range types {
		want[t] = true
	}

	var out []Element
	if want[TypeClass] {
		for i := range c.Classes {
			out = append(out, &c.Classes[i])
		}
	}
	if want[TypeProperty] {
		for i := range c.Properties {
			out = append(out, &c.Properties[i])
		}
	}
	if want[TypeIndividual] {
		for i := range c.Individuals {
			out = append(out, &c.Individuals[i])
		}
	}
	return out
}
