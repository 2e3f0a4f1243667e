package ontology

// Discovery queries. Each binds ?iri plus optional ?label and ?description;
// properties add ?type, ?domain and ?range, individuals add ?class.
const (
	DefaultClassesQuery = `PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX owl: <http://www.w3.org/2002/07/owl#>

SELECT DISTINCT ?iri ?label ?description
WHERE {
  { ?iri a owl:Class } UNION { ?iri a rdfs:Class }
  FILTER(isIRI(?iri))
  OPTIONAL { ?iri rdfs:label ?label }
  OPTIONAL { ?iri rdfs:comment ?description }
}
ORDER BY ?iri`

	DefaultPropertiesQuery = `PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX owl: <http://www.w3.org/2002/07/owl#>

SELECT DISTINCT ?iri ?label ?description ?type ?domain ?range
WHERE {
  VALUES ?type { owl:ObjectProperty owl:DatatypeProperty owl:AnnotationProperty rdf:Property }
  ?iri a ?type .
  FILTER(isIRI(?iri))
  OPTIONAL { ?iri rdfs:label ?label }
  OPTIONAL { ?iri rdfs:comment ?description }
  OPTIONAL { ?iri rdfs:domain ?domain }
  OPTIONAL { ?iri rdfs:range ?range }
}
ORDER BY ?iri`

	DefaultIndividualsQuery = `PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX owl: <http://www.w3.org/2002/07/owl#>

SELECT DISTINCT ?iri ?label ?description ?class
WHERE {
  ?iri a ?class .
  { ?class a owl:Class } UNION { ?class a rdfs:Class }
  FILTER(isIRI(?iri))
  OPTIONAL { ?iri rdfs:label ?label }
  OPTIONAL { ?iri rdfs:comment ?description }
}
ORDER BY ?iri`
)
