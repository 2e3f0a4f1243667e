package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bdgould/shiny-sub001/internal/ontology"
)

const resourceColumns = `iri, label, description, namespace, local_name`

// scanResource scans the five resource columns, in resourceColumns order,
// followed by any extra destinations.
func scanResource(scanner interface{ Scan(dest ...any) error }, r *ontology.Resource, extra ...any) error {
	var label, description, namespace, localName sql.NullString
	dest := append([]any{&r.IRI, &label, &description, &namespace, &localName}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return err
	}
	r.Label = label.String
	r.Description = description.String
	r.Namespace = namespace.String
	r.LocalName = localName.String
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeIRIs(iris []string) (any, error) {
	if iris == nil {
		return nil, nil
	}
	b, err := json.Marshal(iris)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeIRIs(raw sql.NullString) ([]string, error) {
	if !raw.Valid {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, fmt.Errorf("decoding IRI list: %w", err)
	}
	return out, nil
}

// where builds the predicate for one backend's rows plus an optional filter.
func where(filter string) string {
	if filter == "" {
		return "backend_id = ?"
	}
	return "backend_id = ? AND (" + filter + ")"
}

func loadClasses(ctx context.Context, q querier, backendID, filter string, args ...any) ([]ontology.Class, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+resourceColumns+`
		FROM ontology_classes WHERE `+where(filter)+`
		ORDER BY position
	`, append([]any{backendID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []ontology.Class
	for rows.Next() {
		var c ontology.Class
		if err := scanResource(rows, &c.Resource); err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

func loadProperties(ctx context.Context, q querier, backendID, filter string, args ...any) ([]ontology.Property, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+resourceColumns+`, property_type, domain_json, range_json
		FROM ontology_properties WHERE `+where(filter)+`
		ORDER BY position
	`, append([]any{backendID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []ontology.Property
	for rows.Next() {
		var (
			p                 ontology.Property
			ptype             string
			domain, rangeJSON sql.NullString
		)
		if err := scanResource(rows, &p.Resource, &ptype, &domain, &rangeJSON); err != nil {
			return nil, err
		}
		p.PropertyType = ontology.PropertyType(ptype)
		if p.Domain, err = decodeIRIs(domain); err != nil {
			return nil, err
		}
		if p.Range, err = decodeIRIs(rangeJSON); err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

func loadIndividuals(ctx context.Context, q querier, backendID, filter string, args ...any) ([]ontology.Individual, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+resourceColumns+`, classes_json
		FROM ontology_individuals WHERE `+where(filter)+`
		ORDER BY position
	`, append([]any{backendID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var individuals []ontology.Individual
	for rows.Next() {
		var (
			ind     ontology.Individual
			classes sql.NullString
		)
		if err := scanResource(rows, &ind.Resource, &classes); err != nil {
			return nil, err
		}
		if ind.Classes, err = decodeIRIs(classes); err != nil {
			return nil, err
		}
		individuals = append(individuals, ind)
	}
	return individuals, rows.Err()
}

// loadElements returns the elements of one type matching filter, in
// discovery order.
func loadElements(ctx context.Context, q querier, backendID string, typ ontology.ElementType, filter string, args ...any) ([]ontology.Element, error) {
	var out []ontology.Element
	switch typ {
	case ontology.TypeClass:
		classes, err := loadClasses(ctx, q, backendID, filter, args...)
		if err != nil {
			return nil, err
		}
		for i := range classes {
			out = append(out, &classes[i])
		}
	case ontology.TypeProperty:
		properties, err := loadProperties(ctx, q, backendID, filter, args...)
		if err != nil {
			return nil, err
		}
		for i := range properties {
			out = append(out, &properties[i])
		}
	case ontology.TypeIndividual:
		individuals, err := loadIndividuals(ctx, q, backendID, filter, args...)
		if err != nil {
			return nil, err
		}
		for i := range individuals {
			out = append(out, &individuals[i])
		}
	default:
		return nil, fmt.Errorf("unknown element type %q", typ)
	}
	return out, nil
}

// GetByIRI returns the element with iri, or nil if not found. With no type
// it checks classes, then properties, then individuals.
func (d *DB) GetByIRI(ctx context.Context, backendID, iri string, typ ontology.ElementType) (ontology.Element, error) {
	types := ontology.AllElementTypes()
	if typ != "" {
		types = []ontology.ElementType{typ}
	}
	for _, t := range types {
		found, err := loadElements(ctx, d.conn, backendID, t, "iri = ?", iri)
		if err != nil {
			return nil, fmt.Errorf("looking up %s %s: %w", t, iri, err)
		}
		if len(found) > 0 {
			return found[0], nil
		}
	}
	return nil, nil
}
