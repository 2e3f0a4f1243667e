package backend

import (
	"encoding/json"

	"github.com/bdgould/shiny-sub001/internal/sparql"
)

// QueryResult is the typed outcome of executing one query.
// SELECT and ASK results carry the SPARQL JSON document in Data; CONSTRUCT
// and DESCRIBE results carry the serialized graph in Text.
type QueryResult struct {
	QueryType   sparql.QueryType `json:"queryType"`
	ContentType string           `json:"contentType"`
	Data        json.RawMessage  `json:"data,omitempty"`
	Text        string           `json:"text,omitempty"`
}

// Results decodes Data as SPARQL JSON results.
func (r *QueryResult) Results() (*sparql.Results, error) {
	if sparql.IsGraphResult(r.QueryType) {
		return nil, NewParseError("decode results", errGraphResult)
	}
	res, err := sparql.ParseResults(r.Data)
	if err != nil {
		return nil, NewParseError("decode results", err)
	}
	return res, nil
}

// ValidationResult is the outcome of a connectivity check. Validate never
// fails with an error value; problems are reported in Error.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationFrom converts the error of a validation query into a ValidationResult.
func ValidationFrom(err error) ValidationResult {
	if err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}
	return ValidationResult{Valid: true}
}
