// Package sparql holds the small amount of SPARQL awareness the gateway
// needs: recognising a query's operation kind and decoding SPARQL JSON
// results. Queries are never evaluated locally.
package sparql

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// QueryType is the operation kind declared by a query.
type QueryType string

const (
	Select    QueryType = "SELECT"
	Construct QueryType = "CONSTRUCT"
	Describe  QueryType = "DESCRIBE"
	Ask       QueryType = "ASK"
)

func (q QueryType) String() string { return string(q) }

// ErrUpdate is returned by Parse for SPARQL Update requests.
var ErrUpdate = errors.New("sparql update operation")

var updateKeywords = map[string]bool{
	"INSERT": true, "DELETE": true, "LOAD": true, "CLEAR": true,
	"CREATE": true, "DROP": true, "COPY": true, "MOVE": true,
	"ADD": true, "WITH": true,
}

// Classify returns the operation kind of query. Update requests and text
// that cannot be parsed classify as SELECT.
func Classify(query string) QueryType {
	qt, err := Parse(query)
	if err != nil {
		return Select
	}
	return qt
}

// Parse reads the query prologue (BASE and PREFIX declarations) and returns
// the operation keyword that follows it.
func Parse(query string) (QueryType, error) {
	lx := &lexer{src: query}
	for {
		tok, err := lx.next()
		if err != nil {
			return "", err
		}
		if tok.kind == tokEOF {
			return "", fmt.Errorf("empty query")
		}
		if tok.kind != tokWord {
			return "", fmt.Errorf("unexpected %q at offset %d", tok.text, tok.pos)
		}

		kw := strings.ToUpper(tok.text)
		switch kw {
		case "BASE":
			if err := lx.expect(tokIRI); err != nil {
				return "", fmt.Errorf("BASE: %w", err)
			}
		case "PREFIX":
			name, err := lx.next()
			if err != nil {
				return "", err
			}
			if name.kind != tokWord || !strings.HasSuffix(name.text, ":") {
				return "", fmt.Errorf("PREFIX: expected prefix name at offset %d", name.pos)
			}
			if err := lx.expect(tokIRI); err != nil {
				return "", fmt.Errorf("PREFIX %s %w", name.text, err)
			}
		case "SELECT", "CONSTRUCT", "DESCRIBE", "ASK":
			return QueryType(kw), nil
		default:
			if updateKeywords[kw] {
				return "", ErrUpdate
			}
			return "", fmt.Errorf("unknown operation %q", tok.text)
		}
	}
}

// AcceptHeader returns the media type requested from an endpoint for qt.
func AcceptHeader(qt QueryType) string {
	if IsGraphResult(qt) {
		return "text/turtle"
	}
	return "application/sparql-results+json"
}

// IsGraphResult reports whether qt yields an RDF graph rather than a
// results table.
func IsGraphResult(qt QueryType) bool {
	return qt == Construct || qt == Describe
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokIRI
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) expect(kind tokenKind) error {
	tok, err := l.next()
	if err != nil {
		return err
	}
	if tok.kind != kind {
		return fmt.Errorf("unexpected %q at offset %d", tok.text, tok.pos)
	}
	return nil
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '<':
		end := strings.IndexByte(l.src[l.pos:], '>')
		if end < 0 {
			return token{}, fmt.Errorf("unterminated IRI at offset %d", start)
		}
		iri := l.src[l.pos+1 : l.pos+end]
		if strings.ContainsAny(iri, " \t\r\n") {
			return token{}, fmt.Errorf("whitespace in IRI at offset %d", start)
		}
		l.pos += end + 1
		return token{kind: tokIRI, text: iri, pos: start}, nil
	case isWordByte(c):
		for l.pos < len(l.src) && isWordByte(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokWord, text: l.src[start:l.pos], pos: start}, nil
	default:
		l.pos++
		return token{kind: tokPunct, text: string(c), pos: start}, nil
	}
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '#':
			nl := strings.IndexByte(l.src[l.pos:], '\n')
			if nl < 0 {
				l.pos = len(l.src)
				return
			}
			l.pos += nl + 1
		case c < 0x80 && unicode.IsSpace(rune(c)):
			l.pos++
		case c == 0xEF && strings.HasPrefix(l.src[l.pos:], "\ufeff"):
			l.pos += len("\ufeff")
		default:
			return
		}
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c == '-' || c == ':' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= 0x80
}
