package backend

import (
	"fmt"
	"strings"
)

// Kind identifies the product or protocol family a backend belongs to.
type Kind string

const (
	KindSPARQL11 Kind = "sparql11"
	KindGraphDB  Kind = "graphdb"
	KindAnzo     Kind = "anzo"
	KindMobi     Kind = "mobi"
	KindStardog  Kind = "stardog"
	KindNeptune  Kind = "neptune"
)

// AllKinds returns the closed set of backend kinds in declaration order.
func AllKinds() []Kind {
	return []Kind{KindSPARQL11, KindGraphDB, KindAnzo, KindMobi, KindStardog, KindNeptune}
}

// ParseKind maps a kind id to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", NewConfigurationError("parse kind", fmt.Errorf("unknown backend kind %q", s))
}

func (k Kind) String() string { return string(k) }

// AuthType selects the credential strategy for per-request auth headers.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthCustom AuthType = "custom"
)

// ParseAuthType maps an auth type id to an AuthType. Empty means none.
func ParseAuthType(s string) (AuthType, error) {
	switch a := AuthType(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AuthNone, nil
	case AuthNone, AuthBasic, AuthBearer, AuthCustom:
		return a, nil
	default:
		return "", NewConfigurationError("parse auth type", fmt.Errorf("unknown auth type %q", s))
	}
}
