package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config is a configured connection to one remote endpoint.
type Config struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Kind             Kind           `json:"kind"`
	Endpoint         string         `json:"endpoint"`
	AuthType         AuthType       `json:"authType"`
	Provider         ProviderConfig `json:"providerConfig,omitempty"`
	AllowInsecureTLS bool           `json:"allowInsecureTLS"`
}

// Validate checks the fields every kind needs. Kind-specific settings are
// checked by the provider config itself.
func (c *Config) Validate() error {
	if c == nil {
		return NewConfigurationError("validate config", fmt.Errorf("backend config is nil"))
	}
	if strings.TrimSpace(c.ID) == "" {
		return NewConfigurationError("validate config", fmt.Errorf("backend id is required"))
	}
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return NewConfigurationError("validate config", fmt.Errorf("backend %s: endpoint is required", c.ID))
	}
	if _, err := ParseAuthType(string(c.AuthType)); err != nil {
		return err
	}
	if c.Provider != nil {
		if c.Provider.Kind() != c.Kind {
			return NewConfigurationError("validate config",
				fmt.Errorf("backend %s: provider config is for %s, backend kind is %s", c.ID, c.Provider.Kind(), c.Kind))
		}
		if err := c.Provider.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ProviderConfig is the kind-specific part of a backend config. The set of
// implementations is closed: one record per Kind.
type ProviderConfig interface {
	Kind() Kind
	Validate() error
}

// SPARQL11Config configures a plain SPARQL 1.1 protocol endpoint.
type SPARQL11Config struct {
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`
}

func (SPARQL11Config) Kind() Kind        { return KindSPARQL11 }
func (c SPARQL11Config) Validate() error { return validateTimeout(KindSPARQL11, c.TimeoutSeconds) }

// GraphDBConfig addresses one repository on a GraphDB server.
type GraphDBConfig struct {
	RepositoryID   string `json:"repositoryId"`
	Inference      *bool  `json:"inference,omitempty"`
	SameAs         *bool  `json:"sameAs,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

func (GraphDBConfig) Kind() Kind { return KindGraphDB }

func (c GraphDBConfig) Validate() error {
	if strings.TrimSpace(c.RepositoryID) == "" {
		return NewConfigurationError("graphdb config", fmt.Errorf("repositoryId is required"))
	}
	return validateTimeout(KindGraphDB, c.TimeoutSeconds)
}

// InferenceEnabled defaults to true when unset.
func (c GraphDBConfig) InferenceEnabled() bool { return c.Inference == nil || *c.Inference }

// SameAsEnabled defaults to true when unset.
func (c GraphDBConfig) SameAsEnabled() bool { return c.SameAs == nil || *c.SameAs }

// AnzoConfig addresses a graphmart and an optional subset of its layers.
type AnzoConfig struct {
	GraphmartURI   string   `json:"graphmartUri"`
	Layers         []string `json:"layers,omitempty"`
	AllLayers      *bool    `json:"allLayers,omitempty"`
	TimeoutSeconds int      `json:"timeoutSeconds,omitempty"`
}

func (AnzoConfig) Kind() Kind { return KindAnzo }

func (c AnzoConfig) Validate() error {
	if strings.TrimSpace(c.GraphmartURI) == "" {
		return NewConfigurationError("anzo config", fmt.Errorf("graphmartUri is required"))
	}
	return validateTimeout(KindAnzo, c.TimeoutSeconds)
}

// UseAllLayers reports whether the query should run against every layer.
// Unset means all layers unless specific layers were listed.
func (c AnzoConfig) UseAllLayers() bool {
	if c.AllLayers != nil {
		return *c.AllLayers || len(c.Layers) == 0
	}
	return len(c.Layers) == 0
}

// MobiQueryMode selects repository-wide or record-scoped queries.
type MobiQueryMode string

const (
	MobiRepositoryMode MobiQueryMode = "repository"
	MobiRecordMode     MobiQueryMode = "record"
)

// DefaultMobiStoreType is used for record mode when none is configured.
const DefaultMobiStoreType = "ontology-record"

// MobiConfig addresses a Mobi repository or a versioned record.
type MobiConfig struct {
	QueryMode      MobiQueryMode `json:"queryMode,omitempty"`
	RepositoryID   string        `json:"repositoryId,omitempty"`
	RecordID       string        `json:"recordId,omitempty"`
	StoreType      string        `json:"storeType,omitempty"`
	BranchID       string        `json:"branchId,omitempty"`
	IncludeImports bool          `json:"includeImports,omitempty"`
	TimeoutSeconds int           `json:"timeoutSeconds,omitempty"`
}

func (MobiConfig) Kind() Kind { return KindMobi }

// Mode returns the query mode, defaulting to repository mode.
func (c MobiConfig) Mode() MobiQueryMode {
	if c.QueryMode == "" {
		return MobiRepositoryMode
	}
	return c.QueryMode
}

// Store returns the record store type, defaulting to ontology records.
func (c MobiConfig) Store() string {
	if c.StoreType == "" {
		return DefaultMobiStoreType
	}
	return c.StoreType
}

func (c MobiConfig) Validate() error {
	switch c.Mode() {
	case MobiRepositoryMode:
		if strings.TrimSpace(c.RepositoryID) == "" {
			return NewConfigurationError("mobi config", fmt.Errorf("repositoryId is required in repository mode"))
		}
	case MobiRecordMode:
		if strings.TrimSpace(c.RecordID) == "" {
			return NewConfigurationError("mobi config", fmt.Errorf("recordId is required in record mode"))
		}
	default:
		return NewConfigurationError("mobi config", fmt.Errorf("unknown queryMode %q", c.QueryMode))
	}
	return validateTimeout(KindMobi, c.TimeoutSeconds)
}

// PlaceholderConfig is accepted for kinds that have no working adapter.
type PlaceholderConfig struct {
	For Kind `json:"-"`
}

func (c PlaceholderConfig) Kind() Kind    { return c.For }
func (PlaceholderConfig) Validate() error { return nil }

func validateTimeout(k Kind, seconds int) error {
	if seconds < 0 {
		return NewConfigurationError(string(k)+" config", fmt.Errorf("timeoutSeconds must not be negative"))
	}
	return nil
}

// ParseProviderConfig decodes the JSON provider config for kind. Empty input
// yields the kind's zero config, which Validate may still reject.
func ParseProviderConfig(kind Kind, raw []byte) (ProviderConfig, error) {
	empty := len(strings.TrimSpace(string(raw))) == 0
	decode := func(v any) error {
		if empty {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return NewConfigurationError("parse provider config", fmt.Errorf("%s: malformed JSON: %w", kind, err))
		}
		return nil
	}

	switch kind {
	case KindSPARQL11:
		var c SPARQL11Config
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case KindGraphDB:
		var c GraphDBConfig
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case KindAnzo:
		var c AnzoConfig
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case KindMobi:
		var c MobiConfig
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case KindStardog, KindNeptune:
		if !empty && !json.Valid(raw) {
			return nil, NewConfigurationError("parse provider config", fmt.Errorf("%s: malformed JSON", kind))
		}
		return PlaceholderConfig{For: kind}, nil
	default:
		return nil, NewConfigurationError("parse provider config", fmt.Errorf("unknown backend kind %q", kind))
	}
}

// ProviderConfigAs returns cfg's provider config as T after validating it.
// A missing config is replaced by T's zero value before validation.
func ProviderConfigAs[T ProviderConfig](cfg *Config) (T, error) {
	var zero T
	if cfg == nil {
		return zero, NewConfigurationError("provider config", fmt.Errorf("backend config is nil"))
	}
	pc := cfg.Provider
	if pc == nil {
		pc = zero
	}
	typed, ok := pc.(T)
	if !ok {
		return zero, NewConfigurationError("provider config",
			fmt.Errorf("backend %s: expected %T provider config, got %T", cfg.ID, zero, pc))
	}
	if err := typed.Validate(); err != nil {
		return zero, err
	}
	return typed, nil
}

// TimeoutOr converts a configured timeout in seconds, falling back to def.
func TimeoutOr(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}
