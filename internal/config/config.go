// Package config loads the backend registry from sparqlgw.yaml and holds
// credentials in memory.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/ontology"
	"github.com/spf13/viper"
)

// FileName is the config file looked for during discovery.
const FileName = "sparqlgw.yaml"

// EnvConfig overrides config discovery.
const EnvConfig = "SPARQLGW_CONFIG"

// ErrNoConfig is returned when discovery finds no config file.
var ErrNoConfig = errors.New("no " + FileName + " found (set " + EnvConfig + ", use --config, or run from a directory containing " + FileName + ")")

// CacheSettings is the cache section of the file, globally or per backend.
// Unset fields inherit from the level above.
type CacheSettings struct {
	Enabled     *bool            `mapstructure:"enabled"`
	TTL         time.Duration    `mapstructure:"ttl"`
	MaxElements int              `mapstructure:"max_elements"`
	Queries     ontology.Queries `mapstructure:"queries"`
}

// BackendEntry is one backends[] item as written in the file.
type BackendEntry struct {
	ID               string         `mapstructure:"id"`
	Name             string         `mapstructure:"name"`
	Kind             string         `mapstructure:"kind"`
	Endpoint         string         `mapstructure:"endpoint"`
	AuthType         string         `mapstructure:"auth_type"`
	AllowInsecureTLS bool           `mapstructure:"allow_insecure_tls"`
	ProviderConfig   any            `mapstructure:"provider_config"`
	Cache            *CacheSettings `mapstructure:"cache"`
}

// File mirrors sparqlgw.yaml.
type File struct {
	Database      string         `mapstructure:"database"`
	LogLevel      string         `mapstructure:"log_level"`
	CacheDefaults CacheSettings  `mapstructure:"cache_defaults"`
	Backends      []BackendEntry `mapstructure:"backends"`
}

// Discover finds the config file using priority: flag > env > walk-up > XDG.
func Discover(flagPath string) (string, error) {
	// 1. CLI flag
	if flagPath != "" {
		if _, err := os.Stat(flagPath); err != nil {
			return "", fmt.Errorf("config not found at --config path: %s", flagPath)
		}
		return flagPath, nil
	}

	// 2. Environment variable
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("config not found at %s path: %s", EnvConfig, envPath)
	}

	// 3. Walk up from CWD
	if dir, err := os.Getwd(); err == nil {
		for {
			candidate := filepath.Join(dir, FileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 4. XDG fallback
	if dir, err := os.UserConfigDir(); err == nil {
		xdgPath := filepath.Join(dir, "sparqlgw", FileName)
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", ErrNoConfig
}

// Load reads and validates the config file at path.
func Load(path string) (*Registry, *File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	reg, err := NewRegistryFromFile(&f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	reg.Path = path
	return reg, &f, nil
}

func setDefaults(v *viper.Viper) {
	def := ontology.DefaultCachePolicy()
	v.SetDefault("log_level", "info")
	v.SetDefault("cache_defaults.enabled", def.Enabled)
	v.SetDefault("cache_defaults.ttl", def.TTL)
	v.SetDefault("cache_defaults.max_elements", def.MaxElements)
}

// Registry resolves backend ids to validated configs and cache policies.
type Registry struct {
	Path string

	order    []string
	backends map[string]*backend.Config
	policies map[string]ontology.CachePolicy
	defaults ontology.CachePolicy
}

// NewRegistry creates an empty registry whose backends default to policy.
func NewRegistry(defaults ontology.CachePolicy) *Registry {
	return &Registry{
		backends: map[string]*backend.Config{},
		policies: map[string]ontology.CachePolicy{},
		defaults: defaults.WithDefaults(),
	}
}

// NewRegistryFromFile validates every backend entry of f.
func NewRegistryFromFile(f *File) (*Registry, error) {
	reg := NewRegistry(f.CacheDefaults.apply(ontology.DefaultCachePolicy()))

	var errs []error
	for i, e := range f.Backends {
		cfg, err := e.toConfig()
		if err != nil {
			errs = append(errs, fmt.Errorf("backends[%d]: %w", i, err))
			continue
		}
		var policy *ontology.CachePolicy
		if e.Cache != nil {
			p := e.Cache.apply(reg.defaults)
			policy = &p
		}
		if err := reg.Add(cfg, policy); err != nil {
			errs = append(errs, fmt.Errorf("backends[%d]: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reg, nil
}

// Add registers cfg after validating it. A nil policy uses the defaults.
func (r *Registry) Add(cfg *backend.Config, policy *ontology.CachePolicy) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, dup := r.backends[cfg.ID]; dup {
		return backend.NewConfigurationError("register backend", fmt.Errorf("duplicate backend id %q", cfg.ID))
	}
	r.backends[cfg.ID] = cfg
	r.order = append(r.order, cfg.ID)
	if policy != nil {
		r.policies[cfg.ID] = policy.WithDefaults()
	}
	return nil
}

// GetBackend returns the config for id.
func (r *Registry) GetBackend(id string) (*backend.Config, bool) {
	cfg, ok := r.backends[id]
	return cfg, ok
}

// CachePolicy returns the effective cache policy for id.
func (r *Registry) CachePolicy(id string) ontology.CachePolicy {
	if p, ok := r.policies[id]; ok {
		return p
	}
	return r.defaults
}

// Backends returns all configs in file order.
func (r *Registry) Backends() []*backend.Config {
	out := make([]*backend.Config, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.backends[id])
	}
	return out
}

// IDs returns the backend ids, sorted.
func (r *Registry) IDs() []string {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}

// apply overlays the set fields of s on base.
func (s CacheSettings) apply(base ontology.CachePolicy) ontology.CachePolicy {
	if s.Enabled != nil {
		base.Enabled = *s.Enabled
	}
	if s.TTL > 0 {
		base.TTL = s.TTL
	}
	if s.MaxElements > 0 {
		base.MaxElements = s.MaxElements
	}
	if s.Queries.Classes != "" {
		base.Queries.Classes = s.Queries.Classes
	}
	if s.Queries.Properties != "" {
		base.Queries.Properties = s.Queries.Properties
	}
	if s.Queries.Individuals != "" {
		base.Queries.Individuals = s.Queries.Individuals
	}
	return base
}

func (e BackendEntry) toConfig() (*backend.Config, error) {
	kind, err := backend.ParseKind(strings.TrimSpace(e.Kind))
	if err != nil {
		return nil, err
	}
	authType, err := backend.ParseAuthType(strings.TrimSpace(e.AuthType))
	if err != nil {
		return nil, err
	}

	raw, err := rawProviderConfig(e.ProviderConfig)
	if err != nil {
		return nil, backend.NewConfigurationError("parse provider config", fmt.Errorf("backend %s: %w", e.ID, err))
	}
	pc, err := backend.ParseProviderConfig(kind, raw)
	if err != nil {
		return nil, err
	}

	name := e.Name
	if name == "" {
		name = e.ID
	}
	return &backend.Config{
		ID:               strings.TrimSpace(e.ID),
		Name:             name,
		Kind:             kind,
		Endpoint:         strings.TrimSpace(e.Endpoint),
		AuthType:         authType,
		Provider:         pc,
		AllowInsecureTLS: e.AllowInsecureTLS,
	}, nil
}

// rawProviderConfig accepts provider_config as a YAML mapping or as a JSON
// string and returns it as JSON.
func rawProviderConfig(v any) ([]byte, error) {
	switch pc := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(pc), nil
	case map[string]any:
		return json.Marshal(pc)
	case map[any]any:
		m := make(map[string]any, len(pc))
		for k, val := range pc {
			m[fmt.Sprint(k)] = val
		}
		return json.Marshal(m)
	default:
		return nil, fmt.Errorf("provider_config must be a mapping or a JSON string, got %T", v)
	}
}
