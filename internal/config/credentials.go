package config

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes credential environment variables:
// SPARQLGW_<ID>_USERNAME, _PASSWORD, _TOKEN and _HEADERS (a JSON object).
const EnvPrefix = "SPARQLGW"

// CredentialStore holds credentials in memory only. Explicitly set
// credentials take precedence over the environment.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]backend.Credentials
	env   *viper.Viper
}

// NewCredentialStore creates a store that falls back to the environment.
func NewCredentialStore() *CredentialStore {
	env := viper.New()
	env.SetEnvPrefix(EnvPrefix)
	env.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_", " ", "_"))
	env.AutomaticEnv()
	return &CredentialStore{creds: map[string]backend.Credentials{}, env: env}
}

// GetCredentials returns the credentials for id, if any are known.
func (s *CredentialStore) GetCredentials(id string) (*backend.Credentials, bool) {
	s.mu.RLock()
	c, ok := s.creds[id]
	s.mu.RUnlock()
	if ok {
		return &c, true
	}
	return s.fromEnv(id)
}

// SetCredentials replaces the credentials for id.
func (s *CredentialStore) SetCredentials(id string, c backend.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[id] = c
}

// DeleteCredentials forgets explicitly set credentials for id.
func (s *CredentialStore) DeleteCredentials(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, id)
}

func (s *CredentialStore) fromEnv(id string) (*backend.Credentials, bool) {
	c := backend.Credentials{
		Username: s.env.GetString(id + "_username"),
		Password: s.env.GetString(id + "_password"),
		Token:    s.env.GetString(id + "_token"),
	}
	if raw := s.env.GetString(id + "_headers"); raw != "" {
		var h map[string]string
		if err := json.Unmarshal([]byte(raw), &h); err == nil {
			c.Headers = h
		}
	}
	if c.Username == "" && c.Password == "" && c.Token == "" && len(c.Headers) == 0 {
		return nil, false
	}
	return &c, true
}
