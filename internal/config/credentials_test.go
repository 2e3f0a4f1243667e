package config

import (
	"testing"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStore_Env(t *testing.T) {
	t.Setenv("SPARQLGW_MY_GDB_USERNAME", "admin")
	t.Setenv("SPARQLGW_MY_GDB_PASSWORD", "secret")
	t.Setenv("SPARQLGW_MY_GDB_HEADERS", `{"X-Api-Key": "k"}`)

	s := NewCredentialStore()
	c, ok := s.GetCredentials("my-gdb")
	require.True(t, ok)
	assert.Equal(t, "admin", c.Username)
	assert.Equal(t, "secret", c.Password)
	assert.Equal(t, map[string]string{"X-Api-Key": "k"}, c.Headers)

	_, ok = s.GetCredentials("unknown")
	assert.False(t, ok)
}

func TestCredentialStore_SetOverridesEnv(t *testing.T) {
	t.Setenv("SPARQLGW_GDB_TOKEN", "from-env")

	s := NewCredentialStore()
	s.SetCredentials("gdb", backend.Credentials{Token: "explicit"})
	c, ok := s.GetCredentials("gdb")
	require.True(t, ok)
	assert.Equal(t, "explicit", c.Token)

	s.DeleteCredentials("gdb")
	c, ok = s.GetCredentials("gdb")
	require.True(t, ok)
	assert.Equal(t, "from-env", c.Token)
}

func TestCredentialStore_ReturnsCopy(t *testing.T) {
	s := NewCredentialStore()
	s.SetCredentials("gdb", backend.Credentials{Username: "a"})

	c, _ := s.GetCredentials("gdb")
	c.Username = "mutated"

	again, _ := s.GetCredentials("gdb")
	assert.Equal(t, "a", again.Username)
}
