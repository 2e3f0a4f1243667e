package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderConfig(t *testing.T) {
	pc, err := ParseProviderConfig(KindGraphDB, []byte(`{"repositoryId":"wine","inference":false,"timeoutSeconds":12}`))
	require.NoError(t, err)
	gdb, ok := pc.(GraphDBConfig)
	require.True(t, ok)
	assert.Equal(t, "wine", gdb.RepositoryID)
	assert.False(t, gdb.InferenceEnabled())
	assert.True(t, gdb.SameAsEnabled())
	assert.Equal(t, 12, gdb.TimeoutSeconds)
}

func TestParseProviderConfig_Empty(t *testing.T) {
	pc, err := ParseProviderConfig(KindSPARQL11, nil)
	require.NoError(t, err)
	assert.Equal(t, KindSPARQL11, pc.Kind())

	pc, err = ParseProviderConfig(KindNeptune, []byte("  "))
	require.NoError(t, err)
	assert.Equal(t, KindNeptune, pc.Kind())
}

func TestParseProviderConfig_Malformed(t *testing.T) {
	for _, kind := range AllKinds() {
		t.Run(string(kind), func(t *testing.T) {
			_, err := ParseProviderConfig(kind, []byte(`{"repositoryId":`))
			require.Error(t, err)
			assert.True(t, IsConfiguration(err))
		})
	}
}

func TestParseProviderConfig_UnknownKind(t *testing.T) {
	_, err := ParseProviderConfig(Kind("virtuoso"), nil)
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestProviderConfigAs(t *testing.T) {
	cfg := &Config{ID: "b1", Kind: KindAnzo, Endpoint: "https://anzo", Provider: AnzoConfig{GraphmartURI: "http://g"}}

	got, err := ProviderConfigAs[AnzoConfig](cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://g", got.GraphmartURI)

	_, err = ProviderConfigAs[GraphDBConfig](cfg)
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestProviderConfigAs_MissingRequired(t *testing.T) {
	cfg := &Config{ID: "b1", Kind: KindGraphDB, Endpoint: "http://gdb"}
	_, err := ProviderConfigAs[GraphDBConfig](cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repositoryId")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil", nil, "nil"},
		{"missing id", &Config{Kind: KindSPARQL11, Endpoint: "http://x"}, "id is required"},
		{"unknown kind", &Config{ID: "a", Kind: "virtuoso", Endpoint: "http://x"}, "unknown backend kind"},
		{"missing endpoint", &Config{ID: "a", Kind: KindSPARQL11}, "endpoint is required"},
		{"bad auth", &Config{ID: "a", Kind: KindSPARQL11, Endpoint: "http://x", AuthType: "kerberos"}, "unknown auth type"},
		{"mismatched provider", &Config{ID: "a", Kind: KindSPARQL11, Endpoint: "http://x", Provider: MobiConfig{}}, "provider config is for mobi"},
		{"mobi record without id", &Config{ID: "a", Kind: KindMobi, Endpoint: "http://x", Provider: MobiConfig{QueryMode: MobiRecordMode}}, "recordId"},
		{"valid", &Config{ID: "a", Kind: KindSPARQL11, Endpoint: "http://x", AuthType: AuthNone}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsConfiguration(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAnzoConfig_UseAllLayers(t *testing.T) {
	no := false
	yes := true
	assert.True(t, AnzoConfig{}.UseAllLayers())
	assert.False(t, AnzoConfig{Layers: []string{"l1"}}.UseAllLayers())
	assert.True(t, AnzoConfig{Layers: []string{"l1"}, AllLayers: &yes}.UseAllLayers())
	assert.False(t, AnzoConfig{Layers: []string{"l1"}, AllLayers: &no}.UseAllLayers())
	assert.True(t, AnzoConfig{AllLayers: &no}.UseAllLayers())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" GraphDB ")
	require.NoError(t, err)
	assert.Equal(t, KindGraphDB, k)

	_, err = ParseKind("")
	assert.Error(t, err)
}
