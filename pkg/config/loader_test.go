package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

type testConfig struct {
	Host     string        `env:"HOST" envDefault:"localhost" yaml:"host"`
	Port     int           `env:"PORT" envDefault:"8080" yaml:"port"`
	Debug    bool          `env:"DEBUG" envDefault:"false" yaml:"debug"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s" yaml:"timeout"`
	Tags     []string      `env:"TAGS" yaml:"tags"`
	Required string        `env:"REQUIRED" yaml:"required" required:"true"`
}

type nestedConfig struct {
	Name     string `env:"NAME" envDefault:"outer" yaml:"name"`
	Provider struct {
		IssuerURL string `env:"ISSUER_URL" yaml:"issuer_url"`
	} `env:"PROVIDER" yaml:"provider"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	cfg.Required = "set"

	err := New().Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("HOST", "gateway.internal")
	t.Setenv("PORT", "9090")
	t.Setenv("DEBUG", "true")
	t.Setenv("TIMEOUT", "1m30s")
	t.Setenv("TAGS", "auth, rate, audit")
	t.Setenv("REQUIRED", "yes")

	var cfg testConfig
	require.NoError(t, New().Load(&cfg))

	assert.Equal(t, "gateway.internal", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"auth", "rate", "audit"}, cfg.Tags)
}

func TestLoad_EnvPrefix(t *testing.T) {
	t.Setenv("GW_HOST", "prefixed")
	t.Setenv("GW_REQUIRED", "yes")
	// Unprefixed var must be ignored when a prefix is configured.
	t.Setenv("HOST", "unprefixed")

	var cfg testConfig
	require.NoError(t, New().WithEnvPrefix("GW").Load(&cfg))
	assert.Equal(t, "prefixed", cfg.Host)
}

func TestLoad_NestedEnvPrefix(t *testing.T) {
	t.Setenv("APP_PROVIDER_ISSUER_URL", "https://login.example.com/v2.0")

	var cfg nestedConfig
	require.NoError(t, New().WithEnvPrefix("APP").Load(&cfg))
	assert.Equal(t, "https://login.example.com/v2.0", cfg.Provider.IssuerURL)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	data := "host: from-file\nport: 7070\nrequired: file-set\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	var cfg testConfig
	require.NoError(t, New().WithFile(path).Load(&cfg))

	assert.Equal(t, "from-file", cfg.Host)
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: from-file\nrequired: x\n"), 0o600))

	t.Setenv("HOST", "from-env")

	var cfg testConfig
	require.NoError(t, New().WithFile(path).Load(&cfg))
	assert.Equal(t, "from-env", cfg.Host)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	var cfg testConfig
	cfg.Required = "set"
	require.NoError(t, New().WithFile("/nonexistent/gateway.yaml").Load(&cfg))
	assert.Equal(t, "localhost", cfg.Host)
}

func TestLoad_RejectsTraversalAndBadExtension(t *testing.T) {
	var cfg testConfig
	cfg.Required = "set"

	err := New().WithFile("../secrets.yaml").Load(&cfg)
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeInternalConfiguration))

	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o600))
	err = New().WithFile(path).Load(&cfg)
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeInternalConfiguration))
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg testConfig
	err := New().Load(&cfg)
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeValidationRequired))
	assert.Contains(t, err.Error(), "Required")
}

func TestLoad_InvalidTarget(t *testing.T) {
	require.Error(t, New().Load(nil))

	var notStruct int
	require.Error(t, New().Load(&notStruct))

	var cfg testConfig
	require.Error(t, New().Load(cfg)) //nolint:govet // non-pointer on purpose
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	assert.Panics(t, func() {
		_ = MustLoad[testConfig](New())
	})
}

// ---------------------------------------------------------------------------
// Gateway config validation
// ---------------------------------------------------------------------------

func validGateway() Gateway {
	return Gateway{
		ListenAddr:         ":8080",
		Realm:              "association-registry",
		JWKSCacheTTL:       10 * time.Minute,
		JWKSFetchPerMinute: 10,
		ClockSkew:          30 * time.Second,
		AzureAD: Provider{
			IssuerURL: "https://login.microsoftonline.com/tenant/v2.0",
			JWKSURL:   "https://login.microsoftonline.com/tenant/discovery/v2.0/keys",
			Audiences: []string{"api://client-id", "client-id"},
		},
	}
}

func TestGateway_Validate(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		g := validGateway()
		assert.NoError(t, g.Validate())
	})

	t.Run("no providers", func(t *testing.T) {
		t.Parallel()
		g := validGateway()
		g.AzureAD = Provider{}
		err := g.Validate()
		require.Error(t, err)
		assert.True(t, gwerr.IsValidation(err))
	})

	t.Run("provider without JWKS URL", func(t *testing.T) {
		t.Parallel()
		g := validGateway()
		g.AzureAD.JWKSURL = ""
		assert.Error(t, g.Validate())
	})

	t.Run("provider without audiences", func(t *testing.T) {
		t.Parallel()
		g := validGateway()
		g.AzureAD.Audiences = nil
		assert.Error(t, g.Validate())
	})

	t.Run("zero fetch budget", func(t *testing.T) {
		t.Parallel()
		g := validGateway()
		g.JWKSFetchPerMinute = 0
		assert.Error(t, g.Validate())
	})

	t.Run("negative clock skew", func(t *testing.T) {
		t.Parallel()
		g := validGateway()
		g.ClockSkew = -time.Second
		assert.Error(t, g.Validate())
	})
}

func TestLoad_GatewayValidatorIsInvoked(t *testing.T) {
	// No providers configured: the custom Validate must reject the load.
	var g Gateway
	err := New().Load(&g)
	require.Error(t, err)
	assert.True(t, gwerr.IsValidation(err))
}
