package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"APP_ENV", "APP_VERSION", "SERVER_ADDR", "OPS_ADDR", "STATIC_DIR", "PUBLIC_BASE_URL",
	"SHUTDOWN_TIMEOUT", "STORAGE_DRIVER", "STORAGE_DSN", "DATABASE_URL", "MIGRATE",
	"CACHE_KIND", "CACHE_TTL", "REDIS_ADDR", "REDIS_DB", "REDIS_PREFIX", "REDIS_PASSWORD",
	"RATE_ENABLED", "RATE_WINDOW", "RATE_MAX_REQUESTS", "CLIENT_ID", "CLIENT_SECRET",
	"OAUTH_CALLBACK_PATH", "OAUTH_SCOPES", "IDENTITY_SOURCE", "STATE_SECRET",
	"COOKIE_NAME", "COOKIE_DOMAIN", "COOKIE_SAMESITE", "COOKIE_SECURE", "LOG_LEVEL",
	"TRUSTED_PROXIES",
}

// clearEnv deja vacías las variables que lee applyEnvOverrides.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "cid")
	t.Setenv("CLIENT_SECRET", "csecret")
	t.Setenv("DATABASE_URL", "postgres://localhost/questions")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":3001", c.Server.Addr)
	assert.Equal(t, ":9090", c.Server.OpsAddr)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, []string{"profile"}, c.OAuth.GitHub.Scopes)
	assert.Equal(t, "profile", c.Auth.IdentitySource)
	assert.Equal(t, "accessToken", c.Auth.CookieName)
	assert.Equal(t, 2*time.Minute, c.CacheTTL())
	assert.Equal(t, time.Minute, c.RateWindow())
	assert.Equal(t, 30, c.Rate.MaxRequests)
	assert.Equal(t, "http://localhost:3001/api/auth/github/callback", c.RedirectURL())
}

func TestValidateRequiresSecrets(t *testing.T) {
	clearEnv(t)
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLIENT_ID")
	assert.Contains(t, err.Error(), "CLIENT_SECRET")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestMemoryDriverNeedsNoDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "cid")
	t.Setenv("CLIENT_SECRET", "csecret")
	t.Setenv("STORAGE_DRIVER", "memory")

	_, err := FromEnv()
	require.NoError(t, err)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	p := writeYAML(t, `
server:
  addr: ":8000"
  public_base_url: "https://questions.example/"
storage:
  driver: memory
cache:
  kind: redis
  ttl: 30s
oauth:
  github:
    client_id: yaml-id
    client_secret: yaml-secret
`)
	t.Setenv("CLIENT_ID", "env-id")
	t.Setenv("OAUTH_SCOPES", "read:user, profile")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":8000", c.Server.Addr)
	assert.Equal(t, "env-id", c.OAuth.GitHub.ClientID)
	assert.Equal(t, "yaml-secret", c.OAuth.GitHub.ClientSecret)
	assert.Equal(t, []string{"read:user", "profile"}, c.OAuth.GitHub.Scopes)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, 30*time.Second, c.CacheTTL())
	assert.Equal(t, "https://questions.example/api/auth/github/callback", c.RedirectURL())
}

func TestDatabaseURLWinsOverStorageDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "cid")
	t.Setenv("CLIENT_SECRET", "csecret")
	t.Setenv("STORAGE_DSN", "postgres://old")
	t.Setenv("DATABASE_URL", "postgres://new")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://new", c.Storage.DSN)
}

func TestResolveProductionIgnoresFile(t *testing.T) {
	clearEnv(t)
	p := writeYAML(t, "oauth:\n  github:\n    client_id: from-file\n    client_secret: s\nstorage:\n  driver: memory\n")
	t.Setenv("APP_ENV", "production")

	_, err := Resolve(p)
	require.Error(t, err, "production must not read client id from the file")

	t.Setenv("APP_ENV", "dev")
	c, err := Resolve(p)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.OAuth.GitHub.ClientID)
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "cid")
	t.Setenv("CLIENT_SECRET", "csecret")
	t.Setenv("STORAGE_DRIVER", "memory")

	cases := map[string][2]string{
		"driver":   {"STORAGE_DRIVER", "mongo"},
		"identity": {"IDENTITY_SOURCE", "email"},
		"callback": {"OAUTH_CALLBACK_PATH", "/auth/github/callback"},
		"ttl":      {"CACHE_TTL", "soon"},
		"kind":     {"CACHE_KIND", "memcached"},
		"proxies":  {"TRUSTED_PROXIES", "10.0.0.0/33"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			require.Error(t, err)
		})
	}
}

func TestTrustedProxiesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "cid")
	t.Setenv("CLIENT_SECRET", "csecret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.7"}, c.Server.TrustedProxies)
}

func TestRedactedMasksSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "cid")
	t.Setenv("CLIENT_SECRET", "super-secret")
	t.Setenv("DATABASE_URL", "postgres://user:pw@db/questions")

	c, err := FromEnv()
	require.NoError(t, err)
	out, err := c.Redacted().YAML()
	require.NoError(t, err)
	assert.NotContains(t, out, "super-secret")
	assert.NotContains(t, out, "pw@db")
	assert.Contains(t, out, "cid")
	assert.Equal(t, "super-secret", c.OAuth.GitHub.ClientSecret)
}
