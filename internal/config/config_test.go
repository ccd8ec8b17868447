package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newFlags(t), envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DriverMemory, cfg.Driver)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.Equal(t, []string{"http://localhost:4200"}, cfg.CORS.Origins)
	assert.Equal(t, []string{".pages.dev"}, cfg.CORS.Suffixes)
	assert.Equal(t, 5, cfg.Limiter.MaxFails)
	assert.True(t, cfg.InsecureSecret())
	assert.NoError(t, cfg.Validate(), "insecure secret is tolerated outside production")
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr = ":7000"
driver = "postgres"
jwt_secret = "from-file"
backend_timeout = "2s"

[reconnect]
max_attempts = 9

[cors]
origins = ["https://a.example"]
`), 0o600))

	env := envMap(map[string]string{
		"TODO_CONFIG":        path,
		"PORT":               "9000",
		"JWT_SECRET":         "from-env",
		"TODO_CORS_SUFFIXES": ".pages.dev, .example.org",
	})
	fs := newFlags(t, "--jwt-secret", "from-flag")

	cfg, err := Load(fs, env)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr, "env beats file")
	assert.Equal(t, DriverPostgres, cfg.Driver, "file beats default")
	assert.Equal(t, "from-flag", cfg.JWTSecret, "flag beats env")
	assert.Equal(t, 2*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 9, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, []string{"https://a.example"}, cfg.CORS.Origins)
	assert.Equal(t, []string{".pages.dev", ".example.org"}, cfg.CORS.Suffixes)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.BaseDelay, "unset file keys keep defaults")
}

func TestLoad_UnchangedFlagsDoNotOverride(t *testing.T) {
	cfg, err := Load(newFlags(t), envMap(map[string]string{"TODO_DRIVER": "mongo"}))
	require.NoError(t, err)
	assert.Equal(t, DriverMongo, cfg.Driver)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(newFlags(t, "--config", "/does/not/exist.toml"), envMap(nil))
	require.Error(t, err)

	_, err = Load(newFlags(t), envMap(map[string]string{"TODO_BACKEND_TIMEOUT": "soon"}))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Env = "production"
	require.ErrorIs(t, cfg.Validate(), ErrInsecureSecret)

	cfg.JWTSecret = ""
	require.ErrorIs(t, cfg.Validate(), ErrInsecureSecret)

	cfg.JWTSecret = "s3cr3t"
	require.NoError(t, cfg.Validate())

	cfg.Driver = "sqlite"
	require.Error(t, cfg.Validate())

	cfg.Driver = DriverDataAPI
	require.Error(t, cfg.Validate(), "data api needs url and key")
	cfg.DataAPI.URL, cfg.DataAPI.Key = "https://gw", "k"
	require.NoError(t, cfg.Validate())

	cfg.BackendTimeout = 0
	require.Error(t, cfg.Validate())
}
