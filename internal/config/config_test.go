package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"KIRIMI_CONFIG", "KIRIMI_USER_CODE", "KIRIMI_SECRET_KEY", "KIRIMI_DEVICE_ID",
	"KIRIMI_ENDPOINT", "KIRIMI_GATEWAY_URL", "KIRIMI_GATEWAY_TOKEN",
	"KIRIMI_LOG_LEVEL", "KIRIMI_LOG_FORMAT",
	"KIRIMI_SECURITY_MODE", "KIRIMI_ALLOWED_RECIPIENTS", "KIRIMI_RATE_LIMIT", "KIRIMI_RATE_WINDOW",
}

// isolate points HOME at an empty dir and clears every KIRIMI_* variable.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.kirimi.id", cfg.Kirimi.Endpoint)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.Gateway.URL)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingCredentials)
}

func TestLoadDefaultTOMLPath(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "kirimi", "config.toml"), `
[kirimi]
user_code = "U-1"
secret = "s3cret"
device_id = "dev-1"

[gateway]
url = "ws://127.0.0.1:9000"
token = "gw"

[log]
level = "debug"
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "U-1", cfg.Kirimi.UserCode)
	assert.Equal(t, "s3cret", cfg.Kirimi.Secret)
	assert.Equal(t, "dev-1", cfg.Kirimi.DeviceID)
	assert.Equal(t, "https://api.kirimi.id", cfg.Kirimi.Endpoint)
	assert.Equal(t, "ws://127.0.0.1:9000", cfg.Gateway.URL)
	assert.Equal(t, "gw", cfg.Gateway.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.NoError(t, cfg.ValidateDevice())
}

func TestLoadYAMLFromEnvPath(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, "kirimi.yaml"), `
kirimi:
  user_code: U-2
  secret: yaml-secret
  endpoint: https://staging.kirimi.id
log:
  format: json
`)
	t.Setenv("KIRIMI_CONFIG", "~/kirimi.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "U-2", cfg.Kirimi.UserCode)
	assert.Equal(t, "yaml-secret", cfg.Kirimi.Secret)
	assert.Equal(t, "https://staging.kirimi.id", cfg.Kirimi.Endpoint)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.ValidateDevice(), ErrMissingDevice)
}

func TestEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "cfg.toml")
	writeFile(t, path, `
[kirimi]
user_code = "from-file"
secret = "file-secret"
device_id = "file-dev"
`)
	t.Setenv("KIRIMI_CONFIG", path)
	t.Setenv("KIRIMI_USER_CODE", "from-env")
	t.Setenv("KIRIMI_DEVICE_ID", "env-dev")
	t.Setenv("KIRIMI_ENDPOINT", "http://localhost:8080")
	t.Setenv("KIRIMI_GATEWAY_URL", "ws://gw")
	t.Setenv("KIRIMI_GATEWAY_TOKEN", "tok")
	t.Setenv("KIRIMI_LOG_LEVEL", "warn")
	t.Setenv("KIRIMI_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Kirimi.UserCode)
	assert.Equal(t, "file-secret", cfg.Kirimi.Secret)
	assert.Equal(t, "env-dev", cfg.Kirimi.DeviceID)
	assert.Equal(t, "http://localhost:8080", cfg.Kirimi.Endpoint)
	assert.Equal(t, "ws://gw", cfg.Gateway.URL)
	assert.Equal(t, "tok", cfg.Gateway.Token)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFileIsSkipped(t *testing.T) {
	isolate(t)
	t.Setenv("KIRIMI_CONFIG", "/nonexistent/kirimi.toml")
	t.Setenv("KIRIMI_SECRET_KEY", "s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s", cfg.Kirimi.Secret)
}

func TestLoadMalformedFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "bad.toml")
	writeFile(t, path, "[kirimi\nuser_code = ")
	t.Setenv("KIRIMI_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name      string
		cfg       KirimiConfig
		err       error
		deviceErr error
	}{
		{"empty", KirimiConfig{}, ErrMissingCredentials, ErrMissingCredentials},
		{"no secret", KirimiConfig{UserCode: "u"}, ErrMissingCredentials, ErrMissingCredentials},
		{"no user code", KirimiConfig{Secret: "s"}, ErrMissingCredentials, ErrMissingCredentials},
		{"no device", KirimiConfig{UserCode: "u", Secret: "s"}, nil, ErrMissingDevice},
		{"complete", KirimiConfig{UserCode: "u", Secret: "s", DeviceID: "d"}, nil, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{Kirimi: tc.cfg}
			if tc.err == nil {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.ErrorIs(t, cfg.Validate(), tc.err)
			}
			if tc.deviceErr == nil {
				assert.NoError(t, cfg.ValidateDevice())
			} else {
				assert.ErrorIs(t, cfg.ValidateDevice(), tc.deviceErr)
			}
		})
	}
}

func TestSecuritySection(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "cfg.toml")
	writeFile(t, path, `
[security]
mode = "AllowList"
allowed = ["628111", "628222"]
rate_limit = 5
`)
	t.Setenv("KIRIMI_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"628111", "628222"}, cfg.Security.Allowed)
	assert.Equal(t, 5, cfg.Security.RateLimit)
	assert.Equal(t, 60, cfg.Security.RateWindow)

	_ = cfg.Validate()
	assert.Equal(t, SecurityModeAllowlist, cfg.Security.Mode)
}

func TestSecurityEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("KIRIMI_SECURITY_MODE", "allowlist")
	t.Setenv("KIRIMI_ALLOWED_RECIPIENTS", " 628111 , ,628333")
	t.Setenv("KIRIMI_RATE_LIMIT", "3")
	t.Setenv("KIRIMI_RATE_WINDOW", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "allowlist", cfg.Security.Mode)
	assert.Equal(t, []string{"628111", "628333"}, cfg.Security.Allowed)
	assert.Equal(t, 3, cfg.Security.RateLimit)
	assert.Equal(t, 60, cfg.Security.RateWindow)
}

func TestValidateNormalisesSecurity(t *testing.T) {
	cfg := Config{Security: SecurityConfig{Mode: "strict", RateLimit: -1, RateWindow: 0}}
	_ = cfg.Validate()
	assert.Equal(t, SecurityModeOpen, cfg.Security.Mode)
	assert.Equal(t, 0, cfg.Security.RateLimit)
	assert.Equal(t, 60, cfg.Security.RateWindow)
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/kirimi")
	assert.Equal(t, "/home/kirimi/a/b.toml", expandHome("~/a/b.toml"))
	assert.Equal(t, "/etc/kirimi.toml", expandHome("/etc/kirimi.toml"))
}
