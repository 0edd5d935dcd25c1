package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: "file::memory:"
jwt:
  secret: "0123456789abcdef0123"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []string{"/home", "/shared"}, cfg.Share.AllowedRoots)
	assert.Equal(t, 32, cfg.Share.TokenLength)
	assert.Equal(t, 10, cfg.Share.PasswordCost)
	assert.Equal(t, "none", cfg.Messaging.Provider)
	assert.Equal(t, 3, cfg.WebSocket.MessageRetryCount)
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  mode: debug
log:
  level: DEBUG
database:
  driver: mysql
  dsn: "user:pass@tcp(localhost:3306)/share"
jwt:
  secret: "0123456789abcdef0123"
  expiration: 2h
share:
  allowed_roots: ["/home"]
  token_length: 48
  public_base_url: "https://files.example.com/"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []string{"/home"}, cfg.Share.AllowedRoots)
	assert.Equal(t, 48, cfg.Share.TokenLength)
	assert.Equal(t, "https://files.example.com", cfg.Share.PublicBaseURL)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "Short jwt secret",
			content: `
database: {driver: memory}
jwt: {secret: "short"}
`,
		},
		{
			name: "Unknown driver",
			content: `
database: {driver: postgres, dsn: "x"}
jwt: {secret: "0123456789abcdef0123"}
`,
		},
		{
			name: "Missing dsn for mysql",
			content: `
database: {driver: mysql}
jwt: {secret: "0123456789abcdef0123"}
`,
		},
		{
			name: "Relative share root",
			content: `
database: {driver: memory}
jwt: {secret: "0123456789abcdef0123"}
share: {allowed_roots: ["home"]}
`,
		},
		{
			name: "Kafka without brokers",
			content: `
database: {driver: memory}
jwt: {secret: "0123456789abcdef0123"}
messaging: {provider: kafka}
`,
		},
		{
			name: "Token too short",
			content: `
database: {driver: memory}
jwt: {secret: "0123456789abcdef0123"}
share: {token_length: 8}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
database: {driver: memory}
jwt: {secret: "0123456789abcdef0123"}
`)
	t.Setenv("SHARE_SERVER_ADDR", ":7070")
	t.Setenv("SHARE_JWT_SECRET", "env-secret-0123456789")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "env-secret-0123456789", cfg.JWT.Secret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN, "parseTime=true")
	assert.Equal(t, "share-portal-node-1", cfg.Messaging.Kafka.ConsumerGroup)
	assert.Equal(t, "https://share.example.com", cfg.Share.PublicBaseURL)
}
