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

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
site: alpha.example
namespace: prod
dialect: postgres
failure_log_path: /var/lib/leapbase/failures.db
redis:
  addr: redis.internal:6380
  db: 2
queues:
  imports:
    timeout: 900
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "alpha.example", cfg.Site)
	assert.Equal(t, "prod", cfg.Namespace)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "/var/lib/leapbase/failures.db", cfg.FailureLogPath)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	require.Contains(t, cfg.Queues, "imports")
	assert.Equal(t, 900, cfg.Queues["imports"].TimeoutSeconds)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `site: bare.example`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "bare.example", cfg.Site)
	assert.Equal(t, "leapbase", cfg.Namespace)
	assert.Equal(t, "mariadb", cfg.Dialect)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "leapbase-failures.db", cfg.FailureLogPath)
	assert.Nil(t, cfg.QueueTimeouts())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
site: file.example
redis:
  addr: from-file:6379
`)
	t.Setenv("LEAPBASE_REDIS_ADDR", "from-env:6379")
	t.Setenv("LEAPBASE_NAMESPACE", "staging")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "file.example", cfg.Site)
	assert.Equal(t, "from-env:6379", cfg.Redis.Addr)
	assert.Equal(t, "staging", cfg.Namespace)
}

func TestEnvOverrideMultiWordKey(t *testing.T) {
	path := writeConfigFile(t, `site: file.example`)
	t.Setenv("LEAPBASE_FAILURE_LOG_PATH", "/var/tmp/override.db")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/override.db", cfg.FailureLogPath)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "site", envKey("LEAPBASE_SITE"))
	assert.Equal(t, "failure_log_path", envKey("LEAPBASE_FAILURE_LOG_PATH"))
	assert.Equal(t, "redis.addr", envKey("LEAPBASE_REDIS_ADDR"))
	assert.Equal(t, "queues.imports.timeout", envKey("LEAPBASE_QUEUES_IMPORTS_TIMEOUT"))
}

func TestFlagsOverrideEnv(t *testing.T) {
	path := writeConfigFile(t, `site: file.example`)
	t.Setenv("LEAPBASE_SITE", "env.example")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("site", "", "")
	flags.String("dialect", "", "")
	require.NoError(t, flags.Parse([]string{"--site", "flag.example"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "flag.example", cfg.Site)
	// unchanged flags do not override
	assert.Equal(t, "mariadb", cfg.Dialect)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestQueueTimeouts(t *testing.T) {
	cfg := &Config{Queues: map[string]QueueConfig{
		"imports": {TimeoutSeconds: 900},
		"reports": {TimeoutSeconds: 60},
	}}
	timeouts := cfg.QueueTimeouts()
	assert.Equal(t, 900*time.Second, timeouts["imports"])
	assert.Equal(t, 60*time.Second, timeouts["reports"])
}
