// Package config loads leapbase runtime configuration from YAML and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "leapbase.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "leapbase.yml"

// EnvPrefix prefixes environment variable overrides, e.g.
// LEAPBASE_REDIS_ADDR maps to redis.addr and LEAPBASE_FAILURE_LOG_PATH
// to failure_log_path.
const EnvPrefix = "LEAPBASE_"

// envSections are the nested config sections; only their prefix
// underscore becomes a key separator, so underscores inside top-level
// keys like failure_log_path survive the mapping.
var envSections = []string{"redis", "queues"}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range envSections {
		prefix := section + "_"
		if strings.HasPrefix(key, prefix) {
			return section + "." + strings.ReplaceAll(strings.TrimPrefix(key, prefix), "_", ".")
		}
	}
	return key
}

// RedisConfig holds the broker connection settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// QueueConfig declares one custom queue and its job timeout in seconds.
type QueueConfig struct {
	TimeoutSeconds int `koanf:"timeout"`
}

// Config is the full runtime configuration.
type Config struct {
	// Site is the tenant identifier jobs are tagged with.
	Site string `koanf:"site"`
	// Namespace prefixes every physical queue name so multiple
	// deployments can share one broker.
	Namespace string `koanf:"namespace"`
	// Dialect selects SQL generation: mariadb or postgres.
	Dialect string `koanf:"dialect"`
	// FailureLogPath is the SQLite file for the job failure log.
	FailureLogPath string `koanf:"failure_log_path"`

	Redis RedisConfig `koanf:"redis"`
	// Queues declares custom queues beyond default/short/long.
	Queues map[string]QueueConfig `koanf:"queues"`
}

// QueueTimeouts converts the declared custom queues into a name to
// timeout map for the queue registry.
func (c *Config) QueueTimeouts() map[string]time.Duration {
	if len(c.Queues) == 0 {
		return nil
	}
	out := make(map[string]time.Duration, len(c.Queues))
	for name, q := range c.Queues {
		out[name] = time.Duration(q.TimeoutSeconds) * time.Second
	}
	return out
}

// ApplyDefaults applies default values to a Config.
func (c *Config) ApplyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "leapbase"
	}
	if c.Dialect == "" {
		c.Dialect = "mariadb"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.FailureLogPath == "" {
		c.FailureLogPath = "leapbase-failures.db"
	}
}

// Load reads configuration from the given file (empty means search the
// working directory), layering environment variables and then CLI flags
// on top. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = findConfigFile(cwd)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "."), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flag overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// findConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func findConfigFile(dir string) string {
	yamlPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}

	ymlPath := filepath.Join(dir, ConfigFileNameAlt)
	if _, err := os.Stat(ymlPath); err == nil {
		return ymlPath
	}

	return ""
}
