package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	conf, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, conf.MainConfig.Port)
	assert.Equal(t, "sqlite", conf.Dialect)
	assert.Equal(t, "data/collections.db", conf.DatabaseConfig.Path)
	assert.Equal(t, 50, conf.MaxInflight)
	assert.Equal(t, 80.0, conf.RatePerSecond)
	assert.Equal(t, 256, conf.BatchSize)
	assert.Equal(t, 1152, conf.Dimensions)
	assert.Equal(t, 16, conf.NProbe)
	assert.Equal(t, "local", conf.Backend)
	assert.Equal(t, "data", conf.LocalRoot)
	assert.Equal(t, 20, conf.DefaultLimit)
	assert.Equal(t, 200, conf.MaxLimit)
	assert.Equal(t, []string{"http://localhost:3000"}, conf.AllowOrigins)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[mainConfig]
port = 9001
dataDir = "/var/lib/artseek"

[crawlConfig]
maxInflight = 8
ratePerSecond = 4.5

[storageConfig]
backend = "s3"
bucket = "idx"

[redisConfig]
host = "cache"
port = 6380
`), 0o644))

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, conf.MainConfig.Port)
	assert.Equal(t, "/var/lib/artseek/collections.db", conf.DatabaseConfig.Path)
	assert.Equal(t, "/var/lib/artseek/images/*.tar", conf.ShardGlob)
	assert.Equal(t, 8, conf.MaxInflight)
	assert.Equal(t, 4.5, conf.RatePerSecond)
	assert.Equal(t, "s3", conf.Backend)
	assert.Equal(t, "idx", conf.Bucket)
	assert.Equal(t, "cache", conf.RedisConfig.Host)
	assert.Equal(t, 6380, conf.RedisConfig.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown dialect", func(c *Config) { c.Dialect = "oracle" }},
		{"postgres without host", func(c *Config) { c.Dialect = "postgres" }},
		{"s3 without bucket", func(c *Config) { c.Backend = "s3" }},
		{"http embedder without endpoint", func(c *Config) { c.Provider = "http" }},
		{"default above max", func(c *Config) { c.DefaultLimit = 500 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			require.NoError(t, c.Validate())
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
