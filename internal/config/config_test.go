package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Shards = []ShardConfig{
		{
			ID:     0,
			MinKey: 0,
			MaxKey: 16383,
			Backend: BackendConfig{
				Host: "shard-0", Port: 5432, Database: "shard0", User: "nexus",
			},
		},
	}
	return cfg
}

func TestValidate_AcceptsDefaultsWithShards(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_RequiresPrimaryHost(t *testing.T) {
	cfg := validConfig()
	cfg.Primary.Host = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary.host")
}

func TestValidate_RequiresAtLeastOneShard(t *testing.T) {
	cfg := validConfig()
	cfg.Shards = nil
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadShardPort(t *testing.T) {
	cfg := validConfig()
	cfg.Shards[0].Backend.Port = 70000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shards[0].backend.port")
}

func TestValidate_RequiresCacheHost(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Host = ""
	require.Error(t, cfg.Validate())
}

func TestValidate_AppliesDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Primary.MaxConnections = 0
	cfg.Primary.QueryTimeout = 0
	cfg.Cache.EntityTTL = 0
	cfg.Logging.Level = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Primary.MaxConnections)
	assert.Equal(t, 10*time.Second, cfg.Primary.QueryTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Cache.EntityTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate_ReplicaConfigChecked(t *testing.T) {
	cfg := validConfig()
	cfg.Replicas = []BackendConfig{{Host: "replica-0", Port: 5432, Database: "nexus", User: ""}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replicas[0].user")
}
