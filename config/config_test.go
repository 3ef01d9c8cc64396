package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "tracker"
kafka:
  host: "localhost"
  port: 9092
  status_changed_topic_name: "package.status_changed"
  webhook_topic_name: "carrier.webhooks"
  webhook_consumer_group: "trackd"
redis:
  host: "localhost"
  port: 6379
tracker:
  http_addr: ":8080"
	store_backend: "redis"
`), 0o600))

	_, err := LoadConfig(p)
	require.Error(t, err, "invalid yaml must not load")

	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "tracker"
kafka:
  host: "localhost"
  port: 9092
  status_changed_topic_name: "package.status_changed"
redis:
  host: "localhost"
  port: 6379
tracker:
  http_addr: ":8080"
  store_backend: "redis"
  default_carrier: "shippo"
  refresh_interval_seconds: 300
  rate_limit_per_minute: 60
carriers:
  shippo:
    api_token: "shippo_test_token"
  ups:
    client_id: "ups_id"
    client_secret: "ups_secret"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "package.status_changed", cfg.Kafka.StatusChangedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.Tracker.HTTPAddr)
	require.Equal(t, "shippo", cfg.Tracker.DefaultCarrier)
	require.Equal(t, 300, cfg.Tracker.RefreshIntervalSeconds)
	require.Equal(t, 60, cfg.Tracker.RateLimitPerMinute)
	require.Equal(t, "shippo_test_token", cfg.Carriers.Shippo.APIToken)
	require.Equal(t, "ups_id", cfg.Carriers.UPS.ClientID)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
redis:
  host: "localhost"
  port: 6379
carriers:
  shippo:
    api_token: "from_file"
`), 0o600))

	t.Setenv("TRACKER_SHIPPO_API_TOKEN", "from_env")
	t.Setenv("TRACKER_REDIS_HOST", "redis.internal")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "from_env", cfg.Carriers.Shippo.APIToken)
	require.Equal(t, "redis.internal", cfg.Redis.Host)
	require.Equal(t, 6379, cfg.Redis.Port)
}
