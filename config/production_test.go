package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadProductionConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Cache.Provider)
	assert.Equal(t, "amqp", cfg.Broker.Driver)
	assert.Equal(t, 2*time.Second, cfg.Sequencer.CounterTimeout)
	assert.True(t, cfg.Sequencer.PublishMustSucceed)
	assert.Equal(t, 10*time.Second, cfg.Reconcile.Interval)
	assert.Equal(t, 100, cfg.Reconcile.BatchSize)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadProductionConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("BROKER_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("COUNTER_TIMEOUT", "750ms")
	t.Setenv("PUBLISH_MUST_SUCCEED", "false")
	t.Setenv("RECONCILE_BATCH_SIZE", "25")
	t.Setenv("CACHE_PROVIDER", "memory")
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.KafkaBrokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Sequencer.CounterTimeout)
	assert.False(t, cfg.Sequencer.PublishMustSucceed)
	assert.Equal(t, 25, cfg.Reconcile.BatchSize)
	assert.Equal(t, "memory", cfg.Cache.Provider)
	assert.Equal(t, 8080, cfg.Server.Port, "unparsable values fall back to the default")
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"short jwt secret", map[string]string{"JWT_SECRET_KEY": "short"}, "JWT_SECRET_KEY must be at least 32 characters"},
		{"counter store disabled", map[string]string{"CACHE_ENABLED": "false"}, "CACHE_ENABLED must be true"},
		{"unknown cache provider", map[string]string{"CACHE_PROVIDER": "memcached"}, "CACHE_PROVIDER must be one of"},
		{"unknown broker", map[string]string{"BROKER_DRIVER": "pigeon"}, "BROKER_DRIVER must be one of"},
		{"zero counter timeout", map[string]string{"COUNTER_TIMEOUT": "0s"}, "COUNTER_TIMEOUT must be positive"},
		{"zero batch", map[string]string{"RECONCILE_BATCH_SIZE": "0"}, "RECONCILE_BATCH_SIZE must be positive"},
		{"bad log output", map[string]string{"LOG_OUTPUT": "syslog"}, "LOG_OUTPUT must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET_KEY", testSecret)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadProductionConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "# comment\nDB_NAME=\"from_file\"\nJWT_SECRET_KEY='" + testSecret + "'\nBROKEN LINE\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("DB_NAME", "")
	t.Setenv("JWT_SECRET_KEY", "")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.Database.Name)
	assert.Equal(t, testSecret, cfg.JWT.SecretKey)
}
