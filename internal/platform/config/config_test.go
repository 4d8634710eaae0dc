package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DriverFile, cfg.Store.Driver)
	assert.Equal(t, StorageKey, cfg.Store.Key)
	assert.Equal(t, 5, cfg.Store.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Dashboard.RefreshInterval)
	assert.Equal(t, 10, cfg.Dashboard.TopN)
	assert.Equal(t, 5, cfg.Dashboard.RecentN)
	assert.False(t, cfg.Dashboard.StrictCountries)
	assert.Equal(t, 30, cfg.Dashboard.RegisterLimit)
	assert.Equal(t, time.Minute, cfg.Dashboard.RegisterWindow)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AFRICAMAP_STORE_DRIVER", "redis")
	t.Setenv("AFRICAMAP_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AFRICAMAP_REFRESH_INTERVAL", "30s")
	t.Setenv("AFRICAMAP_TOP_N", "3")
	t.Setenv("AFRICAMAP_STORE_MAX_RETRIES", "8")
	t.Setenv("AFRICAMAP_TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.1/32")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Store.MaxRetries)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.1/32"),
	}, cfg.Dashboard.TrustedProxies)
	assert.Equal(t, 30*time.Second, cfg.Dashboard.RefreshInterval)
	assert.Equal(t, 3, cfg.Dashboard.TopN)
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"AFRICAMAP_STORE_DRIVER": "etcd"}},
		{name: "redis without url", env: map[string]string{"AFRICAMAP_STORE_DRIVER": "redis"}},
		{name: "postgres without url", env: map[string]string{"AFRICAMAP_STORE_DRIVER": "postgres"}},
		{name: "zero store retries", env: map[string]string{"AFRICAMAP_STORE_MAX_RETRIES": "0"}},
		{name: "zero interval", env: map[string]string{"AFRICAMAP_REFRESH_INTERVAL": "0s"}},
		{name: "negative register limit", env: map[string]string{"AFRICAMAP_REGISTER_LIMIT": "-1"}},
		{name: "limit without window", env: map[string]string{"AFRICAMAP_REGISTER_WINDOW": "0s"}},
		{name: "malformed proxy cidr", env: map[string]string{"AFRICAMAP_TRUSTED_PROXIES": "10.0.0.1"}},
		{name: "bad timezone", env: map[string]string{"AFRICAMAP_TIMEZONE": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("values are loaded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("AFRICAMAP_TEST_DOTENV=loaded\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("AFRICAMAP_TEST_DOTENV") })

		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "loaded", os.Getenv("AFRICAMAP_TEST_DOTENV"))
	})
}
