package environments

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/internal/campaign"
)

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("REDIS_DISABLE_CACHE", "true")
	t.Setenv("MESSAGE_SEND_INTERVAL", "30s")
	t.Setenv("CALLBACK_API_KEY", "cb-key")
	t.Setenv("EVENTS_BUFFER", "8")
	t.Setenv("CAMPAIGN_MAX_RECIPIENTS", "not-a-number")

	cfg := Load()

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.True(t, cfg.Redis.DisableCache)
	assert.Equal(t, 30*time.Second, cfg.Message.SendInterval)
	assert.Equal(t, "cb-key", cfg.Auth.CallbackAPIKey)
	assert.Equal(t, 8, cfg.Events.Buffer)
	assert.Equal(t, 100000, cfg.Campaign.MaxRecipients)
	assert.Equal(t, "standard", cfg.Campaign.RateLimitPreset)
}

func TestGetEnvHelpersFallBack(t *testing.T) {
	t.Setenv("CFG_TEST_BOOL", "maybe")
	t.Setenv("CFG_TEST_DURATION", "soon")

	assert.True(t, GetEnvAsBool("CFG_TEST_BOOL", true))
	assert.Equal(t, time.Minute, GetEnvAsDuration("CFG_TEST_DURATION", time.Minute))
	assert.Equal(t, "fallback", GetEnv("CFG_TEST_UNSET_KEY", "fallback"))
}

func TestLoadRateLimitPresets(t *testing.T) {
	t.Run("empty path returns built-ins", func(t *testing.T) {
		presets, err := LoadRateLimitPresets("")
		require.NoError(t, err)
		assert.Equal(t, campaign.DefaultPresets(), presets)
	})

	t.Run("file overlays and adds presets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "presets.yaml")
		content := `presets:
  - name: Standard
    description: Tuned standard
    messages_per_second: 2
    messages_per_minute: 100
    burst_size: 2
  - name: nightly
    description: Slow overnight drip
    messages_per_minute: 20
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		presets, err := LoadRateLimitPresets(path)
		require.NoError(t, err)
		require.Len(t, presets, 4)

		standard, ok := campaign.FindPreset(presets, "standard")
		require.True(t, ok)
		assert.Equal(t, "Tuned standard", standard.Description)
		assert.Equal(t, 2, standard.MessagesPerSecond)
		assert.Equal(t, 0, standard.MessagesPerHour)

		nightly, ok := campaign.FindPreset(presets, "nightly")
		require.True(t, ok)
		assert.Equal(t, 20, nightly.MessagesPerMinute)
	})

	t.Run("preset without throughput is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "presets.yaml")
		require.NoError(t, os.WriteFile(path, []byte("presets:\n  - name: broken\n"), 0o600))

		_, err := LoadRateLimitPresets(path)
		assert.ErrorIs(t, err, campaign.ErrNoThroughput)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRateLimitPresets(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
