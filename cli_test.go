package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/internal/campaign"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RATE_LIMIT_PRESETS_FILE", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestCLI_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "seed", "eta", "csv", "presets", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestCLI_ETA(t *testing.T) {
	out, err := runCLI(t, "eta", "--recipients", "100", "--mps", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Recipients:      100")
	assert.Contains(t, out, "Duration:        2m (100s)")

	_, err = runCLI(t, "eta", "-n", "10", "--preset", "warp")
	assert.ErrorContains(t, err, `unknown preset "warp"`)

	_, err = runCLI(t, "eta", "-n", "10", "--preset", "standard", "--mps", "3")
	assert.Error(t, err)

	_, err = runCLI(t, "eta", "--mps", "3")
	assert.Error(t, err)
}

func TestCLI_Presets(t *testing.T) {
	out, err := runCLI(t, "presets")
	require.NoError(t, err)
	for _, name := range []string{"conservative", "standard", "aggressive"} {
		assert.Contains(t, out, name)
	}
}

func TestCLI_CSVValidate(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("phone,name\n+905551111111,Ann\n"), 0o600))

	out, err := runCLI(t, "csv", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Rows: 1, valid: 1, invalid: 0")

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("phone,name\n+905551111111,Ann\n123,Bob\n"), 0o600))

	out, err = runCLI(t, "csv", "validate", bad)
	assert.ErrorContains(t, err, "1 invalid rows")
	assert.Contains(t, out, "row 3:")
}

func TestRequireSecrets(t *testing.T) {
	t.Setenv("WEBHOOK_AUTH_KEY", "w")
	t.Setenv("MESSAGES_API_KEY", "m")
	t.Setenv("SCHEDULER_API_KEY", "s")
	t.Setenv("CALLBACK_API_KEY", "")

	err := requireSecrets(environments.Load())
	assert.ErrorContains(t, err, "CALLBACK_API_KEY")

	t.Setenv("CALLBACK_API_KEY", "c")
	assert.NoError(t, requireSecrets(environments.Load()))
}

func TestOpenStorage(t *testing.T) {
	cfg := &environments.Config{Storage: environments.StorageConfig{Driver: environments.StorageMemory}}

	store, err := openStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, store.probe)
	assert.NotNil(t, store.messages)
	assert.NoError(t, store.close())

	cfg.Storage.Driver = "sqlite"
	_, err = openStorage(context.Background(), cfg)
	assert.ErrorContains(t, err, `unknown storage driver "sqlite"`)
}

func TestPresetsAboveCapacity(t *testing.T) {
	presets := campaign.DefaultPresets()

	// 50 every 10s is 5/s; the fastest built-in preset sustains about 3.5/s
	assert.Empty(t, presetsAboveCapacity(presets, environments.MessageConfig{BatchSize: 50, SendInterval: 10 * time.Second}))

	slow := environments.MessageConfig{BatchSize: 10, SendInterval: 10 * time.Second}
	assert.Equal(t, []string{"aggressive"}, presetsAboveCapacity(presets, slow))

	assert.Nil(t, presetsAboveCapacity(presets, environments.MessageConfig{BatchSize: 10}))
}
