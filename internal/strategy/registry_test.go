package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProfileRegistryLoadAndResolve(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  fast_rsi:
    strategy: rsi_strategy
    description: tighter oscillator window
    params:
      period: 7
      oversold: 25
  trend:
    strategy: sma_crossover
`)
	r, err := NewProfileRegistry(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"fast_rsi", "trend"}, r.Names())

	kind, params, err := r.Resolve("fast_rsi")
	require.NoError(t, err)
	assert.Equal(t, RSIStrategy, kind)
	assert.Equal(t, 7.0, params["period"])
	assert.Equal(t, 25.0, params["oversold"])
	assert.Equal(t, 70.0, params["overbought"], "default fills the gap")

	_, _, err = r.Resolve("missing")
	assert.Error(t, err)
}

func TestProfileRegistryRejectsUnknownStrategy(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  broken:
    strategy: grid_martingale
`)
	_, err := NewProfileRegistry(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestProfileRegistryRejectsNonNumericParams(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  broken:
    strategy: rsi_strategy
    params:
      period: fourteen
`)
	_, err := NewProfileRegistry(path)
	assert.Error(t, err)
}

func TestProfileRegistryRejectsUnknownKeys(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  broken:
    strategy: rsi_strategy
    leverage: 10
`)
	_, err := NewProfileRegistry(path)
	assert.Error(t, err)
}
