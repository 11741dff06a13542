package cost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostKnownModel(t *testing.T) {
	table := NewTable()

	// 15 tokens of gpt-3.5-turbo at 0.002/1K
	assert.InDelta(t, 0.00003, table.Cost("gpt-3.5-turbo", 15), 1e-12)
	assert.InDelta(t, 0.03, table.Cost("gpt-4", 1000), 1e-12)
	assert.InDelta(t, 0.0, table.Cost("gpt-4", 0), 1e-12)
}

func TestCostUnknownModelUsesDefault(t *testing.T) {
	table := NewTable()

	assert.InDelta(t, 0.002, table.Cost("some-future-model", 1000), 1e-12)
}

func TestCostIsPure(t *testing.T) {
	table := NewTable()

	first := table.Cost("gpt-4-32k", 12345)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, table.Cost("gpt-4-32k", 12345))
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	content := "default_rate: 0.001\nrates:\n  gpt-4: 0.05\n  my-model: 0.01\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.05, table.Cost("gpt-4", 1000), 1e-12)
	assert.InDelta(t, 0.01, table.Cost("my-model", 1000), 1e-12)
	// unlisted built-in kept
	assert.InDelta(t, 0.002, table.Cost("gpt-3.5-turbo", 1000), 1e-12)
	// new default applies to unknown models
	assert.InDelta(t, 0.001, table.Cost("unknown", 1000), 1e-12)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
