package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadecore/nade/modem"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nade.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func Test_LoadAppliesDefaultsForUnsetFields(t *testing.T) {
	path := writeTemp(t, "fsk: true\n")
	f, err := Load(path)
	require.NoError(t, err)

	opts := f.Options()
	assert.True(t, opts.Encrypt)
	assert.True(t, opts.Decrypt)
	assert.True(t, opts.FSKEnabled)
	assert.False(t, opts.FECEnabled)
	assert.Equal(t, modem.DefaultParams(), opts.ModemParams)
}

func Test_LoadOverridesExplicitFields(t *testing.T) {
	path := writeTemp(t, `
encrypt: false
fec: true
modem:
  sample_rate: 16000
  symbol_rate: 200
`)
	f, err := Load(path)
	require.NoError(t, err)

	opts := f.Options()
	assert.False(t, opts.Encrypt)
	assert.True(t, opts.Decrypt)
	assert.True(t, opts.FECEnabled)
	assert.Equal(t, 16000, opts.ModemParams.SampleRate)
	assert.Equal(t, 200, opts.ModemParams.SymbolRate)
	assert.Equal(t, modem.DefaultParams().Tones, opts.ModemParams.Tones)
}

func Test_LoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
