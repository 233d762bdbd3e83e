package util_test

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xsequence/feeprobe/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUnits(t *testing.T) {
	eth, _ := new(big.Int).SetString("1500000000000000000", 10)

	assert.Equal(t, "1.5", util.FormatEther(eth))
	assert.Equal(t, "-1.5", util.FormatEther(new(big.Int).Neg(eth)))
	assert.Equal(t, "0.000000000000000001", util.FormatEther(big.NewInt(1)))
	assert.Equal(t, "0", util.FormatEther(big.NewInt(0)))
	assert.Equal(t, "0", util.FormatEther(nil))
	assert.Equal(t, "12345", util.FormatUnits(big.NewInt(12345), 0))
	assert.Equal(t, "123.45", util.FormatUnits(big.NewInt(12345), 2))
	assert.Equal(t, "10", util.FormatUnits(big.NewInt(1000), 2))
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "", "warn", "error"} {
		log, err := util.NewLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, log)
	}
	_, err := util.NewLogger("trace")
	assert.Error(t, err)
}

func TestReadTestConfig(t *testing.T) {
	cfg, err := util.ReadTestConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg)

	path := filepath.Join(t.TempDir(), "feeprobe-test.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"UPSTREAM_URL": "http://localhost:8545"}`), 0o600))
	cfg, err = util.ReadTestConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg["UPSTREAM_URL"])

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = util.ReadTestConfig(path)
	assert.Error(t, err)
}
