package main

import (
	"testing"

	"github.com/0xsequence/feeprobe/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addRunFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfigFlags(t *testing.T) {
	cmd := parsedCommand(t,
		"--fork-url", "http://127.0.0.1:8545",
		"--network", "bsc",
		"--start-bp", "250",
		"--end-bp", "10",
		"--trading-calldata", "none",
		"--log-level", "warn",
	)

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, config.LauncherAttach, cfg.Fork.Launcher)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.Fork.URL)
	assert.Equal(t, "bsc", cfg.Network)
	assert.Equal(t, common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"), cfg.RouterAddress())
	assert.EqualValues(t, 250, cfg.Run.StartBasisPoint)
	assert.EqualValues(t, 10, cfg.Run.EndBasisPoint)
	assert.Empty(t, cfg.Trading.Calldata)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfigRejectsBadSweep(t *testing.T) {
	cmd := parsedCommand(t, "--fork-url", "http://127.0.0.1:8545", "--start-bp", "600")
	_, err := loadConfig(cmd)
	assert.Error(t, err)
}

func TestRunParams(t *testing.T) {
	cmd := parsedCommand(t,
		"--token", "0x00000000000000000000000000000000000000a1",
		"--creator", "0x00000000000000000000000000000000000000c1",
		"--block", "18000000",
	)
	params, err := runParams(cmd)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xa1"), params.Token)
	assert.Equal(t, common.HexToAddress("0xc1"), params.Creator)
	assert.EqualValues(t, 18_000_000, params.BlockNumber)

	cmd = parsedCommand(t, "--token", "nope", "--creator", "0x00000000000000000000000000000000000000c1")
	_, err = runParams(cmd)
	assert.ErrorContains(t, err, "--token")
}
