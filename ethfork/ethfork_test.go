package ethfork_test

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/0xsequence/feeprobe/ethfork"
	"github.com/0xsequence/feeprobe/ethtest"
	"github.com/0xsequence/feeprobe/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLauncher hands out a FakeFork instead of starting anvil.
type fakeLauncher struct {
	fork  *ethtest.FakeFork
	spec  ethfork.LaunchSpec
	stops int
}

func (l *fakeLauncher) Launch(ctx context.Context, spec ethfork.LaunchSpec) (ethfork.Instance, error) {
	l.spec = spec
	return l, nil
}

func (l *fakeLauncher) Endpoint() string {
	return l.fork.URL()
}

func (l *fakeLauncher) Stop(ctx context.Context) error {
	l.stops++
	return nil
}

func TestAnvilArgs(t *testing.T) {
	spec := ethfork.LaunchSpec{
		UpstreamURL: "http://upstream",
		BlockNumber: 17_500_000,
		Mining:      ethfork.Mining{Mode: ethfork.Manual},
	}
	assert.Equal(t, []string{"--fork-url", "http://upstream", "--fork-block-number", "17500000", "--no-mining", "--silent"}, spec.AnvilArgs())

	spec.BlockNumber = 0
	spec.Mining = ethfork.Mining{Mode: ethfork.Interval, BlockTime: 3 * time.Second}
	assert.Equal(t, []string{"--fork-url", "http://upstream", "--block-time", "3", "--silent"}, spec.AnvilArgs())
}

func TestParseMiningMode(t *testing.T) {
	mode, err := ethfork.ParseMiningMode("Interval")
	require.NoError(t, err)
	assert.Equal(t, ethfork.Interval, mode)

	mode, err = ethfork.ParseMiningMode("")
	require.NoError(t, err)
	assert.Equal(t, ethfork.Manual, mode)

	_, err = ethfork.ParseMiningMode("instant")
	assert.Error(t, err)
}

func TestOpenManualMining(t *testing.T) {
	ctx := context.Background()
	fake := ethtest.NewFakeFork(ethtest.FakeForkOptions{BlockNumber: 500})
	defer fake.Close()

	launcher := &fakeLauncher{fork: fake}
	fork, err := ethfork.Open(ctx, ethfork.Options{
		UpstreamURL: "http://upstream",
		BlockNumber: 500,
		Mining:      ethfork.Mining{Mode: ethfork.Manual},
		Launcher:    launcher,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(500), launcher.spec.BlockNumber)
	assert.Equal(t, fake.URL(), fork.HTTPEndpoint())
	assert.Equal(t, ethfork.Manual, fork.MiningMode())
	assert.False(t, fake.Automine())
	assert.Equal(t, uint64(500), fork.ForkedAt())

	require.NoError(t, fork.Mine(ctx))
	n, err := fork.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(501), n)

	addr := ethtest.DummyAddr()
	require.NoError(t, fork.ImpersonateAccount(ctx, addr))
	assert.True(t, fake.Impersonated(addr))

	require.NoError(t, fork.SetBalance(ctx, addr, ethtest.ETHValue(10)))
	bal, err := fork.BalanceAt(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, ethtest.ETHValue(10).String(), bal.String())

	require.NoError(t, fork.Close())
	require.NoError(t, fork.Close())
	assert.Equal(t, 1, launcher.stops)

	_, err = fork.BlockNumber(ctx)
	assert.ErrorIs(t, err, ethfork.ErrForkClosed)
	assert.ErrorIs(t, fork.Mine(ctx), ethfork.ErrForkClosed)
}

func TestAttachIntervalMining(t *testing.T) {
	fake := ethtest.NewFakeFork(ethtest.FakeForkOptions{})
	defer fake.Close()

	fork, err := ethfork.Attach(context.Background(), fake.URL(), ethfork.Options{
		Mining: ethfork.Mining{Mode: ethfork.Interval, BlockTime: 2 * time.Second},
	})
	require.NoError(t, err)
	defer fork.Close()

	assert.Equal(t, uint64(2), fake.IntervalMining())
	assert.Equal(t, ethfork.Interval, fork.MiningMode())
}

func TestAttachRollsBackOnClose(t *testing.T) {
	ctx := context.Background()
	holder := ethtest.DummyAddr()
	fake := ethtest.NewFakeFork(ethtest.FakeForkOptions{
		Balances: map[common.Address]*big.Int{holder: ethtest.ETHValue(1)},
	})
	defer fake.Close()

	fork, err := ethfork.Attach(ctx, fake.URL(), ethfork.Options{BlockNumber: 18_000_000})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Snapshots())
	assert.False(t, fake.Automine())
	assert.Empty(t, fake.Resets())

	require.NoError(t, fork.ImpersonateAccount(ctx, holder))
	require.NoError(t, fork.SetBalance(ctx, holder, ethtest.ETHValue(50)))
	require.NoError(t, fork.Mine(ctx))
	assert.Equal(t, uint64(18_000_001), fake.BlockNumber())

	require.NoError(t, fork.Close())
	assert.Equal(t, ethtest.ETHValue(1).String(), fake.NativeBalance(holder).String())
	assert.Equal(t, uint64(18_000_000), fake.BlockNumber())
	assert.False(t, fake.Impersonated(holder))
	assert.True(t, fake.Automine())
	assert.Zero(t, fake.Snapshots())

	// the node is left running for the next caller
	again, err := ethfork.Attach(ctx, fake.URL(), ethfork.Options{BlockNumber: 18_000_000})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestAttachPinsBlock(t *testing.T) {
	ctx := context.Background()
	fake := ethtest.NewFakeFork(ethtest.FakeForkOptions{BlockNumber: 900})
	defer fake.Close()

	_, err := ethfork.Attach(ctx, fake.URL(), ethfork.Options{BlockNumber: 800})
	require.ErrorIs(t, err, ethfork.ErrForkHeight)
	assert.Zero(t, fake.Snapshots())

	fork, err := ethfork.Attach(ctx, fake.URL(), ethfork.Options{
		UpstreamURL: "http://upstream",
		BlockNumber: 800,
	})
	require.NoError(t, err)
	defer fork.Close()

	assert.Equal(t, []ethtest.ForkReset{{JSONRPCURL: "http://upstream", BlockNumber: 800}}, fake.Resets())
	assert.Equal(t, uint64(800), fork.ForkedAt())
}

func TestAttachRevertRejected(t *testing.T) {
	fake := ethtest.NewFakeFork(ethtest.FakeForkOptions{})
	defer fake.Close()

	fork, err := ethfork.Attach(context.Background(), fake.URL(), ethfork.Options{})
	require.NoError(t, err)

	fake.FailMethod("evm_revert", -32603, "snapshot lost")
	err = fork.Close()
	assert.ErrorIs(t, err, ethfork.ErrForkRPC)
	assert.ErrorContains(t, err, "evm_revert")
	// mining is still restored
	assert.True(t, fake.Automine())
}

func TestRPCFailureIsSurfaced(t *testing.T) {
	ctx := context.Background()
	fake := ethtest.NewFakeFork(ethtest.FakeForkOptions{})
	defer fake.Close()

	fork, err := ethfork.Attach(ctx, fake.URL(), ethfork.Options{})
	require.NoError(t, err)
	defer fork.Close()

	fake.FailMethod("evm_mine", -32603, "internal error")
	err = fork.Mine(ctx)
	assert.ErrorIs(t, err, ethfork.ErrForkRPC)
	assert.ErrorContains(t, err, "evm_mine")

	// a failing call is not retried
	mines := 0
	for _, m := range fake.Requests() {
		if m == "evm_mine" {
			mines++
		}
	}
	assert.Equal(t, 1, mines)
}

func TestOpenNeverReady(t *testing.T) {
	fake := ethtest.NewFakeFork(ethtest.FakeForkOptions{})
	defer fake.Close()
	fake.FailMethod("eth_chainId", -32000, "starting")

	launcher := &fakeLauncher{fork: fake}
	_, err := ethfork.Open(context.Background(), ethfork.Options{
		UpstreamURL:  "http://upstream",
		Launcher:     launcher,
		ReadyRetries: 2,
		ReadyBackoff: 10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ethfork.ErrForkRPC)
	assert.Equal(t, 1, launcher.stops)
}

// upstreamURL is read from FEEPROBE_TEST_UPSTREAM_URL or from UPSTREAM_URL in
// feeprobe-test.json at the repo root.
func upstreamURL(t *testing.T) string {
	if url := os.Getenv("FEEPROBE_TEST_UPSTREAM_URL"); url != "" {
		return url
	}
	testConfig, err := util.ReadTestConfig("../feeprobe-test.json")
	require.NoError(t, err)
	return testConfig["UPSTREAM_URL"]
}

func TestProcessLauncher(t *testing.T) {
	upstream := upstreamURL(t)
	if upstream == "" {
		t.Skip("no upstream url configured")
	}

	ctx := context.Background()
	fork, err := ethfork.Open(ctx, ethfork.Options{
		UpstreamURL: upstream,
		Launcher:    ethfork.ProcessLauncher{},
	})
	require.NoError(t, err)
	defer fork.Close()

	before, err := fork.BlockNumber(ctx)
	require.NoError(t, err)
	require.NoError(t, fork.Mine(ctx))
	after, err := fork.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestContainerLauncher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	upstream := upstreamURL(t)
	if upstream == "" || os.Getenv("FEEPROBE_TEST_CONTAINERS") == "" {
		t.Skip("no upstream url configured or FEEPROBE_TEST_CONTAINERS not set")
	}

	ctx := context.Background()
	fork, err := ethfork.Open(ctx, ethfork.Options{
		UpstreamURL: upstream,
		Launcher:    ethfork.ContainerLauncher{},
	})
	require.NoError(t, err)
	defer fork.Close()

	_, err = fork.BlockNumber(ctx)
	require.NoError(t, err)
}
