package ethtest_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/0xsequence/feeprobe/ethrpc"
	"github.com/0xsequence/feeprobe/ethtest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// yes, we even have to test the testutil

func newFork(t *testing.T, opts ethtest.FakeForkOptions) (*ethtest.FakeFork, *ethrpc.Provider) {
	fork := ethtest.NewFakeFork(opts)
	t.Cleanup(fork.Close)
	provider, err := ethrpc.NewProvider(fork.URL())
	require.NoError(t, err)
	return fork, provider
}

func TestFakeForkChainID(t *testing.T) {
	_, provider := newFork(t, ethtest.FakeForkOptions{ChainID: 56})
	chainID, err := provider.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(56), chainID.Uint64())
}

func TestFakeForkSendRequiresImpersonation(t *testing.T) {
	ctx := context.Background()
	fork, provider := newFork(t, ethtest.FakeForkOptions{})

	from, to := ethtest.DummyAddr(), ethtest.DummyAddr()
	require.NoError(t, provider.SetBalance(ctx, from, ethtest.ETHValue(2)))

	_, err := provider.SendTransaction(ctx, ethrpc.TransactionArgs{From: from, To: &to, Value: (*hexutil.Big)(ethtest.ETHValue(1))})
	require.Error(t, err)
	assert.False(t, ethrpc.IsRevertError(err))

	require.NoError(t, provider.ImpersonateAccount(ctx, from))
	assert.True(t, fork.Impersonated(from))

	hash, err := provider.SendTransaction(ctx, ethrpc.TransactionArgs{From: from, To: &to, Value: (*hexutil.Big)(ethtest.ETHValue(1))})
	require.NoError(t, err)

	receipt, err := provider.TransactionReceipt(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, ethtest.ETHValue(1).String(), fork.NativeBalance(to).String())
}

func TestFakeForkManualMining(t *testing.T) {
	ctx := context.Background()
	fork, provider := newFork(t, ethtest.FakeForkOptions{ManualMining: true, BlockNumber: 100})

	from, to := ethtest.DummyAddr(), ethtest.DummyAddr()
	require.NoError(t, provider.SetBalance(ctx, from, ethtest.ETHValue(1)))
	require.NoError(t, provider.ImpersonateAccount(ctx, from))

	hash, err := provider.SendTransaction(ctx, ethrpc.TransactionArgs{From: from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 1, fork.PendingCount())

	_, err = provider.TransactionReceipt(ctx, hash)
	assert.ErrorIs(t, err, ethrpc.ErrNotFound)

	require.NoError(t, provider.Mine(ctx))
	blockNum, err := provider.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), blockNum)

	receipt, err := provider.TransactionReceipt(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), receipt.BlockNumber.Uint64())
}

func TestFakeForkRevertData(t *testing.T) {
	ctx := context.Background()
	token := ethtest.DummyAddr()
	_, provider := newFork(t, ethtest.FakeForkOptions{
		Tokens: []ethtest.TokenConfig{{Address: token, Decimals: 18, TotalSupply: big.NewInt(1000)}},
	})

	erc20 := ethcontract.NewERC20(token, provider)

	// owner() is not implemented by this token
	_, err := erc20.Owner(ctx)
	assert.ErrorIs(t, err, ethcontract.ErrFunctionMissing)

	supply, err := erc20.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), supply.Int64())
}

func TestFakeForkFailMethod(t *testing.T) {
	ctx := context.Background()
	fork, provider := newFork(t, ethtest.FakeForkOptions{})

	fork.FailMethod("eth_blockNumber", -32000, "boom")
	_, err := provider.BlockNumber(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	fork.ClearFailures()
	_, err = provider.BlockNumber(ctx)
	require.NoError(t, err)
}

func TestAmountInMatchesAmountOut(t *testing.T) {
	reserveIn, reserveOut := ethtest.ETHValue(1), ethtest.TokenUnits(1_000_000, 18)
	out := ethtest.TokenUnits(10_000, 18)

	in := ethtest.AmountIn(out, reserveIn, reserveOut)
	assert.True(t, ethtest.AmountOut(in, reserveIn, reserveOut).Cmp(out) >= 0)
	assert.True(t, ethtest.AmountOut(new(big.Int).Sub(in, big.NewInt(2)), reserveIn, reserveOut).Cmp(out) < 0)
}

func TestPairAddressIsOrderIndependent(t *testing.T) {
	a, b := common.HexToAddress("0x01"), common.HexToAddress("0x02")
	assert.Equal(t, ethtest.PairAddress(ethtest.DefaultFactory, a, b), ethtest.PairAddress(ethtest.DefaultFactory, b, a))
}
