package ethrpc_test

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0xsequence/feeprobe/ethrpc"
	"github.com/0xsequence/feeprobe/ethtest"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goware/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var log = logger.NewLogger(logger.LogLevel_INFO)

func newProvider(t *testing.T, opts ethtest.FakeForkOptions, options ...ethrpc.Option) (*ethtest.FakeFork, *ethrpc.Provider) {
	t.Helper()
	fork := ethtest.NewFakeFork(opts)
	t.Cleanup(fork.Close)
	p, err := ethrpc.NewProvider(fork.URL(), options...)
	require.NoError(t, err)
	return fork, p
}

type countingClient struct {
	n atomic.Int32
}

func (c *countingClient) Do(req *http.Request) (*http.Response, error) {
	c.n.Add(1)
	return http.DefaultClient.Do(req)
}

func TestNewProviderRequiresURL(t *testing.T) {
	_, err := ethrpc.NewProvider("")
	require.Error(t, err)
}

func TestChainIDIsMemoized(t *testing.T) {
	client := &countingClient{}
	_, p := newProvider(t, ethtest.FakeForkOptions{ChainID: 56}, ethrpc.WithHTTPClient(client), ethrpc.WithLogger(log))

	for i := 0; i < 3; i++ {
		chainID, err := p.ChainID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(56), chainID.Uint64())
	}
	assert.Equal(t, int32(1), client.n.Load())
}

func TestBatch(t *testing.T) {
	client := &countingClient{}
	_, p := newProvider(t, ethtest.FakeForkOptions{ChainID: 1, BlockNumber: 19_000_000}, ethrpc.WithHTTPClient(client))

	account := ethtest.DummyAddr()
	var (
		chainID     *big.Int
		blockNumber uint64
		balance     *big.Int
	)
	err := p.Do(
		context.Background(),
		ethrpc.SetBalance(account, ethtest.ETHValue(3)),
		ethrpc.ChainID().Into(&chainID),
		ethrpc.BlockNumber().Into(&blockNumber),
		ethrpc.BalanceAt(account, nil).Into(&balance),
	)
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.n.Load())
	assert.Equal(t, uint64(1), chainID.Uint64())
	assert.Equal(t, uint64(19_000_000), blockNumber)
	assert.Equal(t, ethtest.ETHValue(3).String(), balance.String())
}

func TestBatchReportsFailedCallByIndex(t *testing.T) {
	fork, p := newProvider(t, ethtest.FakeForkOptions{ChainID: 1})
	fork.FailMethod("eth_blockNumber", -32000, "header not found")

	var (
		chainID     *big.Int
		blockNumber uint64
	)
	err := p.Do(
		context.Background(),
		ethrpc.ChainID().Into(&chainID),
		ethrpc.BlockNumber().Into(&blockNumber),
	)
	require.Error(t, err)

	var batchErr ethrpc.BatchError
	require.True(t, errors.As(err, &batchErr))
	errs := batchErr.ErrorMap()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[1].Error(), "header not found")

	// the successful half of the batch is still decoded
	assert.Equal(t, uint64(1), chainID.Uint64())
}

func TestSetBalanceRejectsNegative(t *testing.T) {
	_, p := newProvider(t, ethtest.FakeForkOptions{})
	err := p.SetBalance(context.Background(), ethtest.DummyAddr(), big.NewInt(-1))
	assert.ErrorIs(t, err, ethrpc.ErrInvalidBalance)
}

func TestCheatCodes(t *testing.T) {
	ctx := context.Background()
	fork, p := newProvider(t, ethtest.FakeForkOptions{BlockNumber: 10})

	account := ethtest.DummyAddr()
	require.NoError(t, p.ImpersonateAccount(ctx, account))
	assert.True(t, fork.Impersonated(account))
	require.NoError(t, p.StopImpersonatingAccount(ctx, account))
	assert.False(t, fork.Impersonated(account))

	require.NoError(t, p.SetAutomine(ctx, false))
	assert.False(t, fork.Automine())
	require.NoError(t, p.SetIntervalMining(ctx, 2))
	assert.Equal(t, uint64(2), fork.IntervalMining())

	require.NoError(t, p.Mine(ctx))
	n, err := p.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), n)
}

func TestSnapshotRevert(t *testing.T) {
	ctx := context.Background()
	fork, p := newProvider(t, ethtest.FakeForkOptions{BlockNumber: 10})

	automine, err := p.GetAutomine(ctx)
	require.NoError(t, err)
	assert.True(t, automine)

	id, err := p.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	account := ethtest.DummyAddr()
	require.NoError(t, p.SetBalance(ctx, account, big.NewInt(7)))
	require.NoError(t, p.Mine(ctx))

	require.NoError(t, p.Revert(ctx, id))
	assert.Zero(t, fork.NativeBalance(account).Sign())
	assert.Equal(t, uint64(10), fork.BlockNumber())

	// an id is spent by its revert
	assert.ErrorIs(t, p.Revert(ctx, id), ethrpc.ErrRevertFailed)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	fork, p := newProvider(t, ethtest.FakeForkOptions{BlockNumber: 10})

	assert.ErrorIs(t, p.Reset(ctx, ethrpc.ForkingParams{BlockNumber: 5}), ethrpc.ErrInvalidReset)
	assert.Empty(t, fork.Resets())

	require.NoError(t, p.Reset(ctx, ethrpc.ForkingParams{JSONRPCURL: "http://upstream", BlockNumber: 5}))
	assert.Equal(t, uint64(5), fork.BlockNumber())
	assert.Equal(t, []ethtest.ForkReset{{JSONRPCURL: "http://upstream", BlockNumber: 5}}, fork.Resets())
}

func TestCodeAt(t *testing.T) {
	ctx := context.Background()
	token := ethtest.DummyAddr()
	_, p := newProvider(t, ethtest.FakeForkOptions{
		Tokens: []ethtest.TokenConfig{{Address: token, Decimals: 18, TotalSupply: big.NewInt(1)}},
	})

	code, err := p.CodeAt(ctx, token, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code)

	code, err = p.CodeAt(ctx, ethtest.DummyAddr(), nil)
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestWaitForTxnReceipt(t *testing.T) {
	ctx := context.Background()
	fork, p := newProvider(t, ethtest.FakeForkOptions{ManualMining: true})

	from, to := ethtest.DummyAddr(), ethtest.DummyAddr()
	require.NoError(t, p.SetBalance(ctx, from, ethtest.ETHValue(1)))
	require.NoError(t, p.ImpersonateAccount(ctx, from))

	nonce, err := p.PendingNonceAt(ctx, from)
	require.NoError(t, err)
	assert.Zero(t, nonce)

	hash, err := p.SendTransaction(ctx, ethrpc.TransactionArgs{From: from, To: &to, Value: (*hexutil.Big)(big.NewInt(1))})
	require.NoError(t, err)

	go func() {
		time.Sleep(2 * ethrpc.DefaultReceiptPollInterval)
		_ = p.Mine(context.Background())
	}()

	receipt, err := ethrpc.WaitForTxnReceipt(ctx, p, hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, 0, fork.PendingCount())
}

func TestWaitForTxnReceiptHonoursContext(t *testing.T) {
	ctx := context.Background()
	_, p := newProvider(t, ethtest.FakeForkOptions{ManualMining: true})

	from, to := ethtest.DummyAddr(), ethtest.DummyAddr()
	require.NoError(t, p.SetBalance(ctx, from, ethtest.ETHValue(1)))
	require.NoError(t, p.ImpersonateAccount(ctx, from))
	hash, err := p.SendTransaction(ctx, ethrpc.TransactionArgs{From: from, To: &to})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = ethrpc.WaitForTxnReceipt(ctx, p, hash)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := ethrpc.NewProvider(srv.URL)
	require.NoError(t, err)
	_, err = p.BlockNumber(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.False(t, ethrpc.IsRevertError(err))
}
