package ethcontract_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/0xsequence/feeprobe/ethrpc/jsonrpc"
	"github.com/0xsequence/feeprobe/ethtest"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callerFunc func(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error)

func (f callerFunc) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error) {
	return f(ctx, msg, blockNum)
}

func returning(out []byte, err error) callerFunc {
	return func(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
		return out, err
	}
}

func revertReason(reason string) []byte {
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	str, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: str}}.Pack(reason)
	return append(selector, packed...)
}

func TestCallErrorClassification(t *testing.T) {
	token := ethtest.DummyAddr()

	tests := []struct {
		name     string
		caller   callerFunc
		kind     error
		contract bool
		reason   string
	}{
		{
			name:     "empty output",
			caller:   returning(nil, nil),
			kind:     ethcontract.ErrFunctionMissing,
			contract: true,
		},
		{
			name:     "revert without data",
			caller:   returning(nil, jsonrpc.Error{Code: 3, Message: "execution reverted"}),
			kind:     ethcontract.ErrFunctionMissing,
			contract: true,
		},
		{
			name: "revert with reason",
			caller: returning(nil, jsonrpc.Error{
				Code:    3,
				Message: "execution reverted: paused",
				Data:    []byte(fmt.Sprintf("%q", hexutil.Encode(revertReason("paused")))),
			}),
			kind:     ethcontract.ErrCallReverted,
			contract: true,
			reason:   "paused",
		},
		{
			name:     "garbage output",
			caller:   returning([]byte{0x01, 0x02}, nil),
			kind:     ethcontract.ErrUnexpectedOutput,
			contract: true,
		},
		{
			name:   "transport failure",
			caller: returning(nil, errors.New("connection refused")),
		},
		{
			name:   "node failure",
			caller: returning(nil, jsonrpc.Error{Code: -32000, Message: "header not found"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			erc20 := ethcontract.NewERC20(token, tt.caller)
			_, err := erc20.TotalSupply(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.contract, ethcontract.IsContractFailure(err))
			if tt.kind != nil {
				assert.ErrorIs(t, err, tt.kind)
			}

			var callErr *ethcontract.CallError
			if tt.contract {
				require.True(t, errors.As(err, &callErr))
				assert.Equal(t, "totalSupply", callErr.Method)
				assert.Equal(t, token, callErr.Contract)
				assert.Equal(t, tt.reason, callErr.Reason)
			} else {
				assert.False(t, errors.As(err, &callErr))
			}
		})
	}
}

func TestCallWithoutCaller(t *testing.T) {
	erc20 := ethcontract.NewERC20(ethtest.DummyAddr(), nil)
	_, err := erc20.Decimals(context.Background())
	require.Error(t, err)
	assert.False(t, ethcontract.IsContractFailure(err))
}

func TestCallUnknownMethod(t *testing.T) {
	c := ethcontract.NewContract(ethtest.DummyAddr(), ethcontract.ERC20ABI, returning(nil, nil))
	_, err := c.Call(context.Background(), "mint", big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mint")
}

func TestBuilders(t *testing.T) {
	token, to := ethtest.DummyAddr(), ethtest.DummyAddr()
	erc20 := ethcontract.NewERC20(token, nil)
	router := ethcontract.NewUniswapV2Router(ethtest.DefaultRouter, nil)
	factory := ethcontract.NewUniswapV2Factory(ethtest.DefaultFactory, nil)
	path := []common.Address{ethtest.DefaultWETH, token}
	deadline := big.NewInt(1984669967)

	t.Run("Approve", func(t *testing.T) {
		call, err := erc20.Approve(ethtest.DefaultRouter, big.NewInt(5))
		require.NoError(t, err)
		assert.Equal(t, token, call.To)
		assert.Equal(t, "approve", call.Method)
		assert.Equal(t, ethcontract.ERC20ABI.Methods["approve"].ID, call.Data[:4])

		_, err = erc20.Approve(common.Address{}, big.NewInt(5))
		assert.ErrorIs(t, err, ethcontract.ErrInvalidArgument)
		_, err = erc20.Approve(to, big.NewInt(-5))
		assert.ErrorIs(t, err, ethcontract.ErrInvalidArgument)
	})

	t.Run("Transfer", func(t *testing.T) {
		_, err := erc20.Transfer(to, nil)
		assert.ErrorIs(t, err, ethcontract.ErrInvalidArgument)
	})

	t.Run("AddLiquidityETH", func(t *testing.T) {
		call, err := router.AddLiquidityETH(token, big.NewInt(10), big.NewInt(0), big.NewInt(0), to, deadline)
		require.NoError(t, err)
		assert.Equal(t, ethtest.DefaultRouter, call.To)
		assert.Len(t, call.Args, 6)
		assert.Contains(t, call.String(), "addLiquidityETH(")

		_, err = router.AddLiquidityETH(token, big.NewInt(10), big.NewInt(0), big.NewInt(0), to, nil)
		assert.ErrorIs(t, err, ethcontract.ErrInvalidArgument)
	})

	t.Run("Swaps", func(t *testing.T) {
		_, err := router.SwapETHForExactTokens(big.NewInt(1), path, to, deadline)
		require.NoError(t, err)
		_, err = router.SwapExactETHForTokens(big.NewInt(0), path, to, deadline)
		require.NoError(t, err)

		_, err = router.SwapETHForExactTokens(big.NewInt(1), path[:1], to, deadline)
		assert.ErrorIs(t, err, ethcontract.ErrInvalidArgument)
		_, err = router.SwapExactETHForTokens(big.NewInt(0), []common.Address{ethtest.DefaultWETH, {}}, to, deadline)
		assert.ErrorIs(t, err, ethcontract.ErrInvalidArgument)
	})

	t.Run("CreatePair", func(t *testing.T) {
		call, err := factory.CreatePair(ethtest.DefaultWETH, token)
		require.NoError(t, err)
		assert.Equal(t, ethtest.DefaultFactory, call.To)
	})
}

func TestRawCall(t *testing.T) {
	token := ethtest.DummyAddr()

	call, err := ethcontract.RawCall(token, "0x8f70ccf70000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, ethcontract.RawCallMethod, call.Method)
	assert.Equal(t, []interface{}{"0x8f70ccf7"}, call.Args)
	assert.Len(t, call.Data, 36)

	_, err = ethcontract.RawCall(common.Address{}, "0x8f70ccf7")
	assert.ErrorIs(t, err, ethcontract.ErrInvalidArgument)
	_, err = ethcontract.RawCall(token, "0x8f70")
	assert.ErrorIs(t, err, ethcontract.ErrInvalidArgument)
	_, err = ethcontract.RawCall(token, "not hex")
	assert.ErrorIs(t, err, ethcontract.ErrInvalidArgument)
}

func TestContractRegistry(t *testing.T) {
	assert.Equal(t, []string{"ERC20", "UniswapV2Factory", "UniswapV2Pair", "UniswapV2Router02"}, ethcontract.ContractNames())

	a, ok := ethcontract.GetContractABI("UniswapV2Router02")
	require.True(t, ok)
	assert.Contains(t, a.Methods, "swapETHForExactTokens")

	_, ok = ethcontract.GetContractABI("UniswapV3Router")
	assert.False(t, ok)
}

func TestRouterAndPairAgainstFork(t *testing.T) {
	ctx := context.Background()
	token, creator := ethtest.DummyAddr(), ethtest.DummyAddr()
	fork := ethtest.NewFakeFork(ethtest.FakeForkOptions{
		Tokens: []ethtest.TokenConfig{{
			Address:     token,
			Decimals:    18,
			TotalSupply: ethtest.TokenUnits(1000, 18),
			Balances:    map[common.Address]*big.Int{creator: ethtest.TokenUnits(1000, 18)},
		}},
	})
	defer fork.Close()

	provider := newProvider(t, fork)
	router := ethcontract.NewUniswapV2Router(ethtest.DefaultRouter, provider)
	factory := ethcontract.NewUniswapV2Factory(ethtest.DefaultFactory, provider)

	weth, err := router.WETH(ctx)
	require.NoError(t, err)
	assert.Equal(t, ethtest.DefaultWETH, weth)

	factoryAddr, err := router.Factory(ctx)
	require.NoError(t, err)
	assert.Equal(t, ethtest.DefaultFactory, factoryAddr)

	pair, err := factory.GetPair(ctx, token, weth)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, pair)
}
