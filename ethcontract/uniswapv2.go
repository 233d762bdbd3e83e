package ethcontract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type UniswapV2Router struct {
	*Contract
}

func NewUniswapV2Router(address common.Address, caller Caller) *UniswapV2Router {
	return &UniswapV2Router{Contract: NewContract(address, UniswapV2RouterABI, caller)}
}

func (r *UniswapV2Router) WETH(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, r.Contract, "WETH")
}

func (r *UniswapV2Router) Factory(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, r.Contract, "factory")
}

func (r *UniswapV2Router) GetAmountsIn(ctx context.Context, amountOut *big.Int, path []common.Address) ([]*big.Int, error) {
	if err := requireAmount("getAmountsIn", "amountOut", amountOut); err != nil {
		return nil, err
	}
	if err := requirePath("getAmountsIn", path); err != nil {
		return nil, err
	}
	return callOne[[]*big.Int](ctx, r.Contract, "getAmountsIn", amountOut, path)
}

func (r *UniswapV2Router) AddLiquidityETH(token common.Address, amountTokenDesired, amountTokenMin, amountETHMin *big.Int, to common.Address, deadline *big.Int) (UnsignedCall, error) {
	const method = "addLiquidityETH"
	if err := requireAddress(method, "token", token); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAddress(method, "to", to); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAmount(method, "amountTokenDesired", amountTokenDesired); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAmount(method, "amountTokenMin", amountTokenMin); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAmount(method, "amountETHMin", amountETHMin); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAmount(method, "deadline", deadline); err != nil {
		return UnsignedCall{}, err
	}
	return r.Build(method, token, amountTokenDesired, amountTokenMin, amountETHMin, to, deadline)
}

func (r *UniswapV2Router) SwapETHForExactTokens(amountOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) (UnsignedCall, error) {
	const method = "swapETHForExactTokens"
	if err := requireAmount(method, "amountOut", amountOut); err != nil {
		return UnsignedCall{}, err
	}
	if err := requirePath(method, path); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAddress(method, "to", to); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAmount(method, "deadline", deadline); err != nil {
		return UnsignedCall{}, err
	}
	return r.Build(method, amountOut, path, to, deadline)
}

func (r *UniswapV2Router) SwapExactETHForTokens(amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (UnsignedCall, error) {
	const method = "swapExactETHForTokens"
	if err := requireAmount(method, "amountOutMin", amountOutMin); err != nil {
		return UnsignedCall{}, err
	}
	if err := requirePath(method, path); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAddress(method, "to", to); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAmount(method, "deadline", deadline); err != nil {
		return UnsignedCall{}, err
	}
	return r.Build(method, amountOutMin, path, to, deadline)
}

type UniswapV2Factory struct {
	*Contract
}

func NewUniswapV2Factory(address common.Address, caller Caller) *UniswapV2Factory {
	return &UniswapV2Factory{Contract: NewContract(address, UniswapV2FactoryABI, caller)}
}

// GetPair returns the pair address for the two tokens, or the zero address
// when no pair exists.
func (f *UniswapV2Factory) GetPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	return callOne[common.Address](ctx, f.Contract, "getPair", tokenA, tokenB)
}

func (f *UniswapV2Factory) CreatePair(tokenA, tokenB common.Address) (UnsignedCall, error) {
	if err := requireAddress("createPair", "tokenA", tokenA); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAddress("createPair", "tokenB", tokenB); err != nil {
		return UnsignedCall{}, err
	}
	return f.Build("createPair", tokenA, tokenB)
}

type UniswapV2Pair struct {
	*Contract
}

func NewUniswapV2Pair(address common.Address, caller Caller) *UniswapV2Pair {
	return &UniswapV2Pair{Contract: NewContract(address, UniswapV2PairABI, caller)}
}

type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

func (p *UniswapV2Pair) GetReserves(ctx context.Context) (Reserves, error) {
	values, err := p.Call(ctx, "getReserves")
	if err != nil {
		return Reserves{}, err
	}
	if len(values) != 3 {
		return Reserves{}, fmt.Errorf("ethcontract: getReserves returned %d values", len(values))
	}
	r0, ok0 := values[0].(*big.Int)
	r1, ok1 := values[1].(*big.Int)
	ts, ok2 := values[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return Reserves{}, fmt.Errorf("ethcontract: getReserves returned unexpected types %T, %T, %T", values[0], values[1], values[2])
	}
	return Reserves{Reserve0: r0, Reserve1: r1, BlockTimestampLast: ts}, nil
}

func (p *UniswapV2Pair) Token0(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, p.Contract, "token0")
}

func (p *UniswapV2Pair) Token1(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, p.Contract, "token1")
}

func requirePath(method string, path []common.Address) error {
	if len(path) < 2 {
		return fmt.Errorf("%w: %s: path needs at least two tokens", ErrInvalidArgument, method)
	}
	for i, addr := range path {
		if err := requireAddress(method, fmt.Sprintf("path[%d]", i), addr); err != nil {
			return err
		}
	}
	return nil
}
