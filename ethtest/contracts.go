package ethtest

import (
	"bytes"
	"math/big"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	DefaultRouter  = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	DefaultFactory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	DefaultWETH    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

type pairState struct {
	address  common.Address
	token0   common.Address
	token1   common.Address
	reserve0 *big.Int
	reserve1 *big.Int
	lastTime uint32
}

func (p *pairState) clone() *pairState {
	c := *p
	c.reserve0 = new(big.Int).Set(p.reserve0)
	c.reserve1 = new(big.Int).Set(p.reserve1)
	return &c
}

// reservesFor returns the reserves ordered as (tokenIn, tokenOut).
func (p *pairState) reservesFor(tokenIn common.Address) (*big.Int, *big.Int) {
	if tokenIn == p.token0 {
		return p.reserve0, p.reserve1
	}
	return p.reserve1, p.reserve0
}

func (p *pairState) setReserves(tokenA common.Address, reserveA, reserveB *big.Int, timestamp uint64) {
	if tokenA == p.token0 {
		p.reserve0, p.reserve1 = reserveA, reserveB
	} else {
		p.reserve0, p.reserve1 = reserveB, reserveA
	}
	p.lastTime = uint32(timestamp)
}

func sortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// PairAddress returns the address FakeFork assigns to the pair of two tokens.
func PairAddress(factory, tokenA, tokenB common.Address) common.Address {
	token0, token1 := sortTokens(tokenA, tokenB)
	return common.BytesToAddress(crypto.Keccak256(factory.Bytes(), token0.Bytes(), token1.Bytes())[12:])
}

// AmountIn is the UniswapV2 input required to receive amountOut.
func AmountIn(amountOut, reserveIn, reserveOut *big.Int) *big.Int {
	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, big.NewInt(1000))
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, big.NewInt(997))
	in := num.Div(num, den)
	return in.Add(in, big.NewInt(1))
}

// AmountOut is the UniswapV2 output received for amountIn.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	withFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	num := new(big.Int).Mul(withFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(1000))
	den.Add(den, withFee)
	return num.Div(num, den)
}

func (f *FakeFork) createPair(st *forkState, tokenA, tokenB common.Address) *pairState {
	addr := PairAddress(f.opts.Factory, tokenA, tokenB)
	if p, ok := st.pairs[addr]; ok {
		return p
	}
	token0, token1 := sortTokens(tokenA, tokenB)
	p := &pairState{
		address:  addr,
		token0:   token0,
		token1:   token1,
		reserve0: new(big.Int),
		reserve1: new(big.Int),
	}
	st.pairs[addr] = p
	return p
}

func (f *FakeFork) executeFactory(st *forkState, msg *message) ([]byte, *revertError) {
	method, args, rev := decodeInput(ethcontract.UniswapV2FactoryABI, msg)
	if rev != nil {
		return nil, rev
	}
	tokenA, tokenB := args[0].(common.Address), args[1].(common.Address)

	switch method.Name {
	case "getPair":
		addr := PairAddress(f.opts.Factory, tokenA, tokenB)
		if _, ok := st.pairs[addr]; !ok {
			addr = common.Address{}
		}
		return packOutput(method, addr)
	case "createPair":
		if tokenA == tokenB {
			return nil, revertWith("UniswapV2: IDENTICAL_ADDRESSES")
		}
		if _, ok := st.pairs[PairAddress(f.opts.Factory, tokenA, tokenB)]; ok {
			return nil, revertWith("UniswapV2: PAIR_EXISTS")
		}
		return packOutput(method, f.createPair(st, tokenA, tokenB).address)
	}
	return nil, revertEmpty()
}

func (f *FakeFork) executePair(pair *pairState, msg *message) ([]byte, *revertError) {
	method, _, rev := decodeInput(ethcontract.UniswapV2PairABI, msg)
	if rev != nil {
		return nil, rev
	}
	switch method.Name {
	case "getReserves":
		return packOutput(method, new(big.Int).Set(pair.reserve0), new(big.Int).Set(pair.reserve1), pair.lastTime)
	case "token0":
		return packOutput(method, pair.token0)
	case "token1":
		return packOutput(method, pair.token1)
	}
	return nil, revertEmpty()
}

func (f *FakeFork) executeRouter(st *forkState, msg *message) ([]byte, *revertError) {
	method, args, rev := decodeInput(ethcontract.UniswapV2RouterABI, msg)
	if rev != nil {
		return nil, rev
	}

	switch method.Name {
	case "WETH":
		return packOutput(method, f.opts.WETH)
	case "factory":
		return packOutput(method, f.opts.Factory)

	case "getAmountsIn":
		amountOut, path := args[0].(*big.Int), args[1].([]common.Address)
		pair, _, rev := f.wethPair(st, path)
		if rev != nil {
			return nil, rev
		}
		reserveIn, reserveOut := pair.reservesFor(f.opts.WETH)
		if amountOut.Cmp(reserveOut) >= 0 {
			return nil, revertWith("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
		}
		return packOutput(method, []*big.Int{AmountIn(amountOut, reserveIn, reserveOut), new(big.Int).Set(amountOut)})

	case "addLiquidityETH":
		token := args[0].(common.Address)
		amountToken, amountTokenMin, amountETHMin := args[1].(*big.Int), args[2].(*big.Int), args[3].(*big.Int)
		deadline := args[5].(*big.Int)
		if rev := f.checkDeadline(deadline); rev != nil {
			return nil, rev
		}
		tk, ok := st.tokens[token]
		if !ok {
			return nil, revertWith("TransferHelper: TRANSFER_FROM_FAILED")
		}
		if amountToken.Cmp(amountTokenMin) < 0 {
			return nil, revertWith("UniswapV2Router: INSUFFICIENT_A_AMOUNT")
		}
		if msg.value.Cmp(amountETHMin) < 0 {
			return nil, revertWith("UniswapV2Router: INSUFFICIENT_B_AMOUNT")
		}
		pair := f.createPair(st, token, f.opts.WETH)
		if rev := tk.transferFrom(f.opts.Router, msg.from, pair.address, amountToken); rev != nil {
			return nil, rev
		}
		_, reserveETH := pair.reservesFor(token)
		pair.setReserves(token, new(big.Int).Set(tk.balanceOf(pair.address)), new(big.Int).Add(reserveETH, msg.value), f.timestamp())
		return packOutput(method, new(big.Int).Set(amountToken), new(big.Int).Set(msg.value), new(big.Int).Set(msg.value))

	case "swapETHForExactTokens":
		amountOut, path, to, deadline := args[0].(*big.Int), args[1].([]common.Address), args[2].(common.Address), args[3].(*big.Int)
		if rev := f.checkDeadline(deadline); rev != nil {
			return nil, rev
		}
		pair, tk, rev := f.wethPair(st, path)
		if rev != nil {
			return nil, rev
		}
		reserveIn, reserveOut := pair.reservesFor(f.opts.WETH)
		if amountOut.Sign() <= 0 {
			return nil, revertWith("UniswapV2Library: INSUFFICIENT_OUTPUT_AMOUNT")
		}
		if amountOut.Cmp(reserveOut) >= 0 {
			return nil, revertWith("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
		}
		amountIn := AmountIn(amountOut, reserveIn, reserveOut)
		if amountIn.Cmp(msg.value) > 0 {
			return nil, revertWith("UniswapV2Router: EXCESSIVE_INPUT_AMOUNT")
		}
		if _, rev := tk.buy(pair.address, to, amountOut); rev != nil {
			return nil, rev
		}
		pair.setReserves(f.opts.WETH, new(big.Int).Add(reserveIn, amountIn), new(big.Int).Set(tk.balanceOf(pair.address)), f.timestamp())
		st.credit(msg.from, new(big.Int).Sub(msg.value, amountIn))
		return packOutput(method, []*big.Int{amountIn, new(big.Int).Set(amountOut)})

	case "swapExactETHForTokens":
		amountOutMin, path, to, deadline := args[0].(*big.Int), args[1].([]common.Address), args[2].(common.Address), args[3].(*big.Int)
		if rev := f.checkDeadline(deadline); rev != nil {
			return nil, rev
		}
		pair, tk, rev := f.wethPair(st, path)
		if rev != nil {
			return nil, rev
		}
		reserveIn, reserveOut := pair.reservesFor(f.opts.WETH)
		amountOut := AmountOut(msg.value, reserveIn, reserveOut)
		if amountOut.Cmp(amountOutMin) < 0 {
			return nil, revertWith("UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT")
		}
		if _, rev := tk.buy(pair.address, to, amountOut); rev != nil {
			return nil, rev
		}
		pair.setReserves(f.opts.WETH, new(big.Int).Add(reserveIn, msg.value), new(big.Int).Set(tk.balanceOf(pair.address)), f.timestamp())
		return packOutput(method, []*big.Int{new(big.Int).Set(msg.value), amountOut})
	}
	return nil, revertEmpty()
}

// wethPair resolves a [WETH, token] path to its pair and token state.
func (f *FakeFork) wethPair(st *forkState, path []common.Address) (*pairState, *tokenState, *revertError) {
	if len(path) != 2 || path[0] != f.opts.WETH {
		return nil, nil, revertWith("UniswapV2Router: INVALID_PATH")
	}
	tk, ok := st.tokens[path[1]]
	if !ok {
		return nil, nil, revertEmpty()
	}
	pair, ok := st.pairs[PairAddress(f.opts.Factory, path[0], path[1])]
	if !ok || pair.reserve0.Sign() == 0 || pair.reserve1.Sign() == 0 {
		return nil, nil, revertWith("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
	}
	return pair, tk, nil
}

func (f *FakeFork) checkDeadline(deadline *big.Int) *revertError {
	if deadline.Cmp(new(big.Int).SetUint64(f.timestamp())) < 0 {
		return revertWith("UniswapV2Router: EXPIRED")
	}
	return nil
}
