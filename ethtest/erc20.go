package ethtest

import (
	"bytes"
	"math/big"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/ethereum/go-ethereum/common"
)

// TokenConfig describes an ERC20 served by FakeFork. The zero value is a
// plain 18-decimal token with no owner() function and no tax.
type TokenConfig struct {
	Address     common.Address
	Decimals    uint8
	TotalSupply *big.Int
	Balances    map[common.Address]*big.Int

	// Owner is returned by owner(). Nil means the token has no owner()
	// function and the call reverts without data.
	Owner *common.Address

	// BuyTaxPercent is withheld from every transfer out of the pair.
	BuyTaxPercent uint64

	// MaxTxAmount makes any buy above it revert.
	MaxTxAmount *big.Int

	// MaxTxHalts makes buys above MaxTxAmount run out of gas instead of
	// reverting, like tokens that loop or assert on oversized transfers.
	MaxTxHalts bool

	// EnableTradingCalldata, when set, keeps buys disabled until the owner
	// sends exactly this calldata to the token.
	EnableTradingCalldata []byte

	// NoBalanceOf makes balanceOf revert without data, as a non-ERC20 would.
	NoBalanceOf bool

	// RejectApprove makes approve revert.
	RejectApprove bool
}

type tokenState struct {
	cfg            TokenConfig
	balances       map[common.Address]*big.Int
	allowances     map[common.Address]map[common.Address]*big.Int
	tradingEnabled bool
}

func newTokenState(cfg TokenConfig) *tokenState {
	if cfg.TotalSupply == nil {
		cfg.TotalSupply = new(big.Int)
	}
	t := &tokenState{
		cfg:            cfg,
		balances:       map[common.Address]*big.Int{},
		allowances:     map[common.Address]map[common.Address]*big.Int{},
		tradingEnabled: len(cfg.EnableTradingCalldata) == 0,
	}
	for addr, bal := range cfg.Balances {
		t.balances[addr] = new(big.Int).Set(bal)
	}
	return t
}

func (t *tokenState) clone() *tokenState {
	c := &tokenState{
		cfg:            t.cfg,
		balances:       make(map[common.Address]*big.Int, len(t.balances)),
		allowances:     make(map[common.Address]map[common.Address]*big.Int, len(t.allowances)),
		tradingEnabled: t.tradingEnabled,
	}
	for addr, bal := range t.balances {
		c.balances[addr] = new(big.Int).Set(bal)
	}
	for owner, spenders := range t.allowances {
		m := make(map[common.Address]*big.Int, len(spenders))
		for spender, v := range spenders {
			m[spender] = new(big.Int).Set(v)
		}
		c.allowances[owner] = m
	}
	return c
}

func (t *tokenState) balanceOf(addr common.Address) *big.Int {
	if bal, ok := t.balances[addr]; ok {
		return bal
	}
	return new(big.Int)
}

func (t *tokenState) allowance(owner, spender common.Address) *big.Int {
	if v, ok := t.allowances[owner][spender]; ok {
		return v
	}
	return new(big.Int)
}

func (t *tokenState) move(from, to common.Address, amount *big.Int) *revertError {
	bal := t.balanceOf(from)
	if bal.Cmp(amount) < 0 {
		return revertWith("ERC20: transfer amount exceeds balance")
	}
	t.balances[from] = new(big.Int).Sub(bal, amount)
	t.balances[to] = new(big.Int).Add(t.balanceOf(to), amount)
	return nil
}

// transferFrom spends the spender's allowance. Used by the router when
// adding liquidity.
func (t *tokenState) transferFrom(spender, from, to common.Address, amount *big.Int) *revertError {
	allowed := t.allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return revertWith("TransferHelper: TRANSFER_FROM_FAILED")
	}
	if err := t.move(from, to, amount); err != nil {
		return revertWith("TransferHelper: TRANSFER_FROM_FAILED")
	}
	if t.allowances[from] == nil {
		t.allowances[from] = map[common.Address]*big.Int{}
	}
	t.allowances[from][spender] = new(big.Int).Sub(allowed, amount)
	return nil
}

// buy moves tokens out of the pair to a trader, applying the trading
// toggle, the per-transaction cap and the buy tax. It returns the amount
// credited to the trader.
func (t *tokenState) buy(pair, to common.Address, amount *big.Int) (*big.Int, *revertError) {
	if !t.tradingEnabled {
		return nil, revertWith("TRADING_NOT_OPEN")
	}
	if t.cfg.MaxTxAmount != nil && amount.Cmp(t.cfg.MaxTxAmount) > 0 {
		if t.cfg.MaxTxHalts {
			return nil, outOfGas()
		}
		return nil, revertWith("MAX_TX_EXCEEDED")
	}
	if err := t.move(pair, to, amount); err != nil {
		return nil, revertWith("UniswapV2: TRANSFER_FAILED")
	}
	tax := new(big.Int).Mul(amount, new(big.Int).SetUint64(t.cfg.BuyTaxPercent))
	tax.Div(tax, big.NewInt(100))
	if tax.Sign() > 0 {
		if err := t.move(to, t.cfg.Address, tax); err != nil {
			return nil, err
		}
	}
	return new(big.Int).Sub(amount, tax), nil
}

func (t *tokenState) execute(msg *message) ([]byte, *revertError) {
	if len(t.cfg.EnableTradingCalldata) > 0 && bytes.Equal(msg.data, t.cfg.EnableTradingCalldata) {
		msg.method = ethcontract.RawCallMethod
		if t.cfg.Owner != nil && msg.from != *t.cfg.Owner {
			return nil, revertWith("Ownable: caller is not the owner")
		}
		t.tradingEnabled = true
		return nil, nil
	}

	method, args, rev := decodeInput(ethcontract.ERC20ABI, msg)
	if rev != nil {
		return nil, rev
	}

	switch method.Name {
	case "name":
		return packOutput(method, "Fake Token")
	case "symbol":
		return packOutput(method, "FAKE")
	case "decimals":
		return packOutput(method, t.cfg.Decimals)
	case "totalSupply":
		return packOutput(method, new(big.Int).Set(t.cfg.TotalSupply))
	case "balanceOf":
		if t.cfg.NoBalanceOf {
			return nil, revertEmpty()
		}
		return packOutput(method, new(big.Int).Set(t.balanceOf(args[0].(common.Address))))
	case "allowance":
		return packOutput(method, new(big.Int).Set(t.allowance(args[0].(common.Address), args[1].(common.Address))))
	case "owner":
		if t.cfg.Owner == nil {
			return nil, revertEmpty()
		}
		return packOutput(method, *t.cfg.Owner)
	case "approve":
		if t.cfg.RejectApprove {
			return nil, revertWith("APPROVE_DISABLED")
		}
		spender, amount := args[0].(common.Address), args[1].(*big.Int)
		if t.allowances[msg.from] == nil {
			t.allowances[msg.from] = map[common.Address]*big.Int{}
		}
		t.allowances[msg.from][spender] = new(big.Int).Set(amount)
		return packOutput(method, true)
	case "transfer":
		if err := t.move(msg.from, args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return packOutput(method, true)
	}
	return nil, revertEmpty()
}
