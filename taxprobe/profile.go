package taxprobe

import (
	"context"
	"math/big"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenProfile is read once per run, before any state is changed.
type TokenProfile struct {
	Address     common.Address `json:"address"`
	Symbol      string         `json:"symbol,omitempty"`
	TotalSupply *big.Int       `json:"totalSupply"`
	Decimals    uint8          `json:"decimals"`

	// Unit is one whole token, 10^Decimals base units.
	Unit *big.Int `json:"unit"`
}

func LoadTokenProfile(ctx context.Context, token *ethcontract.ERC20) (*TokenProfile, error) {
	supply, err := token.TotalSupply(ctx)
	if err != nil {
		return nil, tokenCallErr("totalSupply", err)
	}
	decimals, err := token.Decimals(ctx)
	if err != nil {
		return nil, tokenCallErr("decimals", err)
	}

	// symbol() is optional in ERC20.
	symbol, err := token.Symbol(ctx)
	if err != nil && !ethcontract.IsContractFailure(err) {
		return nil, environmentErr("symbol", err)
	}

	return &TokenProfile{
		Address:     token.Address(),
		Symbol:      symbol,
		TotalSupply: supply,
		Decimals:    decimals,
		Unit:        new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil),
	}, nil
}

// ReferenceOutput is the token amount requested at a sweep step: basisPoint
// ten-thousandths of the supply, less one whole token when the supply holds
// at least one. The subtraction saturates at zero.
func ReferenceOutput(profile *TokenProfile, basisPoint uint) *big.Int {
	supply, overflow := uint256.FromBig(profile.TotalSupply)
	if overflow || profile.TotalSupply.Sign() < 0 {
		return new(big.Int)
	}
	unit, overflow := uint256.FromBig(profile.Unit)
	if overflow {
		// 10^decimals beyond 2^256 is always above the supply.
		unit = nil
	}

	bp := uint256.NewInt(uint64(basisPoint))
	denom := uint256.NewInt(10_000)

	// floor(supply*bp/10000) without the intermediate product.
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(supply, denom, rem)
	out := new(uint256.Int).Mul(quo, bp)
	out.Add(out, rem.Mul(rem, bp).Div(rem, denom))

	if unit == nil || supply.Lt(unit) {
		return out.ToBig()
	}
	if _, underflow := out.SubOverflow(out, unit); underflow {
		return new(big.Int)
	}
	return out.ToBig()
}

// EffectiveFee compares what a swap asked for with what the trader received.
// Percent is 100 - received*100/requested with truncating division, and is
// not clamped: a token that pays out extra yields a negative fee.
func EffectiveFee(requested, received *big.Int) (percent, basisPoints *big.Int) {
	return feeFraction(requested, received, 100), feeFraction(requested, received, 10_000)
}

func feeFraction(requested, received *big.Int, scale int64) *big.Int {
	s := big.NewInt(scale)
	share := new(big.Int).Mul(received, s)
	share.Quo(share, requested)
	return s.Sub(s, share)
}
