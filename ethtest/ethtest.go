package ethtest

import (
	"math/big"
)

func ETHValue(ether float64) *big.Int {
	x := big.NewInt(10)
	x.Exp(x, big.NewInt(15), nil)
	n := big.NewInt(int64(ether * 1000))
	return n.Mul(n, x)
}

func ETHValueBigInt(ether *big.Int) *big.Int {
	oneEth := big.NewInt(10)
	oneEth.Exp(oneEth, big.NewInt(18), nil)
	return new(big.Int).Mul(ether, oneEth)
}

// TokenUnits returns n whole tokens at the given decimals.
func TokenUnits(n int64, decimals uint8) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return unit.Mul(unit, big.NewInt(n))
}
