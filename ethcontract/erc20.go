package ethcontract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type ERC20 struct {
	*Contract
}

func NewERC20(address common.Address, caller Caller) *ERC20 {
	return &ERC20{Contract: NewContract(address, ERC20ABI, caller)}
}

func (t *ERC20) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, t.Contract, "balanceOf", account)
}

// Owner reads the Ownable owner. Tokens without owner() fail with
// ErrFunctionMissing.
func (t *ERC20) Owner(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, t.Contract, "owner")
}

func (t *ERC20) TotalSupply(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, t.Contract, "totalSupply")
}

func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	return callOne[uint8](ctx, t.Contract, "decimals")
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, t.Contract, "allowance", owner, spender)
}

func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	return callOne[string](ctx, t.Contract, "symbol")
}

func (t *ERC20) Name(ctx context.Context) (string, error) {
	return callOne[string](ctx, t.Contract, "name")
}

func (t *ERC20) Approve(spender common.Address, amount *big.Int) (UnsignedCall, error) {
	if err := requireAddress("approve", "spender", spender); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAmount("approve", "amount", amount); err != nil {
		return UnsignedCall{}, err
	}
	return t.Build("approve", spender, amount)
}

func (t *ERC20) Transfer(to common.Address, amount *big.Int) (UnsignedCall, error) {
	if err := requireAddress("transfer", "to", to); err != nil {
		return UnsignedCall{}, err
	}
	if err := requireAmount("transfer", "amount", amount); err != nil {
		return UnsignedCall{}, err
	}
	return t.Build("transfer", to, amount)
}
