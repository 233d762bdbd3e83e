package taxprobe

import (
	"context"
	"fmt"
	"math/big"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goware/logger"
)

// OwnerBranch records which row of the owner decision table fired.
type OwnerBranch int

const (
	OwnerMissing OwnerBranch = iota + 1
	OwnerIsCreator
	OwnerDiffers
)

func (b OwnerBranch) String() string {
	switch b {
	case OwnerMissing:
		return "owner-missing"
	case OwnerIsCreator:
		return "owner-is-creator"
	case OwnerDiffers:
		return "owner-differs"
	}
	return fmt.Sprintf("branch(%d)", int(b))
}

func (b OwnerBranch) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// OwnerResolution is the account that seeds the pool and how much of the
// token it is credited with. Balance is always positive.
type OwnerResolution struct {
	Holder  common.Address `json:"holder"`
	Balance *big.Int       `json:"balance"`
	Branch  OwnerBranch    `json:"branch"`

	// Owner is the zero address when the token has no owner().
	Owner   common.Address `json:"owner"`
	Creator common.Address `json:"creator"`

	// CreatorBalanceSubstituted is set when the owner holds nothing and the
	// creator's balance is used, while the owner remains the holder.
	CreatorBalanceSubstituted bool `json:"creatorBalanceSubstituted"`
}

// ResolveOwner picks the holder account for token, given the address that
// deployed it. Balances are read lazily in table order.
func ResolveOwner(ctx context.Context, token *ethcontract.ERC20, creator common.Address, log logger.Logger) (*OwnerResolution, error) {
	res := &OwnerResolution{Creator: creator}

	owner, err := token.Owner(ctx)
	switch {
	case err == nil && owner == creator:
		res.Branch, res.Owner = OwnerIsCreator, owner
	case err == nil:
		res.Branch, res.Owner = OwnerDiffers, owner
	case ethcontract.IsContractFailure(err):
		res.Branch = OwnerMissing
		log.Debugf("taxprobe: token %s has no owner(): %v", token.Address(), err)
	default:
		return nil, environmentErr("owner", err)
	}

	balanceOf := func(account common.Address) (*big.Int, error) {
		bal, err := token.BalanceOf(ctx, account)
		if err != nil {
			return nil, tokenCallErr("balanceOf", err)
		}
		return bal, nil
	}

	switch res.Branch {
	case OwnerMissing:
		bal, err := balanceOf(creator)
		if err != nil {
			return nil, err
		}
		res.Holder, res.Balance = creator, bal

	case OwnerIsCreator:
		bal, err := balanceOf(owner)
		if err != nil {
			return nil, err
		}
		res.Holder, res.Balance = owner, bal

	case OwnerDiffers:
		bal, err := balanceOf(owner)
		if err != nil {
			return nil, err
		}
		res.Holder, res.Balance = owner, bal
		if bal.Sign() > 0 {
			break
		}

		bal, err = balanceOf(creator)
		if err != nil {
			return nil, err
		}
		if bal.Sign() > 0 {
			// The owner stays the holder even though the tokens sit with the
			// creator. Bootstrap then usually fails at addLiquidityETH.
			res.Balance = bal
			res.CreatorBalanceSubstituted = true
			log.Warnf("taxprobe: owner %s holds no %s, using creator %s balance %s for the owner",
				owner, token.Address(), creator, bal)
		}
	}

	if res.Balance.Sign() <= 0 {
		return nil, heuristicErr(ErrZeroBalance, fmt.Errorf("owner %s, creator %s", res.Owner, creator))
	}
	return res, nil
}
