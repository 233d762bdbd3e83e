package taxprobe

import (
	"context"
	"fmt"
	"math/big"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/0xsequence/feeprobe/ethtxn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/goware/logger"
	"github.com/goware/superr"
)

var (
	// HolderFunding is the native balance given to the holder so it can pay
	// for the bootstrap transactions and the pool's ETH side.
	HolderFunding = ether(10)

	// LiquidityETH is the ETH side of the bootstrapped pool.
	LiquidityETH = ether(1)

	TraderFunding = ether(10)

	// SwapMaxInput is the ETH attached to every probe swap.
	SwapMaxInput = ether(1)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// Fork is the part of a fork session the probe needs besides submitting
// transactions. *ethfork.Fork implements it.
type Fork interface {
	ImpersonateAccount(ctx context.Context, account common.Address) error
	SetBalance(ctx context.Context, account common.Address, wei *big.Int) error
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	Mine(ctx context.Context) error
}

type Bootstrapper struct {
	Fork      Fork
	Submitter *ethtxn.Submitter
	Token     *ethcontract.ERC20
	Router    *ethcontract.UniswapV2Router
	Deadline  *big.Int
	Log       logger.Logger

	// TradingCall is sent by the holder once liquidity is in place. Optional.
	TradingCall *ethcontract.UnsignedCall
}

type BootstrapResult struct {
	Holder        common.Address `json:"holder"`
	FundedBalance *big.Int       `json:"fundedBalance"`
	Liquidity     *big.Int       `json:"liquidity"`
	LiquidityETH  *big.Int       `json:"liquidityEth"`

	// Trading is nil when no trading call was configured.
	Trading *TradingToggle `json:"trading,omitempty"`
}

type TradingToggle struct {
	Call     string `json:"call"`
	Included bool   `json:"included"`
	Reason   string `json:"reason,omitempty"`
}

// Bootstrap seeds a TOKEN/WETH pool from the holder: approve the router
// for everything, then add the whole resolved balance against LiquidityETH.
// addLiquidityETH is only sent once the approve has been mined.
func (b *Bootstrapper) Bootstrap(ctx context.Context, resolution *OwnerResolution) (*BootstrapResult, error) {
	holder := resolution.Holder

	if err := b.Fork.ImpersonateAccount(ctx, holder); err != nil {
		return nil, environmentErr("impersonate holder", err)
	}
	if err := b.Fork.SetBalance(ctx, holder, HolderFunding); err != nil {
		return nil, environmentErr("fund holder", err)
	}
	funded, err := b.Fork.BalanceAt(ctx, holder)
	if err != nil {
		return nil, environmentErr("read holder balance", err)
	}
	b.Log.Debugf("taxprobe: holder %s funded, native balance %s", holder, funded)

	approve, err := b.Token.Approve(b.Router.Address(), math.MaxBig256)
	if err != nil {
		return nil, setupErr(ErrApproveFailed, err)
	}
	if out := b.Submitter.Submit(ctx, approve, holder, nil); !out.Included() {
		return nil, outcomeErr(ErrApproveFailed, out)
	}
	b.Log.Infof("taxprobe: holder %s approved router %s", holder, b.Router.Address())

	addLiquidity, err := b.Router.AddLiquidityETH(b.Token.Address(), resolution.Balance, resolution.Balance, LiquidityETH, holder, b.Deadline)
	if err != nil {
		return nil, setupErr(ErrAddLiquidityFailed, err)
	}
	if out := b.Submitter.Submit(ctx, addLiquidity, holder, LiquidityETH); !out.Included() {
		return nil, outcomeErr(ErrAddLiquidityFailed, out)
	}
	b.Log.Infof("taxprobe: added %s of %s against %s wei", resolution.Balance, b.Token.Address(), LiquidityETH)

	result := &BootstrapResult{
		Holder:        holder,
		FundedBalance: funded,
		Liquidity:     new(big.Int).Set(resolution.Balance),
		LiquidityETH:  new(big.Int).Set(LiquidityETH),
	}

	if b.TradingCall != nil {
		out := b.Submitter.Submit(ctx, *b.TradingCall, holder, nil)
		result.Trading = &TradingToggle{Call: b.TradingCall.String(), Included: out.Included()}
		if out.Err != nil {
			result.Trading.Reason = out.Err.Reason
			b.Log.Infof("taxprobe: trading call %s not accepted: %s", b.TradingCall, out.Err.Reason)
		}
	}

	return result, nil
}

// outcomeErr classifies a failed bootstrap submission.
func outcomeErr(cause error, out ethtxn.Outcome) error {
	if out.Status == ethtxn.EnvironmentFault {
		return superr.New(ErrEnvironment, fmt.Errorf("%w: %w", cause, out.Error()))
	}
	return setupErr(cause, out.Error())
}
