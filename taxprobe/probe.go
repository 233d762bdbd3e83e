package taxprobe

import (
	"context"
	"fmt"
	"math/big"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/0xsequence/feeprobe/ethtxn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goware/logger"
)

const (
	MaxBasisPoint = 499
	MinBasisPoint = 1
)

type ProbePhase int

const (
	NotStarted ProbePhase = iota
	Sweeping
	Succeeded
	Exhausted
)

// ProbeState is the sweep's position. BasisPoint is the step being tried
// while Sweeping and the winning step once Succeeded.
type ProbeState struct {
	Phase      ProbePhase
	BasisPoint uint
}

func (s ProbeState) String() string {
	switch s.Phase {
	case NotStarted:
		return "not-started"
	case Sweeping:
		return fmt.Sprintf("sweeping(%d)", s.BasisPoint)
	case Succeeded:
		return fmt.Sprintf("succeeded(%d)", s.BasisPoint)
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("phase(%d)", int(s.Phase))
}

type AttemptResult string

const (
	AttemptSkipped  AttemptResult = "skipped"
	AttemptReverted AttemptResult = "reverted"
	AttemptIncluded AttemptResult = "included"
)

type Attempt struct {
	BasisPoint uint          `json:"basisPoint"`
	Requested  *big.Int      `json:"requested"`
	Result     AttemptResult `json:"result"`
	Reason     string        `json:"reason,omitempty"`
}

type ProbeResult struct {
	BasisPoint     uint     `json:"basisPoint"`
	Requested      *big.Int `json:"requested"`
	Received       *big.Int `json:"received"`
	FeePercent     *big.Int `json:"feePercent"`
	FeeBasisPoints *big.Int `json:"feeBasisPoints"`

	Trader   common.Address `json:"trader"`
	Attempts []Attempt      `json:"-"`

	// Pair is read back after the swap for diagnostics only.
	Pair        common.Address        `json:"pair"`
	PairMissing bool                  `json:"pairMissing"`
	Reserves    *ethcontract.Reserves `json:"reserves,omitempty"`
}

type ProberOptions struct {
	// StartBasisPoint and EndBasisPoint bound the sweep, inclusive. Zero
	// values mean 499 and 1.
	StartBasisPoint uint
	EndBasisPoint   uint

	Deadline *big.Int

	// OnAttempt is called after every step, in sweep order.
	OnAttempt func(Attempt)
}

type Prober struct {
	fork      Fork
	submitter *ethtxn.Submitter
	token     *ethcontract.ERC20
	router    *ethcontract.UniswapV2Router
	factory   *ethcontract.UniswapV2Factory
	weth      common.Address
	log       logger.Logger
	opts      ProberOptions

	state    ProbeState
	attempts []Attempt
}

func NewProber(fork Fork, submitter *ethtxn.Submitter, token *ethcontract.ERC20, router *ethcontract.UniswapV2Router, factory *ethcontract.UniswapV2Factory, weth common.Address, log logger.Logger, opts ProberOptions) (*Prober, error) {
	if opts.StartBasisPoint == 0 {
		opts.StartBasisPoint = MaxBasisPoint
	}
	if opts.EndBasisPoint == 0 {
		opts.EndBasisPoint = MinBasisPoint
	}
	if opts.StartBasisPoint > MaxBasisPoint || opts.EndBasisPoint > opts.StartBasisPoint {
		return nil, setupErr(ErrInvalidParams, fmt.Errorf("sweep %d..%d is outside %d..%d",
			opts.StartBasisPoint, opts.EndBasisPoint, MaxBasisPoint, MinBasisPoint))
	}
	if opts.Deadline == nil {
		return nil, setupErr(ErrInvalidParams, fmt.Errorf("swap deadline is required"))
	}
	if weth == (common.Address{}) {
		return nil, setupErr(ErrInvalidParams, fmt.Errorf("weth address is required"))
	}
	return &Prober{
		fork:      fork,
		submitter: submitter,
		token:     token,
		router:    router,
		factory:   factory,
		weth:      weth,
		log:       log,
		opts:      opts,
	}, nil
}

func (p *Prober) State() ProbeState {
	return p.state
}

// Attempts returns every step tried so far, including on failure.
func (p *Prober) Attempts() []Attempt {
	return p.attempts
}

// Probe sweeps the requested output from the start basis point down and
// stops at the first swap that is mined. It then reads what the trader
// actually received and derives the fee.
func (p *Prober) Probe(ctx context.Context, profile *TokenProfile) (*ProbeResult, error) {
	trader, err := randomAddress()
	if err != nil {
		return nil, environmentErr("trader key", err)
	}
	if err := p.fork.ImpersonateAccount(ctx, trader); err != nil {
		return nil, environmentErr("impersonate trader", err)
	}
	if err := p.fork.SetBalance(ctx, trader, TraderFunding); err != nil {
		return nil, environmentErr("fund trader", err)
	}

	path := []common.Address{p.weth, profile.Address}
	var requested *big.Int

	for i := p.opts.StartBasisPoint; i >= p.opts.EndBasisPoint; i-- {
		p.state = ProbeState{Phase: Sweeping, BasisPoint: i}

		amount := ReferenceOutput(profile, i)
		if amount.Sign() == 0 {
			p.record(Attempt{BasisPoint: i, Requested: amount, Result: AttemptSkipped})
			continue
		}

		swap, err := p.router.SwapETHForExactTokens(amount, path, trader, p.opts.Deadline)
		if err != nil {
			return nil, setupErr(ErrInvalidParams, err)
		}

		out := p.submitter.Submit(ctx, swap, trader, SwapMaxInput)
		switch out.Status {
		case ethtxn.Included:
			p.record(Attempt{BasisPoint: i, Requested: amount, Result: AttemptIncluded})
			requested = amount
		case ethtxn.Reverted:
			p.record(Attempt{BasisPoint: i, Requested: amount, Result: AttemptReverted, Reason: out.Err.Reason})
			continue
		default:
			return nil, environmentErr(fmt.Sprintf("swap at %d bp", i), out.Error())
		}
		break
	}

	if requested == nil {
		p.state = ProbeState{Phase: Exhausted}
		return nil, heuristicErr(ErrNoTradableAmount, fmt.Errorf("%d steps from %d to %d bp",
			len(p.attempts), p.opts.StartBasisPoint, p.opts.EndBasisPoint))
	}
	p.state.Phase = Succeeded
	p.log.Infof("taxprobe: swap for %s of %s succeeded at %d bp", requested, profile.Address, p.state.BasisPoint)

	if err := p.fork.Mine(ctx); err != nil {
		return nil, environmentErr("mine", err)
	}
	received, err := p.token.BalanceOf(ctx, trader)
	if err != nil {
		return nil, tokenCallErr("balanceOf trader", err)
	}

	feePercent, feeBasisPoints := EffectiveFee(requested, received)
	result := &ProbeResult{
		BasisPoint:     p.state.BasisPoint,
		Requested:      requested,
		Received:       received,
		FeePercent:     feePercent,
		FeeBasisPoints: feeBasisPoints,
		Trader:         trader,
		Attempts:       p.attempts,
	}
	p.readPair(ctx, result)
	return result, nil
}

func (p *Prober) record(a Attempt) {
	p.attempts = append(p.attempts, a)
	if a.Result == AttemptReverted {
		p.log.Debugf("taxprobe: %d bp reverted: %s", a.BasisPoint, a.Reason)
	}
	if p.opts.OnAttempt != nil {
		p.opts.OnAttempt(a)
	}
}

// readPair reads the pool back after the swap. Failures here never change
// the measured fee, they are only logged.
func (p *Prober) readPair(ctx context.Context, result *ProbeResult) {
	pair, err := p.factory.GetPair(ctx, p.weth, p.token.Address())
	if err != nil {
		p.log.Warnf("taxprobe: getPair failed: %v", err)
		return
	}
	if pair == (common.Address{}) {
		// A swap just went through the pair, so it must exist.
		result.PairMissing = true
		p.log.Warnf("taxprobe: factory %s reports no pair for %s after a successful swap", p.factory.Address(), p.token.Address())
		return
	}
	result.Pair = pair

	reserves, err := ethcontract.NewUniswapV2Pair(pair, p.factory.Caller()).GetReserves(ctx)
	if err != nil {
		p.log.Warnf("taxprobe: getReserves on %s failed: %v", pair, err)
		return
	}
	result.Reserves = &reserves
	p.log.Infof("taxprobe: pair %s reserves %s / %s", pair, reserves.Reserve0, reserves.Reserve1)
}

func randomAddress() (common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}
