package taxprobe

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/0xsequence/feeprobe/config"
	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/0xsequence/feeprobe/ethfork"
	"github.com/0xsequence/feeprobe/ethtxn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/goware/logger"
)

// Params identify the token to probe and the chain state to fork.
type Params struct {
	Creator common.Address
	Token   common.Address

	// BlockNumber pins the fork. Zero uses the upstream head.
	BlockNumber uint64
}

func (p Params) validate() error {
	if p.Token == (common.Address{}) {
		return setupErr(ErrInvalidParams, fmt.Errorf("token address is required"))
	}
	if p.Creator == (common.Address{}) {
		return setupErr(ErrInvalidParams, fmt.Errorf("creator address is required"))
	}
	return nil
}

// Simulation runs probes against fresh forks. Each Run owns its fork and
// closes it before returning. An attached fork is rolled back to the state
// it was attached in, so runs sharing one node do not see each other.
type Simulation struct {
	cfg       config.Config
	log       logger.Logger
	launcher  ethfork.Launcher
	onAttempt func(Attempt)
}

type Option func(*Simulation)

// WithLauncher overrides the launcher chosen by the fork configuration.
func WithLauncher(launcher ethfork.Launcher) Option {
	return func(s *Simulation) {
		s.launcher = launcher
	}
}

// WithAttemptHook reports every sweep step as it completes.
func WithAttemptHook(fn func(Attempt)) Option {
	return func(s *Simulation) {
		s.onAttempt = fn
	}
}

func NewSimulation(cfg config.Config, log logger.Logger, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, setupErr(ErrInvalidParams, err)
	}
	if log == nil {
		log = logger.NewLogger(logger.LogLevel_WARN)
	}

	s := &Simulation{cfg: cfg, log: log}
	for _, opt := range opts {
		opt(s)
	}

	if s.launcher == nil {
		switch cfg.Fork.Launcher {
		case config.LauncherProcess:
			s.launcher = ethfork.ProcessLauncher{AnvilPath: cfg.Fork.AnvilPath}
		case config.LauncherContainer:
			s.launcher = ethfork.ContainerLauncher{Image: cfg.Fork.Image}
		}
	}
	return s, nil
}

// Run forks the chain, seeds a pool from the token's holder and measures
// the buy fee. The report is returned even when err is non-nil.
func (s *Simulation) Run(ctx context.Context, params Params) (*Report, error) {
	report := s.newReport(params)
	err := s.run(ctx, params, report, true)
	report.finish(OutcomeMeasured, err)
	s.logOutcome(report)
	return report, err
}

// Inspect reads the token profile and resolves the holder without changing
// any fork state.
func (s *Simulation) Inspect(ctx context.Context, params Params) (*Report, error) {
	report := s.newReport(params)
	err := s.run(ctx, params, report, false)
	report.finish(OutcomeResolved, err)
	s.logOutcome(report)
	return report, err
}

func (s *Simulation) newReport(params Params) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Network:     s.cfg.Network,
		Token:       params.Token,
		Creator:     params.Creator,
		BlockNumber: params.BlockNumber,
		Router:      s.cfg.RouterAddress(),
		Factory:     s.cfg.FactoryAddress(),
		StartedAt:   time.Now().UTC(),
	}
}

func (s *Simulation) run(ctx context.Context, params Params, report *Report, probe bool) error {
	if err := params.validate(); err != nil {
		return err
	}
	if s.cfg.Run.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Run.Timeout)
		defer cancel()
	}

	s.log.Infof("taxprobe: run %s: token %s, creator %s, block %d", report.RunID, params.Token, params.Creator, params.BlockNumber)

	fork, err := s.openFork(ctx, params.BlockNumber)
	if err != nil {
		return environmentErr("open fork", err)
	}
	defer func() {
		if err := fork.Close(); err != nil {
			s.log.Warnf("taxprobe: run %s: %v", report.RunID, err)
		}
	}()
	report.ForkedAt = fork.ForkedAt()

	provider := fork.Provider()
	token := ethcontract.NewERC20(params.Token, provider)
	router := ethcontract.NewUniswapV2Router(s.cfg.RouterAddress(), provider)
	factory := ethcontract.NewUniswapV2Factory(s.cfg.FactoryAddress(), provider)

	profile, err := LoadTokenProfile(ctx, token)
	if err != nil {
		return err
	}
	report.Profile = profile
	s.log.Infof("taxprobe: token %s supply %s, decimals %d", profile.Address, profile.TotalSupply, profile.Decimals)

	resolution, err := ResolveOwner(ctx, token, params.Creator, s.log)
	if err != nil {
		return err
	}
	report.Resolution = resolution
	s.log.Infof("taxprobe: holder %s (%s) balance %s", resolution.Holder, resolution.Branch, resolution.Balance)

	if !probe {
		return nil
	}

	weth, err := s.resolveWETH(ctx, router)
	if err != nil {
		return err
	}
	report.WETH = weth

	submitter := ethtxn.NewSubmitter(provider,
		ethtxn.WithAutoMine(fork.MiningMode() == ethfork.Manual),
		ethtxn.WithLogger(s.log),
	)
	deadline := new(big.Int).SetUint64(s.cfg.Run.Deadline)

	tradingCall, err := s.tradingCall(params.Token)
	if err != nil {
		return err
	}
	bootstrapper := &Bootstrapper{
		Fork:        fork,
		Submitter:   submitter,
		Token:       token,
		Router:      router,
		Deadline:    deadline,
		Log:         s.log,
		TradingCall: tradingCall,
	}
	boot, err := bootstrapper.Bootstrap(ctx, resolution)
	if err != nil {
		return err
	}
	report.Bootstrap = boot

	prober, err := NewProber(fork, submitter, token, router, factory, weth, s.log, ProberOptions{
		StartBasisPoint: s.cfg.Run.StartBasisPoint,
		EndBasisPoint:   s.cfg.Run.EndBasisPoint,
		Deadline:        deadline,
		OnAttempt:       s.onAttempt,
	})
	if err != nil {
		return err
	}
	result, err := prober.Probe(ctx, profile)
	report.Attempts = len(prober.Attempts())
	report.ProbeState = prober.State().String()
	if err != nil {
		return err
	}
	report.Probe = result
	return nil
}

func (s *Simulation) openFork(ctx context.Context, blockNumber uint64) (*ethfork.Fork, error) {
	opts := ethfork.Options{
		UpstreamURL: s.cfg.RPC.UpstreamURL,
		BlockNumber: blockNumber,
		Mining: ethfork.Mining{
			Mode:      s.cfg.MiningMode(),
			BlockTime: s.cfg.Fork.BlockTime,
		},
		Launcher: s.launcher,
		Log:      s.log,
	}
	if s.cfg.Fork.Launcher == config.LauncherAttach && s.launcher == nil {
		return ethfork.Attach(ctx, s.cfg.Fork.URL, opts)
	}
	return ethfork.Open(ctx, opts)
}

func (s *Simulation) resolveWETH(ctx context.Context, router *ethcontract.UniswapV2Router) (common.Address, error) {
	if weth := s.cfg.WETHAddress(); weth != (common.Address{}) {
		return weth, nil
	}
	weth, err := router.WETH(ctx)
	if err != nil {
		if ethcontract.IsContractFailure(err) {
			return common.Address{}, setupErr(ErrInvalidParams, fmt.Errorf("router %s has no WETH(): %w", router.Address(), err))
		}
		return common.Address{}, environmentErr("router WETH", err)
	}
	s.log.Debugf("taxprobe: router %s reports WETH %s", router.Address(), weth)
	return weth, nil
}

func (s *Simulation) tradingCall(token common.Address) (*ethcontract.UnsignedCall, error) {
	if s.cfg.Trading.Calldata == "" {
		return nil, nil
	}
	call, err := ethcontract.RawCall(s.cfg.TradingTarget(token), s.cfg.Trading.Calldata)
	if err != nil {
		return nil, setupErr(ErrInvalidParams, err)
	}
	return &call, nil
}

func (s *Simulation) logOutcome(report *Report) {
	switch {
	case report.Probe != nil:
		s.log.Infof("taxprobe: run %s measured fee %s%% (%s bp) at %d bp in %s",
			report.RunID, report.Probe.FeePercent, report.Probe.FeeBasisPoints, report.Probe.BasisPoint, report.Elapsed)
	case report.Outcome == OutcomeFailed:
		s.log.Errorf("taxprobe: run %s failed (%s): %s", report.RunID, report.ErrorClass, report.Failure)
	default:
		s.log.Infof("taxprobe: run %s %s in %s", report.RunID, report.Outcome, report.Elapsed)
	}
}
