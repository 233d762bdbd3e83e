// Package ethfork manages one forked dev chain (anvil) for the lifetime of a
// simulation: starting or attaching to it, impersonation, balance overrides
// and block production.
package ethfork

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/0xsequence/feeprobe/ethrpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goware/breaker"
	"github.com/goware/logger"
)

var (
	ErrForkRPC    = errors.New("ethfork: fork rpc failure")
	ErrForkClosed = errors.New("ethfork: fork is closed")

	// ErrForkHeight is returned by Attach when the fork is not at the
	// requested block and cannot be re-pinned without an upstream url.
	ErrForkHeight = errors.New("ethfork: attached fork is not at the requested block")
)

type MiningMode int

const (
	// Manual blocks are only produced by Mine.
	Manual MiningMode = iota
	// Interval blocks are produced on a timer.
	Interval
)

func (m MiningMode) String() string {
	switch m {
	case Manual:
		return "manual"
	case Interval:
		return "interval"
	}
	return fmt.Sprintf("mining(%d)", int(m))
}

func ParseMiningMode(s string) (MiningMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "manual":
		return Manual, nil
	case "interval":
		return Interval, nil
	}
	return Manual, fmt.Errorf("ethfork: unknown mining mode %q", s)
}

type Mining struct {
	Mode      MiningMode
	BlockTime time.Duration
}

func (m Mining) blockSeconds() uint64 {
	secs := uint64(m.BlockTime / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}

type Options struct {
	UpstreamURL string

	// BlockNumber pins the fork. Zero forks at the upstream head.
	BlockNumber uint64

	Mining   Mining
	Launcher Launcher
	Log      logger.Logger

	// ReadyRetries and ReadyBackoff control how long Open waits for the node
	// to answer eth_chainId.
	ReadyRetries int
	ReadyBackoff time.Duration

	// RequestTimeout bounds every JSON-RPC round trip to the fork.
	RequestTimeout time.Duration
}

var DefaultOptions = Options{
	Mining:         Mining{Mode: Manual},
	ReadyRetries:   12,
	ReadyBackoff:   250 * time.Millisecond,
	RequestTimeout: 60 * time.Second,
}

func (o *Options) setDefaults() {
	if o.Log == nil {
		o.Log = logger.NewLogger(logger.LogLevel_WARN)
	}
	if o.ReadyRetries <= 0 {
		o.ReadyRetries = DefaultOptions.ReadyRetries
	}
	if o.ReadyBackoff <= 0 {
		o.ReadyBackoff = DefaultOptions.ReadyBackoff
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultOptions.RequestTimeout
	}
}

// Fork is a single-owner handle on a forked chain. Overrides and
// impersonations made through it live only as long as the fork.
type Fork struct {
	log      logger.Logger
	provider *ethrpc.Provider
	endpoint string
	instance Instance
	mining   Mining
	forkedAt uint64

	// session is set for attached forks, whose changes are rolled back on
	// Close.
	session *session

	mu           sync.Mutex
	closed       bool
	impersonated map[common.Address]struct{}
}

// session is what an attached fork looked like before this Fork touched it.
type session struct {
	snapshotID string
	automine   bool
}

// Open launches a fork of opts.UpstreamURL with opts.Launcher and waits for
// it to serve requests.
func Open(ctx context.Context, opts Options) (*Fork, error) {
	opts.setDefaults()
	if opts.Launcher == nil {
		return nil, fmt.Errorf("ethfork: launcher is required")
	}
	if opts.UpstreamURL == "" {
		return nil, fmt.Errorf("ethfork: upstream url is required")
	}

	spec := LaunchSpec{
		UpstreamURL: opts.UpstreamURL,
		BlockNumber: opts.BlockNumber,
		Mining:      opts.Mining,
	}
	instance, err := opts.Launcher.Launch(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("ethfork: launch: %w", err)
	}
	opts.Log.Infof("ethfork: launched fork at block %d on %s", opts.BlockNumber, instance.Endpoint())

	fork, err := connect(ctx, instance.Endpoint(), instance, opts)
	if err != nil {
		if stopErr := instance.Stop(context.Background()); stopErr != nil {
			opts.Log.Warnf("ethfork: stop after failed open: %v", stopErr)
		}
		return nil, err
	}
	return fork, nil
}

// Attach wraps a fork managed elsewhere. A non-zero opts.BlockNumber pins it
// with anvil_reset against opts.UpstreamURL, unless the fork already sits at
// that block. Everything done through the Fork is rolled back by Close,
// which leaves the node running.
func Attach(ctx context.Context, url string, opts Options) (*Fork, error) {
	opts.setDefaults()
	return connect(ctx, url, nil, opts)
}

func connect(ctx context.Context, url string, instance Instance, opts Options) (*Fork, error) {
	provider, err := ethrpc.NewProvider(url,
		ethrpc.WithLogger(opts.Log),
		ethrpc.WithHTTPClient(&http.Client{Timeout: opts.RequestTimeout}),
	)
	if err != nil {
		return nil, err
	}

	f := &Fork{
		log:          opts.Log,
		provider:     provider,
		endpoint:     url,
		instance:     instance,
		mining:       opts.Mining,
		impersonated: map[common.Address]struct{}{},
	}

	br := breaker.New(opts.Log, opts.ReadyBackoff, 1.5, opts.ReadyRetries)
	err = br.Do(ctx, func() error {
		_, err := provider.ChainID(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fork at %s never became ready: %w", ErrForkRPC, url, err)
	}

	if instance == nil {
		if err := f.beginSession(ctx, opts); err != nil {
			return nil, err
		}
	}

	if err := f.start(ctx); err != nil {
		if f.session != nil {
			if endErr := f.endSession(ctx, nil); endErr != nil {
				opts.Log.Warnf("ethfork: release attached fork after failed connect: %v", endErr)
			}
		}
		return nil, err
	}
	return f, nil
}

func (f *Fork) start(ctx context.Context) error {
	switch f.mining.Mode {
	case Manual:
		if err := f.provider.SetAutomine(ctx, false); err != nil {
			return f.rpcErr("evm_setAutomine", err)
		}
	case Interval:
		if err := f.provider.SetIntervalMining(ctx, f.mining.blockSeconds()); err != nil {
			return f.rpcErr("evm_setIntervalMining", err)
		}
	}

	head, err := f.provider.BlockNumber(ctx)
	if err != nil {
		return f.rpcErr("eth_blockNumber", err)
	}
	f.forkedAt = head
	return nil
}

// beginSession pins an attached fork to the requested block and snapshots
// it, so Close can hand the node back as it was.
func (f *Fork) beginSession(ctx context.Context, opts Options) error {
	automine, err := f.provider.GetAutomine(ctx)
	if err != nil {
		return f.rpcErr("anvil_getAutomine", err)
	}

	if opts.BlockNumber > 0 {
		head, err := f.provider.BlockNumber(ctx)
		if err != nil {
			return f.rpcErr("eth_blockNumber", err)
		}
		if head != opts.BlockNumber {
			if opts.UpstreamURL == "" {
				return fmt.Errorf("%w: at %d, want %d", ErrForkHeight, head, opts.BlockNumber)
			}
			err := f.provider.Reset(ctx, ethrpc.ForkingParams{JSONRPCURL: opts.UpstreamURL, BlockNumber: opts.BlockNumber})
			if err != nil {
				return f.rpcErr("anvil_reset", err)
			}
			f.log.Infof("ethfork: attached fork at %s reset to block %d", f.endpoint, opts.BlockNumber)
		}
	}

	id, err := f.provider.Snapshot(ctx)
	if err != nil {
		return f.rpcErr("evm_snapshot", err)
	}
	f.session = &session{snapshotID: id, automine: automine}
	f.log.Debugf("ethfork: attached to %s, snapshot %s", f.endpoint, id)
	return nil
}

// endSession reverts an attached fork to its snapshot, drops the
// impersonations made through f and restores the mining mode.
func (f *Fork) endSession(ctx context.Context, impersonated []common.Address) error {
	var errs []error
	if err := f.provider.Revert(ctx, f.session.snapshotID); err != nil {
		errs = append(errs, f.rpcErr("evm_revert", err))
	}
	for _, account := range impersonated {
		if err := f.provider.StopImpersonatingAccount(ctx, account); err != nil {
			errs = append(errs, f.rpcErr("anvil_stopImpersonatingAccount", err))
		}
	}
	if f.mining.Mode == Interval {
		if err := f.provider.SetIntervalMining(ctx, 0); err != nil {
			errs = append(errs, f.rpcErr("evm_setIntervalMining", err))
		}
	}
	if err := f.provider.SetAutomine(ctx, f.session.automine); err != nil {
		errs = append(errs, f.rpcErr("evm_setAutomine", err))
	}
	return errors.Join(errs...)
}

func (f *Fork) rpcErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrForkRPC, op, err)
}

func (f *Fork) check() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrForkClosed
	}
	return nil
}

func (f *Fork) ImpersonateAccount(ctx context.Context, account common.Address) error {
	if err := f.check(); err != nil {
		return err
	}
	if err := f.provider.ImpersonateAccount(ctx, account); err != nil {
		return f.rpcErr("anvil_impersonateAccount", err)
	}
	f.mu.Lock()
	f.impersonated[account] = struct{}{}
	f.mu.Unlock()
	return nil
}

func (f *Fork) StopImpersonatingAccount(ctx context.Context, account common.Address) error {
	if err := f.check(); err != nil {
		return err
	}
	if err := f.provider.StopImpersonatingAccount(ctx, account); err != nil {
		return f.rpcErr("anvil_stopImpersonatingAccount", err)
	}
	f.mu.Lock()
	delete(f.impersonated, account)
	f.mu.Unlock()
	return nil
}

// SetBalance overwrites the native balance of account.
func (f *Fork) SetBalance(ctx context.Context, account common.Address, wei *big.Int) error {
	if err := f.check(); err != nil {
		return err
	}
	if err := f.provider.SetBalance(ctx, account, wei); err != nil {
		return f.rpcErr("anvil_setBalance", err)
	}
	return nil
}

func (f *Fork) BlockNumber(ctx context.Context) (uint64, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	n, err := f.provider.BlockNumber(ctx)
	if err != nil {
		return 0, f.rpcErr("eth_blockNumber", err)
	}
	return n, nil
}

// Mine produces exactly one block.
func (f *Fork) Mine(ctx context.Context) error {
	if err := f.check(); err != nil {
		return err
	}
	if err := f.provider.Mine(ctx); err != nil {
		return f.rpcErr("evm_mine", err)
	}
	return nil
}

func (f *Fork) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	bal, err := f.provider.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, f.rpcErr("eth_getBalance", err)
	}
	return bal, nil
}

func (f *Fork) HTTPEndpoint() string {
	return f.endpoint
}

// Provider is a JSON-RPC client bound to the fork.
func (f *Fork) Provider() *ethrpc.Provider {
	return f.provider
}

func (f *Fork) MiningMode() MiningMode {
	return f.mining.Mode
}

// ForkedAt is the fork's head block when it became ready.
func (f *Fork) ForkedAt() uint64 {
	return f.forkedAt
}

// Close stops a launched fork, or rolls an attached one back to the state
// it was attached in. It is safe to call more than once.
func (f *Fork) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	impersonated := make([]common.Address, 0, len(f.impersonated))
	for account := range f.impersonated {
		impersonated = append(impersonated, account)
	}
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if f.instance == nil {
		if f.session == nil {
			return nil
		}
		if err := f.endSession(ctx, impersonated); err != nil {
			return fmt.Errorf("ethfork: release attached fork: %w", err)
		}
		f.log.Debugf("ethfork: attached fork at %s reverted to snapshot %s", f.endpoint, f.session.snapshotID)
		return nil
	}
	if err := f.instance.Stop(ctx); err != nil {
		return fmt.Errorf("ethfork: stop fork: %w", err)
	}
	f.log.Debugf("ethfork: fork at %s stopped", f.endpoint)
	return nil
}
