package ethrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goware/logger"
)

type Provider struct {
	log        logger.Logger
	nodeURL    string
	httpClient httpClient

	chainID *big.Int
	lastID  atomic.Uint64
}

func NewProvider(nodeURL string, options ...Option) (*Provider, error) {
	if nodeURL == "" {
		return nil, fmt.Errorf("ethrpc: node url is required")
	}
	p := &Provider{
		nodeURL:    nodeURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

var (
	ErrNotFound       = ethereum.NotFound
	ErrEmptyResponse  = errors.New("ethrpc: empty response")
	ErrInvalidBalance = errors.New("ethrpc: balance must be a non-negative amount")
	ErrInvalidReset   = errors.New("ethrpc: reset requires an upstream url")
	ErrRevertFailed   = errors.New("ethrpc: snapshot revert rejected")
)

func (p *Provider) NodeURL() string {
	return p.nodeURL
}

func (p *Provider) Do(ctx context.Context, calls ...Call) error {
	if len(calls) == 0 {
		return nil
	}

	batch := make(BatchCall, 0, len(calls))
	for i, call := range calls {
		call := call
		if call.err != nil {
			return fmt.Errorf("call %d has an error: %w", i, call.err)
		}

		call.request.ID = p.lastID.Add(1)
		batch = append(batch, &call)
	}

	b, err := batch.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal JSONRPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.nodeURL, bytes.NewBuffer(b))
	if err != nil {
		return fmt.Errorf("failed to initialize http.Request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if p.log != nil {
		p.log.Debugf("ethrpc: -> %s", b)
	}

	res, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest && res.StatusCode != http.StatusInternalServerError {
		return fmt.Errorf("ethrpc: node responded with http status %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(&batch); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for i, call := range batch {
		if call.err != nil {
			continue
		}

		if call.response == nil {
			call.err = ErrEmptyResponse
			continue
		}

		if calls[i].resultFn == nil {
			// expecting no result, so we skip
			continue
		}

		if err := calls[i].resultFn(call.response.Result); err != nil {
			call.err = err
			continue
		}
	}

	return batch.ErrorOrNil()
}

var _ Interface = (*Provider)(nil)

func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	if p.chainID != nil {
		// chainID is memoized
		return p.chainID, nil
	}
	var ret *big.Int
	err := p.Do(ctx, ChainID().Into(&ret))
	if err != nil {
		return nil, err
	}
	p.chainID = ret
	return ret, nil
}

func (p *Provider) BlockNumber(ctx context.Context) (uint64, error) {
	var ret uint64
	err := p.Do(ctx, BlockNumber().Into(&ret))
	return ret, err
}

func (p *Provider) BalanceAt(ctx context.Context, account common.Address, blockNum *big.Int) (*big.Int, error) {
	var ret *big.Int
	err := p.Do(ctx, BalanceAt(account, blockNum).Into(&ret))
	return ret, err
}

func (p *Provider) CodeAt(ctx context.Context, account common.Address, blockNum *big.Int) ([]byte, error) {
	var result []byte
	err := p.Do(ctx, CodeAt(account, blockNum).Into(&result))
	return result, err
}

func (p *Provider) NonceAt(ctx context.Context, account common.Address, blockNum *big.Int) (uint64, error) {
	var result uint64
	err := p.Do(ctx, NonceAt(account, blockNum).Into(&result))
	return result, err
}

func (p *Provider) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var result uint64
	err := p.Do(ctx, PendingNonceAt(account).Into(&result))
	return result, err
}

func (p *Provider) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error) {
	var result []byte
	err := p.Do(ctx, CallContract(msg, blockNum).Into(&result))
	return result, err
}

func (p *Provider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var ret *big.Int
	err := p.Do(ctx, SuggestGasPrice().Into(&ret))
	return ret, err
}

func (p *Provider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var result uint64
	err := p.Do(ctx, EstimateGas(msg).Into(&result))
	return result, err
}

func (p *Provider) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := p.Do(ctx, TransactionReceipt(txHash).Into(&receipt))
	if err == nil && receipt == nil {
		return nil, ethereum.NotFound
	}
	return receipt, err
}

func (p *Provider) SendTransaction(ctx context.Context, args TransactionArgs) (common.Hash, error) {
	var txnHash common.Hash
	err := p.Do(ctx, SendTransaction(args).Into(&txnHash))
	return txnHash, err
}

func (p *Provider) ImpersonateAccount(ctx context.Context, account common.Address) error {
	return p.Do(ctx, ImpersonateAccount(account))
}

func (p *Provider) StopImpersonatingAccount(ctx context.Context, account common.Address) error {
	return p.Do(ctx, StopImpersonatingAccount(account))
}

func (p *Provider) SetBalance(ctx context.Context, account common.Address, wei *big.Int) error {
	return p.Do(ctx, SetBalance(account, wei))
}

func (p *Provider) Mine(ctx context.Context) error {
	return p.Do(ctx, Mine())
}

func (p *Provider) SetAutomine(ctx context.Context, enabled bool) error {
	return p.Do(ctx, SetAutomine(enabled))
}

func (p *Provider) SetIntervalMining(ctx context.Context, seconds uint64) error {
	return p.Do(ctx, SetIntervalMining(seconds))
}

func (p *Provider) GetAutomine(ctx context.Context) (bool, error) {
	var enabled bool
	err := p.Do(ctx, GetAutomine().Into(&enabled))
	return enabled, err
}

func (p *Provider) Snapshot(ctx context.Context) (string, error) {
	var id string
	err := p.Do(ctx, Snapshot().Into(&id))
	return id, err
}

// Revert restores the state recorded by Snapshot. A node that does not know
// the id answers false, which is reported as ErrRevertFailed.
func (p *Provider) Revert(ctx context.Context, snapshotID string) error {
	var ok bool
	if err := p.Do(ctx, Revert(snapshotID).Into(&ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRevertFailed, snapshotID)
	}
	return nil
}

func (p *Provider) Reset(ctx context.Context, forking ForkingParams) error {
	return p.Do(ctx, Reset(forking))
}
