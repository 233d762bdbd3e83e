package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xsequence/feeprobe/ethrpc/jsonrpc"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultReceiptPollInterval is how often WaitForTxnReceipt asks the node for
// a receipt. Forks mine locally, so this is far below a real block time.
var DefaultReceiptPollInterval = 100 * time.Millisecond

// ReceiptFetcher is the part of Interface that WaitForTxnReceipt needs.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

func WaitForTxnReceipt(ctx context.Context, provider ReceiptFetcher, txHash common.Hash) (*types.Receipt, error) {
	var clearTimeout context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, clearTimeout = context.WithTimeout(ctx, 120*time.Second) // default timeout of 120 seconds
		defer clearTimeout()
	}

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("ethrpc, WaitForTxnReceipt for %v: %w", txHash, err)
			}
		default:
		}

		receipt, err := provider.TransactionReceipt(ctx, txHash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
		case <-time.After(DefaultReceiptPollInterval):
		}
	}
}

// IsRevertError reports whether err carries a node error caused by an EVM
// revert, as opposed to a transport or request failure.
func IsRevertError(err error) bool {
	var rpcErr jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.IsRevert()
	}
	return false
}

// IsExecutionHalt reports whether err carries a node error caused by the EVM
// halting exceptionally, such as running out of gas.
func IsExecutionHalt(err error) bool {
	var rpcErr jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.IsExecutionHalt()
	}
	return false
}

// IsExecutionFailure reports whether the EVM rejected the call, by revert or
// by halt. Transport and decode failures are never execution failures.
func IsExecutionFailure(err error) bool {
	return IsRevertError(err) || IsExecutionHalt(err)
}

// RevertData extracts the revert payload from a node error, if present.
func RevertData(err error) ([]byte, bool) {
	var rpcErr jsonrpc.Error
	if !errors.As(err, &rpcErr) || !rpcErr.IsRevert() {
		return nil, false
	}
	return rpcErr.RevertData(), true
}
