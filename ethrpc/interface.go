package ethrpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Standard Ethereum JSON-RPC methods used against a fork:
// https://ethereum.org/en/developers/docs/apis/json-rpc/
//
// eth_chainId
// eth_blockNumber
// eth_getBalance
// eth_getCode
// eth_getTransactionCount
// eth_call
// eth_gasPrice
// eth_estimateGas
// eth_sendTransaction
// eth_getTransactionReceipt
//
// plus the dev-node methods listed in anvil.go.

type Interface interface {
	// Do executes a batch of calls in a single round trip
	Do(ctx context.Context, calls ...Call) error

	// ChainID = eth_chainId
	ChainID(ctx context.Context) (*big.Int, error)

	// BlockNumber = eth_blockNumber
	BlockNumber(ctx context.Context) (uint64, error)

	// BalanceAt = eth_getBalance
	BalanceAt(ctx context.Context, account common.Address, blockNum *big.Int) (*big.Int, error)

	// CodeAt = eth_getCode
	CodeAt(ctx context.Context, account common.Address, blockNum *big.Int) ([]byte, error)

	// NonceAt = eth_getTransactionCount
	NonceAt(ctx context.Context, account common.Address, blockNum *big.Int) (uint64, error)

	// PendingNonceAt = eth_getTransactionCount("pending")
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// CallContract = eth_call
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error)

	// SuggestGasPrice = eth_gasPrice
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas = eth_estimateGas
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	// TransactionReceipt = eth_getTransactionReceipt
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	// SendTransaction = eth_sendTransaction (unsigned, impersonated sender)
	SendTransaction(ctx context.Context, args TransactionArgs) (common.Hash, error)

	// ImpersonateAccount = anvil_impersonateAccount
	ImpersonateAccount(ctx context.Context, account common.Address) error

	// StopImpersonatingAccount = anvil_stopImpersonatingAccount
	StopImpersonatingAccount(ctx context.Context, account common.Address) error

	// SetBalance = anvil_setBalance
	SetBalance(ctx context.Context, account common.Address, wei *big.Int) error

	// Mine = evm_mine
	Mine(ctx context.Context) error

	// SetAutomine = evm_setAutomine
	SetAutomine(ctx context.Context, enabled bool) error

	// SetIntervalMining = evm_setIntervalMining
	SetIntervalMining(ctx context.Context, seconds uint64) error

	// GetAutomine = anvil_getAutomine
	GetAutomine(ctx context.Context) (bool, error)

	// Snapshot = evm_snapshot
	Snapshot(ctx context.Context) (string, error)

	// Revert = evm_revert
	Revert(ctx context.Context, snapshotID string) error

	// Reset = anvil_reset
	Reset(ctx context.Context, forking ForkingParams) error
}
