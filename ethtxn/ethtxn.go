package ethtxn

import (
	"context"
	"fmt"
	"math/big"

	"github.com/0xsequence/feeprobe/ethrpc"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type TransactionRequest struct {
	// Ethereum account to send the transaction from. The fork must already be
	// impersonating it.
	From common.Address

	// To is the recipient address, can be account or contract. Contract
	// creation is not supported.
	To *common.Address

	// Nonce is the nonce of the transaction for the sender. If this value is left empty (nil), it will
	// automatically be assigned.
	Nonce *big.Int

	// GasLimit is the total gas the transaction is expected the consume. If this value is left empty (0), it will
	// automatically be estimated and assigned.
	GasLimit uint64

	// GasPrice (in WEI) offering to pay for per unit of gas. If this value is left empty (nil), it will
	// automatically be sampled and assigned.
	GasPrice *big.Int

	// ETHValue (in WEI) amount of ETH currency to send with this transaction. Optional.
	ETHValue *big.Int

	// Data is calldata / input when calling a contract. Optional.
	Data []byte
}

// Filler is the node surface needed to resolve transaction fields.
type Filler interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

const (
	StageNonce    = "nonce"
	StageGasPrice = "gasPrice"
	StageEstimate = "estimate"
	StageSend     = "send"
	StageMine     = "mine"
	StageReceipt  = "receipt"
)

// DefaultMaxGasLimit caps estimated gas limits, matching a mainnet block.
const DefaultMaxGasLimit uint64 = 30_000_000

// FillError reports which field could not be resolved.
type FillError struct {
	Stage string
	Err   error
}

func (e *FillError) Error() string {
	return fmt.Sprintf("ethtxn: fill %s: %v", e.Stage, e.Err)
}

func (e *FillError) Unwrap() error {
	return e.Err
}

// FillTransaction resolves nonce, gas price and gas limit against the current
// node state. Estimates get 20% headroom and are capped at maxGasLimit.
func FillTransaction(ctx context.Context, provider Filler, txnRequest *TransactionRequest, maxGasLimit uint64) error {
	if txnRequest == nil {
		return fmt.Errorf("ethtxn: txnRequest is required")
	}
	if provider == nil {
		return fmt.Errorf("ethtxn: provider is not set")
	}
	if txnRequest.To == nil {
		return fmt.Errorf("ethtxn: txnRequest requires a recipient")
	}

	if txnRequest.Nonce == nil {
		nonce, err := provider.PendingNonceAt(ctx, txnRequest.From)
		if err != nil {
			return &FillError{Stage: StageNonce, Err: err}
		}
		txnRequest.Nonce = big.NewInt(0).SetUint64(nonce)
	}

	if txnRequest.GasPrice == nil {
		gasPrice, err := provider.SuggestGasPrice(ctx)
		if err != nil {
			return &FillError{Stage: StageGasPrice, Err: err}
		}
		txnRequest.GasPrice = gasPrice
	}

	if txnRequest.GasLimit == 0 {
		callMsg := ethereum.CallMsg{
			From:     txnRequest.From,
			To:       txnRequest.To,
			Gas:      0, // estimating this value
			GasPrice: txnRequest.GasPrice,
			Value:    txnRequest.ETHValue,
			Data:     txnRequest.Data,
		}

		gasLimit, err := provider.EstimateGas(ctx, callMsg)
		if err != nil {
			return &FillError{Stage: StageEstimate, Err: err}
		}
		gasLimit = gasLimit * 12 / 10
		if maxGasLimit > 0 && gasLimit > maxGasLimit {
			gasLimit = maxGasLimit
		}
		txnRequest.GasLimit = gasLimit
	}

	return nil
}

// Args converts a filled request into eth_sendTransaction arguments.
func (r *TransactionRequest) Args() ethrpc.TransactionArgs {
	args := ethrpc.TransactionArgs{
		From: r.From,
		To:   r.To,
		Data: r.Data,
	}
	if r.GasLimit > 0 {
		gas := hexutil.Uint64(r.GasLimit)
		args.Gas = &gas
	}
	if r.GasPrice != nil {
		args.GasPrice = (*hexutil.Big)(r.GasPrice)
	}
	if r.ETHValue != nil {
		args.Value = (*hexutil.Big)(r.ETHValue)
	}
	if r.Nonce != nil {
		nonce := hexutil.Uint64(r.Nonce.Uint64())
		args.Nonce = &nonce
	}
	return args
}
