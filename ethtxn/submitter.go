package ethtxn

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/0xsequence/feeprobe/ethrpc"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goware/logger"
)

// Backend is the fork surface the Submitter drives.
type Backend interface {
	Filler
	ethrpc.ReceiptFetcher
	SendTransaction(ctx context.Context, args ethrpc.TransactionArgs) (common.Hash, error)
	Mine(ctx context.Context) error
}

type Status int

const (
	Included Status = iota + 1
	Reverted
	EnvironmentFault
)

func (s Status) String() string {
	switch s {
	case Included:
		return "included"
	case Reverted:
		return "reverted"
	case EnvironmentFault:
		return "environment-fault"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

type ErrorKind int

const (
	// FillFailure means the transaction could not be prepared, sent or
	// observed. It is a local or node fault.
	FillFailure ErrorKind = iota + 1

	// ExecutionReverted means the EVM rejected the call, either while
	// estimating gas or in the mined receipt. Exceptional halts such as
	// out of gas count as reverts.
	ExecutionReverted
)

func (k ErrorKind) String() string {
	switch k {
	case FillFailure:
		return "fill-failure"
	case ExecutionReverted:
		return "reverted"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type SubmitError struct {
	Kind   ErrorKind
	Stage  string
	Call   ethcontract.UnsignedCall
	From   common.Address
	Value  *big.Int
	Reason string
	Err    error
}

func (e *SubmitError) Error() string {
	msg := fmt.Sprintf("ethtxn: %s at %s: %s from %s", e.Kind, e.Stage, e.Call, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Outcome is the tagged result of one submission. Err is nil only when
// Status is Included.
type Outcome struct {
	Status  Status
	Hash    common.Hash
	Receipt *types.Receipt
	Err     *SubmitError
}

func (o Outcome) Included() bool {
	return o.Status == Included
}

// Error returns the outcome's error as a plain error value, nil when included.
func (o Outcome) Error() error {
	if o.Err == nil {
		return nil
	}
	return o.Err
}

type Submitter struct {
	backend     Backend
	log         logger.Logger
	autoMine    bool
	maxGasLimit uint64
}

type SubmitterOption func(*Submitter)

// WithAutoMine mines one block after each send. Use it when the fork has
// automine disabled.
func WithAutoMine(enabled bool) SubmitterOption {
	return func(s *Submitter) {
		s.autoMine = enabled
	}
}

func WithLogger(log logger.Logger) SubmitterOption {
	return func(s *Submitter) {
		s.log = log
	}
}

func WithMaxGasLimit(limit uint64) SubmitterOption {
	return func(s *Submitter) {
		s.maxGasLimit = limit
	}
}

func NewSubmitter(backend Backend, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		backend:     backend,
		maxGasLimit: DefaultMaxGasLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends call from an already impersonated account, attaching value
// when non-nil, and waits for it to be mined. It never decides whether a
// revert is fatal; the caller inspects the Outcome.
func (s *Submitter) Submit(ctx context.Context, call ethcontract.UnsignedCall, from common.Address, value *big.Int) Outcome {
	to := call.To
	txnRequest := &TransactionRequest{
		From:     from,
		To:       &to,
		ETHValue: value,
		Data:     call.Data,
	}

	fail := func(kind ErrorKind, stage string, err error) Outcome {
		subErr := &SubmitError{Kind: kind, Stage: stage, Call: call, From: from, Value: value, Err: err}
		if err != nil {
			subErr.Reason = revertReason(err)
		}
		status := EnvironmentFault
		if kind == ExecutionReverted {
			status = Reverted
		}
		if s.log != nil {
			s.log.Debugf("ethtxn: %s", subErr.Error())
		}
		return Outcome{Status: status, Err: subErr}
	}

	if err := FillTransaction(ctx, s.backend, txnRequest, s.maxGasLimit); err != nil {
		var fillErr *FillError
		if !errors.As(err, &fillErr) {
			return fail(FillFailure, StageNonce, err)
		}
		if fillErr.Stage == StageEstimate && ethrpc.IsExecutionFailure(fillErr.Err) {
			return fail(ExecutionReverted, StageEstimate, fillErr.Err)
		}
		return fail(FillFailure, fillErr.Stage, fillErr.Err)
	}

	hash, err := s.backend.SendTransaction(ctx, txnRequest.Args())
	if err != nil {
		if ethrpc.IsExecutionFailure(err) {
			return fail(ExecutionReverted, StageSend, err)
		}
		return fail(FillFailure, StageSend, err)
	}

	if s.autoMine {
		if err := s.backend.Mine(ctx); err != nil {
			out := fail(FillFailure, StageMine, err)
			out.Hash = hash
			return out
		}
	}

	receipt, err := ethrpc.WaitForTxnReceipt(ctx, s.backend, hash)
	if err != nil {
		out := fail(FillFailure, StageReceipt, err)
		out.Hash = hash
		return out
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		out := fail(ExecutionReverted, StageReceipt, nil)
		out.Err.Reason = "receipt status 0"
		out.Hash = hash
		out.Receipt = receipt
		return out
	}

	if s.log != nil {
		s.log.Debugf("ethtxn: %s from %s included in block %v", call, from, receipt.BlockNumber)
	}
	return Outcome{Status: Included, Hash: hash, Receipt: receipt}
}

func revertReason(err error) string {
	data, ok := ethrpc.RevertData(err)
	if ok && len(data) > 0 {
		if reason, err := abi.UnpackRevert(data); err == nil {
			return reason
		}
	}
	return err.Error()
}
