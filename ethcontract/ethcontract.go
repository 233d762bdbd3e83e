package ethcontract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/0xsequence/feeprobe/ethrpc"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrFunctionMissing is returned by view calls when the target has no such
	// function: the call reverted without data or returned nothing at all.
	ErrFunctionMissing = errors.New("ethcontract: function not present")

	// ErrCallReverted is returned by view calls that reverted with a payload.
	ErrCallReverted = errors.New("ethcontract: call reverted")

	// ErrUnexpectedOutput is returned when a view call succeeded but its
	// return data does not decode against the ABI.
	ErrUnexpectedOutput = errors.New("ethcontract: unexpected output")

	ErrInvalidArgument = errors.New("ethcontract: invalid argument")
)

// Caller executes read-only calls. *ethrpc.Provider satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error)
}

type Contract struct {
	address common.Address
	abi     abi.ABI
	caller  Caller
}

func NewContract(address common.Address, abi abi.ABI, caller Caller) *Contract {
	return &Contract{
		address: address,
		abi:     abi,
		caller:  caller,
	}
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) Caller() Caller {
	return c.caller
}

func (c *Contract) ABI() abi.ABI {
	return c.abi
}

func (c *Contract) Encode(method string, args ...interface{}) ([]byte, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("contract method %s not found", method)
	}
	input, err := m.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, method, err)
	}
	input = append(m.ID, input...)
	return input, nil
}

// Build encodes a state-changing call without sending it.
func (c *Contract) Build(method string, args ...interface{}) (UnsignedCall, error) {
	data, err := c.Encode(method, args...)
	if err != nil {
		return UnsignedCall{}, err
	}
	return UnsignedCall{
		To:     c.address,
		Data:   data,
		Method: method,
		Args:   args,
	}, nil
}

// Call runs a view method with eth_call against the latest block and returns
// the decoded outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if c.caller == nil {
		return nil, fmt.Errorf("ethcontract: %s: contract has no caller", method)
	}
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("contract method %s not found", method)
	}
	data, err := c.Encode(method, args...)
	if err != nil {
		return nil, err
	}

	to := c.address
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		revertData, reverted := ethrpc.RevertData(err)
		if !reverted {
			return nil, fmt.Errorf("ethcontract: %s on %s: %w", method, c.address, err)
		}
		if len(revertData) == 0 {
			return nil, &CallError{Kind: ErrFunctionMissing, Contract: c.address, Method: method, Err: err}
		}
		callErr := &CallError{Kind: ErrCallReverted, Contract: c.address, Method: method, Data: revertData, Err: err}
		if reason, err := abi.UnpackRevert(revertData); err == nil {
			callErr.Reason = reason
		}
		return nil, callErr
	}
	if len(out) == 0 {
		return nil, &CallError{Kind: ErrFunctionMissing, Contract: c.address, Method: method}
	}

	values, err := m.Outputs.Unpack(out)
	if err != nil {
		return nil, &CallError{Kind: ErrUnexpectedOutput, Contract: c.address, Method: method, Data: out, Err: err}
	}
	return values, nil
}

// CallError describes a view call that the contract itself rejected.
type CallError struct {
	Kind     error
	Contract common.Address
	Method   string
	Reason   string
	Data     []byte
	Err      error
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("%v: %s on %s", e.Kind, e.Method, e.Contract)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *CallError) Is(target error) bool {
	return target == e.Kind
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsContractFailure reports whether err came from the contract rejecting a
// view call, as opposed to the node or transport failing.
func IsContractFailure(err error) bool {
	return errors.Is(err, ErrFunctionMissing) || errors.Is(err, ErrCallReverted) || errors.Is(err, ErrUnexpectedOutput)
}

func callOne[T any](ctx context.Context, c *Contract, method string, args ...interface{}) (T, error) {
	var zero T
	values, err := c.Call(ctx, method, args...)
	if err != nil {
		return zero, err
	}
	if len(values) == 0 {
		return zero, &CallError{Kind: ErrUnexpectedOutput, Contract: c.address, Method: method}
	}
	v, ok := values[0].(T)
	if !ok {
		return zero, &CallError{Kind: ErrUnexpectedOutput, Contract: c.address, Method: method,
			Err: fmt.Errorf("returned %T, expected %T", values[0], zero)}
	}
	return v, nil
}

func requireAmount(method, name string, v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("%w: %s: %s must be a non-negative amount", ErrInvalidArgument, method, name)
	}
	return nil
}

func requireAddress(method, name string, addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: %s: %s is the zero address", ErrInvalidArgument, method, name)
	}
	return nil
}
