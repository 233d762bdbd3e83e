package ethtest

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/0xsequence/feeprobe/ethrpc/jsonrpc"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// DummyAddr returns a dummy address
func DummyAddr() common.Address {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return crypto.PubkeyToAddress(key.PublicKey)
}

// message is one call or transaction being executed by the fake.
type message struct {
	from   common.Address
	to     common.Address
	value  *big.Int
	data   []byte
	method string
	args   []interface{}
}

type revertError struct {
	reason string
	data   []byte

	// halt marks an exceptional stop (out of gas) rather than a REVERT.
	halt bool
}

var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

func revertWith(reason string) *revertError {
	strType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: strType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	return &revertError{
		reason: reason,
		data:   append(append([]byte{}, revertSelector...), packed...),
	}
}

// outOfGas is an exceptional halt. Nodes report it with a non-revert error
// code and no payload.
func outOfGas() *revertError {
	return &revertError{reason: "out of gas", halt: true}
}

// revertEmpty is what a contract without the called function (and without
// a fallback) returns.
func revertEmpty() *revertError {
	return &revertError{}
}

func (r *revertError) rpcError() *jsonrpc.Error {
	if r.halt {
		return &jsonrpc.Error{Code: -32003, Message: "Out of gas: gas required exceeds allowance: 30000000"}
	}
	e := &jsonrpc.Error{
		Code:    jsonrpc.CodeExecutionReverted,
		Message: "execution reverted",
	}
	if r.reason != "" {
		e.Message += ": " + r.reason
	}
	if len(r.data) > 0 {
		e.Data, _ = json.Marshal(hexutil.Encode(r.data))
	}
	return e
}

func decodeInput(contractABI abi.ABI, msg *message) (*abi.Method, []interface{}, *revertError) {
	if len(msg.data) < 4 {
		return nil, nil, revertEmpty()
	}
	method, err := contractABI.MethodById(msg.data[:4])
	if err != nil {
		msg.method = hexutil.Encode(msg.data[:4])
		return nil, nil, revertEmpty()
	}
	args, err := method.Inputs.Unpack(msg.data[4:])
	if err != nil {
		msg.method = method.Name
		return nil, nil, revertEmpty()
	}
	msg.method = method.Name
	msg.args = args
	return method, args, nil
}

func packOutput(method *abi.Method, values ...interface{}) ([]byte, *revertError) {
	out, err := method.Outputs.Pack(values...)
	if err != nil {
		panic(fmt.Sprintf("ethtest: packing %s output: %v", method.Name, err))
	}
	return out, nil
}
