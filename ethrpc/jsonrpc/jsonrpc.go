package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Message is either a JSONRPC request or response.
type Message struct {
	Version string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  []any           `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewRequest returns a new JSONRPC request Message.
func NewRequest(id uint64, method string, params []any) Message {
	return Message{
		Version: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// CodeExecutionReverted is the error code geth and anvil use for eth_call and
// eth_estimateGas failures caused by a REVERT opcode.
const CodeExecutionReverted = 3

// Error is a JSONRPC error returned from the node.
type Error struct {
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// IsRevert reports whether the node rejected the request because the EVM
// execution reverted.
func (e Error) IsRevert() bool {
	if e.Code == CodeExecutionReverted {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "revert")
}

// haltMarkers are lowercase fragments of the messages geth and anvil use
// when the EVM stops exceptionally instead of executing REVERT.
var haltMarkers = []string{
	"out of gas",
	"evm error",
	"invalid opcode",
	"stack underflow",
	"stack overflow",
	"invalid jump destination",
	"write protection",
	"return data out of bounds",
	"gas uint64 overflow",
}

// IsExecutionHalt reports whether the node rejected the request because the
// EVM halted without a revert, e.g. out of gas or an invalid opcode. Sender
// funding errors are not halts even when anvil tags them as EVM errors.
func (e Error) IsExecutionHalt() bool {
	msg := strings.ToLower(e.Message)
	if strings.Contains(msg, "fund") {
		return false
	}
	for _, marker := range haltMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RevertData returns the raw revert payload attached to the error, if any.
// Nodes encode it either as a hex string or as an object with a data field.
func (e Error) RevertData() []byte {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}

	var str string
	if err := json.Unmarshal(e.Data, &str); err == nil {
		b, err := hexutil.Decode(str)
		if err != nil {
			return nil
		}
		return b
	}

	var obj struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(e.Data, &obj); err == nil && obj.Data != "" {
		b, err := hexutil.Decode(obj.Data)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}
